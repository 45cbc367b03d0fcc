package interaction

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
)

type InteractionTestSuite struct {
	suite.Suite
}

func TestInteractionSuite(t *testing.T) {
	suite.Run(t, new(InteractionTestSuite))
}

func (suite *InteractionTestSuite) TestHeadlessDeclinesConfirmation() {
	h := NewHeadless(logger.NewNopLogger())
	suite.False(h.Interactive())
	suite.False(h.ConfirmPeriodMismatch("Period mismatch", "tick data with 1m trigger"))
}

func (suite *InteractionTestSuite) TestHeadlessNotificationsDoNotPanic() {
	h := NewHeadless(logger.NewNopLogger())
	h.Log("hello", types.LogLevelInfo)
	h.Log("careful", types.LogLevelWarning)
	h.Progress(50)
	h.OnFinished()
	h.OpenResult("/tmp/results")
}

func (suite *InteractionTestSuite) TestConsoleConfirmYes() {
	var out bytes.Buffer
	c := NewConsoleWithStreams(&out, strings.NewReader("y\n"))
	suite.True(c.Interactive())
	suite.True(c.ConfirmPeriodMismatch("Period mismatch", "details"))
	suite.Contains(out.String(), "Period mismatch")
}

func (suite *InteractionTestSuite) TestConsoleConfirmNo() {
	var out bytes.Buffer
	c := NewConsoleWithStreams(&out, strings.NewReader("n\n"))
	suite.False(c.ConfirmPeriodMismatch("Period mismatch", "details"))
}

func (suite *InteractionTestSuite) TestConsoleConfirmDefaultsToNo() {
	var out bytes.Buffer
	c := NewConsoleWithStreams(&out, strings.NewReader("\n"))
	suite.False(c.ConfirmPeriodMismatch("Period mismatch", "details"))
}

func (suite *InteractionTestSuite) TestConsoleLogFormatsLevel() {
	var out bytes.Buffer
	c := NewConsoleWithStreams(&out, strings.NewReader(""))
	c.Log("something happened", types.LogLevelWarning)
	suite.Contains(out.String(), "[WARNING] something happened")
}
