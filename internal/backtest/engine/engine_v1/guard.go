package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/interaction"
	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// expectedDataPeriod maps a trigger type to the data granularity it needs.
// Custom triggers have no fixed mapping and skip the check entirely.
var expectedDataPeriod = map[string]types.Period{
	"tick": types.PeriodTick,
	"1m":   types.Period1m,
	"5m":   types.Period5m,
	"1d":   types.Period1d,
}

// PeriodsConsistent is the pure pre-flight form of the check, safe to call
// before any collaborator exists.
func PeriodsConsistent(triggerType string, dataPeriod types.Period) bool {
	expected, ok := expectedDataPeriod[triggerType]
	if !ok {
		return true
	}
	return expected == dataPeriod
}

// periodGuard resolves trigger and data period disagreement before any
// trading state is initialized.
type periodGuard struct {
	allowMismatch bool
	boundary      interaction.RuntimeInteraction
	logger        *logger.Logger
}

// Check returns (true, nil) to proceed, (false, nil) for a clean
// user-requested stop, and an error for a policy violation.
func (g periodGuard) Check(triggerType string, dataPeriod types.Period) (bool, error) {
	if PeriodsConsistent(triggerType, dataPeriod) {
		return true, nil
	}

	message := fmt.Sprintf("trigger %q expects %q data but kline_period is %q",
		triggerType, expectedDataPeriod[triggerType], dataPeriod)

	if g.allowMismatch {
		g.logger.Warn("Period mismatch allowed by configuration", zap.String("detail", message))
		return true, nil
	}

	if g.boundary == nil || !g.boundary.Interactive() {
		return false, errors.New(errors.ErrCodePeriodMismatch, message)
	}

	if !g.boundary.ConfirmPeriodMismatch("Period mismatch", message) {
		g.logger.Info("Run stopped at user request after period mismatch")
		return false, nil
	}

	g.logger.Warn("Period mismatch accepted interactively", zap.String("detail", message))

	return true, nil
}
