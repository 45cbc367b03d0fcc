package interaction

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/khquant-lab/khquant/internal/types"
)

// Console is the interactive boundary: progress renders as a terminal bar
// and confirmations read a y/n answer from the input stream.
type Console struct {
	out io.Writer
	in  *bufio.Reader
	bar *progressbar.ProgressBar
}

func NewConsole() *Console {
	return NewConsoleWithStreams(os.Stdout, os.Stdin)
}

func NewConsoleWithStreams(out io.Writer, in io.Reader) *Console {
	return &Console{
		out: out,
		in:  bufio.NewReader(in),
	}
}

func (c *Console) Log(message string, level types.LogLevel) {
	fmt.Fprintf(c.out, "[%s] %s\n", strings.ToUpper(string(level)), message)
}

func (c *Console) Progress(percent int) {
	if c.bar == nil {
		c.bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Replaying"),
			progressbar.OptionSetWriter(c.out),
			progressbar.OptionShowCount())
	}
	_ = c.bar.Set(percent)
}

func (c *Console) Interactive() bool { return true }

func (c *Console) ConfirmPeriodMismatch(title, message string) bool {
	fmt.Fprintf(c.out, "%s\n%s\nContinue? [y/N]: ", title, message)
	answer, err := c.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (c *Console) OnFinished() {
	if c.bar != nil {
		_ = c.bar.Finish()
	}
	fmt.Fprintln(c.out, "Backtest finished")
}

func (c *Console) OpenResult(path string) {
	fmt.Fprintf(c.out, "Results written to %s\n", path)
}
