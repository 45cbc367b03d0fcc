package interaction

import (
	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
)

// Headless routes everything to the structured log and declines any
// confirmation. It is the default boundary for unattended runs.
type Headless struct {
	logger *logger.Logger
}

func NewHeadless(log *logger.Logger) *Headless {
	return &Headless{logger: log}
}

func (h *Headless) Log(message string, level types.LogLevel) {
	switch level {
	case types.LogLevelDebug:
		h.logger.Debug(message)
	case types.LogLevelWarning:
		h.logger.Warn(message)
	case types.LogLevelError:
		h.logger.Error(message)
	default:
		h.logger.Info(message)
	}
}

func (h *Headless) Progress(percent int) {
	h.logger.Debug("Backtest progress", zap.Int("percent", percent))
}

func (h *Headless) Interactive() bool { return false }

// ConfirmPeriodMismatch always declines: with nobody watching there is no
// one to accept the risk.
func (h *Headless) ConfirmPeriodMismatch(title, message string) bool {
	h.logger.Warn("Declining confirmation in headless mode",
		zap.String("title", title),
		zap.String("message", message))
	return false
}

func (h *Headless) OnFinished() {
	h.logger.Info("Backtest finished")
}

func (h *Headless) OpenResult(path string) {
	h.logger.Info("Backtest results written", zap.String("path", path))
}
