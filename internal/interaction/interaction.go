// Package interaction is the outbound boundary between the engine and
// whatever surface is watching the run. Calls are best-effort and must
// never block the replay thread.
package interaction

import (
	"github.com/khquant-lab/khquant/internal/types"
)

// RuntimeInteraction receives run notifications and answers the one
// question the engine may ask. Interactive reports whether a human can
// actually answer it; non-interactive boundaries are never asked.
type RuntimeInteraction interface {
	Log(message string, level types.LogLevel)
	Progress(percent int)
	Interactive() bool
	ConfirmPeriodMismatch(title, message string) bool
	OnFinished()
	OpenResult(path string)
}
