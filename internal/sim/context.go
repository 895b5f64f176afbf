package sim

import (
	"log/slog"

	"github.com/san-kum/mdcore/internal/comm"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/telemetry"
)

// Context is the explicit environment of one rank. Components receive it
// instead of reaching for shared state.
type Context struct {
	Box       *domain.Box
	Comm      *comm.Comm
	Config    Config
	Logger    *slog.Logger
	Telemetry *telemetry.Recorder
}
