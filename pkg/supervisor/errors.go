package supervisor

import (
	"errors"
	"log/slog"

	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/pkg/fault"
)

// ErrHandled is returned by an error hook that has dealt with the error. The
// error is then logged as a warning instead of being raised.
var ErrHandled = errors.New("supervisor: error handled by hook")

// ErrorOptions controls HandleError.
type ErrorOptions struct {
	// Warning logs the error and returns nil.
	Warning bool

	// Hook runs before the error is raised.
	Hook func(error) error
}

// HandleError either downgrades err to a warning or returns it as a fatal
// error with exit status 1.
func (s *Supervisor) HandleError(err error, opts ErrorOptions) error {
	if err == nil {
		return nil
	}
	if opts.Warning {
		s.logger.Warn("warning", slog.Any(log.Error, err))
		return nil
	}
	if opts.Hook != nil {
		if hookErr := opts.Hook(err); errors.Is(hookErr, ErrHandled) {
			s.logger.Warn("error handled", slog.Any(log.Error, err))
			return nil
		}
	}
	s.logger.Error("fatal error", slog.Any(log.Error, err))
	return fault.Fatalf(1, "%w", err)
}
