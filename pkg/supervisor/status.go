package supervisor

import (
	"context"
	"log/slog"

	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/pkg/ipc"
)

// Worker exit codes with a defined meaning.
const (
	ExitGraceful = 100
	ExitStartup  = 101
)

// ClassifyExit maps a worker exit code onto a status. known is false when
// the worker produced no exit code.
func ClassifyExit(code int, known bool) ipc.Status {
	switch {
	case !known:
		return ipc.MessageStatus(ipc.StatusTypeError, ipc.MessageUnknownCoreExitCode)
	case code == 0:
		return ipc.MessageStatus(ipc.StatusTypeSuccess, ipc.MessageUnknownCoreExit)
	case code == ExitGraceful:
		return ipc.MessageStatus(ipc.StatusTypeSuccess, ipc.MessageCoreExit)
	case code < ExitGraceful:
		return ipc.MessageStatus(ipc.StatusTypeError, ipc.MessageUnknownCoreExit)
	default:
		return ipc.MessageStatus(ipc.StatusTypeError, ipc.MessageCoreExit)
	}
}

// HandleExitStatus classifies a worker exit and dispatches the result like
// any other status, whatever the code.
func (s *Supervisor) HandleExitStatus(code int, known bool) {
	s.HandleStatus(ClassifyExit(code, known))
}

// HandleStatus dispatches a status to the callback for its kind.
func (s *Supervisor) HandleStatus(status ipc.Status) {
	cb := s.cfg.Callbacks

	switch status.Kind() {
	case ipc.StatusError:
		s.call(cb.OnError, status, slog.LevelError)
	case ipc.StatusSuccess:
		s.call(cb.OnSuccess, status, slog.LevelInfo)
	case ipc.StatusCommandNotFound:
		s.call(cb.OnCommandNotFound, status, slog.LevelWarn)
	case ipc.StatusBundleBuilt:
		s.call(cb.OnBundleBuilt, status, slog.LevelInfo)
	case ipc.StatusUnrecognized:
		s.statusNotFound(status)
	}
}

func (s *Supervisor) statusNotFound(status ipc.Status) {
	if s.cfg.Callbacks.OnStatusNotFound != nil {
		s.cfg.Callbacks.OnStatusNotFound(status)
		return
	}
	s.logger.Warn("unknown status from core",
		slog.String(log.Type, status.Type),
		slog.String(log.Data, string(status.Data)),
	)
}

func (s *Supervisor) call(fn func(ipc.Status), status ipc.Status, level slog.Level) {
	if fn != nil {
		fn(status)
		return
	}
	attrs := []any{slog.String(log.Type, status.Type)}
	if detail, ok := status.Detail(); ok {
		attrs = append(attrs, slog.String(log.Message, detail.Message))
	}
	s.logger.Log(context.Background(), level, "core status", attrs...)
}
