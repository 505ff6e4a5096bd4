package core

import (
	"log/slog"
	"time"

	"github.com/yaklabco/unistack/internal/bundle"
	"github.com/yaklabco/unistack/internal/log"
	"github.com/yaklabco/unistack/internal/reload"
	"github.com/yaklabco/unistack/pkg/ipc"
)

// HandleFileChange classifies path and feeds the result, limited to the
// enabled targets, to the throttle.
// Changes the browser sees are announced to live reload clients right away;
// the rebuild itself waits for the debounce window.
func (c *Core) HandleFileChange(path string) {
	match := c.state.Classifier.Match(path)
	c.state.Metrics.ObserveWatchEvent(match.String())

	req := match.Request().Only(c.state.Config.Build.Node, c.state.Config.Build.Browser)
	if req.Empty() {
		c.logger.Debug("change ignored", slog.String(log.Path, path))
		return
	}
	c.logger.Debug("change classified",
		slog.String(log.Path, path),
		slog.String(log.Type, match.String()),
		slog.String(log.Request, req.String()),
	)

	if req.Browser && !req.ExplicitNode {
		c.state.Reloader.Emit(reload.EventChange, path)
	}
	c.state.Throttle.Add(req)
	c.logger.Debug("rebuild pending", slog.String(log.Pending, c.state.Throttle.Pending().String()))
}

// report turns a finished rebuild into a status for the supervisor.
func (c *Core) report(res bundle.Result) {
	if res.Err == nil {
		c.send(ipc.DetailStatus(ipc.StatusTypeBundleBuilt, ipc.Detail{
			Message:  ipc.MessageBundleBuilt,
			Target:   res.Target.String(),
			Duration: res.Duration.Round(time.Millisecond).String(),
		}))
		return
	}

	status := ipc.ErrorStatus(res.Err)
	if detail, ok := status.Detail(); ok {
		detail.Target = res.Target.String()
		status = ipc.DetailStatus(ipc.StatusTypeError, detail)
	}
	c.send(status)
}
