package observe

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// ErrorReporter captures stage faults and failed runs to Sentry, tagged
// with run, node, and stage identifiers. The caller is responsible for
// initializing the SDK with sentry.Init before runs start.
type ErrorReporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// ReporterOption configures an ErrorReporter.
type ReporterOption func(*ErrorReporter)

// WithFlushTimeout makes the reporter flush buffered events when a run
// finishes, waiting at most timeout.
func WithFlushTimeout(timeout time.Duration) ReporterOption {
	return func(r *ErrorReporter) {
		r.flushTimeout = timeout
	}
}

// WithHub uses a specific hub instead of a clone of the current one.
func WithHub(hub *sentry.Hub) ReporterOption {
	return func(r *ErrorReporter) {
		if hub != nil {
			r.hub = hub
		}
	}
}

// NewErrorReporter creates an ErrorReporter on a clone of the current hub.
func NewErrorReporter(opts ...ReporterOption) *ErrorReporter {
	r := &ErrorReporter{hub: sentry.CurrentHub().Clone()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunStarted implements workflow.Observer.
func (r *ErrorReporter) RunStarted(ctx context.Context, run workflow.RunInfo) context.Context {
	return ctx
}

// RunFinished implements workflow.Observer.
func (r *ErrorReporter) RunFinished(ctx context.Context, run workflow.RunInfo, action workflow.Action, err error) {
	if err != nil {
		r.hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("workflow.run_id", run.RunID)
			scope.SetTag("workflow.flow", run.Flow)
			r.hub.CaptureException(err)
		})
	}
	if r.flushTimeout > 0 {
		r.hub.Flush(r.flushTimeout)
	}
}

// StageStarted implements workflow.Observer.
func (r *ErrorReporter) StageStarted(ctx context.Context, stage workflow.StageInfo) context.Context {
	return ctx
}

// StageFinished implements workflow.Observer.
func (r *ErrorReporter) StageFinished(ctx context.Context, stage workflow.StageInfo, err error) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("workflow.run_id", stage.Run.RunID)
		scope.SetTag("workflow.flow", stage.Run.Flow)
		scope.SetTag("workflow.node", stage.Node)
		scope.SetTag("workflow.stage", string(stage.Stage))
		r.hub.CaptureException(err)
	})
}
