// Package observe provides ready-made workflow.Observer implementations:
// structured logging with zap, OpenTelemetry span tracing, and Sentry error
// reporting. Combine them with workflow.MultiObserver.
package observe

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// LoggingObserver logs run boundaries at info level, stage boundaries at
// debug level, and failures at error level.
type LoggingObserver struct {
	logger *zap.Logger
}

// NewLoggingObserver creates a LoggingObserver. A nil logger is replaced
// with a no-op logger.
func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingObserver{logger: logger}
}

// RunStarted implements workflow.Observer.
func (o *LoggingObserver) RunStarted(ctx context.Context, run workflow.RunInfo) context.Context {
	o.logger.Info("run started", runFields(run)...)
	return ctx
}

// RunFinished implements workflow.Observer.
func (o *LoggingObserver) RunFinished(ctx context.Context, run workflow.RunInfo, action workflow.Action, err error) {
	fields := append(runFields(run), zap.String("action", string(action)))
	if err != nil {
		o.logger.Error("run failed", append(fields, zap.Error(err))...)
		return
	}
	o.logger.Info("run finished", fields...)
}

// StageStarted implements workflow.Observer.
func (o *LoggingObserver) StageStarted(ctx context.Context, stage workflow.StageInfo) context.Context {
	o.logger.Debug("stage started", stageFields(stage)...)
	return ctx
}

// StageFinished implements workflow.Observer.
func (o *LoggingObserver) StageFinished(ctx context.Context, stage workflow.StageInfo, err error) {
	if err != nil {
		o.logger.Error("stage failed", append(stageFields(stage), zap.Error(err))...)
		return
	}
	o.logger.Debug("stage finished", stageFields(stage)...)
}

func runFields(run workflow.RunInfo) []zap.Field {
	fields := []zap.Field{
		zap.String("run_id", run.RunID),
		zap.String("flow", run.Flow),
	}
	if run.Iteration >= 0 {
		fields = append(fields, zap.Int("iteration", run.Iteration))
	}
	return fields
}

func stageFields(stage workflow.StageInfo) []zap.Field {
	fields := []zap.Field{
		zap.String("run_id", stage.Run.RunID),
		zap.String("flow", stage.Run.Flow),
		zap.String("node", stage.Node),
		zap.String("stage", string(stage.Stage)),
	}
	if stage.Run.Iteration >= 0 {
		fields = append(fields, zap.Int("iteration", stage.Run.Iteration))
	}
	if stage.Item >= 0 {
		fields = append(fields, zap.Int("item", stage.Item))
	}
	return fields
}
