package observe

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func TestLoggingObserverRunLifecycle(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	obs := NewLoggingObserver(zap.New(core))

	run := workflow.RunInfo{RunID: "run-1", Flow: "greeting", Iteration: -1}
	ctx := obs.RunStarted(context.Background(), run)
	obs.StageStarted(ctx, workflow.StageInfo{Run: run, Node: "greet", Stage: workflow.StagePrep, Item: -1})
	obs.StageFinished(ctx, workflow.StageInfo{Run: run, Node: "greet", Stage: workflow.StagePrep, Item: -1}, nil)
	obs.RunFinished(ctx, run, workflow.DefaultAction, nil)

	messages := make([]string, 0, logs.Len())
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	want := []string{"run started", "stage started", "stage finished", "run finished"}
	if len(messages) != len(want) {
		t.Fatalf("messages = %v, want %v", messages, want)
	}
	for i := range want {
		if messages[i] != want[i] {
			t.Errorf("message[%d] = %q, want %q", i, messages[i], want[i])
		}
	}
}

func TestLoggingObserverFailuresAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	obs := NewLoggingObserver(zap.New(core))

	run := workflow.RunInfo{RunID: "run-2", Flow: "doomed", Iteration: -1}
	stage := workflow.StageInfo{Run: run, Node: "failing", Stage: workflow.StageExec, Item: -1}
	obs.StageFinished(context.Background(), stage, errors.New("boom"))
	obs.RunFinished(context.Background(), run, workflow.NoAction, errors.New("boom"))

	for _, entry := range logs.All() {
		if entry.Level != zap.ErrorLevel {
			t.Errorf("%q logged at %v, want error level", entry.Message, entry.Level)
		}
	}
	if logs.Len() != 2 {
		t.Errorf("log count = %d, want 2", logs.Len())
	}
}

func TestLoggingObserverNilLogger(t *testing.T) {
	obs := NewLoggingObserver(nil)
	run := workflow.RunInfo{RunID: "run-3", Flow: "quiet", Iteration: -1}
	ctx := obs.RunStarted(context.Background(), run)
	obs.RunFinished(ctx, run, workflow.DefaultAction, nil)
}

func TestTraceObserverThreadsContext(t *testing.T) {
	obs := NewTraceObserver()
	run := workflow.RunInfo{RunID: "run-4", Flow: "traced", Iteration: -1}

	ctx := obs.RunStarted(context.Background(), run)
	if ctx == nil {
		t.Fatal("RunStarted returned nil context")
	}
	stage := workflow.StageInfo{Run: run, Node: "n", Stage: workflow.StageExec, Item: 1}
	sctx := obs.StageStarted(ctx, stage)
	obs.StageFinished(sctx, stage, errors.New("boom"))
	obs.RunFinished(ctx, run, workflow.NoAction, errors.New("boom"))
}
