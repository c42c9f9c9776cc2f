package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/logging"
	"github.com/example/meeting-lifecycle/internal/recurrence"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var ctxBuf, baseBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewJSONHandler(&ctxBuf, nil))
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))

	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)
	serviceLogger(ctx, base, "WorkflowService", "StartWorkflow", "run_id", "run-1").Info("hello")

	if baseBuf.Len() != 0 {
		t.Fatalf("expected base logger to stay unused")
	}
	var entry map[string]any
	if err := json.Unmarshal(ctxBuf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if entry["service"] != "WorkflowService" || entry["operation"] != "StartWorkflow" || entry["run_id"] != "run-1" {
		t.Fatalf("unexpected log attributes: %v", entry)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{FieldErrors: map[string]string{"id": "required"}}, "validation"},
		{fmt.Errorf("x: %w", ErrNotFound), "not_found"},
		{ErrConflict, "conflict"},
		{fmt.Errorf("x: %w", workflow.ErrStepMismatch), "step_mismatch"},
		{workflow.ErrNotAuthorized, "not_authorized"},
		{workflow.ErrInvalidState, "invalid_state"},
		{recurrence.ErrUnboundedGeneration, "unbounded_generation"},
		{workflow.ErrEmptyDefinition, "invalid_input"},
		{availability.ErrInvalidInput, "invalid_input"},
		{recurrence.ErrTooManyOccurrences, "invalid_input"},
		{context.Canceled, "cancelled"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
