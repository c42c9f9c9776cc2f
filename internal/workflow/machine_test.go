package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)

func threeStepDefinition() Definition {
	return Definition{
		ID:   "minutes-approval",
		Name: "Minutes approval",
		Steps: []Step{
			{Index: 1, Name: "Secretary", ValidatorID: "sec", Notify: true},
			{Index: 2, Name: "Manager", ValidatorID: "mgr", Notify: false},
			{Index: 3, Name: "Director", ValidatorID: "dir", Notify: true},
		},
		Mandatory: true,
	}
}

func startRun(t *testing.T, def Definition) Run {
	t.Helper()
	tr, err := Start(def, "run-1", Target{Kind: TargetMinutes, ID: "minutes-7"}, "owner", t0)
	require.NoError(t, err)
	return tr.Run
}

func TestStart(t *testing.T) {
	t.Parallel()

	def := threeStepDefinition()
	tr, err := Start(def, "run-1", Target{ID: "meeting-1"}, "owner", t0)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, tr.Run.Status)
	assert.Equal(t, 1, tr.Run.CurrentStep)
	assert.Equal(t, 1, tr.Run.Version)
	assert.Equal(t, TargetMeeting, tr.Run.Target.Kind)
	assert.Empty(t, tr.Run.History)

	assert.Equal(t, EventStarted, tr.Notification.Event)
	assert.Equal(t, "sec", tr.Notification.Recipient)
	assert.Equal(t, 1, tr.Notification.StepIndex)

	_, err = Start(Definition{ID: "empty"}, "run-2", Target{ID: "meeting-1"}, "owner", t0)
	require.ErrorIs(t, err, ErrEmptyDefinition)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Start(def, "run-3", Target{}, "owner", t0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidate_ApprovesAfterLastStep(t *testing.T) {
	t.Parallel()

	def := threeStepDefinition()
	run := startRun(t, def)

	tr, err := Validate(run, 1, "sec", "looks good", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Run.CurrentStep)
	assert.Equal(t, EventAdvanced, tr.Notification.Event)
	assert.Equal(t, "mgr", tr.Notification.Recipient)
	assert.False(t, tr.Notification.Notify)

	tr, err = Validate(tr.Run, 2, "mgr", "", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Run.CurrentStep)

	tr, err = Validate(tr.Run, 3, "dir", "approved", t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, tr.Run.Status)
	assert.Equal(t, EventApproved, tr.Notification.Event)
	assert.Equal(t, "owner", tr.Notification.Recipient)
	assert.Equal(t, 4, tr.Run.Version)

	require.Len(t, tr.Run.History, 3)
	for i, d := range tr.Run.History {
		assert.Equal(t, i+1, d.StepIndex)
		assert.Equal(t, DecisionValidated, d.Kind)
	}

	_, err = Validate(tr.Run, 1, "sec", "", t0.Add(4*time.Hour))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestValidate_Preconditions(t *testing.T) {
	t.Parallel()

	def := threeStepDefinition()
	run := startRun(t, def)

	_, err := Validate(run, 2, "mgr", "", t0)
	require.ErrorIs(t, err, ErrStepMismatch)

	_, err = Validate(run, 1, "mgr", "", t0)
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = Validate(run, 1, "", "", t0)
	require.ErrorIs(t, err, ErrNotAuthorized)

	// The input run is never mutated by a failed or successful call.
	_, err = Validate(run, 1, "sec", "", t0)
	require.NoError(t, err)
	assert.Empty(t, run.History)
	assert.Equal(t, 1, run.CurrentStep)
}

func TestReject_TerminatesRun(t *testing.T) {
	t.Parallel()

	def := threeStepDefinition()
	run := startRun(t, def)

	tr, err := Validate(run, 1, "sec", "", t0)
	require.NoError(t, err)

	_, err = Reject(tr.Run, 2, "mgr", "   ", t0)
	require.ErrorIs(t, err, ErrInvalidInput)

	rejected, err := Reject(tr.Run, 2, "mgr", "budget missing", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Run.Status)
	assert.Equal(t, EventRejected, rejected.Notification.Event)
	assert.Equal(t, "owner", rejected.Notification.Recipient)
	require.Len(t, rejected.Run.History, 2)
	assert.Equal(t, DecisionRejected, rejected.Run.History[1].Kind)
	assert.Equal(t, "budget missing", rejected.Run.History[1].Comment)

	_, err = Validate(rejected.Run, 2, "mgr", "", t0)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = Validate(rejected.Run, 3, "dir", "", t0)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	def := threeStepDefinition()
	run := startRun(t, def)

	_, err := Cancel(run, "owner", "", t0)
	require.ErrorIs(t, err, ErrInvalidInput)

	tr, err := Cancel(run, "owner", "meeting dropped", t0)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, tr.Run.Status)
	assert.Equal(t, EventCancelled, tr.Notification.Event)
	assert.Equal(t, "owner", tr.Notification.Recipient)
	require.Len(t, tr.Run.History, 1)
	assert.Equal(t, DecisionCancelled, tr.Run.History[0].Kind)
	assert.Equal(t, 1, tr.Run.History[0].StepIndex)

	_, err = Cancel(tr.Run, "owner", "again", t0)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRun_KeepsStepsFromStart(t *testing.T) {
	t.Parallel()

	def := threeStepDefinition()
	run := startRun(t, def)
	require.Len(t, run.Steps, 3)

	// Edits to the definition after Start do not reach the run.
	def.Steps[1].ValidatorID = "someone-else"
	def.Steps = def.Steps[:2]

	tr, err := Validate(run, 1, "sec", "", t0)
	require.NoError(t, err)
	tr, err = Validate(tr.Run, 2, "mgr", "", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "dir", tr.Notification.Recipient)
	tr, err = Validate(tr.Run, 3, "dir", "", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, tr.Run.Status)
	assert.Len(t, tr.Run.Steps, 3)
}

func TestDefinitionValidate(t *testing.T) {
	t.Parallel()

	def := threeStepDefinition()
	def.Steps[2].Index = 4
	require.ErrorIs(t, def.Validate(), ErrInvalidInput)

	def = threeStepDefinition()
	def.Steps[1].ValidatorID = ""
	require.ErrorIs(t, def.Validate(), ErrInvalidInput)
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	doc := `
definitions:
  - id: minutes-approval
    name: Minutes approval
    mandatory: true
    config:
      escalation: none
    steps:
      - name: Secretary
        validator: sec
      - name: Manager
        validator: mgr
        notify: false
`
	defs, err := LoadCatalog(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "minutes-approval", def.ID)
	assert.True(t, def.Mandatory)
	assert.Equal(t, "none", def.Config["escalation"])
	require.Len(t, def.Steps, 2)
	assert.Equal(t, Step{Index: 1, Name: "Secretary", ValidatorID: "sec", Notify: true}, def.Steps[0])
	assert.Equal(t, Step{Index: 2, Name: "Manager", ValidatorID: "mgr", Notify: false}, def.Steps[1])

	_, err = LoadCatalog(strings.NewReader("definitions:\n  - id: broken\n"))
	require.ErrorIs(t, err, ErrEmptyDefinition)

	_, err = LoadCatalog(strings.NewReader("definitions:\n  - id: a\n    steps: [{validator: x}]\n  - id: a\n    steps: [{validator: y}]\n"))
	require.ErrorIs(t, err, ErrInvalidInput)
}
