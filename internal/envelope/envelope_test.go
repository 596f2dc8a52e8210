package envelope_test

import (
	"errors"
	"testing"
	"time"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder() *envelope.Builder {
	return envelope.NewBuilder(clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

// TestEnvelopeLaw is spec.md §8.1: success is true iff status == "success",
// and operation_id is unique per envelope.
func TestEnvelopeLaw(t *testing.T) {
	b := newBuilder()
	s := b.Success("task.create", map[string]any{"id": "t1"})
	ps := b.PartialSuccess("task.create", nil, []envelope.PartialFailure{{Operation: "x", Error: "y", Impact: "z"}})
	f := b.Failure("task.create", apperr.New(apperr.CodeNotFound, "task.get", "missing"))

	assert.Equal(t, s.Success, s.Status == envelope.StatusSuccess)
	assert.Equal(t, ps.Success, ps.Status == envelope.StatusSuccess)
	assert.Equal(t, f.Success, f.Status == envelope.StatusSuccess)
	assert.False(t, ps.Success)
	assert.False(t, f.Success)

	assert.NotEqual(t, s.OperationID, ps.OperationID)
	assert.NotEqual(t, ps.OperationID, f.OperationID)
}

func TestSuccessConfirmation(t *testing.T) {
	b := newBuilder()
	env := b.Success("task.create", nil)
	assert.True(t, env.Confirmation.OperationCompleted)
	assert.True(t, env.Confirmation.DataPersisted)
	assert.Nil(t, env.Error)
}

func TestPartialSuccessCarriesFailures(t *testing.T) {
	b := newBuilder()
	env := b.PartialSuccess("task.complete", nil, []envelope.PartialFailure{
		{Operation: "notify_agent", Error: "timeout", Impact: "agent not notified"},
	})
	require.Len(t, env.Confirmation.PartialFailures, 1)
	assert.Equal(t, "notify_agent", env.Confirmation.PartialFailures[0].Operation)
	assert.True(t, env.Confirmation.OperationCompleted)
}

func TestFailureClassifiesUnknownErrorsAsInternal(t *testing.T) {
	b := newBuilder()
	env := b.Failure("task.get", errors.New("boom"))
	assert.Equal(t, string(apperr.CodeInternal), env.Error.Code)
	assert.False(t, env.Confirmation.OperationCompleted)
	assert.NotNil(t, env.AutonomousErrorGuidance)
}

func TestFailurePreservesAppErrorCode(t *testing.T) {
	b := newBuilder()
	env := b.Failure("task.get", apperr.New(apperr.CodeNotFound, "task.get", "no such task"))
	assert.Equal(t, string(apperr.CodeNotFound), env.Error.Code)
	assert.Equal(t, "no such task", env.Error.Message)
}

func TestWithGuidanceAttachesAndResolvesConflicts(t *testing.T) {
	b := newBuilder()
	env := b.Success("task.complete", nil)

	g := envelope.NewGuidance("task_completed").
		Rule(envelope.Rule{RuleID: "R1", Priority: envelope.PriorityCritical, Enforcement: envelope.EnforcementMandatory}).
		Rule(envelope.Rule{RuleID: "R2", Priority: envelope.PriorityLow, Enforcement: envelope.EnforcementMandatory}).
		Build()

	out := b.WithGuidance(env, g)
	require.NotNil(t, out.WorkflowGuidance)
	require.NotEmpty(t, out.Metadata)
	cr := out.Metadata["conflict_resolution"].(*envelope.ConflictResolution)
	assert.Equal(t, "resolved", cr.Status)
	assert.Contains(t, out.WorkflowGuidance.ApplicableRules[1].ConflictResolution, "R1")
}

func TestWithGuidanceNilIsNoop(t *testing.T) {
	b := newBuilder()
	env := b.Success("task.create", nil)
	out := b.WithGuidance(env, nil)
	assert.Nil(t, out.WorkflowGuidance)
}

func TestWithMetadataMerges(t *testing.T) {
	b := newBuilder()
	env := b.Success("task.create", nil)
	b.WithMetadata(env, map[string]any{"a": 1})
	b.WithMetadata(env, map[string]any{"b": 2})
	assert.Equal(t, 1, env.Metadata["a"])
	assert.Equal(t, 2, env.Metadata["b"])
}

func TestDetectConflictsEscalatesIdenticalActions(t *testing.T) {
	g := envelope.NewGuidance("state").
		Action(envelope.NextAction{Tool: "manage_task", Confidence: 0.9}).
		Action(envelope.NextAction{Tool: "manage_task", Confidence: 0.9}).
		Build()

	_, cr := envelope.DetectConflicts(g)
	require.NotNil(t, cr)
	assert.Equal(t, "escalated", cr.Status)
	assert.Len(t, cr.ActionConflicts, 1)
}

func TestDetectConflictsNoneFound(t *testing.T) {
	g := envelope.NewGuidance("state").
		Rule(envelope.Rule{RuleID: "R1", Priority: envelope.PriorityHigh, Enforcement: envelope.EnforcementRecommended}).
		Build()
	_, cr := envelope.DetectConflicts(g)
	assert.Nil(t, cr)
}
