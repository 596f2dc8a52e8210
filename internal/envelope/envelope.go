// Package envelope implements the Response Envelope & Workflow Guidance
// layer (spec.md §4.7, component C8): a uniform success/partial_success/
// failure shape, rule-based workflow guidance attachment, conflict
// detection, and failure-side error enhancement.
package envelope

import (
	"time"

	"github.com/riverforge/contextmcp/internal/apperr"
	"github.com/riverforge/contextmcp/internal/bootstrap"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/ids"
)

// Status is the closed set of envelope outcomes (spec.md §4.7.1).
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusFailure        Status = "failure"
)

// PartialFailure is one itemized secondary-step failure inside a
// partial_success envelope (spec.md §5 "atomic multi-step operations",
// §7 "partial success").
type PartialFailure struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
	Impact    string `json:"impact"`
}

// Confirmation is the envelope's bookkeeping block (spec.md §4.7.1).
type Confirmation struct {
	OperationCompleted bool             `json:"operation_completed"`
	DataPersisted      bool             `json:"data_persisted"`
	PartialFailures    []PartialFailure `json:"partial_failures,omitempty"`
}

// ErrorBlock is the envelope's failure-side error description.
type ErrorBlock struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Operation string `json:"operation"`
	Timestamp string `json:"timestamp"`
}

// Envelope is the uniform response shape every dispatcher tool returns
// (spec.md §4.7.1).
type Envelope struct {
	Status                  Status            `json:"status"`
	Success                 bool              `json:"success"`
	Operation               string            `json:"operation"`
	OperationID             string            `json:"operation_id"`
	Timestamp               string            `json:"timestamp"`
	Confirmation            Confirmation      `json:"confirmation"`
	Data                    any               `json:"data,omitempty"`
	Error                   *ErrorBlock       `json:"error,omitempty"`
	Metadata                map[string]any    `json:"metadata,omitempty"`
	WorkflowGuidance        *WorkflowGuidance `json:"workflow_guidance,omitempty"`
	AutonomousErrorGuidance *ErrorGuidance    `json:"autonomous_error_guidance,omitempty"`
}

// Builder constructs envelopes with a shared clock, so operation_id and
// timestamp generation is deterministic under tests.
type Builder struct {
	clock clock.Clock
	flags bootstrap.FeatureFlags
}

// NewBuilder returns an envelope Builder using c for timestamps, with every
// C10 feature flag (spec.md §4.8, §6.3) defaulted to enabled.
func NewBuilder(c clock.Clock) *Builder {
	return &Builder{clock: c, flags: bootstrap.Default()}
}

// NewBuilderWithFlags returns an envelope Builder whose workflow-guidance
// attachment is gated by flags (spec.md §4.8 "Disabling any flag must
// preserve functional correctness of the core operations" — flags here
// only ever change whether/how much enrichment is attached, never the
// underlying envelope's status/data).
func NewBuilderWithFlags(c clock.Clock, flags bootstrap.FeatureFlags) *Builder {
	return &Builder{clock: c, flags: flags}
}

func (b *Builder) now() string {
	return b.clock.Now().UTC().Format(time.RFC3339)
}

// Success builds a `status: success` envelope.
func (b *Builder) Success(operation string, data any) *Envelope {
	return &Envelope{
		Status:      StatusSuccess,
		Success:     true,
		Operation:   operation,
		OperationID: ids.New(),
		Timestamp:   b.now(),
		Confirmation: Confirmation{
			OperationCompleted: true,
			DataPersisted:      true,
		},
		Data: data,
	}
}

// PartialSuccess builds a `status: partial_success` envelope: the primary
// step committed but one or more secondary steps failed (spec.md §7).
func (b *Builder) PartialSuccess(operation string, data any, failures []PartialFailure) *Envelope {
	return &Envelope{
		Status:      StatusPartialSuccess,
		Success:     false,
		Operation:   operation,
		OperationID: ids.New(),
		Timestamp:   b.now(),
		Confirmation: Confirmation{
			OperationCompleted: true,
			DataPersisted:      true,
			PartialFailures:    failures,
		},
		Data: data,
	}
}

// Failure builds a `status: failure` envelope from err, classifying it into
// an AppError (unclassified errors become INTERNAL_ERROR, spec.md §7) and
// attaching the autonomous_error_guidance block (spec.md §4.7.4).
func (b *Builder) Failure(operation string, err error) *Envelope {
	ae := apperr.Classify(operation, err)
	ts := b.now()
	return &Envelope{
		Status:      StatusFailure,
		Success:     false,
		Operation:   operation,
		OperationID: ids.New(),
		Timestamp:   ts,
		Confirmation: Confirmation{
			OperationCompleted: false,
			DataPersisted:      false,
		},
		Error: &ErrorBlock{
			Message:   ae.Message,
			Code:      string(ae.Code),
			Operation: ae.Operation,
			Timestamp: ts,
		},
		AutonomousErrorGuidance: BuildErrorGuidance(ae),
	}
}

// WithGuidance attaches workflow guidance to env and resolves any detected
// conflicts, returning env for chaining. When b.flags.VisionEnabled is
// false the entire guidance surface is gated off (spec.md §6.3
// vision.enabled); the envelope itself is unaffected. When
// WorkflowHintsEnabled is false, next_actions/applicable_rules are
// suppressed but warnings still pass through. NextActions are truncated to
// b.flags.MaxHints when positive.
func (b *Builder) WithGuidance(env *Envelope, g *WorkflowGuidance) *Envelope {
	if g == nil || !b.flags.VisionEnabled {
		return env
	}
	if !b.flags.WorkflowHintsEnabled {
		g.NextActions = nil
		g.ApplicableRules = nil
	} else if b.flags.MaxHints > 0 && len(g.NextActions) > b.flags.MaxHints {
		g.NextActions = g.NextActions[:b.flags.MaxHints]
	}
	resolved, conflicts := DetectConflicts(g)
	env.WorkflowGuidance = resolved
	if conflicts != nil {
		if env.Metadata == nil {
			env.Metadata = map[string]any{}
		}
		env.Metadata["conflict_resolution"] = conflicts
	}
	return env
}

// WithMetadata merges kv into env.Metadata, returning env for chaining.
func (b *Builder) WithMetadata(env *Envelope, kv map[string]any) *Envelope {
	if len(kv) == 0 {
		return env
	}
	if env.Metadata == nil {
		env.Metadata = map[string]any{}
	}
	for k, v := range kv {
		env.Metadata[k] = v
	}
	return env
}
