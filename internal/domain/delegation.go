package domain

import (
	"time"

	"github.com/riverforge/contextmcp/internal/ids"
)

// TriggerType classifies what caused a delegation to be queued (spec.md
// §4.2.5).
type TriggerType string

const (
	TriggerManual        TriggerType = "manual"
	TriggerAutoPattern   TriggerType = "auto_pattern"
	TriggerAutoThreshold TriggerType = "auto_threshold"
)

// Delegation is a queued, durable request to propagate a subset of a
// child's context up to an ancestor. It is never auto-applied by the core
// (spec.md §4.2.5, §9 "Ambiguities").
type Delegation struct {
	ID              string
	SourceLevel     ids.Level
	SourceID        ids.ContextID
	TargetLevel     ids.Level
	TargetID        ids.ContextID
	DelegatedData   Doc
	Reason          string
	TriggerType     TriggerType
	AutoDelegated   bool
	ConfidenceScore float64
	Processed       bool
	Approved        bool
	ProcessedBy     string
	DataHash        string // FNV-1a over DelegatedData, used for the dedup window (SPEC_FULL.md)
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// InheritanceCacheEntry is a single cached resolution (spec.md §4.2.4).
type InheritanceCacheEntry struct {
	Level           ids.Level
	ID              ids.ContextID
	Merged          Doc
	DependenciesHash string
	ResolutionPath  []ids.ContextID
	ExpiresAt       time.Time
	HitCount        int
	Invalidated     bool
}
