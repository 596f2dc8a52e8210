// Package bootstrap implements the Configuration & Bootstrap component
// (spec.md §4.8, component C10): deriving the runtime feature-flag surface
// from config.Config and the startup guarantee that the global context
// singleton exists before any request is served. Disabling any flag here
// must preserve functional correctness of the core operations (spec.md
// §4.8) — these flags gate enrichment and guidance only, never persistence.
package bootstrap

import "github.com/riverforge/contextmcp/internal/config"

// FeatureFlags is the resolved C10 gate for the vision.* enrichment surface
// of spec.md §6.3, supplemented from original_source/'s vision_orchestration
// config loader (SPEC_FULL.md "Vision/workflow feature flags").
type FeatureFlags struct {
	// VisionEnabled gates the entire workflow_guidance enrichment surface.
	// When false, responses still carry the core envelope (spec.md §4.7.1)
	// but never a workflow_guidance block.
	VisionEnabled bool
	// WorkflowHintsEnabled gates next_actions/applicable_rules synthesis
	// specifically; it is only consulted when VisionEnabled is true.
	WorkflowHintsEnabled bool
	// MaxHints caps the number of next_actions returned in a single
	// workflow_guidance block.
	MaxHints int
	// EnrichmentEnabled gates supplementary, non-guidance response
	// enrichment (e.g. dependency-chain summaries beyond the bare fields
	// spec.md §4.3.3 requires).
	EnrichmentEnabled bool
	// MinSummaryLength is the minimum completion_summary length enforced
	// by tasksvc.Service.Complete, beyond spec.md §3.2's bare non-empty
	// requirement. Only applied when RequireSummaryLength is true.
	MinSummaryLength int
	// RequireSummaryLength gates whether MinSummaryLength is enforced at
	// all; when false, only the hard non-empty invariant applies.
	RequireSummaryLength bool
}

// FromConfig derives FeatureFlags from a loaded Config.
func FromConfig(cfg *config.Config) FeatureFlags {
	v := cfg.Vision
	return FeatureFlags{
		VisionEnabled:        v.Enabled,
		WorkflowHintsEnabled: v.Enabled && v.WorkflowHints.Enabled,
		MaxHints:             v.WorkflowHints.MaxHints,
		EnrichmentEnabled:    v.Enabled && v.Enrichment.Enabled,
		MinSummaryLength:     v.ContextEnforcement.MinSummaryLength,
		RequireSummaryLength: v.Enabled && v.ContextEnforcement.Enabled && v.ContextEnforcement.RequireCompletionSummary,
	}
}

// Default returns flags with every gate enabled at generous defaults, used
// wherever a Builder is constructed without an explicit Config (tests,
// call sites that predate flag-awareness).
func Default() FeatureFlags {
	return FeatureFlags{
		VisionEnabled:        true,
		WorkflowHintsEnabled: true,
		MaxHints:             5,
		EnrichmentEnabled:    true,
		MinSummaryLength:     1,
		RequireSummaryLength: true,
	}
}
