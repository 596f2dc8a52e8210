package envelope

// RulePriority is the closed set of workflow-rule priorities (spec.md
// §4.7.2).
type RulePriority string

const (
	PriorityCritical RulePriority = "critical"
	PriorityHigh     RulePriority = "high"
	PriorityMedium   RulePriority = "medium"
	PriorityLow      RulePriority = "low"
)

// Enforcement is whether a rule must be followed or is merely advisory.
type Enforcement string

const (
	EnforcementMandatory   Enforcement = "mandatory"
	EnforcementRecommended Enforcement = "recommended"
)

// Rule is one applicable_rules entry (spec.md §4.7.2).
type Rule struct {
	RuleID             string       `json:"rule_id"`
	Type               string       `json:"type"`
	Priority           RulePriority `json:"priority"`
	Condition          string       `json:"condition"`
	Rule               string       `json:"rule"`
	Enforcement        Enforcement  `json:"enforcement"`
	ConflictResolution string       `json:"conflict_resolution,omitempty"`
}

// NextAction is one executable next_actions template (spec.md §4.7.2).
type NextAction struct {
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	Reason        string         `json:"reason"`
	Confidence    float64        `json:"confidence"`
	ExecutionTime string         `json:"execution_time"`
}

// WorkflowGuidance is the full §4.7.2 guidance block a successful operation
// may attach to its envelope.
type WorkflowGuidance struct {
	CurrentState     string         `json:"current_state"`
	ApplicableRules  []Rule         `json:"applicable_rules"`
	DecisionMatrix   map[string]any `json:"decision_matrix,omitempty"`
	NextActions      []NextAction   `json:"next_actions"`
	Warnings         []string       `json:"warnings,omitempty"`
	Examples         map[string]any `json:"examples,omitempty"`
	ValidationSchema map[string]any `json:"validation_schema,omitempty"`
}

// GuidanceBuilder is a small fluent accumulator the use-case/dispatcher layer uses
// to assemble a WorkflowGuidance block without repeating nil-slice checks.
type GuidanceBuilder struct {
	g *WorkflowGuidance
}

// NewGuidance starts a guidance block for currentState (spec.md §4.7.2
// "current_state").
func NewGuidance(currentState string) *GuidanceBuilder {
	return &GuidanceBuilder{g: &WorkflowGuidance{CurrentState: currentState}}
}

// Rule appends one applicable rule.
func (gb *GuidanceBuilder) Rule(r Rule) *GuidanceBuilder {
	gb.g.ApplicableRules = append(gb.g.ApplicableRules, r)
	return gb
}

// Action appends one executable next action.
func (gb *GuidanceBuilder) Action(a NextAction) *GuidanceBuilder {
	gb.g.NextActions = append(gb.g.NextActions, a)
	return gb
}

// Warn appends a warning string.
func (gb *GuidanceBuilder) Warn(msg string) *GuidanceBuilder {
	gb.g.Warnings = append(gb.g.Warnings, msg)
	return gb
}

// Build returns the accumulated WorkflowGuidance.
func (gb *GuidanceBuilder) Build() *WorkflowGuidance {
	return gb.g
}
