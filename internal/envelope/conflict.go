package envelope

// ConflictResolution is the §4.7.3 block surfaced when the enhancer can't
// cleanly reconcile two rules or two actions. The primary response is never
// blocked by an unresolved conflict — it is only annotated.
type ConflictResolution struct {
	Status          string   `json:"status"` // "resolved" | "escalated"
	RuleConflicts   []string `json:"rule_conflicts,omitempty"`
	ActionConflicts []string `json:"action_conflicts,omitempty"`
	Resolution      string   `json:"resolution"`
}

// DetectConflicts implements spec.md §4.7.3: scans g for two mandatory
// rules at different priorities, and two next_actions sharing both tool and
// confidence; rule conflicts are resolved by priority, and action conflicts,
// which confidence cannot rank, are escalated.
func DetectConflicts(g *WorkflowGuidance) (*WorkflowGuidance, *ConflictResolution) {
	var ruleConflicts, actionConflicts []string
	escalated := false

	for i := 0; i < len(g.ApplicableRules); i++ {
		for j := i + 1; j < len(g.ApplicableRules); j++ {
			a, b := g.ApplicableRules[i], g.ApplicableRules[j]
			if a.Enforcement == EnforcementMandatory && b.Enforcement == EnforcementMandatory && a.Priority != b.Priority {
				ruleConflicts = append(ruleConflicts, a.RuleID+" vs "+b.RuleID)
				winner, loser := &g.ApplicableRules[i], &g.ApplicableRules[j]
				if rulePriorityRank(b.Priority) > rulePriorityRank(a.Priority) {
					winner, loser = loser, winner
				}
				loser.ConflictResolution = "superseded by " + winner.RuleID + " (higher priority)"
			}
		}
	}

	for i := 0; i < len(g.NextActions); i++ {
		for j := i + 1; j < len(g.NextActions); j++ {
			a, b := g.NextActions[i], g.NextActions[j]
			if a.Tool == b.Tool && a.Confidence == b.Confidence {
				actionConflicts = append(actionConflicts, a.Tool)
				escalated = true
			}
		}
	}

	if len(ruleConflicts) == 0 && len(actionConflicts) == 0 {
		return g, nil
	}

	status := "resolved"
	resolution := "rule conflicts resolved by priority (critical wins); action conflicts resolved by confidence"
	if escalated {
		status = "escalated"
		resolution = "action conflicts share identical tool and confidence and could not be automatically ranked"
	}
	return g, &ConflictResolution{
		Status:          status,
		RuleConflicts:   ruleConflicts,
		ActionConflicts: actionConflicts,
		Resolution:      resolution,
	}
}

func rulePriorityRank(p RulePriority) int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}
