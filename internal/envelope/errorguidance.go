package envelope

import "github.com/riverforge/contextmcp/internal/apperr"

// RetryStrategy is the §4.7.4 retry hint attached to infrastructure-class
// failures.
type RetryStrategy struct {
	MaxRetries int    `json:"max_retries"`
	Backoff    string `json:"backoff"`
}

// ErrorGuidance is the autonomous_error_guidance block (spec.md §4.7.4).
type ErrorGuidance struct {
	Category           string        `json:"category"`
	ResolutionSteps    []string      `json:"resolution_steps"`
	RetryStrategy      RetryStrategy `json:"retry_strategy"`
	AlternativeActions []string      `json:"alternative_actions,omitempty"`
}

// categoryFor classifies an apperr.Code into the §4.7.4 category taxonomy.
func categoryFor(code apperr.Code) string {
	switch code {
	case apperr.CodeContextCreationFailed, apperr.CodeContextSyncFailed, apperr.CodeAutoDetectionFailed:
		return "context_error"
	case apperr.CodeDependencyError:
		return "dependency_error"
	case apperr.CodeValidation, apperr.CodeMissingField, apperr.CodeInvalidFormat:
		return "validation_error"
	case apperr.CodeHierarchyViolation:
		return "hierarchy_error"
	case apperr.CodeNotFound, apperr.CodeAlreadyExists, apperr.CodeInvalidState, apperr.CodeConstraintViolation:
		return "state_error"
	case apperr.CodeDatabaseError, apperr.CodeInternal, apperr.CodeOperationFailed:
		return "infrastructure_error"
	case apperr.CodeUnauthorized:
		return "authorization_error"
	default:
		return "unknown_error"
	}
}

// BuildErrorGuidance implements spec.md §4.7.4 for a classified AppError.
func BuildErrorGuidance(ae *apperr.AppError) *ErrorGuidance {
	category := categoryFor(ae.Code)
	g := &ErrorGuidance{Category: category}

	switch category {
	case "context_error":
		g.ResolutionSteps = []string{
			"verify the owning entity (project/branch/task) exists",
			"retry the operation; context auto-creation will run again",
		}
		g.RetryStrategy = RetryStrategy{MaxRetries: 3, Backoff: "exponential"}
		g.AlternativeActions = []string{"manage_context create", "manage_context resolve"}
	case "dependency_error":
		g.ResolutionSteps = []string{
			"inspect the dependency chain via manage_task get with include_dependencies=true",
			"complete or remove the blocking dependency before retrying",
		}
		g.RetryStrategy = RetryStrategy{MaxRetries: 0, Backoff: "none"}
		g.AlternativeActions = []string{"manage_task remove_dependency", "manage_task get"}
	case "validation_error":
		g.ResolutionSteps = []string{"correct the rejected field(s) and resubmit"}
		g.RetryStrategy = RetryStrategy{MaxRetries: 0, Backoff: "none"}
	case "hierarchy_error":
		g.ResolutionSteps = []string{
			"create the missing ancestor entity",
			"retry, or rely on auto-creation if the ancestor context is the only thing missing",
		}
		g.RetryStrategy = RetryStrategy{MaxRetries: 1, Backoff: "none"}
	case "state_error":
		g.ResolutionSteps = []string{"re-fetch current state and re-evaluate the precondition before retrying"}
		g.RetryStrategy = RetryStrategy{MaxRetries: 1, Backoff: "none"}
	case "infrastructure_error":
		g.ResolutionSteps = []string{"retry after a backoff interval", "escalate to an operator if retries are exhausted"}
		g.RetryStrategy = RetryStrategy{MaxRetries: 5, Backoff: "exponential"}
	case "authorization_error":
		g.ResolutionSteps = []string{"verify credentials and required scope, then retry"}
		g.RetryStrategy = RetryStrategy{MaxRetries: 0, Backoff: "none"}
	default:
		g.ResolutionSteps = []string{"consult operation_id in logs for correlation"}
		g.RetryStrategy = RetryStrategy{MaxRetries: 1, Backoff: "fixed"}
	}
	return g
}
