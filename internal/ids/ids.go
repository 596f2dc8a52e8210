// Package ids defines the opaque identifier types and closed-set value
// objects (status, priority, level, capability) shared across the service.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// GlobalSingletonID is the one and only id a GlobalContext may have.
const GlobalSingletonID = "global_singleton"

// TaskID, SubtaskID, ProjectID, BranchID, AgentID, ContextID are opaque UUID
// strings. They're distinct types so a TaskID can't be passed where a
// BranchID is expected without an explicit conversion.
type (
	TaskID    string
	SubtaskID string
	ProjectID string
	BranchID  string
	AgentID   string
	ContextID string
)

// New returns a freshly generated UUID string, used to mint new ids of any
// of the types above.
func New() string {
	return uuid.NewString()
}

func (id TaskID) String() string    { return string(id) }
func (id SubtaskID) String() string { return string(id) }
func (id ProjectID) String() string { return string(id) }
func (id BranchID) String() string  { return string(id) }
func (id AgentID) String() string   { return string(id) }
func (id ContextID) String() string { return string(id) }

// ValidationError signals a malformed value object. Dispatch and service
// layers map it to the VALIDATION_ERROR envelope code.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field %q: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
