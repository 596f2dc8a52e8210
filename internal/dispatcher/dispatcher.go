// Package dispatcher implements the Dispatcher / Tool Surface (spec.md
// §4.6, component C9): the six named MCP tools (manage_task, manage_subtask,
// manage_context, manage_project, manage_git_branch, manage_agent), each
// exposing an `action` discriminator, parameter coercion, and error
// classification on top of the use-case layer.
package dispatcher

import (
	"github.com/riverforge/contextmcp/internal/agentsvc"
	"github.com/riverforge/contextmcp/internal/bootstrap"
	"github.com/riverforge/contextmcp/internal/branchsvc"
	"github.com/riverforge/contextmcp/internal/clock"
	"github.com/riverforge/contextmcp/internal/contextengine"
	"github.com/riverforge/contextmcp/internal/envelope"
	"github.com/riverforge/contextmcp/internal/projectsvc"
	"github.com/riverforge/contextmcp/internal/subtasksvc"
	"github.com/riverforge/contextmcp/internal/tasksvc"
)

// Deps bundles every use-case service the dispatcher's tools call into,
// plus the shared envelope builder and clock.
type Deps struct {
	Tasks    *tasksvc.Service
	Subtasks *subtasksvc.Service
	Contexts *contextengine.Engine
	Projects *projectsvc.Service
	Branches *branchsvc.Service
	Agents   *agentsvc.Service
	Envelope *envelope.Builder
	Clock    clock.Clock
}

// NewDeps builds a Deps bundle, constructing the shared envelope builder
// from c. flags is optional (variadic so existing call sites that predate
// the C10 feature-flag surface keep compiling); when omitted every gate
// defaults to enabled (bootstrap.Default).
func NewDeps(tasks *tasksvc.Service, subtasks *subtasksvc.Service, contexts *contextengine.Engine,
	projects *projectsvc.Service, branches *branchsvc.Service, agents *agentsvc.Service, c clock.Clock,
	flags ...bootstrap.FeatureFlags) *Deps {
	f := bootstrap.Default()
	if len(flags) > 0 {
		f = flags[0]
	}
	return &Deps{
		Tasks:    tasks,
		Subtasks: subtasks,
		Contexts: contexts,
		Projects: projects,
		Branches: branches,
		Agents:   agents,
		Envelope: envelope.NewBuilderWithFlags(c, f),
		Clock:    c,
	}
}
