package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// runInfo handles the "contextmcp info" subcommand.
// It prints general MCP configuration information and, with flags,
// client-specific configuration snippets.
func runInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	opencode := fs.Bool("opencode", false, "show OpenCode MCP client configuration")
	claude := fs.Bool("claude", false, "show Claude Desktop MCP client configuration")
	cursor := fs.Bool("cursor", false, "show Cursor MCP client configuration")
	fs.Parse(args)

	switch {
	case *opencode:
		printOpenCodeConfig()
	case *claude:
		printClaudeConfig()
	case *cursor:
		printCursorConfig()
	default:
		printGeneralInfo()
	}
}

func printGeneralInfo() {
	fmt.Fprintf(os.Stdout, `ContextMCP %s — hierarchical task & context orchestration server

ContextMCP is a Model Context Protocol (MCP) server that organizes
software engineering work as a four-level hierarchy — Global → Project →
Branch → Task (with Subtasks) — and attaches an inheritable context
document to every level. Every response embeds workflow guidance (next
actions, warnings, validation schemas) so an autonomous agent can drive
the system with no human in the loop.

TRANSPORT MODES

  stdio (default)
    Communicates over stdin/stdout using JSON-RPC 2.0. Used when launched
    as a subprocess by an MCP client.

  http
    Runs as a standalone HTTP server (MCP Streamable HTTP transport,
    spec 2025-03-26).

    Endpoint:      POST /mcp
    Health check:  GET /health
    Default port:  8787

STORAGE

  Backing store is selected by storage.driver in the config file (or
  CONTEXTMCP_CONFIG-pointed file): "memory" (default, in-process) or
  "postgres" (set storage.dsn).

TOOLS (6)

  manage_task        create, update, get, delete, complete, list, search,
                      next, add_dependency, remove_dependency
  manage_subtask      add, update, complete, remove, get, list
  manage_context      create, get, update, delete, resolve, list,
                      delegate, add_insight, add_progress
  manage_project      create, update, get, delete, list
  manage_git_branch   create, get, list, update, delete, assign_agent,
                      unassign_agent, get_statistics, archive, restore
  manage_agent        register, unregister, assign, unassign, get, list,
                      update, rebalance

Each tool takes an "action" field plus a typed parameter bundle; every
response is a uniform envelope carrying status, operation_id, and (on
success) workflow_guidance.

PROMPTS (2)

  contextmcp-guide      Comprehensive usage guide for the hierarchy and
                        tool surface
  contextmcp-workflow   Step-by-step workflow guide for driving a task
                        through its lifecycle

RESOURCES (3)

  contextmcp://entity-model    Entity type and hierarchy reference
  contextmcp://guardrails      Completion/dependency guardrail reference
  contextmcp://tool-reference  Tool usage quick reference

GETTING STARTED

  1. Create a project:     manage_project create
  2. Create a branch:      manage_git_branch create (under the project)
  3. Create a task:        manage_task create (under the branch; its
                            task-context is created atomically)
  4. Work the task:        manage_task update as progress is made
  5. Complete it:          manage_task complete (requires completion_summary,
                            all subtasks done, all dependencies done)

CLIENT CONFIGURATION

  To see configuration for a specific MCP client, run:

    contextmcp info --opencode    OpenCode (.opencode.json)
    contextmcp info --claude      Claude Desktop (claude_desktop_config.json)
    contextmcp info --cursor      Cursor (.cursor/mcp.json)
`, Version)
}

func printOpenCodeConfig() {
	printStdioConfig("OpenCode", ".opencode.json or opencode.json", `{
  "mcpServers": {
    "contextmcp": {
      "command": "contextmcp"
    }
  }
}`)

	printHTTPConfig("OpenCode", ".opencode.json or opencode.json", `{
  "mcpServers": {
    "contextmcp": {
      "type": "streamable-http",
      "url": "http://your-contextmcp-server:8787/mcp"
    }
  }
}`)
}

func printClaudeConfig() {
	printStdioConfig("Claude Desktop", "claude_desktop_config.json", `{
  "mcpServers": {
    "contextmcp": {
      "command": "contextmcp"
    }
  }
}`)

	printHTTPConfig("Claude Desktop", "claude_desktop_config.json", `{
  "mcpServers": {
    "contextmcp": {
      "type": "streamable-http",
      "url": "http://your-contextmcp-server:8787/mcp"
    }
  }
}`)
}

func printCursorConfig() {
	printStdioConfig("Cursor", ".cursor/mcp.json", `{
  "mcpServers": {
    "contextmcp": {
      "command": "contextmcp"
    }
  }
}`)

	printHTTPConfig("Cursor", ".cursor/mcp.json", `{
  "mcpServers": {
    "contextmcp": {
      "type": "streamable-http",
      "url": "http://your-contextmcp-server:8787/mcp"
    }
  }
}`)
}

func printStdioConfig(client, file, config string) {
	fmt.Fprintf(os.Stdout, `%s — stdio mode
%s

Add to %s:

%s

ContextMCP runs as a subprocess — no server needed. It defaults to an
in-memory store; set storage.driver=postgres in contextmcp.toml to
persist across restarts.

`, client, strings.Repeat("─", len(client)+14), file, config)
}

func printHTTPConfig(client, file, config string) {
	fmt.Fprintf(os.Stdout, `%s — HTTP mode (remote server)
%s

Add to %s:

%s

`, client, strings.Repeat("─", len(client)+30), file, config)
}
