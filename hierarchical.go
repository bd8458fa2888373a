package maestro

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// Prompt and tool templates for the manager runtime. Kept as data so the
// orchestration logic stays independent of wording.
const (
	delegateToolName = "delegate_task"

	delegateToolDescription = "Delegate a task to a worker agent and receive its response. " +
		"Available workers:\n%s"

	managerPromptTemplate = "You are coordinating a team of worker agents. " +
		"Delegate subtasks to workers with the delegate_task tool, then synthesize their " +
		"responses into a final answer.\n\nWorkers:\n%s\n\nRequest:\n%s"
)

var delegateToolParams = json.RawMessage(`{
	"type": "object",
	"properties": {
		"worker_id": {
			"type": "string",
			"description": "The id of the worker agent to delegate to"
		},
		"task": {
			"type": "string",
			"description": "The task for the worker, in natural language"
		}
	},
	"required": ["worker_id", "task"],
	"additionalProperties": false
}`)

// hierarchicalConductor runs a manager agent whose tool set is extended
// with a synthesized delegate_task tool over the worker set (everyone but
// the manager by default). The user-registered manager agent is never
// mutated; a manager-runtime copy owns the injected tool for the
// duration of the run. Capability matching is description-only: the
// worker directory shapes the tool description, the model chooses.
type hierarchicalConductor struct {
	base
	managerID      string
	workerIDs      []string
	maxDelegations int
}

func (c *hierarchicalConductor) Orchestrate(ctx context.Context, o *Orchestration) (string, error) {
	manager, err := c.requireRole(o, c.managerID)
	if err != nil {
		return "", err
	}

	workers, err := c.resolveWorkers(o)
	if err != nil {
		return "", err
	}
	if len(workers) == 0 {
		return "", Errf(ErrMissingRequired, "hierarchical: no worker agents available")
	}
	workerByID := make(map[string]AgentRole, len(workers))
	for _, w := range workers {
		workerByID[w.ID] = w
	}

	directory := workerDirectory(workers)

	var delegations atomic.Int64
	delegate := Tool{
		Name:        delegateToolName,
		Description: fmt.Sprintf(delegateToolDescription, directory),
		Parameters:  delegateToolParams,
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var params struct {
				WorkerID string `json:"worker_id"`
				Task     string `json:"task"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return map[string]any{"success": false, "error": "invalid delegate_task arguments: " + err.Error()}, nil
			}
			if n := delegations.Add(1); n > int64(c.maxDelegations) {
				return map[string]any{
					"success": false,
					"error":   fmt.Sprintf("maximum delegations (%d) exceeded", c.maxDelegations),
				}, nil
			}
			worker, ok := workerByID[params.WorkerID]
			if !ok {
				return map[string]any{
					"success": false,
					"error":   fmt.Sprintf("Unknown worker '%s'", params.WorkerID),
				}, nil
			}
			res, err := c.stepRetry(ctx, o, worker, params.Task)
			if err != nil {
				if KindOf(err) == ErrCancelled {
					return nil, err
				}
				return map[string]any{"success": false, "error": Sanitize(err.Error())}, nil
			}
			return map[string]any{
				"success":  true,
				"worker":   worker.ID,
				"response": res.Response,
			}, nil
		},
	}

	runtime, err := manager.Agent.withTools(delegate)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(managerPromptTemplate, directory, o.Input())
	res, err := o.runRoleAs(ctx, manager, runtime, prompt)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

// resolveWorkers returns the configured worker roles, defaulting to every
// role except the manager.
func (c *hierarchicalConductor) resolveWorkers(o *Orchestration) ([]AgentRole, error) {
	if len(c.workerIDs) > 0 {
		return c.selectRoles(o, c.workerIDs)
	}
	var workers []AgentRole
	for _, role := range o.Roles() {
		if role.ID != c.managerID {
			workers = append(workers, role)
		}
	}
	return workers, nil
}

// workerDirectory renders the worker set as "- id (role): description
// [tags]" lines for the manager prompt and tool description.
func workerDirectory(workers []AgentRole) string {
	var b strings.Builder
	for _, w := range workers {
		b.WriteString("- ")
		b.WriteString(w.ID)
		if w.Role != "" {
			fmt.Fprintf(&b, " (%s)", w.Role)
		}
		if d := w.Agent.Description(); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
		if len(w.Tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(w.Tags, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
