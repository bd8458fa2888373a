package maestro

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultMergeSeparator joins concatenated parallel results.
const DefaultMergeSeparator = "\n\n---\n\n"

// MergeEntry is one agent's contribution to a merge, in selection order:
// the declared agent ids, or ensemble registration order when none are
// given (never completion order).
type MergeEntry struct {
	ID     string
	Label  string // the role string, or the id when no role is set
	Result *AgentResult
}

// Merger is the policy that fuses per-agent results into one response in
// the parallel strategy. Construct with MergeConcatenate, MergeSummarize,
// MergeSelectBest, or MergeCustom. Merging is a deterministic function of
// the result set and the merger configuration — arrival order never
// matters.
type Merger struct {
	kind         string
	separator    string
	summarizerID string
	selector     func(entries []MergeEntry) int
	custom       func(results map[string]*AgentResult) (string, error)
}

// MergeConcatenate joins each agent's response, prefixed by its role
// label, with the given separator ("" means the default).
func MergeConcatenate(separator string) Merger {
	if separator == "" {
		separator = DefaultMergeSeparator
	}
	return Merger{kind: "concatenate", separator: separator}
}

// MergeSummarize feeds a labeled concatenation of all results to the
// designated summarizer agent; its response is the final response.
func MergeSummarize(summarizerID string) Merger {
	return Merger{kind: "summarize", summarizerID: summarizerID}
}

// MergeSelectBest applies the selector over the entries (selection
// order) and uses the chosen entry's response. An out-of-range selection
// is an error.
func MergeSelectBest(selector func(entries []MergeEntry) int) Merger {
	return Merger{kind: "select-best", selector: selector}
}

// MergeCustom applies fn over the result mapping.
func MergeCustom(fn func(results map[string]*AgentResult) (string, error)) Merger {
	return Merger{kind: "custom", custom: fn}
}

func (m Merger) valid() bool {
	switch m.kind {
	case "concatenate":
		return true
	case "summarize":
		return m.summarizerID != ""
	case "select-best":
		return m.selector != nil
	case "custom":
		return m.custom != nil
	}
	return false
}

// parallelConductor dispatches a selected subset of agents concurrently
// against the same input, bounded by concurrency, then combines results
// with the configured merger.
//
// Error semantics: with ErrorModeContinue, failed agents are omitted from
// the merge; with ErrorModeFailFast, the first error aborts the run. If
// every agent fails, the first error (in selection order) is raised
// regardless of mode.
type parallelConductor struct {
	base
	agentIDs    []string
	concurrency int
	merger      Merger
}

func (c *parallelConductor) Orchestrate(ctx context.Context, o *Orchestration) (string, error) {
	roles, err := c.selectRoles(o, c.agentIDs)
	if err != nil {
		return "", err
	}
	if len(roles) == 0 {
		return "", Errf(ErrMissingRequired, "parallel: ensemble has no agents")
	}

	limit := c.concurrency
	if limit <= 0 || limit > len(roles) {
		limit = len(roles)
	}

	// Fan out with at most `limit` agent calls in flight. Results and
	// errors are recorded per role index so everything downstream is in
	// registration order regardless of completion order.
	results := make([]*AgentResult, len(roles))
	stepErrs := make([]error, len(roles))

	runCtx := ctx
	var cancel context.CancelFunc
	if c.errorMode != ErrorModeContinue {
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var g errgroup.Group
	g.SetLimit(limit)
	var once sync.Once
	for i, role := range roles {
		g.Go(func() error {
			res, err := c.stepRetry(runCtx, o, role, o.Input())
			results[i] = res
			stepErrs[i] = err
			if err != nil && cancel != nil {
				// First failure under fail-fast cancels the in-flight rest.
				once.Do(cancel)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Collect in registration order.
	var entries []MergeEntry
	var firstErr error
	for i, role := range roles {
		if stepErrs[i] != nil {
			if firstErr == nil {
				firstErr = stepErrs[i]
			}
			continue
		}
		entries = append(entries, MergeEntry{ID: role.ID, Label: roleLabel(role), Result: results[i]})
	}

	if len(entries) == 0 && firstErr != nil {
		return "", firstErr
	}
	if firstErr != nil && c.errorMode != ErrorModeContinue {
		return "", firstErr
	}

	return c.merge(ctx, o, entries)
}

func (c *parallelConductor) merge(ctx context.Context, o *Orchestration, entries []MergeEntry) (string, error) {
	switch c.merger.kind {
	case "concatenate":
		return concatEntries(entries, c.merger.separator), nil

	case "summarize":
		role, err := c.requireRole(o, c.merger.summarizerID)
		if err != nil {
			return "", err
		}
		prompt := fmt.Sprintf(summarizePromptTemplate, concatEntries(entries, DefaultMergeSeparator))
		res, err := c.step(ctx, o, role, prompt)
		if err != nil {
			return "", err
		}
		return res.Response, nil

	case "select-best":
		idx := c.merger.selector(entries)
		if idx < 0 || idx >= len(entries) {
			return "", Errf(ErrNotFound, "parallel: selector chose index %d of %d results", idx, len(entries))
		}
		return entries[idx].Result.Response, nil

	case "custom":
		results := make(map[string]*AgentResult, len(entries))
		for _, e := range entries {
			results[e.ID] = e.Result
		}
		return c.merger.custom(results)
	}
	return "", Errf(ErrMissingRequired, "parallel: no merger configured")
}

// summarizePromptTemplate frames the labeled result set for the
// summarizer agent.
const summarizePromptTemplate = "Synthesize the following responses into a single coherent answer:\n\n%s"

// concatEntries joins responses with their role labels, in entry order.
func concatEntries(entries []MergeEntry, separator string) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("[%s]\n%s", e.Label, e.Result.Response))
	}
	return strings.Join(parts, separator)
}

// roleLabel is the human-readable label for a role in merged output.
func roleLabel(role AgentRole) string {
	if role.Role != "" {
		return role.Role
	}
	return role.ID
}
