package maestro

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultQuorum is the fraction of ensemble roles that must be active
// voters for a vote to proceed.
const DefaultQuorum = 0.5

// VoteMethod selects the tally rule.
type VoteMethod string

const (
	// VoteMajority sums weights (count 1 when no weight is set) per
	// option; the highest wins, ties broken by first option encountered.
	VoteMajority VoteMethod = "majority"
	// VoteUnanimous declares a winner only when every voter chose the
	// same option.
	VoteUnanimous VoteMethod = "unanimous"
	// VoteWeighted is majority with per-voter weights (default 1).
	VoteWeighted VoteMethod = "weighted"
	// VoteRanked is instant-runoff: repeatedly eliminate the option with
	// the fewest first-choice votes until one exceeds half.
	VoteRanked VoteMethod = "ranked"
)

// VoteHook fires once per parsed ballot. For ranked votes the ballot is
// the rank vector (ballot[i] is the rank given to option i+1); for all
// other methods it holds the single chosen option number.
type VoteHook func(agentID string, ballot []int)

// Voting prompt templates.
const (
	proposeOptionPrompt = "Propose one concise option (a short phrase, one line) answering:\n\n%s"

	castVotePrompt = "Question: %s\n\nOptions:\n%s\nReply with the number of the option you choose."

	castRankedPrompt = "Question: %s\n\nOptions:\n%s\nRank every option: reply with a comma-separated " +
		"list of ranks, one per option in the order listed (1 = most preferred)."
)

var ballotInt = regexp.MustCompile(`-?\d+`)

// votingConductor puts options to a vote among the voter set.
type votingConductor struct {
	base
	voterIDs []string
	options  []string
	method   VoteMethod
	quorum   float64
	weights  map[string]float64
	onVote   VoteHook
}

func (c *votingConductor) Orchestrate(ctx context.Context, o *Orchestration) (string, error) {
	voters, err := c.selectRoles(o, c.voterIDs)
	if err != nil {
		return "", err
	}

	// Quorum: active voters against the ensemble's full role count.
	required := int(math.Ceil(float64(len(o.Roles())) * c.quorum))
	if len(voters) < required {
		return "", Errf(ErrQuorumNotMet, "voting: %d active voters, quorum requires %d", len(voters), required)
	}

	options := c.options
	if len(options) == 0 {
		options, err = c.generateOptions(ctx, o, voters)
		if err != nil {
			return "", err
		}
	}
	if len(options) < 2 {
		return "", Errf(ErrInsufficientOptions, "voting: need at least 2 distinct options, have %d", len(options))
	}

	ballots, ballotVoters, err := c.collectBallots(ctx, o, voters, options)
	if err != nil {
		return "", err
	}
	if len(ballots) == 0 {
		return "", Errf(ErrQuorumNotMet, "voting: no ballots were cast")
	}

	return c.tally(options, ballots, ballotVoters), nil
}

// generateOptions asks every voter to propose one concise option and
// drops duplicates while preserving order.
func (c *votingConductor) generateOptions(ctx context.Context, o *Orchestration, voters []AgentRole) ([]string, error) {
	var options []string
	seen := make(map[string]bool)
	for _, v := range voters {
		res, err := c.stepRetry(ctx, o, v, fmt.Sprintf(proposeOptionPrompt, o.Input()))
		if err != nil {
			if c.errorMode == ErrorModeContinue && KindOf(err) != ErrCancelled {
				continue
			}
			return nil, err
		}
		opt := firstLine(res.Response)
		if opt == "" || seen[opt] {
			continue
		}
		seen[opt] = true
		options = append(options, opt)
	}
	return options, nil
}

// collectBallots prompts every voter with the numbered options and
// parses the reply defensively. Returns the ballots and the voter id per
// ballot, in voter order.
func (c *votingConductor) collectBallots(ctx context.Context, o *Orchestration, voters []AgentRole, options []string) ([][]int, []string, error) {
	ranked := c.method == VoteRanked
	prompt := castVotePrompt
	if ranked {
		prompt = castRankedPrompt
	}
	listing := numberedOptions(options)

	var ballots [][]int
	var ballotVoters []string
	for _, v := range voters {
		res, err := c.stepRetry(ctx, o, v, fmt.Sprintf(prompt, o.Input(), listing))
		if err != nil {
			if c.errorMode == ErrorModeContinue && KindOf(err) != ErrCancelled {
				continue
			}
			return nil, nil, err
		}
		var ballot []int
		if ranked {
			ballot = parseRankedBallot(res.Response, len(options))
		} else {
			ballot = []int{parseChoice(res.Response, len(options))}
		}
		ballots = append(ballots, ballot)
		ballotVoters = append(ballotVoters, v.ID)
		if c.onVote != nil {
			b, id := ballot, v.ID
			callHook(c.logger, "OnVote", func() { c.onVote(id, b) })
		}
	}
	return ballots, ballotVoters, nil
}

// parseChoice extracts the first integer from a reply, clamped into
// [1, n]. Replies without an integer default to option 1.
func parseChoice(reply string, n int) int {
	m := ballotInt.FindString(reply)
	if m == "" {
		return 1
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 1
	}
	return clampOption(v, n)
}

// parseRankedBallot extracts the rank vector from a reply: the i-th
// integer is the rank given to option i+1. Ranks are clamped into
// [1, n]; positions beyond the supplied integers rank worse than any
// stated preference, in option order. No integers at all yields the
// identity ranking (option 1 first).
func parseRankedBallot(reply string, n int) []int {
	matches := ballotInt.FindAllString(reply, n)
	ballot := make([]int, n)
	for i := range ballot {
		if i < len(matches) {
			if v, err := strconv.Atoi(matches[i]); err == nil {
				ballot[i] = clampOption(v, n)
				continue
			}
		}
		ballot[i] = n + 1 + i
	}
	if len(matches) == 0 {
		for i := range ballot {
			ballot[i] = i + 1
		}
	}
	return ballot
}

func clampOption(v, n int) int {
	if v < 1 {
		return 1
	}
	if v > n {
		return n
	}
	return v
}

// tally applies the configured method and renders a human-readable
// result naming the winner and the vote breakdown.
func (c *votingConductor) tally(options []string, ballots [][]int, voters []string) string {
	switch c.method {
	case VoteUnanimous:
		return c.tallyUnanimous(options, ballots)
	case VoteRanked:
		return c.tallyRanked(options, ballots)
	default:
		return c.tallyMajority(options, ballots, voters)
	}
}

func (c *votingConductor) tallyMajority(options []string, ballots [][]int, voters []string) string {
	weighted := c.method == VoteWeighted || len(c.weights) > 0
	scores := make([]float64, len(options))
	for i, b := range ballots {
		w := 1.0
		if weighted {
			if vw, ok := c.weights[voters[i]]; ok {
				w = vw
			}
		}
		scores[b[0]-1] += w
	}

	winner := 0
	for i := range scores {
		if scores[i] > scores[winner] {
			winner = i
		}
	}

	label := string(c.method)
	var b strings.Builder
	if weighted {
		fmt.Fprintf(&b, "Voting result (%s): %q wins with a weight of %.4g.\n\nBreakdown:\n", label, options[winner], scores[winner])
		for i, opt := range options {
			fmt.Fprintf(&b, "  %d. %s: %.4g\n", i+1, opt, scores[i])
		}
	} else {
		fmt.Fprintf(&b, "Voting result (%s): %q wins with %d/%d votes.\n\nBreakdown:\n", label, options[winner], int(scores[winner]), len(ballots))
		for i, opt := range options {
			fmt.Fprintf(&b, "  %d. %s: %d\n", i+1, opt, int(scores[i]))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *votingConductor) tallyUnanimous(options []string, ballots [][]int) string {
	choice := ballots[0][0]
	unanimous := true
	counts := make([]int, len(options))
	for _, b := range ballots {
		counts[b[0]-1]++
		if b[0] != choice {
			unanimous = false
		}
	}

	var b strings.Builder
	if unanimous {
		fmt.Fprintf(&b, "Voting result (unanimous): %q wins with %d/%d votes.\n\nBreakdown:\n", options[choice-1], len(ballots), len(ballots))
	} else {
		b.WriteString("Voting result (unanimous): no option won every vote.\n\nBreakdown:\n")
	}
	for i, opt := range options {
		fmt.Fprintf(&b, "  %d. %s: %d\n", i+1, opt, counts[i])
	}
	return strings.TrimRight(b.String(), "\n")
}

// tallyRanked runs instant-runoff: count first-choice votes among the
// remaining options; a count above half of cast ballots wins, otherwise
// the lowest-count option is eliminated and its ballots transfer. The
// last survivor wins when eliminations exhaust the field.
func (c *votingConductor) tallyRanked(options []string, ballots [][]int) string {
	cast := len(ballots)
	remaining := make([]bool, len(options))
	for i := range remaining {
		remaining[i] = true
	}
	active := len(options)
	var eliminated []string

	for {
		counts := make([]int, len(options))
		for _, b := range ballots {
			if top := topChoice(b, remaining); top >= 0 {
				counts[top]++
			}
		}

		// Majority among remaining, or a sole survivor.
		for i := range options {
			if remaining[i] && (float64(counts[i]) > float64(cast)/2 || active == 1) {
				return rankedResult(options, i, counts[i], cast, eliminated)
			}
		}

		// Eliminate the lowest first-choice count (first in option order).
		lowest := -1
		for i := range options {
			if !remaining[i] {
				continue
			}
			if lowest == -1 || counts[i] < counts[lowest] {
				lowest = i
			}
		}
		remaining[lowest] = false
		eliminated = append(eliminated, options[lowest])
		active--
	}
}

// topChoice returns the remaining option (0-based) with the best rank on
// the ballot, or -1 when none remain.
func topChoice(ballot []int, remaining []bool) int {
	best := -1
	for i, rank := range ballot {
		if !remaining[i] {
			continue
		}
		if best == -1 || rank < ballot[best] {
			best = i
		}
	}
	return best
}

func rankedResult(options []string, winner, count, cast int, eliminated []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Voting result (ranked): %q wins with %d/%d votes in the final round.", options[winner], count, cast)
	if len(eliminated) > 0 {
		fmt.Fprintf(&b, "\n\nEliminated in order: %s.", strings.Join(eliminated, ", "))
	}
	return b.String()
}

// numberedOptions renders "  1. option" lines.
func numberedOptions(options []string) string {
	var b strings.Builder
	for i, opt := range options {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, opt)
	}
	return b.String()
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
