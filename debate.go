package maestro

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultConsensusThreshold is the fraction of a round's statements that
// must signal agreement for the debate to exit early.
const DefaultConsensusThreshold = 0.8

// ConsensusStrategy decides how a debate's final response is produced.
type ConsensusStrategy string

const (
	// ConsensusJudge feeds a summary of the debate to a judge agent.
	ConsensusJudge ConsensusStrategy = "judge"
	// ConsensusAgreement emits a labeled concatenation of final
	// statements, exiting early when enough statements signal agreement.
	ConsensusAgreement ConsensusStrategy = "agreement"
	// ConsensusVoting has each debater vote for another's position.
	ConsensusVoting ConsensusStrategy = "voting"
)

// AgreementPredicate reports whether a statement signals agreement. The
// default matches a fixed English keyword set after NFKC case folding —
// it will misfire on translated content; supply a locale-aware predicate
// when debating in other languages.
type AgreementPredicate func(statement string) bool

var agreementKeywords = []string{
	"i agree",
	"you're right",
	"good point",
	"consensus",
	"we all",
	"common ground",
}

// defaultAgreement is the built-in English keyword heuristic.
func defaultAgreement(statement string) bool {
	folded := strings.ToLower(norm.NFKC.String(statement))
	for _, kw := range agreementKeywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// DebateRoundHook fires once per completed round with the round number
// (1-based) and every debater's latest statement.
type DebateRoundHook func(round int, statements map[string]string)

// Debate prompt templates. Placeholders: topic, peer statements, own
// previous statement.
const (
	debateOpeningPrompt = "State your position on the following topic. Be specific and support " +
		"your position with reasoning.\n\nTopic: %s"

	debateRoundPrompt = "Topic: %s\n\nThe other participants' latest positions:\n\n%s\n" +
		"Your previous position:\n%s\n\n" +
		"Respond to the other positions. You may defend your position, refine it, " +
		"or converge toward common ground where you find their arguments compelling."

	judgePromptTemplate = "You are judging a debate. Review each participant's initial and final " +
		"positions and deliver a reasoned verdict with a final answer.\n\nTopic: %s\n\n%s"

	debateVotePrompt = "The debate has ended. Vote for the most convincing position other than " +
		"your own by naming that participant's id. Participants: %s. You are %q."
)

// debateConductor runs a multi-round debate: an initial position round,
// then up to maxRounds cross-response rounds, then consensus resolution.
type debateConductor struct {
	base
	debaterIDs []string
	consensus  ConsensusStrategy
	judgeID    string
	threshold  float64
	agreement  AgreementPredicate
	onRound    DebateRoundHook
}

func (c *debateConductor) Orchestrate(ctx context.Context, o *Orchestration) (string, error) {
	debaters, err := c.selectRoles(o, c.debaterIDs)
	if err != nil {
		return "", err
	}
	if len(debaters) < 2 {
		return "", Errf(ErrMissingRequired, "debate requires at least 2 debaters, have %d", len(debaters))
	}

	topic := o.Input()
	statements := make(map[string]string, len(debaters))
	initial := make(map[string]string, len(debaters))

	// Initial round: every debater states a position.
	for _, d := range debaters {
		res, err := c.stepRetry(ctx, o, d, fmt.Sprintf(debateOpeningPrompt, topic))
		if err != nil {
			if c.errorMode == ErrorModeContinue && KindOf(err) != ErrCancelled {
				continue
			}
			return "", err
		}
		statements[d.ID] = res.Response
		initial[d.ID] = res.Response
	}
	if len(statements) < 2 {
		return "", Errf(ErrMissingRequired, "debate: fewer than 2 positions were stated")
	}

	// Cross-response rounds. Debaters respond in registration order and
	// see the latest statement of every other debater, including updates
	// made earlier in the same round.
	for round := 1; round <= c.maxRounds; round++ {
		if err := checkCancel(ctx); err != nil {
			return "", err
		}
		for _, d := range debaters {
			if _, ok := statements[d.ID]; !ok {
				continue
			}
			prompt := fmt.Sprintf(debateRoundPrompt, topic, peerStatements(debaters, statements, d.ID), statements[d.ID])
			res, err := c.stepRetry(ctx, o, d, prompt)
			if err != nil {
				if c.errorMode == ErrorModeContinue && KindOf(err) != ErrCancelled {
					continue
				}
				return "", err
			}
			statements[d.ID] = res.Response
		}
		if c.onRound != nil {
			snapshot := copyStatements(statements)
			r := round
			callHook(c.logger, "OnDebateRound", func() { c.onRound(r, snapshot) })
		}
		if c.consensus == ConsensusAgreement && c.agreementReached(statements) {
			c.logger.Info("debate consensus reached", "round", round)
			break
		}
	}

	return c.resolve(ctx, o, debaters, topic, initial, statements)
}

// agreementReached reports whether the agreeing fraction of current
// statements meets the threshold.
func (c *debateConductor) agreementReached(statements map[string]string) bool {
	if len(statements) == 0 {
		return false
	}
	agree := 0
	for _, s := range statements {
		if c.agreement(s) {
			agree++
		}
	}
	return float64(agree)/float64(len(statements)) >= c.threshold
}

func (c *debateConductor) resolve(ctx context.Context, o *Orchestration, debaters []AgentRole, topic string, initial, final map[string]string) (string, error) {
	switch c.consensus {
	case ConsensusJudge:
		judge, err := c.requireRole(o, c.judgeID)
		if err != nil {
			return "", err
		}
		res, err := c.stepRetry(ctx, o, judge, fmt.Sprintf(judgePromptTemplate, topic, debateSummary(debaters, initial, final)))
		if err != nil {
			return "", err
		}
		return res.Response, nil

	case ConsensusVoting:
		winner, ok := c.voteOnPositions(ctx, o, debaters, final)
		if ok {
			return final[winner], nil
		}
		return labeledStatements(debaters, final), nil

	default: // agreement
		return labeledStatements(debaters, final), nil
	}
}

// voteOnPositions asks each debater to name the most convincing other
// participant; the id with the most mentions wins. Returns false on a
// tie or when no vote named a valid target.
func (c *debateConductor) voteOnPositions(ctx context.Context, o *Orchestration, debaters []AgentRole, final map[string]string) (string, bool) {
	ids := make([]string, 0, len(debaters))
	for _, d := range debaters {
		if _, ok := final[d.ID]; ok {
			ids = append(ids, d.ID)
		}
	}

	mentions := make(map[string]int, len(ids))
	for _, d := range debaters {
		if _, ok := final[d.ID]; !ok {
			continue
		}
		res, err := c.stepRetry(ctx, o, d, fmt.Sprintf(debateVotePrompt, strings.Join(ids, ", "), d.ID))
		if err != nil {
			continue
		}
		for _, id := range ids {
			if id != d.ID && strings.Contains(res.Response, id) {
				mentions[id]++
			}
		}
	}

	winner, best, tied := "", 0, false
	for _, id := range ids {
		switch {
		case mentions[id] > best:
			winner, best, tied = id, mentions[id], false
		case mentions[id] == best && best > 0:
			tied = true
		}
	}
	if winner == "" || tied {
		return "", false
	}
	return winner, true
}

// peerStatements renders the latest statements of everyone but self, in
// registration order.
func peerStatements(debaters []AgentRole, statements map[string]string, selfID string) string {
	var b strings.Builder
	for _, d := range debaters {
		if d.ID == selfID {
			continue
		}
		s, ok := statements[d.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", d.ID, s)
	}
	return b.String()
}

// debateSummary renders each debater's initial and final statements for
// the judge.
func debateSummary(debaters []AgentRole, initial, final map[string]string) string {
	var b strings.Builder
	for _, d := range debaters {
		f, ok := final[d.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "[%s]\nInitial position:\n%s\n\nFinal position:\n%s\n\n", d.ID, initial[d.ID], f)
	}
	return strings.TrimRight(b.String(), "\n")
}

// labeledStatements concatenates final statements with id labels.
func labeledStatements(debaters []AgentRole, statements map[string]string) string {
	var parts []string
	for _, d := range debaters {
		if s, ok := statements[d.ID]; ok {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", d.ID, s))
		}
	}
	return strings.Join(parts, DefaultMergeSeparator)
}

func copyStatements(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
