package maestro

import (
	"log/slog"
	"time"
)

// ConductorBuilder assembles one of the six orchestration strategies.
// Exactly one strategy selector (Sequential, Parallel, Hierarchical,
// Debate, Voting, Custom) must be called before Build.
type ConductorBuilder struct {
	strategy Strategy

	// shared
	maxRounds    int
	agentTimeout time.Duration
	errorMode    ErrorMode
	retryCount   int
	logger       *slog.Logger

	// sequential
	order     []string
	transform TransformFunc

	// parallel
	agentIDs    []string
	concurrency int
	merger      Merger
	mergerSet   bool

	// hierarchical
	managerID      string
	workerIDs      []string
	maxDelegations int

	// debate
	debaterIDs []string
	consensus  ConsensusStrategy
	judgeID    string
	threshold  float64
	agreement  AgreementPredicate
	onRound    DebateRoundHook

	// voting
	voterIDs []string
	options  []string
	method   VoteMethod
	quorum   float64
	weights  map[string]float64
	onVote   VoteHook

	// custom
	orchestrate OrchestrateFunc
}

// NewConductor starts building a conductor.
func NewConductor() *ConductorBuilder {
	return &ConductorBuilder{
		maxRounds:      DefaultMaxRounds,
		errorMode:      ErrorModeFailFast,
		retryCount:     DefaultRetryCount,
		maxDelegations: DefaultMaxDelegations,
		consensus:      ConsensusAgreement,
		threshold:      DefaultConsensusThreshold,
		method:         VoteMajority,
		quorum:         DefaultQuorum,
	}
}

// --- Strategy selectors ---

// Sequential pipes agents in the given id order (registration order when
// none is given).
func (b *ConductorBuilder) Sequential(order ...string) *ConductorBuilder {
	b.strategy = StrategySequential
	b.order = order
	return b
}

// Parallel fans out to the given agents (everyone when none is given).
// A merger is required.
func (b *ConductorBuilder) Parallel(agentIDs ...string) *ConductorBuilder {
	b.strategy = StrategyParallel
	b.agentIDs = agentIDs
	return b
}

// Hierarchical designates the manager and optionally the worker set
// (everyone else by default).
func (b *ConductorBuilder) Hierarchical(managerID string, workerIDs ...string) *ConductorBuilder {
	b.strategy = StrategyHierarchical
	b.managerID = managerID
	b.workerIDs = workerIDs
	return b
}

// Debate selects the debaters (everyone when none is given; at least 2
// are required).
func (b *ConductorBuilder) Debate(debaterIDs ...string) *ConductorBuilder {
	b.strategy = StrategyDebate
	b.debaterIDs = debaterIDs
	return b
}

// Voting selects the voters (everyone when none is given).
func (b *ConductorBuilder) Voting(voterIDs ...string) *ConductorBuilder {
	b.strategy = StrategyVoting
	b.voterIDs = voterIDs
	return b
}

// Custom supplies the orchestrate function directly.
func (b *ConductorBuilder) Custom(fn OrchestrateFunc) *ConductorBuilder {
	b.strategy = StrategyCustom
	b.orchestrate = fn
	return b
}

// --- Shared settings ---

// MaxRounds bounds multi-round strategies (debate). Default 10.
func (b *ConductorBuilder) MaxRounds(n int) *ConductorBuilder {
	b.maxRounds = n
	return b
}

// AgentTimeout bounds every agent step. Zero disables the bound.
func (b *ConductorBuilder) AgentTimeout(d time.Duration) *ConductorBuilder {
	b.agentTimeout = d
	return b
}

// OnError sets the error mode. Default fail-fast.
func (b *ConductorBuilder) OnError(m ErrorMode) *ConductorBuilder {
	b.errorMode = m
	return b
}

// RetryCount sets the per-step retry budget for ErrorModeRetry. Default 3.
func (b *ConductorBuilder) RetryCount(n int) *ConductorBuilder {
	b.retryCount = n
	return b
}

// Logger sets the conductor's structured logger.
func (b *ConductorBuilder) Logger(l *slog.Logger) *ConductorBuilder {
	b.logger = l
	return b
}

// --- Strategy settings ---

// Transform is applied between every pair of sequential steps (not
// before the first).
func (b *ConductorBuilder) Transform(fn TransformFunc) *ConductorBuilder {
	b.transform = fn
	return b
}

// Concurrency caps in-flight agent calls in the parallel strategy.
// Default: the number of selected agents.
func (b *ConductorBuilder) Concurrency(n int) *ConductorBuilder {
	b.concurrency = n
	return b
}

// Merger sets the parallel result merger. Required for Parallel.
func (b *ConductorBuilder) Merger(m Merger) *ConductorBuilder {
	b.merger = m
	b.mergerSet = true
	return b
}

// MaxDelegations caps delegate_task invocations per hierarchical run.
// Default 10.
func (b *ConductorBuilder) MaxDelegations(n int) *ConductorBuilder {
	b.maxDelegations = n
	return b
}

// Consensus sets the debate consensus strategy. Default agreement.
func (b *ConductorBuilder) Consensus(c ConsensusStrategy) *ConductorBuilder {
	b.consensus = c
	return b
}

// Judge names the judge agent for ConsensusJudge.
func (b *ConductorBuilder) Judge(id string) *ConductorBuilder {
	b.judgeID = id
	return b
}

// ConsensusThreshold sets the agreement early-exit fraction. Default 0.8.
func (b *ConductorBuilder) ConsensusThreshold(f float64) *ConductorBuilder {
	b.threshold = f
	return b
}

// Agreement replaces the default English-keyword agreement predicate.
func (b *ConductorBuilder) Agreement(p AgreementPredicate) *ConductorBuilder {
	b.agreement = p
	return b
}

// OnDebateRound fires once per completed debate round.
func (b *ConductorBuilder) OnDebateRound(fn DebateRoundHook) *ConductorBuilder {
	b.onRound = fn
	return b
}

// Options supplies explicit voting options (at least 2); without them,
// options are generated by the voters.
func (b *ConductorBuilder) Options(options ...string) *ConductorBuilder {
	b.options = options
	return b
}

// Method sets the tally rule. Default majority.
func (b *ConductorBuilder) Method(m VoteMethod) *ConductorBuilder {
	b.method = m
	return b
}

// Quorum sets the active-voter fraction required. Default 0.5.
func (b *ConductorBuilder) Quorum(f float64) *ConductorBuilder {
	b.quorum = f
	return b
}

// Weights assigns per-voter weights (default weight 1 when missing).
func (b *ConductorBuilder) Weights(w map[string]float64) *ConductorBuilder {
	b.weights = w
	return b
}

// OnVote fires once per parsed ballot.
func (b *ConductorBuilder) OnVote(fn VoteHook) *ConductorBuilder {
	b.onVote = fn
	return b
}

// Build validates the configuration and returns the conductor.
func (b *ConductorBuilder) Build() (Conductor, error) {
	core := base{
		strategy:     b.strategy,
		maxRounds:    b.maxRounds,
		agentTimeout: b.agentTimeout,
		errorMode:    b.errorMode,
		retryCount:   b.retryCount,
		logger:       orNop(b.logger),
	}
	if core.maxRounds <= 0 {
		core.maxRounds = DefaultMaxRounds
	}

	switch b.strategy {
	case StrategySequential:
		return &sequentialConductor{base: core, order: b.order, transform: b.transform}, nil

	case StrategyParallel:
		if !b.mergerSet || !b.merger.valid() {
			return nil, Errf(ErrMissingRequired, "parallel conductor requires a merger")
		}
		return &parallelConductor{
			base:        core,
			agentIDs:    b.agentIDs,
			concurrency: b.concurrency,
			merger:      b.merger,
		}, nil

	case StrategyHierarchical:
		if b.managerID == "" {
			return nil, Errf(ErrMissingRequired, "hierarchical conductor requires a manager id")
		}
		maxDelegations := b.maxDelegations
		if maxDelegations <= 0 {
			maxDelegations = DefaultMaxDelegations
		}
		return &hierarchicalConductor{
			base:           core,
			managerID:      b.managerID,
			workerIDs:      b.workerIDs,
			maxDelegations: maxDelegations,
		}, nil

	case StrategyDebate:
		if len(b.debaterIDs) == 1 {
			return nil, Errf(ErrMissingRequired, "debate conductor requires at least 2 debaters")
		}
		if b.consensus == ConsensusJudge && b.judgeID == "" {
			return nil, Errf(ErrMissingRequired, "debate judge consensus requires a judge id")
		}
		agreement := b.agreement
		if agreement == nil {
			agreement = defaultAgreement
		}
		return &debateConductor{
			base:       core,
			debaterIDs: b.debaterIDs,
			consensus:  b.consensus,
			judgeID:    b.judgeID,
			threshold:  b.threshold,
			agreement:  agreement,
			onRound:    b.onRound,
		}, nil

	case StrategyVoting:
		if len(b.options) == 1 {
			return nil, Errf(ErrInsufficientOptions, "voting conductor requires at least 2 options")
		}
		return &votingConductor{
			base:     core,
			voterIDs: b.voterIDs,
			options:  b.options,
			method:   b.method,
			quorum:   b.quorum,
			weights:  b.weights,
			onVote:   b.onVote,
		}, nil

	case StrategyCustom:
		if b.orchestrate == nil {
			return nil, Errf(ErrMissingRequired, "custom conductor requires an orchestrate function")
		}
		return &customConductor{base: core, fn: b.orchestrate}, nil
	}
	return nil, Errf(ErrMissingRequired, "no orchestration strategy selected")
}
