// Package maestro is a multi-agent orchestration runtime for LLM-driven
// workers. It drives a single agent through a bounded tool-calling loop
// over an abstract Backend, and composes agents under conductor policies:
// sequential pipelines, bounded parallel fan-out with result mergers,
// hierarchical manager/worker delegation, multi-round debate, democratic
// voting, and direct agent-to-agent handoff.
//
// The three primary objects are built with builders:
//
//	agent, err := maestro.NewAgent("researcher").
//		SystemPrompt("You research topics.").
//		Backend(backend).
//		Tools(searchTool).
//		Build()
//
//	ens, err := maestro.NewEnsemble("team").
//		Agent("a", agentA).
//		Agent("b", agentB).
//		Conductor(conductor).
//		Build()
//
//	result, err := ens.Run(ctx, "task description")
//
// Every ensemble run produces an ExecutionTrace (a uniform step record
// shared by all conductors) and mutates a SharedContext that carries
// key/value data plus global and per-agent message logs. Cancellation is
// context.Context: every conductor checks it before starting a new agent
// step, and the agent loop checks it at the top of every iteration.
//
// The runtime performs no vendor I/O itself; see backend/openaicompat for
// a concrete adapter and observer for OTEL instrumentation.
package maestro
