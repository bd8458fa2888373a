package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for maestro observability spans and metrics.
var (
	AttrBackend = attribute.Key("llm.backend")
	AttrModel   = attribute.Key("llm.model")
	AttrFinish  = attribute.Key("llm.finish_reason")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")

	AttrToolCount = attribute.Key("llm.tool_count")

	AttrAgentName = attribute.Key("agent.name")
	AttrStatus    = attribute.Key("status")
	AttrDirection = attribute.Key("direction")
)
