package observer

import (
	"context"
	"time"

	"github.com/avencia/maestro"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentedBackend wraps a maestro.Backend with a span and metrics per
// Generate call.
type instrumentedBackend struct {
	inner maestro.Backend
	inst  *Instruments
}

// Backend wraps b so every Generate call is traced and measured.
func Backend(b maestro.Backend, inst *Instruments) maestro.Backend {
	return &instrumentedBackend{inner: b, inst: inst}
}

func (b *instrumentedBackend) Name() string { return b.inner.Name() }

func (b *instrumentedBackend) Generate(ctx context.Context, req maestro.GenerateRequest) (maestro.GenerateResponse, error) {
	ctx, span := b.inst.Tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		AttrBackend.String(b.inner.Name()),
		AttrModel.String(req.Model),
		AttrToolCount.Int(len(req.Tools)),
	))
	defer span.End()

	start := time.Now()
	resp, err := b.inner.Generate(ctx, req)
	elapsed := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	} else {
		span.SetAttributes(AttrFinish.String(string(resp.Finish)))
		if resp.Usage != nil {
			span.SetAttributes(
				AttrTokensInput.Int(resp.Usage.PromptTokens),
				AttrTokensOutput.Int(resp.Usage.CompletionTokens),
			)
			b.inst.TokenUsage.Add(ctx, int64(resp.Usage.PromptTokens), metric.WithAttributes(
				AttrBackend.String(b.inner.Name()), AttrDirection.String("input")))
			b.inst.TokenUsage.Add(ctx, int64(resp.Usage.CompletionTokens), metric.WithAttributes(
				AttrBackend.String(b.inner.Name()), AttrDirection.String("output")))
		}
	}

	b.inst.GenerateRequests.Add(ctx, 1, metric.WithAttributes(
		AttrBackend.String(b.inner.Name()), AttrStatus.String(status)))
	b.inst.GenerateDuration.Record(ctx, elapsed, metric.WithAttributes(
		AttrBackend.String(b.inner.Name())))

	return resp, err
}

// Compile-time interface check.
var _ maestro.Backend = (*instrumentedBackend)(nil)
