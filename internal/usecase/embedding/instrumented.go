package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	"github.com/kailas-cloud/vecdesk/internal/metrics"
)

// InstrumentedEmbedder wraps an Embedder with outcome metrics and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
// This layer classifies what callers actually saw after retries and validation.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder and records the outcome.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		kind := errorType(err)
		metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, kind).Inc()
		if kind != "empty_input" {
			p.logger.Error("Embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.String("error_type", kind),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrEmbeddingRejected):
		return "rejected"
	default:
		return "service"
	}
}
