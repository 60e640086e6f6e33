package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/vecdesk/internal/domain"
)

// Defaults for ClientConfig zero values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultMaxDelay    = 2 * time.Second
	DefaultTimeout     = 30 * time.Second
)

// ClientConfig tunes the embedding client.
type ClientConfig struct {
	Dimensions   int // expected vector length; 0 skips the check
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration // per call, retries included
	RateLimitRPS float64       // 0 = unlimited
}

// Client turns text into vectors through a provider.
// It normalizes whitespace, retries transient failures and checks the vector dimension.
type Client struct {
	inner   domain.Embedder
	cfg     ClientConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient wraps a provider embedder.
func NewClient(inner domain.Embedder, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{inner: inner, cfg: cfg, logger: logger}
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return c
}

// Dimensions returns the configured vector length (0 when unchecked).
func (c *Client) Dimensions() int { return c.cfg.Dimensions }

// Embed returns the vector for text.
// Blank text fails with ErrEmptyInput before any provider call.
// Provider failures, timeouts and wrong-sized vectors fail with ErrEmbeddingService.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	text = Normalize(text)
	if text == "" {
		return domain.EmbeddingResult{}, domain.ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var result domain.EmbeddingResult
	attempt := 0
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		res, err := c.inner.Embed(ctx, text)
		if err != nil {
			if isTransient(ctx, err) {
				c.logger.Warn("Embedding attempt failed, retrying",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, wrapService(err)
	}

	if c.cfg.Dimensions > 0 && len(result.Embedding) != c.cfg.Dimensions {
		return domain.EmbeddingResult{}, fmt.Errorf(
			"embedding has %d dimensions, expected %d: %w",
			len(result.Embedding), c.cfg.Dimensions, domain.ErrEmbeddingService)
	}
	if len(result.Embedding) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingService)
	}

	return result, nil
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.BaseDelay)
	b = retry.WithCappedDuration(c.cfg.MaxDelay, b)
	// WithMaxRetries counts retries, not attempts.
	return retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), b) //nolint:gosec // MaxAttempts >= 1
}

// Normalize trims text and collapses internal whitespace runs to a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, domain.ErrEmbeddingRejected)
}

func wrapService(err error) error {
	if errors.Is(err, domain.ErrEmbeddingService) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
}
