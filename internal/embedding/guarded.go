package embedding

import (
	"alcyxob/fitness-coach/internal/metrics"
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GuardConfig bounds calls into an underlying provider.
type GuardConfig struct {
	Timeout           time.Duration // per attempt; 0 disables
	MaxRetries        int           // extra attempts after the first
	RetryBackoff      time.Duration // multiplied by the attempt number
	RequestsPerSecond float64       // 0 disables rate limiting
}

type guardedProvider struct {
	next    Provider
	cfg     GuardConfig
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewGuardedProvider wraps next with a per-call timeout, an optional rate
// limit and optional retries. Every failure it returns wraps
// ErrEmbeddingUnavailable.
func NewGuardedProvider(next Provider, cfg GuardConfig, m *metrics.Metrics) Provider {
	g := &guardedProvider{next: next, cfg: cfg, metrics: m}
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if g.cfg.MaxRetries < 0 {
		g.cfg.MaxRetries = 0
	}
	return g
}

func (g *guardedProvider) Model() string { return g.next.Model() }

func (g *guardedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.do(ctx, func(ctx context.Context) error {
		v, err := g.next.Embed(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 || isZero(v) {
			return errors.New("provider returned an empty vector")
		}
		vec = v
		return nil
	})
	return vec, err
}

func (g *guardedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := g.do(ctx, func(ctx context.Context) error {
		vs, err := g.next.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vs) != len(texts) {
			return fmt.Errorf("provider returned %d vectors for %d texts", len(vs), len(texts))
		}
		for i, v := range vs {
			if len(v) == 0 || isZero(v) {
				return fmt.Errorf("provider returned an empty vector for text %d", i)
			}
		}
		vectors = vs
		return nil
	})
	return vectors, err
}

func (g *guardedProvider) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * g.cfg.RetryBackoff
			log.WithFields(log.Fields{
				"model":   g.Model(),
				"attempt": attempt + 1,
				"wait":    wait,
			}).Warnf("Retrying embedding call: %v", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, lastErr)
			case <-time.After(wait):
			}
		}

		lastErr = g.attempt(ctx, call)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, lastErr)
}

func (g *guardedProvider) attempt(ctx context.Context, call func(context.Context) error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := call(callCtx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		g.metrics.ObserveEmbedding(g.Model(), metrics.OutcomeSuccess, elapsed)
	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		g.metrics.ObserveEmbedding(g.Model(), metrics.OutcomeTimeout, elapsed)
		err = fmt.Errorf("timed out after %s: %w", g.cfg.Timeout, context.DeadlineExceeded)
	default:
		g.metrics.ObserveEmbedding(g.Model(), metrics.OutcomeError, elapsed)
	}
	return err
}
