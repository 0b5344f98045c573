package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ProviderState is the lifecycle state of a RetrievalProvider.
type ProviderState int

const (
	StateUninitialized ProviderState = iota
	StateReady
	StateFailed
)

func (s ProviderState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// RetrievalFactory constructs a ready RetrievalService.
type RetrievalFactory func(ctx context.Context) (RetrievalService, error)

// RetrievalSource hands out the process-wide RetrievalService.
type RetrievalSource interface {
	Get(ctx context.Context) (RetrievalService, error)
}

const defaultInitTimeout = 2 * time.Minute

// RetrievalProvider owns the single RetrievalService of the process. The
// service is built on first use; concurrent first callers share one build.
// A failed build is not cached: the next Get tries again.
type RetrievalProvider struct {
	factory     RetrievalFactory
	initTimeout time.Duration
	group       singleflight.Group

	mu      sync.RWMutex
	svc     RetrievalService
	state   ProviderState
	lastErr error
}

// NewRetrievalProvider creates a provider. initTimeout bounds a single
// initialization attempt; zero uses the default of two minutes.
func NewRetrievalProvider(factory RetrievalFactory, initTimeout time.Duration) *RetrievalProvider {
	if initTimeout <= 0 {
		initTimeout = defaultInitTimeout
	}
	return &RetrievalProvider{factory: factory, initTimeout: initTimeout}
}

// Get returns the ready service, initializing it if needed. Failures wrap
// ErrRetrievalInitFailed. If ctx ends while waiting, Get returns early but
// the initialization keeps running for the other callers.
func (p *RetrievalProvider) Get(ctx context.Context) (RetrievalService, error) {
	p.mu.RLock()
	svc := p.svc
	p.mu.RUnlock()
	if svc != nil {
		return svc, nil
	}

	ch := p.group.DoChan("init", func() (any, error) {
		p.mu.RLock()
		ready := p.svc
		p.mu.RUnlock()
		if ready != nil {
			return ready, nil
		}

		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.initTimeout)
		defer cancel()

		start := time.Now()
		built, err := p.factory(initCtx)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.state = StateFailed
			p.lastErr = err
			log.WithError(err).Error("Exercise retrieval initialization failed")
			return nil, err
		}
		p.svc = built
		p.state = StateReady
		p.lastErr = nil
		log.WithField("took", time.Since(start)).Info("Exercise retrieval ready")
		return built, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrRetrievalInitFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalInitFailed, res.Err)
		}
		return res.Val.(RetrievalService), nil
	}
}

// State reports the lifecycle state and the last initialization error.
func (p *RetrievalProvider) State() (ProviderState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.lastErr
}

// Warmup initializes the service ahead of the first request.
func (p *RetrievalProvider) Warmup(ctx context.Context) error {
	_, err := p.Get(ctx)
	return err
}

// Shutdown releases nothing: the index and catalog live for the process lifetime.
func (p *RetrievalProvider) Shutdown() {
	log.Info("Exercise retrieval provider shut down")
}
