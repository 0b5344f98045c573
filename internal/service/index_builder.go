package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// expectedFingerprint identifies the index content that the current catalog
// and embedding model would produce.
func (s *retrievalService) expectedFingerprint(ctx context.Context) (string, error) {
	catalogFP, err := s.catalog.Fingerprint(ctx)
	if err != nil {
		return "", err
	}
	return s.embedder.Model() + ":" + catalogFP, nil
}

// ensureIndex builds the index unless it already holds one entry per catalog
// record built from the same content. force always rebuilds.
func (s *retrievalService) ensureIndex(ctx context.Context, force bool) error {
	exercises, err := s.catalog.LoadAll(ctx)
	if err != nil {
		s.metrics.IndexBuild(metrics.BuildFailed)
		return err
	}
	fingerprint, err := s.expectedFingerprint(ctx)
	if err != nil {
		s.metrics.IndexBuild(metrics.BuildFailed)
		return err
	}

	count, err := s.index.Count(ctx)
	if err != nil {
		s.metrics.IndexBuild(metrics.BuildFailed)
		return fmt.Errorf("count vector index: %w", err)
	}

	logger := log.WithFields(log.Fields{
		"catalog_size": len(exercises),
		"index_size":   count,
		"model":        s.embedder.Model(),
	})

	if !force && count == len(exercises) {
		fresh, err := s.isFresh(ctx, fingerprint)
		if err != nil {
			s.metrics.IndexBuild(metrics.BuildFailed)
			return err
		}
		if fresh {
			logger.Info("Exercise index is up to date, skipping build")
			s.metrics.IndexBuild(metrics.BuildSkipped)
			s.metrics.SetIndexSize(count)
			return nil
		}
		logger.Info("Exercise index fingerprint changed, rebuilding")
	}

	if count > 0 || force {
		if err := s.index.Reset(ctx); err != nil {
			s.metrics.IndexBuild(metrics.BuildFailed)
			return fmt.Errorf("reset vector index: %w", err)
		}
	}

	start := time.Now()
	if err := s.buildIndex(ctx, exercises); err != nil {
		s.metrics.IndexBuild(metrics.BuildFailed)
		return err
	}
	if store, ok := s.index.(repository.FingerprintStore); ok {
		if err := store.SetFingerprint(ctx, fingerprint); err != nil {
			s.metrics.IndexBuild(metrics.BuildFailed)
			return fmt.Errorf("store index fingerprint: %w", err)
		}
	}

	s.metrics.IndexBuild(metrics.BuildBuilt)
	s.metrics.SetIndexSize(len(exercises))
	logger.WithField("took", time.Since(start)).Info("Exercise index built")
	return nil
}

// isFresh compares the stored fingerprint with the expected one. Indexes
// without fingerprint support, or built before fingerprints were recorded,
// count as fresh when their size matches.
func (s *retrievalService) isFresh(ctx context.Context, fingerprint string) (bool, error) {
	store, ok := s.index.(repository.FingerprintStore)
	if !ok {
		return true, nil
	}
	stored, err := store.Fingerprint(ctx)
	if err != nil {
		return false, fmt.Errorf("read index fingerprint: %w", err)
	}
	return stored == "" || stored == fingerprint, nil
}

// buildIndex embeds every catalog document in batches and upserts the
// results in catalog order.
func (s *retrievalService) buildIndex(ctx context.Context, exercises []domain.Exercise) error {
	if len(exercises) == 0 {
		return nil
	}

	docs := make([]string, len(exercises))
	for i := range exercises {
		docs[i] = ComposeDocument(&exercises[i])
	}

	vectors := make([][]float32, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BuildConcurrency)
	for start := 0; start < len(docs); start += s.opts.BuildBatchSize {
		start := start
		end := min(start+s.opts.BuildBatchSize, len(docs))
		g.Go(func() error {
			batch, err := s.embedder.EmbedBatch(gctx, docs[start:end])
			if err != nil {
				return fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embed documents %d-%d: got %d vectors", start, end-1, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	dim := len(vectors[0])
	entries := make([]repository.IndexEntry, len(exercises))
	for i := range exercises {
		if len(vectors[i]) == 0 || len(vectors[i]) != dim {
			return fmt.Errorf("exercise %s: vector has dimension %d, want %d", exercises[i].ID, len(vectors[i]), dim)
		}
		entries[i] = repository.IndexEntry{
			ID:       exercises[i].ID,
			Vector:   vectors[i],
			Metadata: repository.MetadataFor(&exercises[i]),
			Ordinal:  i,
		}
	}

	if err := s.index.Upsert(ctx, entries...); err != nil {
		return fmt.Errorf("upsert vector index: %w", err)
	}
	return nil
}
