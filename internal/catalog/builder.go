package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/huyhandes/tsnuget/internal/nuget"
	"github.com/huyhandes/tsnuget/internal/thunderstore"
)

// Upstream is the part of the upstream client the builder needs.
type Upstream interface {
	ListCommunities(ctx context.Context) ([]string, error)
	ListPackages(ctx context.Context, community string) ([]thunderstore.Package, error)
}

// Builder crawls the upstream and produces complete snapshots.
type Builder struct {
	upstream    Upstream
	urls        nuget.URLs
	concurrency int
}

func NewBuilder(upstream Upstream, baseURL string, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Builder{
		upstream:    upstream,
		urls:        nuget.URLs{BaseURL: baseURL},
		concurrency: concurrency,
	}
}

// Build discovers every community, fetches their package lists concurrently
// and merges them into a snapshot. Any fetch failure fails the whole build.
// When a package appears in several communities the first community in
// discovery order wins and its version list is kept as is.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	communities, err := b.upstream.ListCommunities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}

	lists := make([][]thunderstore.Package, len(communities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, community := range communities {
		g.Go(func() error {
			packages, err := b.upstream.ListPackages(gctx, community)
			if err != nil {
				return fmt.Errorf("failed to list packages of %s: %w", community, err)
			}
			lists[i] = packages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, list := range lists {
		total += len(list)
	}

	index := newIndex(total)
	var duplicates, skipped int
	for i, list := range lists {
		for _, pkg := range list {
			if _, exists := index.Get(pkg.FullName); exists {
				duplicates++
				continue
			}

			record, err := project(b.urls, pkg)
			if err != nil {
				skipped++
				if errors.Is(err, ErrInvalidName) {
					log.Warn().Err(err).Str("community", communities[i]).Msg("Skipping package with invalid name")
				} else {
					log.Debug().Err(err).Str("package", pkg.FullName).Msg("Skipping package")
				}
				continue
			}
			index.insert(record)
		}
	}

	snapshot, err := newSnapshot(index)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("communities", len(communities)).
		Int("packages", index.Len()).
		Int("duplicates", duplicates).
		Int("skipped", skipped).
		Int("payload_bytes", len(snapshot.allPackagesPayload)).
		Dur("duration", time.Since(start)).
		Msg("Catalog built")

	return snapshot, nil
}
