package inbox

import (
	"context"
	"fmt"

	"github.com/maypok86/otter"

	"nest/pkg/metrics"
)

// CachedBinRepository remembers bins that exist. Bins are never updated or
// deleted, so a cached hit is always current. Misses are not cached: a bin
// created a moment ago must be visible to the next ingest.
type CachedBinRepository struct {
	repo  BinRepository
	cache otter.Cache[string, Bin]
}

func NewCachedBinRepository(repo BinRepository, capacity int) (*CachedBinRepository, error) {
	builder, err := otter.NewBuilder[string, Bin](capacity)
	if err != nil {
		return nil, fmt.Errorf("bin cache capacity %d: %w", capacity, err)
	}
	cache, err := builder.Cost(func(_ string, _ Bin) uint32 { return 1 }).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build bin cache: %w", err)
	}
	return &CachedBinRepository{repo: repo, cache: cache}, nil
}

func (r *CachedBinRepository) CreateBin(ctx context.Context, name *string) (*Bin, error) {
	bin, err := r.repo.CreateBin(ctx, name)
	if err != nil {
		return nil, err
	}
	r.cache.Set(bin.ID, *bin)
	return bin, nil
}

func (r *CachedBinRepository) GetBin(ctx context.Context, id string) (*Bin, error) {
	if bin, ok := r.cache.Get(id); ok {
		metrics.IncBinCache("hit")
		return &bin, nil
	}
	metrics.IncBinCache("miss")

	bin, err := r.repo.GetBin(ctx, id)
	if err != nil || bin == nil {
		return bin, err
	}
	r.cache.Set(bin.ID, *bin)
	return bin, nil
}

func (r *CachedBinRepository) ListBins(ctx context.Context) ([]Bin, error) {
	return r.repo.ListBins(ctx)
}

func (r *CachedBinRepository) Close() {
	r.cache.Close()
}
