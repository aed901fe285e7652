package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"review-rag-be/pkg/vectorstore"
)

// Index is a brute-force cosine index kept in process memory.
type Index struct {
	mu      sync.RWMutex
	dim     int
	records []vectorstore.Record
}

var _ vectorstore.Index = (*Index)(nil)

func NewIndex() *Index {
	return &Index{}
}

func (ix *Index) EnsureCollection(ctx context.Context, dim int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.dim == 0 {
		ix.dim = dim
		return nil
	}
	if ix.dim != dim {
		return fmt.Errorf("collection has dimension %d, got %d", ix.dim, dim)
	}
	return nil
}

func (ix *Index) Upsert(ctx context.Context, records []vectorstore.Record) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i, r := range records {
		if ix.dim != 0 && len(r.Vector) != ix.dim {
			return i, fmt.Errorf("record %s has dimension %d, want %d", r.ID, len(r.Vector), ix.dim)
		}
		ix.records = append(ix.records, r)
	}
	return len(records), nil
}

func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	hits := make([]vectorstore.ScoredDocument, 0, len(ix.records))
	for _, r := range ix.records {
		hits = append(hits, vectorstore.ScoredDocument{
			Document: r.Document,
			Score:    cosine(vector, r.Vector),
		})
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records), nil
}

func (ix *Index) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
