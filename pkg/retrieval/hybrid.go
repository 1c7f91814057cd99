package retrieval

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

type LexicalRanker interface {
	RankLexical(ctx context.Context, query string, k int) ([]RankedHit, error)
}

type VectorRanker interface {
	RankVector(ctx context.Context, embedding []float32, k int) ([]RankedHit, error)
}

// QueryEmbedder turns query text into a vector. The embedding cache satisfies it.
type QueryEmbedder interface {
	GetOrCompute(ctx context.Context, model, text string) ([]float32, error)
}

// HybridRetriever queries both rankers concurrently and fuses their lists.
type HybridRetriever struct {
	lexical  LexicalRanker
	vector   VectorRanker
	embedder QueryEmbedder
	model    string
}

func NewHybridRetriever(lexical LexicalRanker, vector VectorRanker, embedder QueryEmbedder, model string) *HybridRetriever {
	return &HybridRetriever{
		lexical:  lexical,
		vector:   vector,
		embedder: embedder,
		model:    model,
	}
}

// Retrieve returns the complete fused ranking for query. Params are validated
// before any ranker is called. A blank query yields an empty ranking.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, params FusionParams) ([]FusedHit, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return []FusedHit{}, nil
	}

	var lexicalHits, vectorHits []RankedHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.lexical.RankLexical(gctx, query, params.PoolSize)
		if err != nil {
			return err
		}
		lexicalHits = hits
		return nil
	})
	g.Go(func() error {
		embedding, err := r.embedder.GetOrCompute(gctx, r.model, query)
		if err != nil {
			return err
		}
		hits, err := r.vector.RankVector(gctx, embedding, params.PoolSize)
		if err != nil {
			return err
		}
		vectorHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Fuse(lexicalHits, vectorHits, params), nil
}
