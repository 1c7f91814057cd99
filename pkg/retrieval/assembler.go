package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SegmentDetail is the untruncated view of a candidate segment.
type SegmentDetail struct {
	SegmentID     uuid.UUID
	DocumentID    uuid.UUID
	DocumentTitle string
	SourceSystem  string
	Role          string
	Content       string
	StartedAt     *time.Time
}

type SegmentFetcher interface {
	FetchSegments(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]SegmentDetail, error)
}

type FusedRetriever interface {
	Retrieve(ctx context.Context, query string, params FusionParams) ([]FusedHit, error)
}

// RetrievedContext is one passage handed to the generator. Rank is the
// 1-based position in the fused list and Score the fused score; both are kept
// for provenance even though passages are presented chronologically.
type RetrievedContext struct {
	SegmentID     uuid.UUID
	DocumentID    uuid.UUID
	DocumentTitle string
	SourceSystem  string
	SourceRole    string
	Content       string
	Score         float64
	Rank          int
	StartedAt     *time.Time
}

type AssembleOptions struct {
	Limit           int
	MaxContextChars int
	Fusion          FusionParams
	// ExcludeDocumentID drops every passage of that document. uuid.Nil disables.
	ExcludeDocumentID uuid.UUID
}

// PoolMultiplier widens the fused pool so exclusion does not starve the result.
const PoolMultiplier = 3

type ContextAssembler struct {
	retriever FusedRetriever
	fetcher   SegmentFetcher
}

func NewContextAssembler(retriever FusedRetriever, fetcher SegmentFetcher) *ContextAssembler {
	return &ContextAssembler{
		retriever: retriever,
		fetcher:   fetcher,
	}
}

func (a *ContextAssembler) Assemble(ctx context.Context, query string, opts AssembleOptions) ([]RetrievedContext, error) {
	if opts.Limit <= 0 || strings.TrimSpace(query) == "" {
		return []RetrievedContext{}, nil
	}

	hits, err := a.retriever.Retrieve(ctx, query, opts.Fusion)
	if err != nil {
		return nil, err
	}
	hits = Paginate(hits, opts.Limit*PoolMultiplier, 0)
	if len(hits) == 0 {
		return []RetrievedContext{}, nil
	}

	ids := make([]uuid.UUID, len(hits))
	for i, hit := range hits {
		ids[i] = hit.SegmentID
	}
	details, err := a.fetcher.FetchSegments(ctx, ids)
	if err != nil {
		return nil, err
	}

	return SelectPassages(hits, details, opts), nil
}

// SelectPassages walks hits in fused order and applies exclusion, the passage
// limit and the character budget, then orders the accepted passages by
// timestamp. The first accepted passage is kept even when it alone exceeds
// MaxContextChars. MaxContextChars <= 0 disables the budget.
func SelectPassages(hits []FusedHit, details map[uuid.UUID]SegmentDetail, opts AssembleOptions) []RetrievedContext {
	selected := make([]RetrievedContext, 0, opts.Limit)
	total := 0

	for i, hit := range hits {
		detail, ok := details[hit.SegmentID]
		if !ok {
			continue
		}
		if opts.ExcludeDocumentID != uuid.Nil && detail.DocumentID == opts.ExcludeDocumentID {
			continue
		}
		if len(selected) >= opts.Limit {
			break
		}

		length := utf8.RuneCountInString(detail.Content)
		if opts.MaxContextChars > 0 && total+length > opts.MaxContextChars && len(selected) > 0 {
			break
		}

		selected = append(selected, RetrievedContext{
			SegmentID:     hit.SegmentID,
			DocumentID:    detail.DocumentID,
			DocumentTitle: detail.DocumentTitle,
			SourceSystem:  detail.SourceSystem,
			SourceRole:    detail.Role,
			Content:       detail.Content,
			Score:         hit.Score,
			Rank:          i + 1,
			StartedAt:     detail.StartedAt,
		})
		total += length
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return timestampOf(selected[i]).Before(timestampOf(selected[j]))
	})
	return selected
}

// TotalChars sums passage lengths in code points.
func TotalChars(passages []RetrievedContext) int {
	total := 0
	for _, p := range passages {
		total += utf8.RuneCountInString(p.Content)
	}
	return total
}

func timestampOf(c RetrievedContext) time.Time {
	if c.StartedAt == nil {
		return time.Time{}
	}
	return *c.StartedAt
}
