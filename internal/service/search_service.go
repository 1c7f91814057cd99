package service

import (
	"context"
	"time"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/pkg/metrics"
	"secondbrain-be/internal/repository/contract"
	"secondbrain-be/internal/repository/memory"
	"secondbrain-be/internal/repository/unitofwork"
	"secondbrain-be/pkg/apperror"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	searchModule = "SearchService"

	SearchKindBrowse    = "browse"
	SearchKindHybrid    = "hybrid"
	SearchKindDocuments = "documents"
)

var searchTracer = otel.Tracer("search")

type ISearchService interface {
	Browse(ctx context.Context, req *dto.BrowseSearchRequest) ([]*dto.SearchHitResponse, error)
	Hybrid(ctx context.Context, req *dto.HybridSearchRequest) ([]*dto.HybridHitResponse, error)
	Documents(ctx context.Context, req *dto.DocumentSearchRequest) ([]*dto.DocumentHitResponse, error)
}

type searchService struct {
	uowFactory unitofwork.RepositoryFactory
	searchRepo contract.SearchRepository
	retriever  retrieval.FusedRetriever
	queryStats *memory.QueryStatRepository
	logger     logger.ILogger
	fusion     retrieval.FusionParams
	aggregate  retrieval.AggregateParams
}

func NewSearchService(
	uowFactory unitofwork.RepositoryFactory,
	searchRepo contract.SearchRepository,
	retriever retrieval.FusedRetriever,
	queryStats *memory.QueryStatRepository,
	log logger.ILogger,
	fusion retrieval.FusionParams,
	aggregate retrieval.AggregateParams,
) ISearchService {
	return &searchService{
		uowFactory: uowFactory,
		searchRepo: searchRepo,
		retriever:  retriever,
		queryStats: queryStats,
		logger:     log,
		fusion:     fusion,
		aggregate:  aggregate,
	}
}

func (s *searchService) Browse(ctx context.Context, req *dto.BrowseSearchRequest) ([]*dto.SearchHitResponse, error) {
	start := time.Now()
	filter := entity.SearchFilter{
		Query:        req.Query,
		SourceSystem: req.SourceSystem,
		SourceRole:   req.SourceRole,
		Limit:        req.Limit,
		Offset:       req.Offset,
	}
	if req.DocumentId != "" {
		id, err := uuid.Parse(req.DocumentId)
		if err != nil {
			return nil, apperror.Validation("document_id must be a UUID")
		}
		filter.DocumentId = &id
	}

	hits, err := s.searchRepo.Browse(ctx, filter)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(SearchKindBrowse, "error").Inc()
		return nil, err
	}

	res := make([]*dto.SearchHitResponse, len(hits))
	for i, h := range hits {
		res[i] = &dto.SearchHitResponse{
			DocumentId:    h.DocumentId,
			DocumentTitle: h.DocumentTitle,
			SourceSystem:  h.SourceSystem,
			SegmentId:     h.SegmentId,
			Sequence:      h.Sequence,
			SourceRole:    h.SourceRole,
			Snippet:       h.Snippet,
			StartedAt:     h.StartedAt,
		}
	}

	s.record(SearchKindBrowse, req.Query, len(res), start, map[string]interface{}{
		"source_system": req.SourceSystem,
		"source_role":   req.SourceRole,
		"limit":         req.Limit,
		"offset":        req.Offset,
	})
	return res, nil
}

func (s *searchService) Hybrid(ctx context.Context, req *dto.HybridSearchRequest) ([]*dto.HybridHitResponse, error) {
	ctx, span := searchTracer.Start(ctx, "search.hybrid", trace.WithAttributes(attribute.Int("search.limit", req.Limit)))
	defer span.End()

	start := time.Now()
	params := s.fusionParams(req)
	hits, err := s.retrieve(ctx, req.Query, params)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(SearchKindHybrid, "error").Inc()
		return nil, err
	}

	page := retrieval.Paginate(hits, req.Limit, req.Offset)
	ids := make([]uuid.UUID, len(page))
	for i, h := range page {
		ids[i] = h.SegmentID
	}

	hydrateStart := time.Now()
	details, metas, err := s.hydrate(ctx, ids, req.Query)
	metrics.RetrievalStageDuration.WithLabelValues("hydrate").Observe(time.Since(hydrateStart).Seconds())
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(SearchKindHybrid, "error").Inc()
		return nil, err
	}

	res := make([]*dto.HybridHitResponse, 0, len(page))
	for i, h := range page {
		detail, ok := details[h.SegmentID]
		if !ok {
			continue
		}
		meta := metas[h.SegmentID]
		res = append(res, &dto.HybridHitResponse{
			SegmentId:     h.SegmentID,
			DocumentId:    detail.DocumentID,
			DocumentTitle: detail.DocumentTitle,
			SourceSystem:  detail.SourceSystem,
			SourceRole:    detail.Role,
			Sequence:      meta.Sequence,
			Snippet:       meta.Snippet,
			Score:         h.Score,
			Rank:          req.Offset + i + 1,
			LexicalRank:   optionalRank(h.LexicalRank),
			VectorRank:    optionalRank(h.VectorRank),
			StartedAt:     detail.StartedAt,
		})
	}

	s.record(SearchKindHybrid, req.Query, len(res), start, map[string]interface{}{
		"w_lexical": params.WLexical,
		"w_vector":  params.WVector,
		"k":         params.PoolSize,
		"k_const":   params.KConst,
		"limit":     req.Limit,
		"offset":    req.Offset,
	})
	return res, nil
}

func (s *searchService) Documents(ctx context.Context, req *dto.DocumentSearchRequest) ([]*dto.DocumentHitResponse, error) {
	ctx, span := searchTracer.Start(ctx, "search.documents")
	defer span.End()

	start := time.Now()
	fusion := s.fusionParams(&req.HybridSearchRequest)
	agg := s.aggregateParams(req)

	hits, err := s.retrieve(ctx, req.Query, fusion)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(SearchKindDocuments, "error").Inc()
		return nil, err
	}

	candidates := retrieval.Paginate(hits, agg.EffectiveSegmentLimit(), 0)
	ids := make([]uuid.UUID, len(candidates))
	for i, h := range candidates {
		ids[i] = h.SegmentID
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	segments, err := uow.SegmentRepository().FetchMeta(ctx, ids, req.Query)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(SearchKindDocuments, "error").Inc()
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{})
	var docIds []uuid.UUID
	for _, id := range ids {
		meta, ok := segments[id]
		if !ok {
			continue
		}
		if _, dup := seen[meta.DocumentID]; dup {
			continue
		}
		seen[meta.DocumentID] = struct{}{}
		docIds = append(docIds, meta.DocumentID)
	}
	documents, err := uow.DocumentRepository().Meta(ctx, docIds)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues(SearchKindDocuments, "error").Inc()
		return nil, err
	}

	aggStart := time.Now()
	matches := retrieval.Aggregate(candidates, segments, documents, agg)
	metrics.RetrievalStageDuration.WithLabelValues("aggregate").Observe(time.Since(aggStart).Seconds())

	res := make([]*dto.DocumentHitResponse, len(matches))
	for i, m := range matches {
		doc := documents[m.DocumentID]
		previews := make([]dto.SegmentPreviewResponse, len(m.TopSegments))
		for j, seg := range m.TopSegments {
			previews[j] = dto.SegmentPreviewResponse{
				SegmentId: seg.SegmentID,
				Sequence:  seg.Sequence,
				Role:      seg.Role,
				Snippet:   seg.Snippet,
				Score:     seg.Score,
				DocRank:   seg.DocRank,
			}
		}
		res[i] = &dto.DocumentHitResponse{
			DocumentId:       m.DocumentID,
			DocumentTitle:    doc.Title,
			SourceSystem:     doc.SourceSystem,
			UpdatedAt:        m.UpdatedAt,
			DocumentScore:    m.DocumentScore,
			BestSegmentScore: m.BestSegmentScore,
			TopKScore:        m.TopKScore,
			MatchCount:       m.MatchCount,
			MatchDensity:     m.MatchDensity,
			TopSegments:      previews,
		}
	}

	s.record(SearchKindDocuments, req.Query, len(res), start, map[string]interface{}{
		"w_lexical":        fusion.WLexical,
		"w_vector":         fusion.WVector,
		"k":                fusion.PoolSize,
		"doc_topk":         agg.DocTopK,
		"doc_top_segments": agg.DocTopSegments,
		"segment_limit":    agg.EffectiveSegmentLimit(),
		"limit":            agg.Limit,
		"offset":           agg.Offset,
	})
	return res, nil
}

func (s *searchService) retrieve(ctx context.Context, query string, params retrieval.FusionParams) ([]retrieval.FusedHit, error) {
	start := time.Now()
	hits, err := s.retriever.Retrieve(ctx, query, params)
	metrics.RetrievalStageDuration.WithLabelValues("fuse").Observe(time.Since(start).Seconds())
	return hits, err
}

// hydrate loads display fields and snippets for a page of fused hits.
func (s *searchService) hydrate(ctx context.Context, ids []uuid.UUID, query string) (map[uuid.UUID]retrieval.SegmentDetail, map[uuid.UUID]retrieval.SegmentMeta, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]retrieval.SegmentDetail{}, map[uuid.UUID]retrieval.SegmentMeta{}, nil
	}

	var (
		details map[uuid.UUID]retrieval.SegmentDetail
		metas   map[uuid.UUID]retrieval.SegmentMeta
	)
	segments := s.uowFactory.NewUnitOfWork(ctx).SegmentRepository()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = segments.FetchSegments(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		metas, err = segments.FetchMeta(gctx, ids, query)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return details, metas, nil
}

func (s *searchService) fusionParams(req *dto.HybridSearchRequest) retrieval.FusionParams {
	params := s.fusion
	if req.WLexical != nil {
		params.WLexical = *req.WLexical
	}
	if req.WVector != nil {
		params.WVector = *req.WVector
	}
	if req.K > 0 {
		params.PoolSize = req.K
	}
	if req.KConst > 0 {
		params.KConst = req.KConst
	}
	return params
}

func (s *searchService) aggregateParams(req *dto.DocumentSearchRequest) retrieval.AggregateParams {
	params := s.aggregate
	if req.Limit > 0 {
		params.Limit = req.Limit
	}
	params.Offset = req.Offset
	if req.DocTopK > 0 {
		params.DocTopK = req.DocTopK
	}
	params.DocTopSegments = req.DocTopSegments
	params.SegmentLimit = req.SegmentLimit
	if req.WBest != nil {
		params.WBest = *req.WBest
	}
	if req.WTopK != nil {
		params.WTopK = *req.WTopK
	}
	if req.WDensity != nil {
		params.WDensity = *req.WDensity
	}
	return params
}

func (s *searchService) record(kind, query string, results int, start time.Time, params map[string]interface{}) {
	elapsed := time.Since(start)
	metrics.SearchQueriesTotal.WithLabelValues(kind, "ok").Inc()
	if s.queryStats != nil {
		s.queryStats.Record(entity.QueryStat{
			Kind:       kind,
			Query:      query,
			Results:    results,
			DurationMs: float64(elapsed.Microseconds()) / 1000,
			Params:     params,
			At:         time.Now().UTC(),
		})
	}
	s.logger.Debug(searchModule, "Search served", map[string]interface{}{
		"kind":        kind,
		"results":     results,
		"duration_ms": elapsed.Milliseconds(),
	})
}

func optionalRank(rank int) *int {
	if rank == 0 {
		return nil
	}
	return &rank
}
