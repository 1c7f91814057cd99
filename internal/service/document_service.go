package service

import (
	"context"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/repository/specification"
	"secondbrain-be/internal/repository/unitofwork"
	"secondbrain-be/pkg/apperror"

	"github.com/google/uuid"
)

type IDocumentService interface {
	List(ctx context.Context, limit, offset int) ([]*dto.DocumentSummaryResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.DocumentViewResponse, error)
}

type documentService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewDocumentService(uowFactory unitofwork.RepositoryFactory) IDocumentService {
	return &documentService{uowFactory: uowFactory}
}

func (s *documentService) List(ctx context.Context, limit, offset int) ([]*dto.DocumentSummaryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	summaries, err := uow.DocumentRepository().ListSummaries(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DocumentSummaryResponse, len(summaries))
	for i, d := range summaries {
		res[i] = &dto.DocumentSummaryResponse{
			Id:           d.Id,
			Title:        d.Title,
			SourceSystem: d.SourceSystem,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
			SegmentCount: d.SegmentCount,
			CharCount:    d.CharCount,
		}
	}
	return res, nil
}

func (s *documentService) Show(ctx context.Context, id uuid.UUID) (*dto.DocumentViewResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NotFound("Document %s not found", id)
	}

	version, err := uow.DocumentVersionRepository().FindLatest(ctx, id)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, apperror.NotFound("Document %s has no versions", id)
	}

	segments, err := uow.SegmentRepository().FindAll(ctx,
		specification.ByDocumentVersionID{VersionID: version.Id},
		specification.SegmentOrder{},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.DocumentViewResponse{
		Id:           doc.Id,
		SourceSystem: doc.SourceSystem,
		ExternalId:   doc.ExternalId,
		Title:        doc.Title,
		Summary:      doc.Summary,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		RawMetadata:  doc.RawMetadata,
		Version: dto.DocumentVersionResponse{
			Id:         version.Id,
			IngestedAt: version.IngestedAt,
			SourcePath: version.SourcePath,
			Checksum:   version.Checksum,
		},
		Segments: make([]dto.SegmentResponse, len(segments)),
	}
	for i, seg := range segments {
		res.Segments[i] = dto.SegmentResponse{
			Id:              seg.Id,
			ParentSegmentId: seg.ParentSegmentId,
			Sequence:        seg.Sequence,
			SourceRole:      seg.SourceRole,
			SegmentType:     seg.SegmentType,
			ContentMarkdown: seg.ContentMarkdown,
			StartedAt:       seg.StartedAt,
			EndedAt:         seg.EndedAt,
			EmbeddingStatus: seg.EmbeddingStatus,
			IsNoise:         seg.IsNoise,
		}
	}
	return res, nil
}
