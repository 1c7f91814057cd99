package unitofwork

import (
	"context"

	"secondbrain-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DocumentRepository() contract.DocumentRepository
	DocumentVersionRepository() contract.DocumentVersionRepository
	SegmentRepository() contract.SegmentRepository
	ContextReferenceRepository() contract.ContextReferenceRepository
}
