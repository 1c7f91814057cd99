package service

import (
	"context"
	"testing"

	"secondbrain-be/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentShow_LatestVersionWithSegments(t *testing.T) {
	store := newFakeStore()
	seedPending(store, "first", "second")
	var docId uuid.UUID
	for id := range store.documents {
		docId = id
	}

	svc := NewDocumentService(store)
	view, err := svc.Show(context.Background(), docId)
	require.NoError(t, err)
	require.Len(t, view.Segments, 2)
	assert.Equal(t, "first", view.Segments[0].ContentMarkdown)
	assert.Equal(t, "pending", view.Segments[1].EmbeddingStatus)
}

func TestDocumentShow_NotFound(t *testing.T) {
	svc := NewDocumentService(newFakeStore())
	_, err := svc.Show(context.Background(), uuid.New())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestDocumentList(t *testing.T) {
	store := newFakeStore()
	store.seedConversation(nil)

	res, err := NewDocumentService(store).List(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}
