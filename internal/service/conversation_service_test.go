package service

import (
	"context"
	"testing"
	"time"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/repository/memory"
	"secondbrain-be/pkg/apperror"
	"secondbrain-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationFixture() (*fakeStore, *fakeEventPublisher, IConversationService) {
	store := newFakeStore()
	pub := &fakeEventPublisher{}
	svc := NewConversationService(store, memory.NewChatConfigRepository(time.Minute), pub, logger.NewNopLogger(), testChatConfig())
	return store, pub, svc
}

func TestConversationCreate_StoresDefaults(t *testing.T) {
	store, pub, svc := newConversationFixture()

	res, err := svc.Create(context.Background(), &dto.CreateConversationRequest{Title: "Ideas"})
	require.NoError(t, err)
	assert.Equal(t, "Ideas", res.Title)

	doc := store.documents[res.Id]
	require.NotNil(t, doc)
	assert.Equal(t, entity.NativeSourceSystem, doc.SourceSystem)
	assert.Contains(t, doc.ExternalId, "2brain-")
	assert.Contains(t, doc.RawMetadata, entity.ChatConfigKey)
	assert.Len(t, store.versions, 1)
	assert.Equal(t, 1, store.commits)
	assert.Equal(t, []string{events.ConversationCreated}, pub.types())

	cfg, err := svc.GetConfig(context.Background(), res.Id)
	require.NoError(t, err)
	assert.Equal(t, "test-model", cfg.Model)
}

func TestConversationCreate_RejectsInvalidConfig(t *testing.T) {
	store, _, svc := newConversationFixture()

	bad := ConfigToDto(testChatConfig())
	bad.Temperature = 3

	_, err := svc.Create(context.Background(), &dto.CreateConversationRequest{Title: "x", Config: bad})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Empty(t, store.documents)
}

func TestConversationUpdate_ReplacesConfigAndInvalidatesCache(t *testing.T) {
	store, pub, svc := newConversationFixture()
	id := store.seedConversation(nil)

	// warm the cache with defaults
	before, err := svc.ResolveConfig(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0.5, before.WLexical)

	next := ConfigToDto(testChatConfig())
	next.WLexical = 0.9
	title := "Renamed"
	require.NoError(t, svc.Update(context.Background(), id, &dto.UpdateConversationRequest{Title: &title, Config: next}))

	after, err := svc.ResolveConfig(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0.9, after.WLexical)
	assert.Equal(t, "Renamed", store.documents[id].Title)
	assert.Contains(t, pub.types(), events.ConversationConfigUpdated)
}

func TestConversationUpdate_UnknownId(t *testing.T) {
	_, _, svc := newConversationFixture()
	title := "x"
	err := svc.Update(context.Background(), uuid.New(), &dto.UpdateConversationRequest{Title: &title})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestConversationResolveConfig_LegacyWeightKeys(t *testing.T) {
	store, _, svc := newConversationFixture()
	id := store.seedConversation(nil)
	store.documents[id].RawMetadata[entity.ChatConfigKey] = map[string]interface{}{
		"model":  "legacy-model",
		"w_bm25": 0.7,
		"w_vec":  0.3,
	}

	cfg, err := svc.ResolveConfig(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "legacy-model", cfg.Model)
	assert.Equal(t, 0.7, cfg.WLexical)
	assert.Equal(t, 0.3, cfg.WVector)
	// keys absent from the stored row keep their defaults
	assert.Equal(t, 256, cfg.MaxTokens)
}

func TestConversationDelete(t *testing.T) {
	store, pub, svc := newConversationFixture()
	id := store.seedConversation(nil)

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.Contains(t, pub.types(), events.ConversationDeleted)

	err := svc.Delete(context.Background(), id)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestConversationShow_ImportedDocumentIsNotAConversation(t *testing.T) {
	store, _, svc := newConversationFixture()
	id := store.seedConversation(nil)
	store.documents[id].SourceSystem = "chatgpt"

	_, err := svc.Show(context.Background(), id)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = svc.Messages(context.Background(), id)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestConversationSegmentContext(t *testing.T) {
	store, _, svc := newConversationFixture()
	target := uuid.New()
	store.sources[target] = []*entity.ContextSource{
		{SegmentId: uuid.New(), DocumentTitle: "older", RelevanceScore: 0.02, Rank: 1, SearchMethod: "hybrid", SearchQuery: "q"},
	}

	res, err := svc.SegmentContext(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "older", res[0].DocumentTitle)
	assert.Equal(t, 1, res[0].Rank)

	empty, err := svc.SegmentContext(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConversationHandleConfigEvent_DropsCachedConfig(t *testing.T) {
	store, _, svc := newConversationFixture()
	id := store.seedConversation(nil)

	_, err := svc.ResolveConfig(context.Background(), id)
	require.NoError(t, err)

	// another instance rewrote the row
	store.documents[id].RawMetadata[entity.ChatConfigKey] = map[string]interface{}{"model": "remote-model"}

	cached, err := svc.ResolveConfig(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "test-model", cached.Model)

	evt := events.New(events.ConversationConfigUpdated, map[string]interface{}{"conversation_id": id.String()})
	require.NoError(t, svc.HandleConfigEvent(context.Background(), evt))

	fresh, err := svc.ResolveConfig(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "remote-model", fresh.Model)

	assert.NoError(t, svc.HandleConfigEvent(context.Background(), events.New(events.ConversationDeleted, nil)))
}
