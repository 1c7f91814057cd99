package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/repository/contract"
	"secondbrain-be/internal/repository/specification"
	"secondbrain-be/internal/repository/unitofwork"
	"secondbrain-be/pkg/events"
	"secondbrain-be/pkg/llm"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for the postgres repositories.
// Transactions are not isolated and Rollback is a no-op.
type fakeStore struct {
	mu        sync.Mutex
	documents map[uuid.UUID]*entity.Document
	versions  map[uuid.UUID]*entity.DocumentVersion
	segments  []*entity.Segment
	refs      []*entity.ContextReference
	sources   map[uuid.UUID][]*entity.ContextSource
	details   map[uuid.UUID]retrieval.SegmentDetail
	metas     map[uuid.UUID]retrieval.SegmentMeta
	docMeta   map[uuid.UUID]retrieval.DocumentMeta
	commits   int
	failNext  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents: map[uuid.UUID]*entity.Document{},
		versions:  map[uuid.UUID]*entity.DocumentVersion{},
		sources:   map[uuid.UUID][]*entity.ContextSource{},
		details:   map[uuid.UUID]retrieval.SegmentDetail{},
		metas:     map[uuid.UUID]retrieval.SegmentMeta{},
		docMeta:   map[uuid.UUID]retrieval.DocumentMeta{},
	}
}

func (s *fakeStore) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: s}
}

// seedConversation stores a native conversation with one empty version.
func (s *fakeStore) seedConversation(cfg *entity.ChatConfig) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	meta := map[string]interface{}{}
	if cfg != nil {
		meta[entity.ChatConfigKey] = configToMap(*cfg)
	}
	now := time.Now().UTC()
	s.documents[id] = &entity.Document{
		Id:           id,
		SourceSystem: entity.NativeSourceSystem,
		Title:        "seeded",
		RawMetadata:  meta,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	vid := uuid.New()
	s.versions[vid] = &entity.DocumentVersion{Id: vid, DocumentId: id, IngestedAt: now}
	return id
}

func (s *fakeStore) messagesOf(documentId uuid.UUID) []*entity.Segment {
	var out []*entity.Segment
	for _, seg := range s.segments {
		if v, ok := s.versions[seg.DocumentVersionId]; ok && v.DocumentId == documentId {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

type fakeUow struct {
	store *fakeStore
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }

func (u *fakeUow) Commit() error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.commits++
	return nil
}

func (u *fakeUow) Rollback() error { return nil }

func (u *fakeUow) DocumentRepository() contract.DocumentRepository {
	return &fakeDocumentRepo{store: u.store}
}

func (u *fakeUow) DocumentVersionRepository() contract.DocumentVersionRepository {
	return &fakeVersionRepo{store: u.store}
}

func (u *fakeUow) SegmentRepository() contract.SegmentRepository {
	return &fakeSegmentRepo{store: u.store}
}

func (u *fakeUow) ContextReferenceRepository() contract.ContextReferenceRepository {
	return &fakeRefRepo{store: u.store}
}

type fakeDocumentRepo struct {
	store *fakeStore
}

func (r *fakeDocumentRepo) Create(ctx context.Context, document *entity.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.documents[document.Id] = document
	return nil
}

func (r *fakeDocumentRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var (
		id     uuid.UUID
		system string
	)
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			id = s.ID
		case specification.BySourceSystem:
			system = s.SourceSystem
		}
	}
	doc, ok := r.store.documents[id]
	if !ok || (system != "" && doc.SourceSystem != system) {
		return nil, nil
	}
	return doc, nil
}

func (r *fakeDocumentRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.store.documents)), nil
}

func (r *fakeDocumentRepo) ListSummaries(ctx context.Context, limit, offset int) ([]*entity.DocumentSummary, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.DocumentSummary
	for _, d := range r.store.documents {
		out = append(out, &entity.DocumentSummary{Id: d.Id, Title: d.Title, SourceSystem: d.SourceSystem})
	}
	return out, nil
}

func (r *fakeDocumentRepo) ListConversations(ctx context.Context, limit, offset int) ([]*entity.Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Conversation
	for _, d := range r.store.documents {
		if d.SourceSystem == entity.NativeSourceSystem {
			out = append(out, &entity.Conversation{Id: d.Id, Title: d.Title, MessageCount: len(r.store.messagesOf(d.Id))})
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) FindConversation(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.documents[id]
	if !ok || d.SourceSystem != entity.NativeSourceSystem {
		return nil, nil
	}
	return &entity.Conversation{Id: d.Id, Title: d.Title, MessageCount: len(r.store.messagesOf(d.Id))}, nil
}

func (r *fakeDocumentRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.documents[id]
	if !ok {
		return false, nil
	}
	d.Title = title
	d.UpdatedAt = at
	return true, nil
}

func (r *fakeDocumentRepo) MergeMetadata(ctx context.Context, id uuid.UUID, patch map[string]interface{}) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.documents[id]
	if !ok {
		return false, nil
	}
	if d.RawMetadata == nil {
		d.RawMetadata = map[string]interface{}{}
	}
	for k, v := range patch {
		d.RawMetadata[k] = v
	}
	return true, nil
}

func (r *fakeDocumentRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if d, ok := r.store.documents[id]; ok {
		d.UpdatedAt = at
	}
	return nil
}

func (r *fakeDocumentRepo) DeleteConversation(ctx context.Context, id uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d, ok := r.store.documents[id]
	if !ok || d.SourceSystem != entity.NativeSourceSystem {
		return false, nil
	}
	delete(r.store.documents, id)
	return true, nil
}

func (r *fakeDocumentRepo) Meta(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]retrieval.DocumentMeta, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := map[uuid.UUID]retrieval.DocumentMeta{}
	for _, id := range ids {
		if m, ok := r.store.docMeta[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeVersionRepo struct {
	store *fakeStore
}

func (r *fakeVersionRepo) Create(ctx context.Context, version *entity.DocumentVersion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.versions[version.Id] = version
	return nil
}

func (r *fakeVersionRepo) FindLatest(ctx context.Context, documentId uuid.UUID) (*entity.DocumentVersion, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.documents[documentId]; !ok {
		return nil, nil
	}
	var latest *entity.DocumentVersion
	for _, v := range r.store.versions {
		if v.DocumentId == documentId && (latest == nil || v.IngestedAt.After(latest.IngestedAt)) {
			latest = v
		}
	}
	return latest, nil
}

type fakeSegmentRepo struct {
	store *fakeStore
}

func (r *fakeSegmentRepo) AppendMessage(ctx context.Context, versionId uuid.UUID, role, content string, at time.Time) (*entity.Segment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.failNext; err != nil {
		r.store.failNext = nil
		return nil, err
	}
	seq := 0
	for _, seg := range r.store.segments {
		if seg.DocumentVersionId == versionId && seg.Sequence > seq {
			seq = seg.Sequence
		}
	}
	seg := &entity.Segment{
		Id:                uuid.New(),
		DocumentVersionId: versionId,
		Sequence:          seq + 1,
		SourceRole:        role,
		SegmentType:       "message",
		ContentMarkdown:   content,
		EmbeddingStatus:   "pending",
		CreatedAt:         at,
	}
	r.store.segments = append(r.store.segments, seg)
	return seg, nil
}

func (r *fakeSegmentRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Segment, error) {
	return nil, nil
}

func (r *fakeSegmentRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Segment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var version uuid.UUID
	for _, spec := range specs {
		if s, ok := spec.(specification.ByDocumentVersionID); ok {
			version = s.VersionID
		}
	}
	var out []*entity.Segment
	for _, seg := range r.store.segments {
		if seg.DocumentVersionId == version {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (r *fakeSegmentRepo) FindMessages(ctx context.Context, documentId uuid.UUID) ([]*entity.ChatMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.ChatMessage
	for _, seg := range r.store.messagesOf(documentId) {
		at := seg.CreatedAt
		out = append(out, &entity.ChatMessage{SegmentId: seg.Id, Role: seg.SourceRole, Content: seg.ContentMarkdown, CreatedAt: &at})
	}
	return out, nil
}

func (r *fakeSegmentRepo) FetchSegments(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]retrieval.SegmentDetail, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := map[uuid.UUID]retrieval.SegmentDetail{}
	for _, id := range ids {
		if d, ok := r.store.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (r *fakeSegmentRepo) FetchMeta(ctx context.Context, ids []uuid.UUID, query string) (map[uuid.UUID]retrieval.SegmentMeta, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := map[uuid.UUID]retrieval.SegmentMeta{}
	for _, id := range ids {
		if m, ok := r.store.metas[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (r *fakeSegmentRepo) ClaimPending(ctx context.Context, limit int) ([]*entity.Segment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Segment
	for _, seg := range r.store.segments {
		if len(out) == limit {
			break
		}
		if seg.EmbeddingStatus == "pending" && seg.ContentMarkdown != "" {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (r *fakeSegmentRepo) MarkReady(ctx context.Context, id uuid.UUID, embedding []float32, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, seg := range r.store.segments {
		if seg.Id == id {
			seg.EmbeddingStatus = "ready"
			seg.Embedding = embedding
			seg.EmbeddingUpdatedAt = &at
			return nil
		}
	}
	return errors.New("segment not found")
}

func (r *fakeSegmentRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, seg := range r.store.segments {
		if seg.Id == id {
			seg.EmbeddingStatus = "failed"
		}
	}
	return nil
}

type fakeRefRepo struct {
	store *fakeStore
}

func (r *fakeRefRepo) CreateBulk(ctx context.Context, refs []*entity.ContextReference) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.refs = append(r.store.refs, refs...)
	return nil
}

func (r *fakeRefRepo) FindByTarget(ctx context.Context, targetSegmentId uuid.UUID) ([]*entity.ContextSource, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.sources[targetSegmentId], nil
}

type fakeAssembler struct {
	passages []retrieval.RetrievedContext
	err      error
	calls    []retrieval.AssembleOptions
}

func (a *fakeAssembler) Assemble(ctx context.Context, query string, opts retrieval.AssembleOptions) ([]retrieval.RetrievedContext, error) {
	a.calls = append(a.calls, opts)
	return a.passages, a.err
}

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	chunks  []string
	err     error
	lastMsg []llm.Message
	lastOpt *llm.Options
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMsg = history
	f.lastOpt = llm.Apply(llm.Options{}, options...)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply, Model: f.lastOpt.Model, TokensUsed: 42}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	f.lastMsg = history
	f.lastOpt = llm.Apply(llm.Options{}, options...)
	chunks, streamErr := f.chunks, f.err
	f.mu.Unlock()

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if !llm.Send(ctx, ch, llm.StreamChunk{Content: c}) {
				return
			}
		}
		if streamErr != nil {
			llm.Send(ctx, ch, llm.StreamChunk{Err: streamErr})
		}
	}()
	return ch, nil
}

func (f *fakeLLM) DefaultModel() string { return "fake-model" }

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakeEventPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakeEventPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (q *fakeQueue) Publish(ctx context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, payload)
	return nil
}

func testChatConfig() entity.ChatConfig {
	return entity.ChatConfig{
		Model:           "test-model",
		Temperature:     0.2,
		MaxTokens:       256,
		ContextLimit:    4,
		MaxContextChars: 2000,
		WLexical:        0.5,
		WVector:         0.5,
		HistoryLimit:    10,
	}
}

type fakeRetriever struct {
	hits   []retrieval.FusedHit
	err    error
	params []retrieval.FusionParams
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string, params retrieval.FusionParams) ([]retrieval.FusedHit, error) {
	r.params = append(r.params, params)
	return r.hits, r.err
}

type fakeSearchRepo struct {
	hits    []*entity.SearchHit
	filters []entity.SearchFilter
}

func (r *fakeSearchRepo) RankLexical(ctx context.Context, query string, k int) ([]retrieval.RankedHit, error) {
	return nil, nil
}

func (r *fakeSearchRepo) RankVector(ctx context.Context, embedding []float32, k int) ([]retrieval.RankedHit, error) {
	return nil, nil
}

func (r *fakeSearchRepo) Browse(ctx context.Context, filter entity.SearchFilter) ([]*entity.SearchHit, error) {
	r.filters = append(r.filters, filter)
	return r.hits, nil
}
