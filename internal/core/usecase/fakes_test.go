package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
)

var errProvider = errors.New("provider unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type indexedCall struct {
	id         string
	chunkCount int
	tokenCount int
}

type documentStoreFake struct {
	doc        *domain.Document
	getErr     error
	createErr  error
	created    []*domain.Document
	processErr error

	processingCalls []string
	indexedCalls    []indexedCall
	failedCalls     map[string]string

	infos      map[string]domain.DocumentInfo
	infoErr    error
	lexical    []domain.DocumentInfo
	lexicalErr error
}

func newDocumentStoreFake() *documentStoreFake {
	return &documentStoreFake{
		failedCalls: map[string]string{},
		infos:       map[string]domain.DocumentInfo{},
	}
}

func (f *documentStoreFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, doc)
	return nil
}

func (f *documentStoreFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *documentStoreFake) GetInfoByIDs(_ context.Context, ids []string) (map[string]domain.DocumentInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	out := make(map[string]domain.DocumentInfo, len(ids))
	for _, id := range ids {
		if info, ok := f.infos[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func (f *documentStoreFake) SearchLexical(context.Context, string, string, int) ([]domain.DocumentInfo, error) {
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return f.lexical, nil
}

func (f *documentStoreFake) MarkProcessing(_ context.Context, id string) error {
	if f.processErr != nil {
		return f.processErr
	}
	f.processingCalls = append(f.processingCalls, id)
	return nil
}

func (f *documentStoreFake) MarkIndexed(_ context.Context, id string, chunkCount, tokenCount int) error {
	f.indexedCalls = append(f.indexedCalls, indexedCall{id: id, chunkCount: chunkCount, tokenCount: tokenCount})
	return nil
}

func (f *documentStoreFake) MarkFailed(_ context.Context, id, errMessage string) error {
	f.failedCalls[id] = errMessage
	return nil
}

type passageStoreFake struct {
	mu        sync.Mutex
	inserted  []domain.Passage
	insertOrg string
	insertErr map[int]error

	matches  []domain.PassageMatch
	matchErr error

	first    []domain.Passage
	firstErr error
}

func (f *passageStoreFake) InsertPassage(_ context.Context, orgID string, passage domain.Passage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErr[passage.ChunkIndex]; err != nil {
		return err
	}
	f.insertOrg = orgID
	f.inserted = append(f.inserted, passage)
	return nil
}

func (f *passageStoreFake) Match(context.Context, []float32, int, string) ([]domain.PassageMatch, error) {
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	return f.matches, nil
}

func (f *passageStoreFake) FirstPassages(context.Context, string, int) ([]domain.Passage, error) {
	if f.firstErr != nil {
		return nil, f.firstErr
	}
	return f.first, nil
}

func (f *passageStoreFake) DeleteByDocument(context.Context, string) error { return nil }

type embedderFake struct {
	mu     sync.Mutex
	vector []float32
	err    error
	failOn map[string]bool
	texts  []string
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn[text] {
		return nil, errProvider
	}
	f.texts = append(f.texts, text)
	vector := f.vector
	if vector == nil {
		vector = []float32{0.1, 0.2, 0.3}
	}
	return vector, nil
}

func (f *embedderFake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type chunkerFake struct {
	chunks []domain.Passage
}

func (f *chunkerFake) Chunk(string) []domain.Passage             { return f.chunks }
func (f *chunkerFake) ChunkPages([]domain.Page) []domain.Passage { return f.chunks }

type queueFake struct {
	published  []string
	publishErr error
}

func (f *queueFake) PublishDocumentRegistered(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentRegistered(context.Context, func(context.Context, string) error) error {
	return nil
}

type conversationStoreFake struct {
	turns    []domain.ChatTurn
	turnsErr error
	appended []domain.ConversationMessage
}

func (f *conversationStoreFake) EnsureConversation(_ context.Context, _, conversationID, _ string) (string, error) {
	return conversationID, nil
}

func (f *conversationStoreFake) ListRecentTurns(context.Context, string, int) ([]domain.ChatTurn, error) {
	if f.turnsErr != nil {
		return nil, f.turnsErr
	}
	return f.turns, nil
}

func (f *conversationStoreFake) AppendMessage(_ context.Context, message domain.ConversationMessage) error {
	f.appended = append(f.appended, message)
	return nil
}

type organizationStoreFake struct {
	org *domain.Organization
	err error
}

func (f *organizationStoreFake) GetByID(context.Context, string) (*domain.Organization, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.org, nil
}

type completionStreamFake struct {
	increments []string
	pos        int
	closed     bool
}

func (f *completionStreamFake) Recv() (string, error) {
	if f.pos >= len(f.increments) {
		return "", io.EOF
	}
	piece := f.increments[f.pos]
	f.pos++
	return piece, nil
}

func (f *completionStreamFake) Close() error {
	f.closed = true
	return nil
}

type completionProviderFake struct {
	completion *domain.Completion
	err        error
	stream     *completionStreamFake
	lastTurns  []domain.ChatTurn
	lastOpts   domain.CompletionOptions
}

func (f *completionProviderFake) Complete(_ context.Context, turns []domain.ChatTurn, opts domain.CompletionOptions) (*domain.Completion, error) {
	f.lastTurns = turns
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

func (f *completionProviderFake) CompleteStream(_ context.Context, turns []domain.ChatTurn, opts domain.CompletionOptions) (ports.CompletionStream, error) {
	f.lastTurns = turns
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type searchServiceFake struct {
	results   []domain.SearchResult
	err       error
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (f *searchServiceFake) Search(_ context.Context, query, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	f.lastQuery = query
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *searchServiceFake) HybridSearch(context.Context, string, string, domain.HybridOptions) ([]domain.SearchResult, error) {
	return f.results, f.err
}

func (f *searchServiceFake) FindSimilar(context.Context, string, string, int) ([]domain.SearchResult, error) {
	return f.results, f.err
}
