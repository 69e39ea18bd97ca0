package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
	"github.com/alphaintel/knowledge-core/internal/observability/metrics"
)

// chatFallbackMessage is returned with a 200 when the completion provider
// fails after retrieval succeeded. Chat degrades instead of erroring.
const chatFallbackMessage = "I apologize, but I could not generate a response."

type Router struct {
	registrar     ports.DocumentRegistrar
	search        ports.SearchService
	chat          ports.ChatService
	documents     ports.DocumentStore
	conversations ports.ConversationStore
	metrics       *metrics.HTTPServerMetrics
	logger        *slog.Logger
	service       string
}

func NewRouter(
	registrar ports.DocumentRegistrar,
	search ports.SearchService,
	chat ports.ChatService,
	documents ports.DocumentStore,
	conversations ports.ConversationStore,
	serverMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	return &Router{
		registrar:     registrar,
		search:        search,
		chat:          chat,
		documents:     documents,
		conversations: conversations,
		metrics:       serverMetrics,
		logger:        logger,
		service:       "api",
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/documents", rt.registerDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/search", rt.semanticSearch)
	mux.HandleFunc("/v1/search/hybrid", rt.hybridSearch)
	mux.HandleFunc("/v1/search/similar", rt.similarDocuments)
	mux.HandleFunc("/v1/chat", rt.chatTurn)
	mux.HandleFunc("/v1/chat/stream", rt.chatStream)

	handler := rt.metrics.Middleware(rt.service, mux)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) registerDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var input domain.RegisterDocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.registrar.Register(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) semanticSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query          string  `json:"query"`
		OrganizationID string  `json:"organization_id"`
		Limit          int     `json:"limit"`
		Threshold      float64 `json:"threshold"`
		DocumentType   string  `json:"document_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" || req.OrganizationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query and organization_id are required"})
		return
	}

	results, err := rt.search.Search(r.Context(), req.Query, req.OrganizationID, domain.SearchOptions{
		Limit:        req.Limit,
		Threshold:    req.Threshold,
		DocumentType: req.DocumentType,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordSearch(rt.service, "semantic", len(results))
	writeJSON(w, http.StatusOK, searchResponse(results))
}

func (rt *Router) hybridSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query          string  `json:"query"`
		OrganizationID string  `json:"organization_id"`
		Limit          int     `json:"limit"`
		Threshold      float64 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" || req.OrganizationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query and organization_id are required"})
		return
	}

	results, err := rt.search.HybridSearch(r.Context(), req.Query, req.OrganizationID, domain.HybridOptions{
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordSearch(rt.service, "hybrid", len(results))
	writeJSON(w, http.StatusOK, searchResponse(results))
}

func (rt *Router) similarDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		DocumentID     string `json:"document_id"`
		OrganizationID string `json:"organization_id"`
		Limit          int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.DocumentID == "" || req.OrganizationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_id and organization_id are required"})
		return
	}

	results, err := rt.search.FindSimilar(r.Context(), req.DocumentID, req.OrganizationID, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordSearch(rt.service, "similar", len(results))
	writeJSON(w, http.StatusOK, searchResponse(results))
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	OrganizationID string `json:"organization_id"`
	Model          string `json:"model"`
	SearchLimit    int    `json:"search_limit"`
}

func (rt *Router) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if strings.TrimSpace(req.Message) == "" || req.OrganizationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message and organization_id are required"})
		return req, false
	}
	return req, true
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeChatRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	conversationID, err := rt.conversations.EnsureConversation(ctx, req.OrganizationID, req.ConversationID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.appendMessage(ctx, domain.ConversationMessage{
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        req.Message,
	})

	start := time.Now()
	response, err := rt.chat.Answer(ctx, req.Message, conversationID, req.OrganizationID, domain.ChatOptions{
		Model:       req.Model,
		SearchLimit: req.SearchLimit,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			writeError(w, err)
			return
		}
		rt.logger.Error("chat_turn_failed",
			"conversation_id", conversationID,
			"error", err,
		)
		rt.metrics.RecordChatFallback(rt.service, "chat")
		response = &domain.ChatResponse{
			Content:   chatFallbackMessage,
			Citations: []domain.Citation{},
			Model:     req.Model,
		}
	}

	rt.appendMessage(ctx, domain.ConversationMessage{
		ConversationID:   conversationID,
		Role:             domain.RoleAssistant,
		Content:          response.Content,
		Model:            response.Model,
		PromptTokens:     response.PromptTokens,
		CompletionTokens: response.CompletionTokens,
		Citations:        response.Citations,
	})

	rt.metrics.RecordChatTurn(rt.service, "chat", len(response.Citations), time.Since(start))
	rt.metrics.RecordTokenUsage(rt.service, "chat", response.Model, response.PromptTokens, response.CompletionTokens)

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":   conversationID,
		"content":           response.Content,
		"citations":         response.Citations,
		"model":             response.Model,
		"prompt_tokens":     response.PromptTokens,
		"completion_tokens": response.CompletionTokens,
	})
}

func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeChatRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	conversationID, err := rt.conversations.EnsureConversation(ctx, req.OrganizationID, req.ConversationID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.appendMessage(ctx, domain.ConversationMessage{
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        req.Message,
	})

	start := time.Now()
	chatStream, err := rt.chat.AnswerStream(ctx, req.Message, conversationID, req.OrganizationID, domain.ChatOptions{
		Model:       req.Model,
		SearchLimit: req.SearchLimit,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			writeError(w, err)
			return
		}
		rt.logger.Error("chat_stream_failed",
			"conversation_id", conversationID,
			"error", err,
		)
		rt.metrics.RecordChatFallback(rt.service, "chat_stream")
		rt.streamFallback(ctx, w, conversationID, req.Model)
		return
	}
	defer chatStream.Stream.Close()

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := sse.event("citations", map[string]any{
		"conversation_id": conversationID,
		"model":           chatStream.Model,
		"citations":       chatStream.Citations,
	}); err != nil {
		return
	}

	var content strings.Builder
	for {
		token, recvErr := chatStream.Stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			rt.logger.Error("chat_stream_interrupted",
				"conversation_id", conversationID,
				"error", recvErr,
			)
			break
		}
		content.WriteString(token)
		if err := sse.data(map[string]string{"content": token}); err != nil {
			return
		}
	}
	_ = sse.done()

	rt.appendMessage(ctx, domain.ConversationMessage{
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        content.String(),
		Model:          chatStream.Model,
		Citations:      chatStream.Citations,
	})
	rt.metrics.RecordChatTurn(rt.service, "chat_stream", len(chatStream.Citations), time.Since(start))
}

// streamFallback degrades a failed stream into a short, well-formed SSE
// exchange so clients never have to special-case provider outages.
func (rt *Router) streamFallback(ctx context.Context, w http.ResponseWriter, conversationID, model string) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = sse.event("citations", map[string]any{
		"conversation_id": conversationID,
		"model":           model,
		"citations":       []domain.Citation{},
	})
	_ = sse.data(map[string]string{"content": chatFallbackMessage})
	_ = sse.done()

	rt.appendMessage(ctx, domain.ConversationMessage{
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        chatFallbackMessage,
		Model:          model,
	})
}

// appendMessage persists a turn. Persistence failures degrade to a log
// line; the chat exchange itself already succeeded or failed on its own.
func (rt *Router) appendMessage(ctx context.Context, message domain.ConversationMessage) {
	if err := rt.conversations.AppendMessage(ctx, message); err != nil {
		rt.logger.Error("append_message_failed",
			"conversation_id", message.ConversationID,
			"role", message.Role,
			"error", err,
		)
	}
}

func searchResponse(results []domain.SearchResult) map[string]any {
	if results == nil {
		results = []domain.SearchResult{}
	}
	return map[string]any{
		"results": results,
		"count":   len(results),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
