package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"document-portal/internal/ai"
	"document-portal/internal/logger"
	"document-portal/internal/telemetry"
	"document-portal/models"
)

const (
	// NoAnswerSentinel replaces an empty completion, in the reply and in history.
	NoAnswerSentinel = "no answer generated"

	EngineName = "LCEL-RAG"
)

type ConversationDeps struct {
	Generator ai.Generator
	Prompts   *ai.PromptRegistry
	History   HistoryStore
	Store     *IndexStore
	K         int
	Metrics   *telemetry.Metrics
}

// ConversationEngine answers questions against a session's index, keeping
// the session's chat history. Turns of one session run one at a time;
// different sessions proceed independently.
type ConversationEngine struct {
	generator ai.Generator
	prompts   *ai.PromptRegistry
	history   HistoryStore
	store     *IndexStore
	k         int
	metrics   *telemetry.Metrics

	mu       sync.Mutex
	sessions map[string]*conversation
}

type conversation struct {
	turn sync.Mutex

	mu        sync.RWMutex
	retriever Retriever
}

func NewConversationEngine(deps ConversationDeps) *ConversationEngine {
	k := deps.K
	if k <= 0 {
		k = DefaultRetrieverK
	}
	return &ConversationEngine{
		generator: deps.Generator,
		prompts:   deps.Prompts,
		history:   deps.History,
		store:     deps.Store,
		k:         k,
		metrics:   deps.Metrics,
		sessions:  make(map[string]*conversation),
	}
}

func (e *ConversationEngine) session(sessionID string) (*conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	return s, ok
}

// HasSession reports whether sessionID has a retriever.
func (e *ConversationEngine) HasSession(sessionID string) bool {
	_, ok := e.session(sessionID)
	return ok
}

// Initialize makes sessionID ready to answer with retriever. An already
// initialized session gets the new retriever and keeps its history.
func (e *ConversationEngine) Initialize(sessionID string, retriever Retriever) {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	if !ok {
		s = &conversation{}
		e.sessions[sessionID] = s
	}
	e.mu.Unlock()

	s.mu.Lock()
	s.retriever = retriever
	s.mu.Unlock()
}

// InitializeFromDir opens the index in dir for sessionID. k <= 0 uses the
// engine default.
func (e *ConversationEngine) InitializeFromDir(ctx context.Context, sessionID, dir string, k int) error {
	r, err := e.openRetriever(ctx, dir, k)
	if err != nil {
		return fmt.Errorf("initialize session %s: %w", sessionID, err)
	}
	e.Initialize(sessionID, r)
	logger.Info("Session initialized", "session_id", sessionID, "dir", dir, "k", r.K())
	return nil
}

// Reload points an initialized session at the index in dir. History is kept.
func (e *ConversationEngine) Reload(ctx context.Context, sessionID, dir string, k int) error {
	s, ok := e.session(sessionID)
	if !ok {
		return fmt.Errorf("reload session %s: %w", sessionID, models.ErrSessionNotInitialized)
	}
	r, err := e.openRetriever(ctx, dir, k)
	if err != nil {
		return fmt.Errorf("reload session %s: %w", sessionID, err)
	}

	s.mu.Lock()
	s.retriever = r
	s.mu.Unlock()
	return nil
}

func (e *ConversationEngine) openRetriever(ctx context.Context, dir string, k int) (*IndexRetriever, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := e.store.Load(dir)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = e.k
	}
	return NewRetriever(h, k), nil
}

// Query answers input for sessionID and records both turns in history.
// If generation fails the user turn stays recorded and no answer is added.
func (e *ConversationEngine) Query(ctx context.Context, sessionID, input string) (string, error) {
	answer, err := e.query(ctx, sessionID, input)
	switch {
	case err != nil:
		e.metrics.RecordQuery("error")
	case answer == NoAnswerSentinel:
		e.metrics.RecordQuery("no_answer")
	default:
		e.metrics.RecordQuery("success")
	}
	return answer, err
}

func (e *ConversationEngine) query(ctx context.Context, sessionID, input string) (string, error) {
	s, ok := e.session(sessionID)
	if !ok {
		return "", fmt.Errorf("query for session %s: %w", sessionID, models.ErrSessionNotInitialized)
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	history, err := e.history.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("query for session %s: %w", sessionID, err)
	}
	if err := e.history.Append(ctx, sessionID, models.UserMessage(input)); err != nil {
		return "", fmt.Errorf("query for session %s: %w", sessionID, err)
	}

	question := input
	if len(history) > 0 {
		question, err = e.condense(ctx, history, input)
		if err != nil {
			return "", fmt.Errorf("condense question for session %s: %w", sessionID, err)
		}
	}

	s.mu.RLock()
	retriever := s.retriever
	s.mu.RUnlock()

	hits, err := retriever.Retrieve(ctx, question)
	if err != nil {
		return "", fmt.Errorf("retrieve for session %s: %w", sessionID, err)
	}

	system, err := e.prompts.Render(ai.PromptContextQA, map[string]any{"Context": formatContext(hits)})
	if err != nil {
		return "", fmt.Errorf("query for session %s: %w", sessionID, err)
	}
	answer, err := e.generator.Generate(ctx, conversationMessages(system, history, input))
	if err != nil {
		return "", fmt.Errorf("generate answer for session %s: %w", sessionID, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = NoAnswerSentinel
	}
	if err := e.history.Append(ctx, sessionID, models.AssistantMessage(answer)); err != nil {
		return "", fmt.Errorf("query for session %s: %w", sessionID, err)
	}

	logger.Debug("Query answered", "session_id", sessionID, "hits", len(hits), "condensed", question != input)
	return answer, nil
}

// condense rewrites a follow-up into a standalone question.
func (e *ConversationEngine) condense(ctx context.Context, history []models.ChatMessage, input string) (string, error) {
	system, err := e.prompts.Render(ai.PromptContextualizeQuestion, nil)
	if err != nil {
		return "", err
	}
	question, err := e.generator.Generate(ctx, conversationMessages(system, history, input))
	if err != nil {
		return "", err
	}
	if question = strings.TrimSpace(question); question == "" {
		return input, nil
	}
	return question, nil
}

func conversationMessages(system string, history []models.ChatMessage, input string) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, models.SystemMessage(system))
	msgs = append(msgs, history...)
	return append(msgs, models.UserMessage(input))
}

func formatContext(hits []models.ScoredChunk) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n\n")
}
