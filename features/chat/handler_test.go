package chat_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coursemind/features/chat"
	"coursemind/features/session"
	"coursemind/internal/adapter/gemini"
	"coursemind/internal/retrieval"
	"coursemind/internal/settings"
)

type MockSessionAdmin struct {
	mock.Mock
}

func (m *MockSessionAdmin) List(ctx context.Context, userID string) ([]session.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]session.Session), args.Error(1)
}

func (m *MockSessionAdmin) History(ctx context.Context, sessionID string, limit int) ([]session.Turn, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]session.Turn), args.Error(1)
}

func (m *MockSessionAdmin) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockSessionAdmin) ClearHistory(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func newChatMux(h *chat.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/query", h.Ask)
	mux.HandleFunc("GET /chat/sessions", h.ListSessions)
	mux.HandleFunc("GET /chat/history", h.History)
	mux.HandleFunc("DELETE /chat/sessions/{id}", h.DeleteSession)
	mux.HandleFunc("DELETE /chat/history", h.ClearHistory)
	return mux
}

func TestHandler_Ask(t *testing.T) {
	t.Run("Greeting Round Trip", func(t *testing.T) {
		f := newFixture()
		f.withActiveSession()
		h := chat.NewHandler(f.svc, new(MockSessionAdmin))

		body := bytes.NewBufferString(`{"user_id": "user-1", "query": "hello"}`)
		req := httptest.NewRequest("POST", "/chat/query", body)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "greeting")
	})

	t.Run("Empty Query Is 400", func(t *testing.T) {
		f := newFixture()
		f.sessions.On("GetOrCreate", mock.Anything, "user-1").
			Return(&session.Session{ID: "sess-1"}, nil)
		h := chat.NewHandler(f.svc, new(MockSessionAdmin))

		body := bytes.NewBufferString(`{"user_id": "user-1", "query": ""}`)
		req := httptest.NewRequest("POST", "/chat/query", body)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("Unknown Session Is 404", func(t *testing.T) {
		f := newFixture()
		f.sessions.On("Switch", mock.Anything, "user-1", "missing").Return(session.ErrNotFound)
		h := chat.NewHandler(f.svc, new(MockSessionAdmin))

		body := bytes.NewBufferString(`{"user_id": "user-1", "session_id": "missing", "query": "summarize the lecture on interfaces"}`)
		req := httptest.NewRequest("POST", "/chat/query", body)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Search Failure Is 500", func(t *testing.T) {
		f := newFixture()
		f.withActiveSession()
		f.sessions.On("LastTurn", mock.Anything, "sess-1").Return(nil, nil)
		f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, retrieval.ConfidenceNone, assert.AnError)
		h := chat.NewHandler(f.svc, new(MockSessionAdmin))

		body := bytes.NewBufferString(`{"user_id": "user-1", "query": "summarize the lecture on interfaces"}`)
		req := httptest.NewRequest("POST", "/chat/query", body)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "CHAT_FAILED")
	})

	t.Run("Embedding Outage Is 503", func(t *testing.T) {
		f := newFixture()
		f.withActiveSession()
		f.sessions.On("LastTurn", mock.Anything, "sess-1").Return(nil, nil)
		f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, retrieval.ConfidenceNone, fmt.Errorf("%w: quota exhausted", gemini.ErrEmbeddingUnavailable))
		h := chat.NewHandler(f.svc, new(MockSessionAdmin))

		body := bytes.NewBufferString(`{"user_id": "user-1", "query": "summarize the lecture on interfaces"}`)
		req := httptest.NewRequest("POST", "/chat/query", body)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "SERVICE_UNAVAILABLE")
	})

	t.Run("Generation Outage Is 503", func(t *testing.T) {
		f := newFixture()
		f.withActiveSession()
		f.sessions.On("LastTurn", mock.Anything, "sess-1").Return(nil, nil)
		results := []retrieval.SearchResult{{Content: "c", Score: 0.6, SourceID: "123456"}}
		f.retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
			Return(results, retrieval.ConfidenceHigh, nil)
		f.settings.On("Get", mock.Anything).Return(settings.Defaults(), nil)
		f.assembler.On("Assemble", mock.Anything, mock.Anything, mock.Anything).
			Return(retrieval.Assembled{Context: "materials"}, nil)
		f.generator.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything).
			Return("", gemini.ErrGenerationUnavailable)
		h := chat.NewHandler(f.svc, new(MockSessionAdmin))

		body := bytes.NewBufferString(`{"user_id": "user-1", "query": "summarize the lecture on interfaces"}`)
		req := httptest.NewRequest("POST", "/chat/query", body)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandler_Sessions(t *testing.T) {
	t.Run("List Defaults User", func(t *testing.T) {
		admin := new(MockSessionAdmin)
		admin.On("List", mock.Anything, "default").Return([]session.Session(nil), nil)
		h := chat.NewHandler(newFixture().svc, admin)

		req := httptest.NewRequest("GET", "/chat/sessions", nil)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"data":[]`)
	})

	t.Run("History Requires Session ID", func(t *testing.T) {
		h := chat.NewHandler(newFixture().svc, new(MockSessionAdmin))

		req := httptest.NewRequest("GET", "/chat/history", nil)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Delete Unknown Session Is 404", func(t *testing.T) {
		admin := new(MockSessionAdmin)
		admin.On("Delete", mock.Anything, "missing").Return(session.ErrNotFound)
		h := chat.NewHandler(newFixture().svc, admin)

		req := httptest.NewRequest("DELETE", "/chat/sessions/missing", nil)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Clear History", func(t *testing.T) {
		admin := new(MockSessionAdmin)
		admin.On("ClearHistory", mock.Anything, "sess-1").Return(nil)
		h := chat.NewHandler(newFixture().svc, admin)

		req := httptest.NewRequest("DELETE", "/chat/history?session_id=sess-1", nil)
		rec := httptest.NewRecorder()
		newChatMux(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
