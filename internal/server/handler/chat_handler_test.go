package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barterverse-backend/internal/chat"
	chatdom "github.com/barterverse-backend/internal/domain/chat"
)

// MockMessageRepository is a mock of chatdom.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *chatdom.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*chatdom.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatdom.Message), args.Error(1)
}

func (m *MockMessageRepository) GetBetween(ctx context.Context, userA, userB uuid.UUID, limit, offset int) ([]*chatdom.Message, error) {
	args := m.Called(ctx, userA, userB, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*chatdom.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	args := m.Called(ctx, senderID, receiverID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockConversationRepository is a mock of chatdom.ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Upsert(ctx context.Context, conv *chatdom.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *MockConversationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*chatdom.Conversation, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*chatdom.Conversation), args.Error(1)
}

func newChatFixture(userID uuid.UUID) (*gin.Engine, *MockMessageRepository, *MockConversationRepository) {
	messages := new(MockMessageRepository)
	conversations := new(MockConversationRepository)
	registry := chat.NewRegistry(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	delivery := chat.NewDeliveryService(registry, messages, conversations, new(MockProfileRepository), handlerTestLogger())
	h := NewChatHandler(handlerTestLogger(), delivery)

	r := setupAuthedRouter(userID)
	r.GET("/chat/conversations", h.Conversations)
	r.GET("/chat/messages/:otherId", h.History)
	return r, messages, conversations
}

func TestChatHandler_Conversations(t *testing.T) {
	userID := uuid.New()

	t.Run("ReturnsInbox", func(t *testing.T) {
		r, _, conversations := newChatFixture(userID)
		inbox := []*chatdom.Conversation{
			{OwnerID: userID, OtherID: uuid.New(), LastMessage: "deal?", LastMessageAt: time.Now().UTC()},
			{OwnerID: userID, OtherID: uuid.New(), LastMessage: "sold", LastMessageAt: time.Now().UTC().Add(-time.Hour)},
		}
		conversations.On("ListByOwner", mock.Anything, userID).Return(inbox, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/chat/conversations", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var got []*chatdom.Conversation
		require.NoError(t, json.Unmarshal(data, &got))
		require.Len(t, got, 2)
		assert.Equal(t, "deal?", got[0].LastMessage)
		conversations.AssertExpectations(t)
	})

	t.Run("RepositoryErrorReturns500", func(t *testing.T) {
		r, _, conversations := newChatFixture(userID)
		conversations.On("ListByOwner", mock.Anything, userID).Return(nil, errors.New("mongo down")).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/chat/conversations", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", decodeErrorCode(t, w.Body.Bytes()))
		conversations.AssertExpectations(t)
	})
}

func TestChatHandler_History(t *testing.T) {
	userID := uuid.New()
	otherID := uuid.New()

	t.Run("ReturnsMessagesNewestFirst", func(t *testing.T) {
		r, messages, _ := newChatFixture(userID)
		history := []*chatdom.Message{
			{ID: uuid.New(), SenderID: otherID, ReceiverID: userID, Content: "still available?", CreatedAt: time.Now().UTC()},
			{ID: uuid.New(), SenderID: userID, ReceiverID: otherID, Content: "hi", CreatedAt: time.Now().UTC().Add(-time.Minute)},
		}
		messages.On("GetBetween", mock.Anything, userID, otherID, 20, 0).Return(history, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/chat/messages/"+otherID.String(), nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		var got []*chatdom.Message
		require.NoError(t, json.Unmarshal(data, &got))
		require.Len(t, got, 2)
		assert.Equal(t, "still available?", got[0].Content)
		messages.AssertExpectations(t)
	})

	t.Run("PaginationMapsToLimitOffset", func(t *testing.T) {
		r, messages, _ := newChatFixture(userID)
		messages.On("GetBetween", mock.Anything, userID, otherID, 50, 50).Return([]*chatdom.Message{}, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/chat/messages/"+otherID.String()+"?page=2&per_page=50", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		messages.AssertExpectations(t)
	})

	t.Run("InvalidOtherIDReturns400", func(t *testing.T) {
		r, messages, _ := newChatFixture(userID)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/chat/messages/not-a-uuid", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "BAD_REQUEST", decodeErrorCode(t, w.Body.Bytes()))
		messages.AssertNotCalled(t, "GetBetween", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidPaginationReturns400", func(t *testing.T) {
		r, messages, _ := newChatFixture(userID)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/chat/messages/"+otherID.String()+"?page=0", nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		messages.AssertNotCalled(t, "GetBetween", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RepositoryErrorReturns500", func(t *testing.T) {
		r, messages, _ := newChatFixture(userID)
		messages.On("GetBetween", mock.Anything, userID, otherID, 20, 0).Return(nil, errors.New("mongo down")).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/chat/messages/"+otherID.String(), nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		messages.AssertExpectations(t)
	})
}
