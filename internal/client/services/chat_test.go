package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/common"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

func TestChatPost_BodyShape(t *testing.T) {
	var bodies []string
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		writeJSON(w, http.StatusOK, map[string]any{"chat_id": "c-1", "is_new_chat": len(bodies) == 1, "response": "Total is 42", "message_count": 2 * len(bodies)})
	}))
	env.signIn(t)
	chat := NewChatService(env.api, logging.Nop())
	ctx := context.Background()

	reply, err := chat.Post(ctx, "", "what is the total?")
	require.NoError(t, err)
	assert.Equal(t, "c-1", reply.ChatID)
	assert.True(t, reply.IsNewChat)
	assert.Equal(t, "Total is 42", reply.Response)

	_, err = chat.Post(ctx, "c-1", "and tax?")
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"id-chat":null,"message":[{"role":"user","content":"what is the total?"}]}`, bodies[0])
	assert.JSONEq(t, `{"id-chat":"c-1","message":[{"role":"user","content":"and tax?"}]}`, bodies[1])
}

func TestChatPost_EmptyMessage(t *testing.T) {
	var calls atomic.Int32
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	chat := NewChatService(env.api, logging.Nop())

	_, err := chat.Post(context.Background(), "c-1", "  \n\t")
	assert.ErrorIs(t, err, common.ErrEmptyMessage)
	assert.Zero(t, calls.Load())
}

func TestChatHistory_CachedUntilPost(t *testing.T) {
	var history atomic.Int32
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/history":
			history.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"chats": []map[string]any{
					{"chat_id": "c-1", "title": "Invoice March", "created_at": 1700000000.25, "updated_at": "2024-03-01T10:00:00"},
				},
			})
		case "/chat":
			writeJSON(w, http.StatusOK, map[string]any{"chat_id": "c-1", "response": "ok"})
		default:
			http.NotFound(w, r)
		}
	}))
	env.signIn(t)
	chat := NewChatService(env.api, logging.Nop())
	ctx := context.Background()

	chats, err := chat.History(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Invoice March", chats[0].Title)
	assert.Equal(t, int64(1700000000), chats[0].CreatedAt.Unix())
	assert.Equal(t, 2024, chats[0].UpdatedAt.Year())

	_, err = chat.History(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, history.Load())

	_, err = chat.Post(ctx, "c-1", "hi")
	require.NoError(t, err)
	_, err = chat.History(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, history.Load())

	chat.Invalidate()
	_, err = chat.History(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, history.Load())
}

func TestChatGet_NormalizesMessages(t *testing.T) {
	var gets atomic.Int32
	env := newEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/c-1":
			gets.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"chat": map[string]any{"chat_id": "c-1", "title": "Receipt"},
				"messages": []map[string]any{
					{"role": "user", "message": "sum?", "created_at": 1700000000.0},
					{"role": "assistant", "content": "12.50", "created_at": nil},
				},
			})
		case "/chat/missing":
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Chat not found"})
		default:
			http.NotFound(w, r)
		}
	}))
	env.signIn(t)
	chat := NewChatService(env.api, logging.Nop())
	ctx := context.Background()

	detail, err := chat.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, models.ChatMessage{Role: "user", Content: "sum?", CreatedAt: detail.Messages[0].CreatedAt}, detail.Messages[0])
	assert.False(t, detail.Messages[0].CreatedAt.IsZero())
	assert.Equal(t, "12.50", detail.Messages[1].Content)
	assert.True(t, detail.Messages[1].CreatedAt.IsZero())

	_, err = chat.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, gets.Load())

	_, err = chat.Get(ctx, "missing")
	assert.ErrorContains(t, err, "Chat not found")

	_, err = chat.Get(ctx, " ")
	assert.ErrorIs(t, err, common.ErrValidation)
}
