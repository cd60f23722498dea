package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dmitrijs2005/dulo/internal/client/client"
	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/common"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

const (
	chatCacheTTL     = 30 * time.Second
	chatCacheCleanup = 5 * time.Minute
	historyCacheKey  = "history"
	chatKeyPrefix    = "chat:"
)

// ChatService talks to the document assistant.
type ChatService interface {
	// Post sends one user message. An empty chatID starts a new chat.
	Post(ctx context.Context, chatID, message string) (*models.ChatReply, error)
	History(ctx context.Context) ([]models.Chat, error)
	Get(ctx context.Context, chatID string) (*models.ChatDetail, error)
	// Invalidate drops every cached answer, e.g. after logout.
	Invalidate()
}

type chatService struct {
	client client.Client
	cache  *cache.Cache
	log    logging.Logger
}

func NewChatService(c client.Client, log logging.Logger) ChatService {
	return &chatService{
		client: c,
		cache:  cache.New(chatCacheTTL, chatCacheCleanup),
		log:    log,
	}
}

func (s *chatService) Post(ctx context.Context, chatID, message string) (*models.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, common.ErrEmptyMessage
	}

	body := models.ChatRequest{
		Messages: []models.ChatMessage{{Content: message, Role: models.RoleUser}},
	}
	if chatID != "" {
		body.ChatID = &chatID
	}

	req, err := client.NewJSONRequest(http.MethodPost, "/chat", body)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	var reply models.ChatReply
	if err := resp.Decode(&reply); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	s.cache.Delete(historyCacheKey)
	s.cache.Delete(chatKeyPrefix + chatID)
	s.cache.Delete(chatKeyPrefix + reply.ChatID)
	s.log.Debug(ctx, "chat message sent", "chat_id", reply.ChatID, "new_chat", reply.IsNewChat)
	return &reply, nil
}

func (s *chatService) History(ctx context.Context) ([]models.Chat, error) {
	if v, ok := s.cache.Get(historyCacheKey); ok {
		return v.([]models.Chat), nil
	}

	resp, err := s.client.Do(ctx, &client.Request{Method: http.MethodGet, Path: "/chat/history"})
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}

	var list models.ChatList
	if err := resp.Decode(&list); err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	s.cache.SetDefault(historyCacheKey, list.Chats)
	return list.Chats, nil
}

func (s *chatService) Get(ctx context.Context, chatID string) (*models.ChatDetail, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, invalid("chat id is required")
	}
	key := chatKeyPrefix + chatID
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.ChatDetail), nil
	}

	resp, err := s.client.Do(ctx, &client.Request{Method: http.MethodGet, Path: "/chat/" + url.PathEscape(chatID)})
	if err != nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, err)
	}

	var detail models.ChatDetail
	if err := resp.Decode(&detail); err != nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, err)
	}
	s.cache.SetDefault(key, &detail)
	return &detail, nil
}

func (s *chatService) Invalidate() {
	s.cache.Flush()
}
