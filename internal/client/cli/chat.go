package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/dulo/internal/client/models"
)

// Chat opens a conversation with the document assistant. Each line is sent
// as one message; an empty line or "/exit" leaves the conversation.
func (a *App) Chat(ctx context.Context, args []string) error {
	chatID := at(args, 0)
	if chatID != "" {
		a.out.hint("Continuing chat %s. Empty line or /exit to leave.", chatID)
	} else {
		a.out.hint("New chat. Empty line or /exit to leave.")
	}

	for {
		msg, err := getSimpleText(a.reader, "you", a.out.w)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if msg == "" || msg == "/exit" {
			return nil
		}

		reply, err := a.chatService.Post(ctx, chatID, msg)
		if err != nil {
			return err
		}
		chatID = reply.ChatID
		a.out.info("assistant: %s", reply.Response)
	}
}

func (a *App) Chats(ctx context.Context) error {
	chats, err := a.chatService.History(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		a.out.println("No chats yet")
		return nil
	}
	for _, c := range chats {
		a.out.printf("%s  %s  %s\n", stamp(c.UpdatedAt.Time, c.CreatedAt.Time), c.ChatID, orDefault(c.Title, "(untitled)"))
	}
	return nil
}

func (a *App) ShowChat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.out.println("Usage: showchat <chat_id>")
		return nil
	}
	detail, err := a.chatService.Get(ctx, args[0])
	if err != nil {
		return err
	}

	a.out.info("%s", orDefault(detail.Chat.Title, detail.Chat.ChatID))
	for _, m := range detail.Messages {
		line := strings.TrimSpace(m.Content)
		if ts := stamp(m.CreatedAt.Time); ts != "" {
			a.out.hint("[%s] %s", ts, m.Role)
		} else {
			a.out.hint("%s", m.Role)
		}
		if m.Role == models.RoleAssistant {
			a.out.info("%s", line)
		} else {
			a.out.println(line)
		}
	}
	return nil
}

// stamp formats the first non-zero time in local time.
func stamp(ts ...time.Time) string {
	for _, t := range ts {
		if !t.IsZero() {
			return t.Local().Format(time.DateTime)
		}
	}
	return ""
}
