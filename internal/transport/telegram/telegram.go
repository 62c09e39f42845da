// Package telegram delivers notifications to Telegram chats with telebot.
//
// Telegram only understands a small HTML subset, so the plain text body is
// sent without a parse mode. Long bodies are split into several messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

const textLimit = 4000

type Config struct {
	Token          string
	ChatIDs        []int64
	ThreadID       int
	DisablePreview bool
	// URL overrides the Bot API endpoint.
	URL     string
	Timeout time.Duration
}

// sender is the subset of *tele.Bot used here.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Transport struct {
	cfg Config
	bot sender
}

func New(cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("telegram: no chat ids")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.URL,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg, bot: b}, nil
}

func (t *Transport) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return transport.ErrNilMessage
	}
	text := Format(msg)
	chunks := splitText(text, textLimit)

	var errs []error
	for _, id := range t.cfg.ChatIDs {
		if err := t.sendChunks(ctx, id, chunks); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Transport) sendChunks(ctx context.Context, chatID int64, chunks []string) error {
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		opt := &tele.SendOptions{
			DisableWebPagePreview: t.cfg.DisablePreview,
			ThreadID:              t.cfg.ThreadID,
		}
		if _, err := t.bot.Send(chat, chunk, opt); err != nil {
			return err
		}
	}
	return nil
}

// Format renders msg as a Telegram text message: title, blank line, body.
func Format(msg *mail.Message) string {
	title := strings.TrimSpace(msg.Title())
	body := strings.TrimSpace(transport.PlainText(msg))
	switch {
	case title == "":
		return body
	case body == "":
		return title
	}
	return title + "\n\n" + body
}

// splitText splits s into chunks of at most limit runes, preferring newline
// boundaries that do not produce tiny chunks.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
