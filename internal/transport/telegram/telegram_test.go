package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"

	"maillog/internal/mail"
)

type sent struct {
	chat int64
	text string
	opt  *tele.SendOptions
}

type fakeBot struct {
	mu   sync.Mutex
	sent []sent
	fail map[int64]error
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat := to.(*tele.Chat)
	if err := f.fail[chat.ID]; err != nil {
		return nil, err
	}
	s := sent{chat: chat.ID, text: what.(string)}
	if len(opts) > 0 {
		s.opt, _ = opts[0].(*tele.SendOptions)
	}
	f.sent = append(f.sent, s)
	return &tele.Message{ID: len(f.sent), Chat: chat}, nil
}

func TestSendToEveryChat(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tr := &Transport{cfg: Config{ChatIDs: []int64{1, 2}, ThreadID: 9, DisablePreview: true}, bot: bot}

	m := mail.New()
	m.SetTitle("[app] Errors occurred in your application.")
	m.SetBodyHTML("<b>ERROR</b>: disk full")
	if err := tr.Send(context.Background(), m); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("sent %d messages", len(bot.sent))
	}
	want := "[app] Errors occurred in your application.\n\nERROR: disk full"
	for _, s := range bot.sent {
		if s.text != want {
			t.Fatalf("text = %q", s.text)
		}
		if s.opt == nil || s.opt.ThreadID != 9 || !s.opt.DisableWebPagePreview {
			t.Fatalf("options = %+v", s.opt)
		}
	}
}

func TestSendJoinsChatErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("forbidden")
	bot := &fakeBot{fail: map[int64]error{2: boom}}
	tr := &Transport{cfg: Config{ChatIDs: []int64{1, 2}}, bot: bot}

	m := mail.New()
	m.SetBodyText("x")
	err := tr.Send(context.Background(), m)
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "chat 2") {
		t.Fatalf("err = %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("chat 1 should still receive the message, sent=%d", len(bot.sent))
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{ChatIDs: []int64{1}}); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{Token: "123:abc"}); err == nil {
		t.Fatal("expected error for missing chat ids")
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "fits", in: "hello", limit: 10, want: []string{"hello"}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "newline boundary", in: "aaaa\nbbbbbb", limit: 8, want: []string{"aaaa", "bbbbbb"}},
		{name: "runes", in: "ééééé", limit: 2, want: []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
