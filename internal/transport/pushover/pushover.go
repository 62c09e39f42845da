// Package pushover delivers notifications through the Pushover API.
package pushover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

const (
	DefaultEndpoint = "https://api.pushover.net/1/messages.json"

	maxTitle   = 250
	maxMessage = 1024
)

var ErrCredentials = errors.New("pushover: token and user are required")

// Transport sends the text body of each message. Titles and bodies longer
// than the API limits are cut on a rune boundary.
type Transport struct {
	Token    string
	User     string
	Endpoint string
	Priority int
	Client   *http.Client
}

func (p Transport) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (p Transport) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return transport.ErrNilMessage
	}
	if p.Token == "" || p.User == "" {
		return ErrCredentials
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	text := transport.PlainText(msg)
	if strings.TrimSpace(text) == "" {
		text = msg.Title()
	}

	data := url.Values{}
	data.Set("token", p.Token)
	data.Set("user", p.User)
	data.Set("title", truncate(msg.Title(), maxTitle))
	data.Set("message", truncate(text, maxMessage))
	if p.Priority != 0 {
		data.Set("priority", fmt.Sprint(p.Priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pushover returned status %s", resp.Status)
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
