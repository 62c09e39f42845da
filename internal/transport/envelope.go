package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"maillog/internal/mail"
	"maillog/internal/markup"
)

// Envelope is the JSON form of a message used by the webhook, NATS, Kafka
// and MQTT transports. Attachment payloads are not carried, only metadata.
type Envelope struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Text        string          `json:"text"`
	HTML        string          `json:"html,omitempty"`
	From        *mail.Address   `json:"from,omitempty"`
	To          []mail.Address  `json:"to,omitempty"`
	Cc          []mail.Address  `json:"cc,omitempty"`
	Bcc         []mail.Address  `json:"bcc,omitempty"`
	Encoding    string          `json:"encoding"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	At          time.Time       `json:"at"`
}

type AttachmentRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
}

// NewEnvelope snapshots msg. Text falls back to the stripped markup body
// so consumers always get something readable.
func NewEnvelope(msg *mail.Message) Envelope {
	env := Envelope{
		ID:       uuid.NewString(),
		Title:    msg.Title(),
		Text:     PlainText(msg),
		HTML:     msg.BodyHTML(),
		To:       msg.To(),
		Cc:       msg.Cc(),
		Bcc:      msg.Bcc(),
		Encoding: msg.Encoding(),
		At:       time.Now().UTC(),
	}
	if from := msg.From(); !from.IsZero() {
		env.From = &from
	}
	for _, a := range msg.Attachments() {
		env.Attachments = append(env.Attachments, AttachmentRef{Name: a.Name, ContentType: a.ContentType, Size: len(a.Data)})
	}
	return env
}

func (e Envelope) Marshal() ([]byte, error) { return json.Marshal(e) }

// PlainText is the message text body, or its stripped markup body when no
// text body exists.
func PlainText(msg *mail.Message) string {
	if s := msg.BodyText(); s != "" {
		return s
	}
	return markup.Strip(msg.BodyHTML(), nil, nil)
}
