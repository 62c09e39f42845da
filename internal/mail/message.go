// Package mail holds the notification message handed to transports.
package mail

import (
	"strings"

	"maillog/internal/markup"
)

// DefaultEncoding is used when no encoding is set.
const DefaultEncoding = "utf-8"

// Address is a mail address with an optional display name.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// String renders `"Name" <email>` or the bare address.
func (a Address) String() string {
	if strings.TrimSpace(a.Name) == "" {
		return a.Email
	}
	return `"` + strings.ReplaceAll(a.Name, `"`, `'`) + `" <` + a.Email + `>`
}

func (a Address) IsZero() bool { return strings.TrimSpace(a.Email) == "" }

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

// Message is a mutable notification: title, text and markup bodies,
// sender, recipients, attachments and encoding.
//
// Recipient and attachment lists keep insertion order and allow duplicates.
// Message is not safe for concurrent mutation; transports receive their own
// copy (see Clone).
type Message struct {
	title    string
	bodyText string
	bodyHTML string

	from        Address
	to          []Address
	cc          []Address
	bcc         []Address
	attachments []Attachment
	encoding    string

	autoText   bool
	keepTags   []string
	expandTags []string
}

func New() *Message { return &Message{} }

func (m *Message) Title() string         { return m.title }
func (m *Message) SetTitle(title string) { m.title = title }

// BodyText returns the text body. When it is empty and auto-creation is on,
// it is derived from the markup body with markup.Strip.
func (m *Message) BodyText() string {
	if m.bodyText != "" {
		return m.bodyText
	}
	if m.autoText {
		return markup.Strip(m.bodyHTML, m.keepTags, m.expandTags)
	}
	return ""
}

func (m *Message) SetBodyText(s string) { m.bodyText = s }

func (m *Message) BodyHTML() string     { return m.bodyHTML }
func (m *Message) SetBodyHTML(s string) { m.bodyHTML = s }

func (m *Message) From() Address     { return m.from }
func (m *Message) SetFrom(a Address) { m.from = a }

func (m *Message) To() []Address       { return m.to }
func (m *Message) SetTo(as []Address)  { m.to = append([]Address(nil), as...) }
func (m *Message) AddTo(a Address)     { m.to = append(m.to, a) }
func (m *Message) Cc() []Address       { return m.cc }
func (m *Message) SetCc(as []Address)  { m.cc = append([]Address(nil), as...) }
func (m *Message) AddCc(a Address)     { m.cc = append(m.cc, a) }
func (m *Message) Bcc() []Address      { return m.bcc }
func (m *Message) SetBcc(as []Address) { m.bcc = append([]Address(nil), as...) }
func (m *Message) AddBcc(a Address)    { m.bcc = append(m.bcc, a) }

func (m *Message) Attachments() []Attachment  { return m.attachments }
func (m *Message) AddAttachment(a Attachment) { m.attachments = append(m.attachments, a) }

func (m *Message) SetAttachments(as []Attachment) {
	m.attachments = append([]Attachment(nil), as...)
}

// Encoding defaults to utf-8.
func (m *Message) Encoding() string {
	if m.encoding == "" {
		return DefaultEncoding
	}
	return m.encoding
}

func (m *Message) SetEncoding(enc string) { m.encoding = strings.TrimSpace(enc) }

// AutoCreateBodyText turns on deriving the text body from the markup body
// when no text body is set.
func (m *Message) AutoCreateBodyText(on bool) { m.autoText = on }

func (m *Message) AutoText() bool { return m.autoText }

// SetStripTags configures the keep/expand lists used when deriving text.
// A nil expand keeps markup.DefaultExpand.
func (m *Message) SetStripTags(keep, expand []string) {
	m.keepTags = append([]string(nil), keep...)
	if expand == nil {
		m.expandTags = nil
		return
	}
	m.expandTags = append([]string{}, expand...)
}

// Recipients returns to, cc and bcc addresses in that order.
func (m *Message) Recipients() []Address {
	out := make([]Address, 0, len(m.to)+len(m.cc)+len(m.bcc))
	out = append(out, m.to...)
	out = append(out, m.cc...)
	return append(out, m.bcc...)
}

// Clone returns a deep copy; the clone shares nothing mutable with m.
func (m *Message) Clone() *Message {
	cp := *m
	cp.to = append([]Address(nil), m.to...)
	cp.cc = append([]Address(nil), m.cc...)
	cp.bcc = append([]Address(nil), m.bcc...)
	cp.keepTags = append([]string(nil), m.keepTags...)
	if m.expandTags != nil {
		cp.expandTags = append([]string{}, m.expandTags...)
	}
	if m.attachments != nil {
		cp.attachments = make([]Attachment, len(m.attachments))
		for i, a := range m.attachments {
			a.Data = append([]byte(nil), a.Data...)
			cp.attachments[i] = a
		}
	}
	return &cp
}
