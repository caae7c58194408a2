// Package mailbox defines the inbound message shape consumed by the triage
// pipeline. Messages are ephemeral: they are read once by ingestion and never
// persisted as-is.
package mailbox

import (
	"regexp"
	"strings"
	"time"
)

// Message is one email-like record from a connected source.
type Message struct {
	// SourceID is the provider's message identifier. Ingestion generates one
	// when the source does not supply it.
	SourceID string `json:"source_message_id,omitempty"`

	// OriginID identifies the connected mailbox the message arrived through.
	OriginID string `json:"origin_id,omitempty"`

	Sender     string     `json:"sender"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body,omitempty"`
	Snippet    string     `json:"snippet,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

var domainRe = regexp.MustCompile(`@([\w.-]+)`)

// SenderDomain extracts the domain part of the sender address, or "unknown"
// when none is present.
func (m *Message) SenderDomain() string {
	if match := domainRe.FindStringSubmatch(m.Sender); match != nil {
		return strings.ToLower(match[1])
	}
	return "unknown"
}

// Text returns the body, falling back to the snippet.
func (m *Message) Text() string {
	if m.Body != "" {
		return m.Body
	}
	return m.Snippet
}

// RawText is the subject and body concatenation fed to classifiers.
func (m *Message) RawText() string {
	return strings.TrimSpace(m.Subject + "\n" + m.Text())
}
