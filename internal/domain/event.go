package domain

import "fmt"

type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentDocument AttachmentKind = "document"
	AttachmentOther    AttachmentKind = "other"
)

type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	StableID string         `json:"stable_id,omitempty"`
}

// InboundEvent is a single message delivered by the messaging bridge.
type InboundEvent struct {
	CorrespondentID int64       `json:"correspondent_id"`
	ChatID          int64       `json:"chat_id"`
	MessageID       int64       `json:"message_id"`
	IsPrivate       bool        `json:"is_private"`
	IsOutgoing      bool        `json:"is_outgoing"`
	Text            string      `json:"text,omitempty"`
	Attachment      *Attachment `json:"attachment,omitempty"`
}

// Stable reports whether the platform gave the attachment a media id that
// survives re-sends. Other attachments are keyed by message id.
func (a Attachment) Stable() bool {
	return (a.Kind == AttachmentPhoto || a.Kind == AttachmentDocument) && a.StableID != ""
}

// DedupKey derives the receipt deduplication key. Photos and documents use
// the platform's stable media id; anything else falls back to the message id.
// An empty key means the event has no attachment.
func (e InboundEvent) DedupKey() string {
	a := e.Attachment
	if a == nil {
		return ""
	}
	switch {
	case !a.Stable():
		return fmt.Sprintf("msg:%d", e.MessageID)
	case a.Kind == AttachmentPhoto:
		return "photo:" + a.StableID
	default:
		return "doc:" + a.StableID
	}
}
