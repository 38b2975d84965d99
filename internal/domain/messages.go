package domain

import "time"

type MessageStatus string

const (
	MessageStatusNormal  MessageStatus = "normal"
	MessageStatusRequest MessageStatus = "request"
)

type Message struct {
	ID         string        `json:"id"`
	Seq        int64         `json:"-"`
	SenderID   string        `json:"sender_id"`
	ReceiverID string        `json:"receiver_id"`
	Content    string        `json:"content"`
	Timestamp  time.Time     `json:"timestamp"`
	Status     MessageStatus `json:"status"`
	DeletedFor []string      `json:"deleted_for"`
	IsEdited   bool          `json:"is_edited"`
}

// DeletedForUser reports whether userID hid the message from their own view.
func (m Message) DeletedForUser(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// Before orders messages by timestamp, then by insertion sequence.
func (m Message) Before(o Message) bool {
	if !m.Timestamp.Equal(o.Timestamp) {
		return m.Timestamp.Before(o.Timestamp)
	}
	return m.Seq < o.Seq
}

// HistoryFilter narrows a conversation listing.
type HistoryFilter struct {
	OnlyNormal        bool
	ExcludeDeletedFor string
}

// IncomingRequest is an incoming request-status message with its sender resolved.
type IncomingRequest struct {
	Message
	Sender UserSummary `json:"sender"`
}

// Conversation is one accepted friend and the newest normal message exchanged
// with them, if any.
type Conversation struct {
	Friend      UserSummary `json:"friend"`
	LastMessage *Message    `json:"last_message,omitempty"`
}
