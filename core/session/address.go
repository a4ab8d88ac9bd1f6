package session

import (
	"context"
	"errors"

	"github.com/m3rciful/citybot/core/storage"
)

// ErrInvalidAddress is returned for messages without a channel, user, or conversation.
var ErrInvalidAddress = errors.New("session: incomplete address")

// Address identifies the sender of a message and where it was sent.
type Address struct {
	Channel        string
	UserID         string
	ConversationID string
}

// Valid reports whether all parts of the address are set.
func (a Address) Valid() bool {
	return a.Channel != "" && a.UserID != "" && a.ConversationID != ""
}

// UserRef is the scope that follows the user across conversations.
func (a Address) UserRef() storage.Ref {
	return storage.Ref{Scope: storage.ScopeUser, ID: a.Channel + ":" + a.UserID}
}

// ConversationRef is the scope shared by the conversation's participants.
func (a Address) ConversationRef() storage.Ref {
	return storage.Ref{Scope: storage.ScopeConversation, ID: a.Channel + ":" + a.ConversationID}
}

// PrivateRef is the scope of this user inside this conversation.
func (a Address) PrivateRef() storage.Ref {
	return storage.Ref{
		Scope: storage.ScopePrivateConversation,
		ID:    a.Channel + ":" + a.ConversationID + ":" + a.UserID,
	}
}

func (a Address) lockKey() string {
	return a.Channel + ":" + a.ConversationID
}

// Message is one inbound text message.
type Message struct {
	Address Address
	Text    string
}

// Replier delivers reply text back to the message's origin.
type Replier interface {
	Send(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, text string) error

// Send calls f.
func (f ReplierFunc) Send(ctx context.Context, text string) error {
	return f(ctx, text)
}
