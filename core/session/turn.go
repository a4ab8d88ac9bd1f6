package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/citybot/core/storage"
)

// DialogStackKey holds the name of the dialog waiting for the user's next
// message. It lives in the private conversation scope.
const DialogStackKey = "DialogStack"

// ErrTurnEnded is returned by Send after End.
var ErrTurnEnded = errors.New("session: turn already ended")

// Turn is the handler's view of one message.
type Turn struct {
	msg     Message
	scopes  Scopes
	replier Replier

	muts    []storage.Mutation
	replies []string
	ended   bool
}

func newTurn(msg Message, replier Replier, user, conv, private storage.Values) *Turn {
	t := &Turn{msg: msg, replier: replier}
	t.scopes = Scopes{
		User:         newBag(msg.Address.UserRef(), user, &t.muts),
		Conversation: newBag(msg.Address.ConversationRef(), conv, &t.muts),
		Private:      newBag(msg.Address.PrivateRef(), private, &t.muts),
	}
	return t
}

// Text returns the inbound text with surrounding whitespace removed.
func (t *Turn) Text() string { return strings.TrimSpace(t.msg.Text) }

// RawText returns the inbound text as received.
func (t *Turn) RawText() string { return t.msg.Text }

// Address returns who sent the message and where.
func (t *Turn) Address() Address { return t.msg.Address }

// Scopes returns the turn's state bags.
func (t *Turn) Scopes() Scopes { return t.scopes }

// Send delivers one reply. It may be called several times per turn.
func (t *Turn) Send(ctx context.Context, text string) error {
	if t.ended {
		return ErrTurnEnded
	}
	if err := t.replier.Send(ctx, text); err != nil {
		return fmt.Errorf("session: send reply: %w", err)
	}
	t.replies = append(t.replies, text)
	return nil
}

// End completes the turn, sending final first when it is not empty.
func (t *Turn) End(ctx context.Context, final string) error {
	if final != "" {
		if err := t.Send(ctx, final); err != nil {
			return err
		}
	}
	t.ended = true
	return nil
}

// BeginDialog suspends name until the next message from this user in this
// conversation.
func (t *Turn) BeginDialog(name string) {
	t.scopes.Private.Set(DialogStackKey, name)
}

// EndDialog clears the suspended dialog, if any.
func (t *Turn) EndDialog() {
	if t.scopes.Private.Has(DialogStackKey) {
		t.scopes.Private.Delete(DialogStackKey)
	}
}

// ActiveDialog returns the suspended dialog name, or "" when none is waiting.
func (t *Turn) ActiveDialog() string {
	name, _ := t.scopes.Private.String(DialogStackKey)
	return name
}

// Replies returns the replies sent so far.
func (t *Turn) Replies() []string {
	return append([]string(nil), t.replies...)
}

// Mutations returns the changes recorded so far, in order.
func (t *Turn) Mutations() []storage.Mutation {
	return append([]storage.Mutation(nil), t.muts...)
}
