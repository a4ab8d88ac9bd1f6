// Package storage persists bot state in three independent scopes: per user,
// per conversation, and per user within a conversation.
//
// Every scope is a flat mapping from string key to a JSON-compatible value.
// Absent keys are a valid "not set" state, never an error.
package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

// Scope names one of the three state namespaces.
type Scope string

const (
	// ScopeUser holds data that follows a user across conversations.
	ScopeUser Scope = "user"
	// ScopeConversation holds data shared by every participant of a conversation.
	ScopeConversation Scope = "conversation"
	// ScopePrivateConversation holds data of one user inside one conversation.
	ScopePrivateConversation Scope = "private_conversation"
)

var (
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("storage: store closed")
	// ErrInvalidRef is returned for refs with an unknown scope or empty identity.
	ErrInvalidRef = errors.New("storage: invalid ref")
	// ErrEmptyKey is returned when a key is empty.
	ErrEmptyKey = errors.New("storage: empty key")
	// ErrUnknownDriver is returned when no backend matches the configured driver.
	ErrUnknownDriver = errors.New("storage: unknown driver")
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeUser, ScopeConversation, ScopePrivateConversation:
		return true
	}
	return false
}

// Ref identifies one scope instance, e.g. the user scope of "telegram:42".
type Ref struct {
	Scope Scope
	ID    string
}

func (r Ref) String() string {
	return string(r.Scope) + "/" + r.ID
}

func (r Ref) validate() error {
	if !r.Scope.Valid() || r.ID == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRef, r.String())
	}
	return nil
}

// Values is the content of one scope instance.
type Values map[string]any

// Clone returns a shallow copy that is safe to mutate; it is never nil.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	maps.Copy(out, v)
	return out
}

// Mutation is a single key write or delete.
type Mutation struct {
	Ref    Ref
	Key    string
	Value  any
	Delete bool
}

func (m Mutation) validate() error {
	if err := m.Ref.validate(); err != nil {
		return err
	}
	if m.Key == "" {
		return ErrEmptyKey
	}
	return nil
}

// Store is the key-value contract shared by every backend.
// Each Set and Delete is atomic; Apply is atomic for the whole batch.
type Store interface {
	Load(ctx context.Context, ref Ref) (Values, error)
	Get(ctx context.Context, ref Ref, key string) (any, bool, error)
	Set(ctx context.Context, ref Ref, key string, value any) error
	Delete(ctx context.Context, ref Ref, key string) error
	Apply(ctx context.Context, muts []Mutation) error
	Close() error
}
