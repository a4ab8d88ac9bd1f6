// Package session drives one conversational turn: it serializes turns per
// conversation, loads the three state scopes, hands them to a handler, and
// flushes the recorded changes to the store when the handler succeeds.
package session
