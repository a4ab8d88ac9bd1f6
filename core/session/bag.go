package session

import "github.com/m3rciful/citybot/core/storage"

// Bag is the working copy of one scope during a turn. Reads see the turn's
// own writes; every write is also recorded for the flush at end of turn.
type Bag struct {
	ref    storage.Ref
	values storage.Values
	log    *[]storage.Mutation
}

func newBag(ref storage.Ref, values storage.Values, log *[]storage.Mutation) *Bag {
	if values == nil {
		values = make(storage.Values)
	}
	return &Bag{ref: ref, values: values, log: log}
}

// Ref returns the scope instance backing the bag.
func (b *Bag) Ref() storage.Ref { return b.ref }

// Has reports whether key is set.
func (b *Bag) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Get returns the raw value stored under key.
func (b *Bag) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (b *Bag) String(key string) (string, bool) {
	s, ok := b.values[key].(string)
	return s, ok
}

// Bool returns the value under key when it is a bool.
func (b *Bag) Bool(key string) (bool, bool) {
	v, ok := b.values[key].(bool)
	return v, ok
}

// Set stores value under key.
func (b *Bag) Set(key string, value any) {
	b.values[key] = value
	*b.log = append(*b.log, storage.Mutation{Ref: b.ref, Key: key, Value: value})
}

// Delete removes key. Deleting an absent key is recorded too, so a stale
// durable value is still removed.
func (b *Bag) Delete(key string) {
	delete(b.values, key)
	*b.log = append(*b.log, storage.Mutation{Ref: b.ref, Key: key, Delete: true})
}

// Scopes groups the three bags of a turn.
type Scopes struct {
	User         *Bag
	Conversation *Bag
	Private      *Bag
}
