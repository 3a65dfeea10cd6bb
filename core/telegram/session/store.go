// Package session tracks which bot messages are visible in each chat and
// serializes work per chat.
package session

import (
	"context"
	"errors"
)

// DefaultCapacity bounds the visible list when a store is built without one.
const DefaultCapacity = 10

// ErrLockTimeout is returned when the chat lock could not be acquired before ctx ended.
var ErrLockTimeout = errors.New("session: chat lock not acquired")

// Store owns per-chat visible message ids, oldest first.
//
// Mutations are atomic on their own. Callers that read, call the Bot API and
// then write must hold Lock for the chat across the whole sequence.
type Store interface {
	// Get returns the visible ids; an unknown chat yields an empty slice.
	Get(ctx context.Context, chatID int64) ([]int, error)
	// Append adds id at the end and returns the ids evicted to stay within capacity.
	Append(ctx context.Context, chatID int64, id int) ([]int, error)
	// Clear empties the chat and returns the ids it held.
	Clear(ctx context.Context, chatID int64) ([]int, error)
	// Replace makes id the only visible message and returns the ids it held before.
	Replace(ctx context.Context, chatID int64, id int) ([]int, error)
	// Lock blocks until the chat's critical section is free or ctx ends.
	Lock(ctx context.Context, chatID int64) (unlock func(), err error)
}

// appendBounded appends id and trims the head so len(next) <= capacity.
func appendBounded(prior []int, id, capacity int) (next, evicted []int) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	next = make([]int, 0, len(prior)+1)
	next = append(next, prior...)
	next = append(next, id)
	if over := len(next) - capacity; over > 0 {
		evicted = append([]int(nil), next[:over]...)
		next = next[over:]
	}
	return next, evicted
}

func lockErr(ctx context.Context) error {
	return errors.Join(ErrLockTimeout, context.Cause(ctx))
}
