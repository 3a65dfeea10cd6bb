package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/menubot/core/logger"
)

const (
	ensureSessionSQL = `INSERT INTO chat_sessions (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`
	selectForUpdate  = `SELECT message_ids FROM chat_sessions WHERE chat_id = $1 FOR UPDATE`
	updateSessionSQL = `UPDATE chat_sessions SET message_ids = $2, updated_at = now() WHERE chat_id = $1`
	selectSessionSQL = `SELECT message_ids FROM chat_sessions WHERE chat_id = $1`
	advisoryLockSQL  = `SELECT pg_advisory_lock($1)`
	advisoryFreeSQL  = `SELECT pg_advisory_unlock($1)`
	unlockTimeout    = 5 * time.Second
)

// PostgresStore keeps sessions in the chat_sessions table so several
// instances can share them. Chat locks are session-level advisory locks;
// while a chat is locked its reads and writes run on the connection that
// holds the advisory lock, so a locked chat needs exactly one pooled conn.
type PostgresStore struct {
	db       *sqlx.DB
	capacity int

	// local orders same-chat waiters in process before they take a conn.
	local *MemoryStore

	mu   sync.Mutex
	held map[int64]*sqlx.Conn
}

type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// NewPostgresStore wraps an open connection pool. The schema comes from migrations/.
func NewPostgresStore(db *sqlx.DB, capacity int) *PostgresStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PostgresStore{
		db:       db,
		capacity: capacity,
		local:    NewMemoryStore(capacity),
		held:     make(map[int64]*sqlx.Conn),
	}
}

// conn returns the lock-holding connection for chatID, or the pool when the
// chat is not locked by this store.
func (s *PostgresStore) conn(chatID int64) queryer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.held[chatID]; ok {
		return c
	}
	return s.db
}

// Get returns the visible ids for chatID.
func (s *PostgresStore) Get(ctx context.Context, chatID int64) ([]int, error) {
	var ids pq.Int64Array
	err := s.conn(chatID).GetContext(ctx, &ids, selectSessionSQL, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return []int{}, nil
	case err != nil:
		return nil, fmt.Errorf("session get: %w", err)
	}
	return toInts(ids), nil
}

// Append records id and returns evicted ids.
func (s *PostgresStore) Append(ctx context.Context, chatID int64, id int) ([]int, error) {
	var evicted []int
	_, err := s.mutate(ctx, chatID, func(prior []int) []int {
		var next []int
		next, evicted = appendBounded(prior, id, s.capacity)
		return next
	})
	if err != nil {
		return nil, fmt.Errorf("session append: %w", err)
	}
	return evicted, nil
}

// Clear drops the chat's ids and returns them.
func (s *PostgresStore) Clear(ctx context.Context, chatID int64) ([]int, error) {
	prior, err := s.mutate(ctx, chatID, func([]int) []int { return nil })
	if err != nil {
		return nil, fmt.Errorf("session clear: %w", err)
	}
	return prior, nil
}

// Replace swaps the chat's ids for the single id.
func (s *PostgresStore) Replace(ctx context.Context, chatID int64, id int) ([]int, error) {
	prior, err := s.mutate(ctx, chatID, func([]int) []int { return []int{id} })
	if err != nil {
		return nil, fmt.Errorf("session replace: %w", err)
	}
	return prior, nil
}

// Lock takes pg_advisory_lock(chatID) on a dedicated connection and keeps
// that connection until unlock. Get and the mutations issued for chatID in
// the meantime run on it.
func (s *PostgresStore) Lock(ctx context.Context, chatID int64) (func(), error) {
	release, err := s.local.Lock(ctx, chatID)
	if err != nil {
		return nil, err
	}
	conn, err := s.db.Connx(ctx)
	if err != nil {
		release()
		if ctx.Err() != nil {
			return nil, lockErr(ctx)
		}
		return nil, fmt.Errorf("session lock conn: %w", err)
	}
	if _, err := conn.ExecContext(ctx, advisoryLockSQL, chatID); err != nil {
		_ = conn.Close()
		release()
		if ctx.Err() != nil {
			return nil, lockErr(ctx)
		}
		return nil, fmt.Errorf("session lock: %w", err)
	}

	s.mu.Lock()
	s.held[chatID] = conn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.held, chatID)
			s.mu.Unlock()
			s.unlock(ctx, conn, chatID)
			release()
		})
	}, nil
}

func (s *PostgresStore) unlock(ctx context.Context, conn *sqlx.Conn, chatID int64) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(uctx, advisoryFreeSQL, chatID); err != nil {
		logger.Component("session").Warn("advisory unlock failed",
			slog.String("event", "session.unlock"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		// A pooled conn that still holds the lock must not be reused.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	_ = conn.Close()
}

func (s *PostgresStore) mutate(ctx context.Context, chatID int64, fn func(prior []int) []int) ([]int, error) {
	tx, err := s.conn(chatID).BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, ensureSessionSQL, chatID); err != nil {
		return nil, err
	}
	var current pq.Int64Array
	if err := tx.GetContext(ctx, &current, selectForUpdate, chatID); err != nil {
		return nil, err
	}
	prior := toInts(current)
	next := fn(append([]int(nil), prior...))
	if _, err := tx.ExecContext(ctx, updateSessionSQL, chatID, toInt64s(next)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return prior, nil
}

func toInts(ids pq.Int64Array) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}

func toInt64s(ids []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}
