// ABOUTME: Registries mapping opaque integer handles to server-side state
// ABOUTME: Transactions map to held connections, cursors to result sequences

package datastore

import (
	"database/sql"
	"sync"

	"github.com/openprm/datastore/internal/entity"
)

// txRegistry assigns monotonically increasing transaction handles and maps
// them to held connections. The lock guards only allocation, lookup and
// removal, never the database work done on the connection.
type txRegistry struct {
	mu   sync.Mutex
	next int64
	open map[int64]*sql.Conn
}

func newTxRegistry() *txRegistry {
	return &txRegistry{next: 1, open: make(map[int64]*sql.Conn)}
}

func (r *txRegistry) add(conn *sql.Conn) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.next
	r.next++
	r.open[handle] = conn
	return handle
}

func (r *txRegistry) get(handle int64) (*sql.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.open[handle]
	return conn, ok
}

func (r *txRegistry) remove(handle int64) (*sql.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.open[handle]
	if ok {
		delete(r.open, handle)
	}
	return conn, ok
}

// cursorState is one registered query result: the remaining ordered sequence
// and the original total count.
type cursorState struct {
	remaining []*entity.Entity
	total     int
}

// cursorRegistry assigns monotonically increasing cursor ids and maps them to
// buffered query results consumed incrementally by Next.
type cursorRegistry struct {
	mu   sync.Mutex
	next int64
	open map[int64]*cursorState
}

func newCursorRegistry() *cursorRegistry {
	return &cursorRegistry{next: 1, open: make(map[int64]*cursorState)}
}

func (r *cursorRegistry) add(results []*entity.Entity) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.open[id] = &cursorState{remaining: results, total: len(results)}
	return id
}

// take pops up to count leading entities from the cursor's remaining
// sequence. The found return is false for unknown ids. A cursor found already
// exhausted answers empty once and is then removed, so later lookups fail.
func (r *cursorRegistry) take(id int64, count int) (results []*entity.Entity, more bool, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.open[id]
	if !ok {
		return nil, false, false
	}
	if len(state.remaining) == 0 {
		delete(r.open, id)
		return nil, false, true
	}
	if count < 0 {
		count = 0
	}
	if count > len(state.remaining) {
		count = len(state.remaining)
	}
	results = state.remaining[:count]
	state.remaining = state.remaining[count:]
	return results, len(state.remaining) > 0, true
}
