package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
	"github.com/trezcool/masomo-notices/core/notice"
	"github.com/trezcool/masomo-notices/core/user"
)

type (
	// DB keeps every table in memory. Its zero value is not usable; use Open.
	DB struct {
		txMu sync.Mutex

		sync.RWMutex
		users      map[string]user.User
		groups     map[string]group.Group // MemberIDs hold the membership edges
		deliveries map[string]notice.Delivery
	}

	snapshot struct {
		users      map[string]user.User
		groups     map[string]group.Group
		deliveries map[string]notice.Delivery
	}
)

var _ core.TxRunner = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		users:      make(map[string]user.User),
		groups:     make(map[string]group.Group),
		deliveries: make(map[string]notice.Delivery),
	}
}

// RunInTx serializes transactions and restores every table if fn fails.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	if err := fn(nil); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

// Flush empties every table.
func (db *DB) Flush() {
	db.restore(snapshot{})
}

func (db *DB) snapshot() snapshot {
	db.RLock()
	defer db.RUnlock()

	snap := snapshot{
		users:      make(map[string]user.User, len(db.users)),
		groups:     make(map[string]group.Group, len(db.groups)),
		deliveries: make(map[string]notice.Delivery, len(db.deliveries)),
	}
	for k, v := range db.users {
		snap.users[k] = v
	}
	for k, v := range db.groups {
		v.MemberIDs = append([]string(nil), v.MemberIDs...)
		snap.groups[k] = v
	}
	for k, v := range db.deliveries {
		snap.deliveries[k] = v
	}
	return snap
}

func (db *DB) restore(snap snapshot) {
	db.Lock()
	defer db.Unlock()

	db.users = snap.users
	db.groups = snap.groups
	db.deliveries = snap.deliveries
	if db.users == nil {
		db.users = make(map[string]user.User)
	}
	if db.groups == nil {
		db.groups = make(map[string]group.Group)
	}
	if db.deliveries == nil {
		db.deliveries = make(map[string]notice.Delivery)
	}
}

// page slices items to the requested window.
func page(n int, p core.Pagination) (start, end int) {
	start, end = p.Offset, p.Offset+p.Limit
	if start > n {
		start = n
	}
	if end > n || p.Limit <= 0 {
		end = n
	}
	return start, end
}
