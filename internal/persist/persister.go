// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"github.com/loomchat/loom/internal/logging"
)

// Snapshotter is anything that can project its durable state as a Snapshot.
// The session store satisfies it.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Persister saves a Snapshotter's state through a Store. It is meant to be
// hooked into the store's change notifications:
//
//	p := persist.NewPersister(pstore, engine)
//	engine.OnChange(p.Persist)
type Persister struct {
	store *Store
	src   Snapshotter
}

// NewPersister creates a persister writing src's snapshots to store.
func NewPersister(store *Store, src Snapshotter) *Persister {
	return &Persister{store: store, src: src}
}

// Persist saves the current snapshot. Failures are logged, not returned: a
// change notification has no caller to hand the error to, and the next
// mutation retries anyway.
func (p *Persister) Persist() {
	if err := p.store.Save(p.src.Snapshot()); err != nil {
		logging.Warnf("persist: save failed: %v", err)
	}
}
