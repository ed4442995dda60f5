// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"sort"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/pkg/errors"

	"github.com/ava-labs/receiptvm/primitives"
)

var errPendingProspective = errors.New("finalize called with uncommitted changes")

// TrieUpdate stages changes on top of a state root in two layers. Writes go
// to the prospective layer, Commit moves them to the committed layer and
// Rollback discards them. Finalize turns the committed layer into
// TrieChanges.
type TrieUpdate struct {
	root ids.ID
	base database.Database

	committed   *versiondb.Database
	prospective *versiondb.Database

	// prospectiveKeys are the keys written since the last commit, in order.
	prospectiveKeys [][]byte
	prospectiveSet  map[string]struct{}

	// committedChanges holds every committed change per key.
	committedChanges map[string][]primitives.StateChangeWithCause
}

func newTrieUpdate(root ids.ID, db database.Database) *TrieUpdate {
	committed := versiondb.New(db)
	return &TrieUpdate{
		root:             root,
		base:             db,
		committed:        committed,
		prospective:      versiondb.New(committed),
		prospectiveSet:   make(map[string]struct{}),
		committedChanges: make(map[string][]primitives.StateChangeWithCause),
	}
}

// Root is the state root this update is based on.
func (u *TrieUpdate) Root() ids.ID { return u.root }

// Get returns the value of [key], looking at uncommitted changes first.
func (u *TrieUpdate) Get(key []byte) ([]byte, bool, error) {
	value, err := u.prospective.Get(key)
	switch {
	case err == database.ErrNotFound:
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrapf(err, "couldn't read key %x", key)
	default:
		return value, true, nil
	}
}

func (u *TrieUpdate) Has(key []byte) (bool, error) {
	has, err := u.prospective.Has(key)
	if err != nil {
		return false, errors.Wrapf(err, "couldn't read key %x", key)
	}
	return has, nil
}

func (u *TrieUpdate) Set(key, value []byte) error {
	u.track(key)
	return u.prospective.Put(key, copyBytes(value))
}

func (u *TrieUpdate) Remove(key []byte) error {
	u.track(key)
	return u.prospective.Delete(key)
}

func (u *TrieUpdate) track(key []byte) {
	if _, ok := u.prospectiveSet[string(key)]; ok {
		return
	}
	u.prospectiveSet[string(key)] = struct{}{}
	u.prospectiveKeys = append(u.prospectiveKeys, copyBytes(key))
}

// Commit moves the prospective changes into the committed layer, recording
// [cause] for each of them.
func (u *TrieUpdate) Commit(cause primitives.StateChangeCause) error {
	for _, key := range u.prospectiveKeys {
		value, err := u.prospective.Get(key)
		change := primitives.StateChangeWithCause{Cause: cause}
		switch {
		case err == database.ErrNotFound:
			change.Value.Deleted = true
		case err != nil:
			return errors.Wrapf(err, "couldn't read key %x", key)
		default:
			change.Value.Value = value
		}
		u.committedChanges[string(key)] = append(u.committedChanges[string(key)], change)
	}
	if err := u.prospective.Commit(); err != nil {
		return errors.Wrap(err, "couldn't commit prospective changes")
	}
	u.clearProspective()
	return nil
}

// Rollback discards every change since the last commit.
func (u *TrieUpdate) Rollback() {
	u.prospective.Abort()
	u.clearProspective()
}

func (u *TrieUpdate) clearProspective() {
	u.prospectiveKeys = nil
	u.prospectiveSet = make(map[string]struct{})
}

// Iterate calls [f] for every key starting with [prefix], in key order,
// including uncommitted changes.
func (u *TrieUpdate) Iterate(prefix []byte, f func(key, value []byte) error) error {
	it := u.prospective.NewIteratorWithPrefix(prefix)
	defer it.Release()

	for it.Next() {
		if err := f(copyBytes(it.Key()), copyBytes(it.Value())); err != nil {
			return err
		}
	}
	return errors.Wrapf(it.Error(), "couldn't iterate prefix %x", prefix)
}

// Keys returns every key starting with [prefix], in key order.
func (u *TrieUpdate) Keys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := u.Iterate(prefix, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

// Finalize computes the new root and returns the committed changes. The
// update must not have uncommitted changes.
func (u *TrieUpdate) Finalize() (*TrieChanges, []primitives.StateChangesForKey, error) {
	if len(u.prospectiveKeys) != 0 {
		return nil, nil, errPendingProspective
	}

	keys := make([]string, 0, len(u.committedChanges))
	for key := range u.committedChanges {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changes := &TrieChanges{
		OldRoot: u.root,
		Changes: make([]KeyValueChange, 0, len(keys)),
	}
	stateChanges := make([]primitives.StateChangesForKey, 0, len(keys))
	for _, key := range keys {
		history := u.committedChanges[key]
		last := history[len(history)-1].Value
		changes.Changes = append(changes.Changes, KeyValueChange{
			Key:     []byte(key),
			Value:   last.Value,
			Deleted: last.Deleted,
		})
		stateChanges = append(stateChanges, primitives.StateChangesForKey{
			TrieKey: []byte(key),
			Changes: history,
		})
	}

	newRoot, err := foldRoot(u.root, changes.Changes, u.baseValue)
	if err != nil {
		return nil, nil, err
	}
	changes.NewRoot = newRoot
	return changes, stateChanges, nil
}

func (u *TrieUpdate) baseValue(key []byte) ([]byte, bool, error) {
	value, err := u.base.Get(key)
	switch {
	case err == database.ErrNotFound:
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrapf(err, "couldn't read key %x", key)
	default:
		return value, true, nil
	}
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
