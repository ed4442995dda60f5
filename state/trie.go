// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	trieStatePrefix = []byte("state")
	trieMetaPrefix  = []byte("meta")

	rootKey = []byte("root")

	// ErrUnknownStateRoot is returned when a root other than the head is
	// requested. Only the latest state is retained.
	ErrUnknownStateRoot = errors.New("unknown state root")
	errRootMismatch     = errors.New("trie changes don't apply on the current root")
)

// KeyValueChange is the final value of a key after a batch of changes.
type KeyValueChange struct {
	Key     []byte
	Value   []byte
	Deleted bool
}

// TrieChanges moves the state from OldRoot to NewRoot.
type TrieChanges struct {
	OldRoot ids.ID
	NewRoot ids.ID
	Changes []KeyValueChange
}

// Tries stores the latest state and its root.
type Tries struct {
	lock sync.RWMutex

	baseDB  *versiondb.Database
	stateDB database.Database
	metaDB  database.Database
}

func NewTries(db database.Database) *Tries {
	baseDB := versiondb.New(db)
	return &Tries{
		baseDB:  baseDB,
		stateDB: prefixdb.New(trieStatePrefix, baseDB),
		metaDB:  prefixdb.New(trieMetaPrefix, baseDB),
	}
}

// NewTestTries returns empty in-memory tries.
func NewTestTries() *Tries {
	return NewTries(memdb.New())
}

// Root returns the root of the latest state. An empty state has root
// ids.Empty.
func (t *Tries) Root() (ids.ID, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.root()
}

func (t *Tries) root() (ids.ID, error) {
	b, err := t.metaDB.Get(rootKey)
	if err == database.ErrNotFound {
		return ids.Empty, nil
	}
	if err != nil {
		return ids.Empty, errors.Wrap(err, "couldn't read state root")
	}
	return ids.ToID(b)
}

// NewTrieUpdate opens a staged update on top of [root], which must be the
// latest root.
func (t *Tries) NewTrieUpdate(root ids.ID) (*TrieUpdate, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	head, err := t.root()
	if err != nil {
		return nil, err
	}
	if head != root {
		return nil, errors.Wrapf(ErrUnknownStateRoot, "requested %s, head is %s", root, head)
	}
	return newTrieUpdate(root, t.stateDB), nil
}

// ApplyChanges writes [changes] and moves the head to the new root.
func (t *Tries) ApplyChanges(changes *TrieChanges) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	head, err := t.root()
	if err != nil {
		return err
	}
	if head != changes.OldRoot {
		return errors.Wrapf(errRootMismatch, "expected %s, head is %s", changes.OldRoot, head)
	}
	for _, change := range changes.Changes {
		if change.Deleted {
			err = t.stateDB.Delete(change.Key)
		} else {
			err = t.stateDB.Put(change.Key, change.Value)
		}
		if err != nil {
			t.baseDB.Abort()
			return errors.Wrapf(err, "couldn't write key %x", change.Key)
		}
	}
	if err := t.metaDB.Put(rootKey, changes.NewRoot[:]); err != nil {
		t.baseDB.Abort()
		return errors.Wrap(err, "couldn't write state root")
	}
	return t.baseDB.Commit()
}

// Close closes the underlying database.
func (t *Tries) Close() error {
	return t.baseDB.Close()
}

// foldRoot moves [root] over [changes]. The root is the sum, modulo 2^256,
// of the leaf hashes of every key/value pair in the state, so only the
// changed keys are hashed. [old] returns the value a key had under [root].
func foldRoot(root ids.ID, changes []KeyValueChange, old func(key []byte) ([]byte, bool, error)) (ids.ID, error) {
	acc := new(uint256.Int).SetBytes(root[:])
	for _, change := range changes {
		value, ok, err := old(change.Key)
		if err != nil {
			return ids.Empty, err
		}
		if ok {
			acc.Sub(acc, leafInt(change.Key, value))
		}
		if !change.Deleted {
			acc.Add(acc, leafInt(change.Key, change.Value))
		}
	}
	return ids.ID(acc.Bytes32()), nil
}

func leafInt(key, value []byte) *uint256.Int {
	h := leafHash(key, value)
	return new(uint256.Int).SetBytes(h[:])
}

func leafHash(key, value []byte) ids.ID {
	valueHash := hashing.ComputeHash256Array(value)
	buf := make([]byte, 4+len(key)+len(valueHash))
	binary.BigEndian.PutUint32(buf, uint32(len(key)))
	copy(buf[4:], key)
	copy(buf[4+len(key):], valueHash[:])
	return ids.ID(hashing.ComputeHash256Array(buf))
}
