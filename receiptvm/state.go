// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"

	"github.com/ava-labs/receiptvm/state"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonStatePrefix = []byte("singleton")
	blockStatePrefix     = []byte("block")
	heightStatePrefix    = []byte("height")
	outcomeStatePrefix   = []byte("outcome")
	trieStatePrefix      = []byte("trie")

	_ State = &vmState{}
)

// State is a wrapper around SingletonState, BlockState and OutcomeState.
// It also exposes the runtime tries and the methods needed for managing
// database commits and close.
type State interface {
	SingletonState
	BlockState
	OutcomeState

	Tries() *state.Tries

	Commit() error
	Abort()
	Close() error
}

type vmState struct {
	SingletonState
	BlockState
	OutcomeState

	tries  *state.Tries
	baseDB *versiondb.Database
}

func NewState(db database.Database) State {
	// create a new baseDB
	baseDB := versiondb.New(db)

	return &vmState{
		SingletonState: NewSingletonState(prefixdb.New(singletonStatePrefix, baseDB)),
		BlockState: NewBlockState(
			prefixdb.New(blockStatePrefix, baseDB),
			prefixdb.New(heightStatePrefix, baseDB),
		),
		OutcomeState: NewOutcomeState(prefixdb.New(outcomeStatePrefix, baseDB)),
		tries:        state.NewTries(prefixdb.New(trieStatePrefix, baseDB)),
		baseDB:       baseDB,
	}
}

func (s *vmState) Tries() *state.Tries { return s.tries }

// Commit commits pending operations to baseDB
func (s *vmState) Commit() error {
	return s.baseDB.Commit()
}

// Abort drops pending operations and the cached blocks that may refer to
// them.
func (s *vmState) Abort() {
	s.baseDB.Abort()
	s.ClearCache()
}

// Close closes the underlying base database
func (s *vmState) Close() error {
	return s.baseDB.Close()
}
