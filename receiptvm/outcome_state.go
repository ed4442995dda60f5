// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receiptvm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/pkg/errors"

	"github.com/ava-labs/receiptvm/primitives"
)

var _ OutcomeState = &outcomeState{}

// OutcomeState stores the outcome of every transaction and receipt by the
// ID it was produced for.
type OutcomeState interface {
	GetOutcome(id ids.ID) (*primitives.ExecutionOutcome, error)
	PutOutcome(outcome *primitives.ExecutionOutcomeWithID) error
}

type outcomeState struct {
	outcomeDB database.Database
}

func NewOutcomeState(db database.Database) OutcomeState {
	return &outcomeState{outcomeDB: db}
}

func (s *outcomeState) GetOutcome(id ids.ID) (*primitives.ExecutionOutcome, error) {
	b, err := s.outcomeDB.Get(id[:])
	if err != nil {
		return nil, err
	}
	outcome := &primitives.ExecutionOutcome{}
	if err := primitives.Unmarshal(b, outcome); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse outcome %s", id)
	}
	return outcome, nil
}

func (s *outcomeState) PutOutcome(outcome *primitives.ExecutionOutcomeWithID) error {
	b, err := primitives.Marshal(&outcome.Outcome)
	if err != nil {
		return errors.Wrapf(err, "couldn't marshal outcome %s", outcome.ID)
	}
	return s.outcomeDB.Put(outcome.ID[:], b)
}
