// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"github.com/ava-labs/avalanchego/ids"
)

// StateRecord is one entry of a genesis state dump.
type StateRecord interface {
	isStateRecord()
}

type AccountRecord struct {
	AccountID string  `serialize:"true"`
	Account   Account `serialize:"true"`
}

type DataRecord struct {
	AccountID string `serialize:"true"`
	Key       []byte `serialize:"true"`
	Value     []byte `serialize:"true"`
}

type ContractRecord struct {
	AccountID string `serialize:"true"`
	Code      []byte `serialize:"true"`
}

type AccessKeyRecord struct {
	AccountID string    `serialize:"true"`
	PublicKey []byte    `serialize:"true"`
	AccessKey AccessKey `serialize:"true"`
}

type PostponedReceiptRecord struct {
	Receipt Receipt `serialize:"true"`
}

type ReceivedDataRecord struct {
	AccountID string `serialize:"true"`
	DataID    ids.ID `serialize:"true"`
	Data      []byte `serialize:"true"`
	HasData   bool   `serialize:"true"`
}

type DelayedReceiptRecord struct {
	Receipt Receipt `serialize:"true"`
}

func (*AccountRecord) isStateRecord()          {}
func (*DataRecord) isStateRecord()             {}
func (*ContractRecord) isStateRecord()         {}
func (*AccessKeyRecord) isStateRecord()        {}
func (*PostponedReceiptRecord) isStateRecord() {}
func (*ReceivedDataRecord) isStateRecord()     {}
func (*DelayedReceiptRecord) isStateRecord()   {}
