// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// ExecutionStatus is the terminal state of a transaction or receipt.
type ExecutionStatus interface {
	fmt.Stringer
	isExecutionStatus()
}

// StatusUnknown is the status of an outcome that was not produced yet.
type StatusUnknown struct{}

// StatusFailure records a recoverable failure.
type StatusFailure struct {
	Error TxExecutionError `serialize:"true"`
}

// StatusSuccessValue carries the value returned by the last action.
type StatusSuccessValue struct {
	Value []byte `serialize:"true"`
}

// StatusSuccessReceiptID points to the receipt whose outcome is the result.
type StatusSuccessReceiptID struct {
	ReceiptID ids.ID `serialize:"true"`
}

func (StatusUnknown) isExecutionStatus()          {}
func (StatusFailure) isExecutionStatus()          {}
func (StatusSuccessValue) isExecutionStatus()     {}
func (StatusSuccessReceiptID) isExecutionStatus() {}

func (StatusUnknown) String() string            { return "Unknown" }
func (s StatusFailure) String() string          { return fmt.Sprintf("Failure(%s)", s.Error) }
func (s StatusSuccessValue) String() string     { return fmt.Sprintf("SuccessValue(%x)", s.Value) }
func (s StatusSuccessReceiptID) String() string { return fmt.Sprintf("SuccessReceiptId(%s)", s.ReceiptID) }

// ExecutionOutcome is the result of a transaction or receipt.
type ExecutionOutcome struct {
	Logs []string `serialize:"true"`
	// ReceiptIDs are the action receipts created by this execution.
	ReceiptIDs  []ids.ID        `serialize:"true"`
	GasBurnt    Gas             `serialize:"true"`
	TokensBurnt Balance         `serialize:"true"`
	ExecutorID  string          `serialize:"true"`
	Status      ExecutionStatus `serialize:"true"`
}

type ExecutionOutcomeWithID struct {
	ID      ids.ID           `serialize:"true"`
	Outcome ExecutionOutcome `serialize:"true"`
}
