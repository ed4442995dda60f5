// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"github.com/ava-labs/avalanchego/ids"
)

// MaxAccountDeletionStorageUsage is the largest storage usage, excluding
// contract code, an account may have and still be deleted.
const MaxAccountDeletionStorageUsage uint64 = 10_000

// Account is the state stored under an account id.
type Account struct {
	Amount       Balance `serialize:"true"`
	Locked       Balance `serialize:"true"`
	CodeHash     ids.ID  `serialize:"true"`
	StorageUsage uint64  `serialize:"true"`
	Nonce        uint64  `serialize:"true"`
}

func NewAccount(amount, locked Balance, codeHash ids.ID, storageUsage uint64) *Account {
	return &Account{
		Amount:       amount,
		Locked:       locked,
		CodeHash:     codeHash,
		StorageUsage: storageUsage,
	}
}

// TotalBalance returns amount + locked.
func (a *Account) TotalBalance() (Balance, error) {
	return SafeAddBalance(a.Amount, a.Locked)
}

// HasCode returns true if a contract is deployed on the account.
func (a *Account) HasCode() bool { return a.CodeHash != ids.Empty }

// AccessKeyPermission scopes what an access key may sign.
type AccessKeyPermission interface {
	isAccessKeyPermission()
}

// FullAccessPermission allows any transaction.
type FullAccessPermission struct{}

// FunctionCallPermission restricts a key to calling [MethodNames] on
// [ReceiverID], paying at most [Allowance] when [HasAllowance] is set.
// An empty method list allows every method.
type FunctionCallPermission struct {
	Allowance    Balance  `serialize:"true"`
	HasAllowance bool     `serialize:"true"`
	ReceiverID   string   `serialize:"true"`
	MethodNames  []string `serialize:"true"`
}

func (*FullAccessPermission) isAccessKeyPermission()   {}
func (*FunctionCallPermission) isAccessKeyPermission() {}

// AccessKey binds a permission to a public key under an account.
type AccessKey struct {
	Permission AccessKeyPermission `serialize:"true"`
}

func FullAccessKey() *AccessKey {
	return &AccessKey{Permission: &FullAccessPermission{}}
}

// IsFullAccess returns true for keys that may sign any transaction.
func (k *AccessKey) IsFullAccess() bool {
	_, ok := k.Permission.(*FullAccessPermission)
	return ok
}

// Bytes returns the canonical encoding of the key.
func (k *AccessKey) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, k)
}
