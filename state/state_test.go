// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/receiptvm/primitives"
)

var testCause = primitives.StateChangeCause{Kind: primitives.CauseInitialState}

func TestTrieUpdateCommitRollback(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tries := NewTestTries()
	root, err := tries.Root()
	require.NoError(err)
	assert.Equal(ids.Empty, root)

	u, err := tries.NewTrieUpdate(root)
	require.NoError(err)

	require.NoError(u.Set([]byte("a"), []byte("1")))
	value, ok, err := u.Get([]byte("a"))
	assert.NoError(err)
	assert.True(ok)
	assert.Equal([]byte("1"), value)

	u.Rollback()
	_, ok, err = u.Get([]byte("a"))
	assert.NoError(err)
	assert.False(ok)

	require.NoError(u.Set([]byte("b"), []byte("2")))
	require.NoError(u.Commit(testCause))
	require.NoError(u.Set([]byte("b"), []byte("3")))
	u.Rollback()

	value, ok, err = u.Get([]byte("b"))
	assert.NoError(err)
	assert.True(ok)
	assert.Equal([]byte("2"), value)

	changes, stateChanges, err := u.Finalize()
	require.NoError(err)
	assert.Equal(ids.Empty, changes.OldRoot)
	assert.NotEqual(ids.Empty, changes.NewRoot)
	require.Len(changes.Changes, 1)
	assert.Equal([]byte("b"), changes.Changes[0].Key)
	require.Len(stateChanges, 1)
	assert.Len(stateChanges[0].Changes, 1)
}

func TestFinalizeRequiresCommit(t *testing.T) {
	tries := NewTestTries()
	u, err := tries.NewTrieUpdate(ids.Empty)
	require.NoError(t, err)
	require.NoError(t, u.Set([]byte("a"), []byte("1")))
	_, _, err = u.Finalize()
	assert.ErrorIs(t, err, errPendingProspective)
}

func TestApplyChanges(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tries := NewTestTries()
	u, err := tries.NewTrieUpdate(ids.Empty)
	require.NoError(err)
	require.NoError(u.Set([]byte("a"), []byte("1")))
	require.NoError(u.Set([]byte("b"), []byte("2")))
	require.NoError(u.Commit(testCause))
	changes, _, err := u.Finalize()
	require.NoError(err)
	require.NoError(tries.ApplyChanges(changes))

	root, err := tries.Root()
	require.NoError(err)
	assert.Equal(changes.NewRoot, root)

	// A stale update can't be applied twice.
	assert.ErrorIs(tries.ApplyChanges(changes), errRootMismatch)

	// Only the head can be opened.
	_, err = tries.NewTrieUpdate(ids.Empty)
	assert.ErrorIs(err, ErrUnknownStateRoot)

	next, err := tries.NewTrieUpdate(root)
	require.NoError(err)
	value, ok, err := next.Get([]byte("a"))
	assert.NoError(err)
	assert.True(ok)
	assert.Equal([]byte("1"), value)

	// Removing everything brings back the empty root.
	require.NoError(next.Remove([]byte("a")))
	require.NoError(next.Remove([]byte("b")))
	require.NoError(next.Commit(testCause))
	changes, _, err = next.Finalize()
	require.NoError(err)
	assert.Equal(ids.Empty, changes.NewRoot)
}

func TestRootIsOrderIndependent(t *testing.T) {
	assert := assert.New(t)

	build := func(keys ...string) ids.ID {
		u, err := NewTestTries().NewTrieUpdate(ids.Empty)
		assert.NoError(err)
		for _, key := range keys {
			assert.NoError(u.Set([]byte(key), []byte(key)))
		}
		assert.NoError(u.Commit(testCause))
		changes, _, err := u.Finalize()
		assert.NoError(err)
		return changes.NewRoot
	}
	assert.Equal(build("a", "b", "c"), build("c", "a", "b"))
	assert.NotEqual(build("a", "b", "c"), build("a", "b"))
}

func TestRootOnlyDependsOnState(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	apply := func(tries *Tries, f func(u *TrieUpdate)) ids.ID {
		root, err := tries.Root()
		require.NoError(err)
		u, err := tries.NewTrieUpdate(root)
		require.NoError(err)
		f(u)
		require.NoError(u.Commit(testCause))
		changes, _, err := u.Finalize()
		require.NoError(err)
		require.NoError(tries.ApplyChanges(changes))
		return changes.NewRoot
	}

	stepped := NewTestTries()
	apply(stepped, func(u *TrieUpdate) {
		require.NoError(u.Set([]byte("a"), []byte("1")))
		require.NoError(u.Set([]byte("b"), []byte("2")))
	})
	unchanged := apply(stepped, func(u *TrieUpdate) {
		require.NoError(u.Set([]byte("a"), []byte("1")))
	})
	steppedRoot := apply(stepped, func(u *TrieUpdate) {
		require.NoError(u.Remove([]byte("a")))
		require.NoError(u.Set([]byte("b"), []byte("3")))
		require.NoError(u.Set([]byte("c"), []byte("4")))
		require.NoError(u.Remove([]byte("d")))
	})

	direct := NewTestTries()
	directRoot := apply(direct, func(u *TrieUpdate) {
		require.NoError(u.Set([]byte("c"), []byte("4")))
		require.NoError(u.Set([]byte("b"), []byte("3")))
	})
	assert.Equal(directRoot, steppedRoot)
	assert.NotEqual(unchanged, steppedRoot)

	// Rewriting a key with its current value keeps the root.
	again := apply(direct, func(u *TrieUpdate) {
		require.NoError(u.Set([]byte("b"), []byte("3")))
	})
	assert.Equal(directRoot, again)
}

func TestIterate(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	u, err := NewTestTries().NewTrieUpdate(ids.Empty)
	require.NoError(err)
	require.NoError(u.Set(ContractDataKey("alice", []byte("k2")), []byte("v2")))
	require.NoError(u.Set(ContractDataKey("alice", []byte("k1")), []byte("v1")))
	require.NoError(u.Set(ContractDataKey("alice.x", []byte("k3")), []byte("v3")))
	require.NoError(u.Commit(testCause))
	require.NoError(u.Remove(ContractDataKey("alice", []byte("k2"))))

	var got []string
	require.NoError(u.Iterate(ContractDataPrefix("alice"), func(key, value []byte) error {
		dataKey, ok := SplitContractDataKey("alice", key)
		assert.True(ok)
		got = append(got, string(dataKey)+"="+string(value))
		return nil
	}))
	assert.Equal([]string{"k1=v1"}, got)
}

func TestTypedStore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	u, err := NewTestTries().NewTrieUpdate(ids.Empty)
	require.NoError(err)

	account, err := GetAccount(u, "alice")
	assert.NoError(err)
	assert.Nil(account)

	pk := primitives.NewTestSigner("alice").PublicKey()
	require.NoError(SetAccount(u, "alice", primitives.NewAccount(primitives.NewBalance(10), primitives.NewBalance(0), ids.Empty, 100)))
	require.NoError(SetAccessKey(u, "alice", pk, primitives.FullAccessKey()))
	require.NoError(SetCode(u, "alice", []byte("code")))
	require.NoError(u.Set(ContractDataKey("alice", []byte("k")), []byte("v")))

	account, err = GetAccount(u, "alice")
	require.NoError(err)
	require.NotNil(account)
	assert.Equal(primitives.NewBalance(10), account.Amount)

	key, err := GetAccessKey(u, "alice", pk)
	require.NoError(err)
	require.NotNil(key)
	assert.True(key.IsFullAccess())

	indices, err := GetDelayedReceiptIndices(u)
	assert.NoError(err)
	assert.Equal(uint64(0), indices.Len())
	require.NoError(SetDelayedReceiptIndices(u, primitives.DelayedReceiptIndices{FirstIndex: 1, NextAvailableIndex: 3}))
	indices, err = GetDelayedReceiptIndices(u)
	assert.NoError(err)
	assert.Equal(uint64(2), indices.Len())

	require.NoError(SetPendingDataCount(u, "alice", ids.ID{1}, 2))
	count, ok, err := GetPendingDataCount(u, "alice", ids.ID{1})
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(uint32(2), count)

	require.NoError(RemoveAccount(u, "alice"))
	account, err = GetAccount(u, "alice")
	assert.NoError(err)
	assert.Nil(account)
	code, err := GetCode(u, "alice")
	assert.NoError(err)
	assert.Nil(code)
	key, err = GetAccessKey(u, "alice", pk)
	assert.NoError(err)
	assert.Nil(key)
	keys, err := u.Keys(ContractDataPrefix("alice"))
	assert.NoError(err)
	assert.Empty(keys)
}

func TestCorruptedValue(t *testing.T) {
	u, err := NewTestTries().NewTrieUpdate(ids.Empty)
	require.NoError(t, err)
	require.NoError(t, u.Set(AccountKey("alice"), []byte{0xff}))

	_, err = GetAccount(u, "alice")
	var storageErr *primitives.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, primitives.StorageInconsistentState, storageErr.Kind)
}
