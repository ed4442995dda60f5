// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDatabase(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	db, err := openDatabase(dir)
	require.NoError(err)
	require.NoError(db.Put([]byte("k"), []byte("v")))
	require.NoError(db.Close())

	db, err = openDatabase(dir)
	require.NoError(err)
	value, err := db.Get([]byte("k"))
	require.NoError(err)
	assert.Equal([]byte("v"), value)
	require.NoError(db.Close())

	mem, err := openDatabase("")
	require.NoError(err)
	has, err := mem.Has([]byte("k"))
	require.NoError(err)
	assert.False(has)
}
