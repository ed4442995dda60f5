// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/mr-tron/base58"
)

const (
	PublicKeyLen  = 33
	SignatureLen  = 65
	keyTypePrefix = "secp256k1:"

	recoverCacheSize = 2048
)

var (
	factory = crypto.FactorySECP256K1R{Cache: cache.LRU{Size: recoverCacheSize}}

	errInvalidKeyType = errors.New("public key must start with " + keyTypePrefix)
)

// Signer signs transactions on behalf of an account.
type Signer interface {
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// InMemorySigner holds a secp256k1 key derived from a seed.
type InMemorySigner struct {
	AccountID string

	sk crypto.PrivateKey
	pk []byte
}

// NewInMemorySigner derives a deterministic key for [accountID] from [seed].
func NewInMemorySigner(accountID string, seed string) (*InMemorySigner, error) {
	digest := sha256.Sum256([]byte(seed))
	sk, err := factory.ToPrivateKey(digest[:])
	if err != nil {
		return nil, fmt.Errorf("couldn't derive key: %w", err)
	}
	return &InMemorySigner{
		AccountID: accountID,
		sk:        sk,
		pk:        sk.PublicKey().Bytes(),
	}, nil
}

// NewTestSigner is NewInMemorySigner with the account id as the seed.
func NewTestSigner(accountID string) *InMemorySigner {
	s, err := NewInMemorySigner(accountID, accountID)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *InMemorySigner) PublicKey() []byte { return s.pk }

func (s *InMemorySigner) Sign(msg []byte) ([]byte, error) { return s.sk.Sign(msg) }

// VerifySignature checks [sig] over [msg] against the compressed key [pk].
func VerifySignature(pk []byte, msg []byte, sig []byte) bool {
	if len(sig) != SignatureLen {
		return false
	}
	key, err := factory.ToPublicKey(pk)
	if err != nil {
		return false
	}
	return key.Verify(msg, sig)
}

// Ecrecover returns the compressed public key that produced [sig] over the
// 32 byte [hash].
func Ecrecover(hash []byte, sig []byte) ([]byte, error) {
	pk, err := factory.RecoverHashPublicKey(hash, sig)
	if err != nil {
		return nil, err
	}
	return pk.Bytes(), nil
}

// PublicKeyString renders [pk] in its textual form.
func PublicKeyString(pk []byte) string {
	return keyTypePrefix + base58.Encode(pk)
}

func ParsePublicKey(s string) ([]byte, error) {
	if !strings.HasPrefix(s, keyTypePrefix) {
		return nil, errInvalidKeyType
	}
	pk, err := base58.Decode(strings.TrimPrefix(s, keyTypePrefix))
	if err != nil {
		return nil, err
	}
	if len(pk) != PublicKeyLen {
		return nil, fmt.Errorf("public key has length %d, expected %d", len(pk), PublicKeyLen)
	}
	return pk, nil
}
