// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package primitives

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// SystemAccountID is the predecessor of every refund receipt.
	SystemAccountID = "system"

	MinAccountIDLen = 2
	MaxAccountIDLen = 64

	// ImplicitAccountIDLen is the length of a hex encoded compressed
	// secp256k1 public key.
	ImplicitAccountIDLen = 66
)

var (
	errAccountIDTooShort = errors.New("account id is too short")
	errAccountIDTooLong  = errors.New("account id is too long")
	errBadImplicitID     = errors.New("account id is not implicit")
)

// ValidateAccountID returns nil iff [id] is a well formed account id.
//
// An id is a sequence of parts separated by '.', each part is made of
// lowercase alphanumerics joined by single '-' or '_' characters. Implicit
// ids are accepted even though they exceed MaxAccountIDLen.
func ValidateAccountID(id string) error {
	if IsImplicitAccountID(id) {
		return nil
	}
	switch {
	case len(id) < MinAccountIDLen:
		return errAccountIDTooShort
	case len(id) > MaxAccountIDLen:
		return errAccountIDTooLong
	}

	lastSeparator := true
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			lastSeparator = false
		case c == '-' || c == '_' || c == '.':
			if lastSeparator {
				return fmt.Errorf("unexpected separator %q at position %d in %q", c, i, id)
			}
			lastSeparator = true
		default:
			return fmt.Errorf("invalid character %q at position %d in %q", c, i, id)
		}
	}
	if lastSeparator {
		return fmt.Errorf("account id %q ends with a separator", id)
	}
	return nil
}

func IsValidAccountID(id string) bool { return ValidateAccountID(id) == nil }

func IsSystemAccount(id string) bool { return id == SystemAccountID }

// IsImplicitAccountID returns true if [id] is the hex form of a public key.
func IsImplicitAccountID(id string) bool {
	if len(id) != ImplicitAccountIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !((c >= 'a' && c <= 'f') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func IsTopLevelAccountID(id string) bool { return !strings.Contains(id, ".") }

// IsSubAccountOf returns true if [id] is a direct child of [parent].
func IsSubAccountOf(id, parent string) bool {
	if !strings.HasSuffix(id, "."+parent) {
		return false
	}
	head := id[:len(id)-len(parent)-1]
	return len(head) > 0 && !strings.Contains(head, ".")
}

// ImplicitAccountIDFromPublicKey returns the implicit account owned by [pk].
func ImplicitAccountIDFromPublicKey(pk []byte) string {
	return hex.EncodeToString(pk)
}

// PublicKeyFromImplicitAccountID returns the public key an implicit account
// id encodes.
func PublicKeyFromImplicitAccountID(id string) ([]byte, error) {
	if !IsImplicitAccountID(id) {
		return nil, errBadImplicitID
	}
	return hex.DecodeString(id)
}
