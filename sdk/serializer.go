// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sdk

import (
	"encoding/json"
	"fmt"

	"github.com/ava-labs/receiptvm/primitives"
)

// Serializer selects how a method decodes its arguments and encodes its
// result.
type Serializer uint8

const (
	SerializerJSON Serializer = iota
	// SerializerBinary uses the chain codec. Structs need serialize tags.
	SerializerBinary
)

func (s Serializer) String() string {
	switch s {
	case SerializerJSON:
		return "json"
	case SerializerBinary:
		return "binary"
	default:
		return "unknown"
	}
}

func (s Serializer) Marshal(v interface{}) ([]byte, error) {
	switch s {
	case SerializerJSON:
		return json.Marshal(v)
	case SerializerBinary:
		return primitives.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown serializer %d", s)
	}
}

func (s Serializer) Unmarshal(b []byte, v interface{}) error {
	switch s {
	case SerializerJSON:
		return json.Unmarshal(b, v)
	case SerializerBinary:
		return primitives.Unmarshal(b, v)
	default:
		return fmt.Errorf("unknown serializer %d", s)
	}
}
