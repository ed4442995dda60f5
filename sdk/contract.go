// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sdk

import (
	"fmt"

	"github.com/ava-labs/receiptvm/host"
)

// stateKey is where StateRead and StateWrite keep the contract state.
var stateKey = []byte("STATE")

// Handler runs a contract method. A returned Promise becomes the result of
// the call. nil returns nothing and any other value is encoded with the
// binding's serializer.
type Handler func(c *Call) interface{}

// Binding exposes a Handler as a contract method.
type Binding struct {
	Name       string
	Serializer Serializer
	// Payable methods accept an attached deposit.
	Payable bool
	// View methods only read state. The deposit check is skipped for them
	// since view calls can't read the deposit.
	View    bool
	Handler Handler
}

// Call is the environment of one method invocation.
type Call struct {
	*Env
	serializer Serializer
}

// Args decodes the call input into [v]. The method panics if it can't.
func (c *Call) Args(v interface{}) {
	if err := c.serializer.Unmarshal(c.Input(), v); err != nil {
		c.Panic(fmt.Sprintf("Failed to deserialize input from %s: %s", c.serializer, err))
	}
}

// StateRead decodes the contract state into [v] and returns false if no
// state was written yet.
func (c *Call) StateRead(v interface{}) bool {
	raw, ok := c.StorageRead(stateKey)
	if !ok {
		return false
	}
	if err := SerializerBinary.Unmarshal(raw, v); err != nil {
		c.Panic("Cannot deserialize the contract state.")
	}
	return true
}

func (c *Call) StateWrite(v interface{}) {
	raw, err := SerializerBinary.Marshal(v)
	if err != nil {
		c.Panic("Cannot serialize the contract state.")
	}
	c.StorageWrite(stateKey, raw)
}

// NewProgram builds a contract called [name] out of [bindings].
func NewProgram(name string, bindings ...Binding) *host.Program {
	methods := make(map[string]host.Method, len(bindings))
	for _, b := range bindings {
		methods[b.Name] = b.method()
	}
	return &host.Program{Name: name, Methods: methods}
}

func (b Binding) method() host.Method {
	return func(g *host.Guest) {
		env := NewEnv(g)
		if !b.Payable && !b.View {
			deposit := env.AttachedDeposit()
			if !deposit.IsZero() {
				env.Panic(fmt.Sprintf("Method %s doesn't accept deposit", b.Name))
			}
		}
		call := &Call{Env: env, serializer: b.Serializer}
		switch result := b.Handler(call).(type) {
		case nil:
		case Promise:
			result.AsReturn()
		default:
			raw, err := b.Serializer.Marshal(result)
			if err != nil {
				env.Panic(fmt.Sprintf("Failed to serialize the result using %s: %s", b.Serializer, err))
			}
			env.ValueReturn(raw)
		}
		// Promises the handler left pending still become receipts.
		env.promises.finalize()
	}
}
