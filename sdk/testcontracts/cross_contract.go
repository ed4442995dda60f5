// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testcontracts

import (
	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/sdk"
)

// Gas attached to the cross-contract calls made by the caller.
const (
	CrossCallGas   uint64 = 20_000_000_000_000
	CallbackGas    uint64 = 20_000_000_000_000
	callbackPrefix        = "callback:"
)

type CallArgs struct {
	Callee string `json:"callee"`
	Value  string `json:"value"`
}

type Status struct {
	Message string `serialize:"true" json:"message"`
}

func zero() primitives.Balance { return primitives.Balance{} }

func callee() *host.Program {
	return sdk.NewProgram(CalleeName,
		sdk.Binding{Name: "echo", Handler: func(c *sdk.Call) interface{} {
			c.ValueReturn(c.Input())
			return nil
		}},
		sdk.Binding{Name: "set_status", Serializer: sdk.SerializerBinary, Handler: func(c *sdk.Call) interface{} {
			var status Status
			c.Args(&status)
			c.StateWrite(&status)
			return nil
		}},
		sdk.Binding{Name: "get_status", View: true, Serializer: sdk.SerializerBinary, Handler: func(c *sdk.Call) interface{} {
			var status Status
			c.StateRead(&status)
			return &status
		}},
	)
}

func caller() *host.Program {
	return sdk.NewProgram(CallerName,
		sdk.Binding{Name: "call_echo", Handler: func(c *sdk.Call) interface{} {
			var args CallArgs
			c.Args(&args)
			return c.NewPromise(args.Callee).FunctionCall("echo", []byte(args.Value), zero(), CrossCallGas)
		}},
		sdk.Binding{Name: "call_with_callback", Handler: func(c *sdk.Call) interface{} {
			var args CallArgs
			c.Args(&args)
			echo := c.NewPromise(args.Callee).FunctionCall("echo", []byte(args.Value), zero(), CrossCallGas)
			return echo.Then(c.NewPromise(c.CurrentAccountID()).FunctionCall("on_echo", nil, zero(), CallbackGas))
		}},
		sdk.Binding{Name: "on_echo", Handler: func(c *sdk.Call) interface{} {
			if c.PredecessorAccountID() != c.CurrentAccountID() {
				c.Panic("Method on_echo is private")
			}
			result := c.PromiseResult(0)
			if result.Kind != host.PromiseSuccessful {
				c.Panic("echo failed")
			}
			c.ValueReturn(append([]byte(callbackPrefix), result.Data...))
			return nil
		}},
	)
}
