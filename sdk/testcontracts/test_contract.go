// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testcontracts

import (
	"strconv"

	"github.com/ava-labs/receiptvm/host"
	"github.com/ava-labs/receiptvm/primitives"
	"github.com/ava-labs/receiptvm/sdk"
)

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Key struct {
	Key string `json:"key"`
}

type BurnGasArgs struct {
	Opcodes uint32 `json:"opcodes"`
}

// PromiseOp is one step of call_promise. Ops refer to promises created by
// earlier ops through their position in the list.
type PromiseOp struct {
	// Op is one of create, then, and, create_account, transfer,
	// function_call, add_key, delete_key, delete_account and return.
	Op        string `json:"op"`
	AccountID string `json:"account_id,omitempty"`
	Promise   int    `json:"promise,omitempty"`
	Promises  []int  `json:"promises,omitempty"`
	Method    string `json:"method,omitempty"`
	Args      string `json:"args,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Gas       uint64 `json:"gas,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
}

// CallbackResult describes one promise result seen by a callback.
type CallbackResult struct {
	Status string `json:"status"`
	Data   string `json:"data,omitempty"`
}

func testContract() *host.Program {
	return sdk.NewProgram(TestContractName,
		sdk.Binding{Name: "noop", Handler: func(*sdk.Call) interface{} { return nil }},
		sdk.Binding{Name: "write_key_value", Handler: writeKeyValue},
		sdk.Binding{Name: "read_value", View: true, Handler: readValue},
		sdk.Binding{Name: "remove_key", Handler: removeKey},
		sdk.Binding{Name: "log_something", View: true, Handler: func(c *sdk.Call) interface{} {
			c.Log("hello")
			return nil
		}},
		sdk.Binding{Name: "panic_with_message", Handler: func(c *sdk.Call) interface{} {
			c.Panic("WAT?")
			return nil
		}},
		sdk.Binding{Name: "burn_gas", Handler: burnGas},
		sdk.Binding{Name: "ext_account_id", View: true, Handler: func(c *sdk.Call) interface{} {
			return c.CurrentAccountID()
		}},
		sdk.Binding{Name: "ext_predecessor_id", Handler: func(c *sdk.Call) interface{} {
			return c.PredecessorAccountID()
		}},
		sdk.Binding{Name: "ext_balance", Payable: true, Handler: func(c *sdk.Call) interface{} {
			return primitives.BalanceString(c.AccountBalance())
		}},
		sdk.Binding{Name: "call_promise", Payable: true, Handler: callPromise},
		sdk.Binding{Name: "callback_results", Handler: callbackResults},
		sdk.Binding{Name: "self_referencing_promise", Handler: selfReferencingPromise},
	)
}

func writeKeyValue(c *sdk.Call) interface{} {
	var args KeyValue
	c.Args(&args)
	c.StorageWrite([]byte(args.Key), []byte(args.Value))
	return nil
}

func readValue(c *sdk.Call) interface{} {
	var args Key
	c.Args(&args)
	value, ok := c.StorageRead([]byte(args.Key))
	if !ok {
		return nil
	}
	return string(value)
}

func removeKey(c *sdk.Call) interface{} {
	var args Key
	c.Args(&args)
	return c.StorageRemove([]byte(args.Key))
}

func burnGas(c *sdk.Call) interface{} {
	var args BurnGasArgs
	c.Args(&args)
	c.BurnGas(args.Opcodes)
	return nil
}

func parseAmount(c *sdk.Call, s string) primitives.Balance {
	if s == "" {
		return primitives.Balance{}
	}
	amount, err := primitives.BalanceFromString(s)
	if err != nil {
		c.Panic("bad amount " + strconv.Quote(s))
	}
	return amount
}

func callPromise(c *sdk.Call) interface{} {
	var ops []PromiseOp
	c.Args(&ops)

	promises := make([]sdk.Promise, 0, len(ops))
	at := func(i int) sdk.Promise {
		if i < 0 || i >= len(promises) {
			c.Panic("unknown promise " + strconv.Itoa(i))
		}
		return promises[i]
	}
	for _, op := range ops {
		var p sdk.Promise
		switch op.Op {
		case "create":
			p = c.NewPromise(op.AccountID)
		case "then":
			p = at(op.Promise).Then(c.NewPromise(op.AccountID))
		case "and":
			if len(op.Promises) == 0 {
				c.Panic("and needs promises")
			}
			p = at(op.Promises[0])
			for _, i := range op.Promises[1:] {
				p = p.And(at(i))
			}
		case "create_account":
			p = at(op.Promise).CreateAccount()
		case "transfer":
			p = at(op.Promise).Transfer(parseAmount(c, op.Amount))
		case "function_call":
			p = at(op.Promise).FunctionCall(op.Method, []byte(op.Args), parseAmount(c, op.Amount), op.Gas)
		case "add_key":
			pk, err := primitives.ParsePublicKey(op.PublicKey)
			if err != nil {
				c.Panic(err.Error())
			}
			p = at(op.Promise).AddFullAccessKey(pk)
		case "delete_key":
			pk, err := primitives.ParsePublicKey(op.PublicKey)
			if err != nil {
				c.Panic(err.Error())
			}
			p = at(op.Promise).DeleteKey(pk)
		case "delete_account":
			p = at(op.Promise).DeleteAccount(op.AccountID)
		case "return":
			p = at(op.Promise).AsReturn()
		default:
			c.Panic("unknown op " + strconv.Quote(op.Op))
		}
		promises = append(promises, p)
	}
	return nil
}

func callbackResults(c *sdk.Call) interface{} {
	count := c.PromiseResultsCount()
	results := make([]CallbackResult, 0, count)
	for i := uint64(0); i < count; i++ {
		result := c.PromiseResult(i)
		switch result.Kind {
		case host.PromiseSuccessful:
			results = append(results, CallbackResult{Status: "successful", Data: string(result.Data)})
		case host.PromiseFailed:
			results = append(results, CallbackResult{Status: "failed"})
		default:
			results = append(results, CallbackResult{Status: "not_ready"})
		}
	}
	return results
}

// selfReferencingPromise tries to chain a promise after itself.
func selfReferencingPromise(c *sdk.Call) interface{} {
	p := c.NewPromise(c.CurrentAccountID())
	p.Then(p)
	return nil
}
