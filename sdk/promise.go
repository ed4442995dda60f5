// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sdk

import (
	"github.com/ava-labs/receiptvm/primitives"
)

type promiseAction func(e *Env, promiseIdx uint64)

// promiseNode is either a single receipt with its actions, optionally
// running after another promise, or the join of two promises.
type promiseNode struct {
	joint bool

	accountID string
	actions   []promiseAction
	after     *Promise

	a, b Promise

	constructing bool
	constructed  bool
	index        uint64
	shouldReturn bool
}

// arena owns every promise created during a method call.
type arena struct {
	env   *Env
	nodes []*promiseNode
}

func newArena(env *Env) *arena {
	return &arena{env: env}
}

func (a *arena) add(n *promiseNode) Promise {
	a.nodes = append(a.nodes, n)
	return Promise{arena: a, handle: len(a.nodes) - 1}
}

// construct creates the receipts of [handle] and everything it depends on.
// A node is only ever constructed once.
func (a *arena) construct(handle int) uint64 {
	n := a.nodes[handle]
	if n.constructed {
		return n.index
	}
	env := a.env
	if n.constructing {
		env.Panic("Promise depends on itself.")
	}
	n.constructing = true
	if n.joint {
		n.index = env.PromiseAnd(a.construct(n.a.handle), a.construct(n.b.handle))
	} else {
		if n.after != nil {
			n.index = env.PromiseBatchThen(a.construct(n.after.handle), n.accountID)
		} else {
			n.index = env.PromiseBatchCreate(n.accountID)
		}
		for _, action := range n.actions {
			action(env, n.index)
		}
	}
	n.constructed = true
	if n.shouldReturn {
		env.PromiseReturn(n.index)
	}
	return n.index
}

// finalize constructs every promise that is still pending, in the order
// they were created.
func (a *arena) finalize() {
	for handle := range a.nodes {
		a.construct(handle)
	}
}

// Promise is a handle to receipts scheduled by the running method. The
// receipts are created when the promise is returned, used as a dependency,
// constructed explicitly or when the method ends.
type Promise struct {
	arena  *arena
	handle int
}

// NewPromise starts a promise acting on [accountID].
func (e *Env) NewPromise(accountID string) Promise {
	return e.promises.add(&promiseNode{accountID: accountID})
}

func (p Promise) node() *promiseNode { return p.arena.nodes[p.handle] }

func (p Promise) addAction(action promiseAction) Promise {
	n := p.node()
	switch {
	case n.joint:
		p.arena.env.Panic("Cannot add action to a joint promise.")
	case n.constructed:
		action(p.arena.env, n.index)
	default:
		n.actions = append(n.actions, action)
	}
	return p
}

func (p Promise) CreateAccount() Promise {
	return p.addAction(func(e *Env, idx uint64) {
		e.PromiseBatchActionCreateAccount(idx)
	})
}

func (p Promise) DeployContract(code []byte) Promise {
	return p.addAction(func(e *Env, idx uint64) {
		e.PromiseBatchActionDeployContract(idx, code)
	})
}

func (p Promise) FunctionCall(methodName string, args []byte, amount primitives.Balance, gas primitives.Gas) Promise {
	return p.addAction(func(e *Env, idx uint64) {
		e.PromiseBatchActionFunctionCall(idx, methodName, args, amount, gas)
	})
}

func (p Promise) Transfer(amount primitives.Balance) Promise {
	return p.addAction(func(e *Env, idx uint64) {
		e.PromiseBatchActionTransfer(idx, amount)
	})
}

func (p Promise) AddFullAccessKey(publicKey []byte) Promise {
	return p.addAction(func(e *Env, idx uint64) {
		e.PromiseBatchActionAddKeyWithFullAccess(idx, publicKey)
	})
}

func (p Promise) DeleteKey(publicKey []byte) Promise {
	return p.addAction(func(e *Env, idx uint64) {
		e.PromiseBatchActionDeleteKey(idx, publicKey)
	})
}

func (p Promise) DeleteAccount(beneficiaryID string) Promise {
	return p.addAction(func(e *Env, idx uint64) {
		e.PromiseBatchActionDeleteAccount(idx, beneficiaryID)
	})
}

// And joins [p] and [other]. Actions can't be added to the result.
func (p Promise) And(other Promise) Promise {
	return p.arena.add(&promiseNode{joint: true, a: p, b: other})
}

// Then makes [other] run after [p] and returns [other].
func (p Promise) Then(other Promise) Promise {
	n := other.node()
	if n.joint {
		p.arena.env.Panic("Cannot callback joint promise.")
	}
	after := p
	n.after = &after
	return other
}

// AsReturn makes the result of [p] the result of the method.
func (p Promise) AsReturn() Promise {
	n := p.node()
	n.shouldReturn = true
	if n.constructed {
		p.arena.env.PromiseReturn(n.index)
	}
	return p
}

// Construct creates the receipts of [p] now and returns its host index.
func (p Promise) Construct() uint64 {
	return p.arena.construct(p.handle)
}
