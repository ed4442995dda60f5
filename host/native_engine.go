// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/receiptvm/primitives"
)

const (
	nativeCodeVersion   byte = 1
	maxNativeCodeLength      = 1024
	programCacheSize         = 128
)

var (
	nativeCodeMagic = []byte("\x00rvm")

	logger = log.New("module", "host")

	_ Engine = &NativeEngine{}
)

// Method is a contract entry point. It reaches the host through [g] and
// aborts by panicking with a *Trap.
type Method func(g *Guest)

// Program is a contract compiled into the node.
type Program struct {
	Name    string
	Methods map[string]Method
}

// Registry holds the programs a NativeEngine can run.
type Registry struct {
	lock     sync.RWMutex
	programs map[string]*Program
}

func NewRegistry() *Registry {
	return &Registry{programs: make(map[string]*Program)}
}

// Register adds [programs]. A name can only be registered once.
func (r *Registry) Register(programs ...*Program) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	errs := wrappers.Errs{}
	for _, p := range programs {
		if _, ok := r.programs[p.Name]; ok {
			errs.Add(fmt.Errorf("program %q is already registered", p.Name))
			continue
		}
		r.programs[p.Name] = p
	}
	return errs.Err
}

func (r *Registry) get(name string) (*Program, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.programs[name]
	return p, ok
}

// NativeCode returns the deployable code of the program called [name].
func NativeCode(name string) []byte {
	p := wrappers.Packer{MaxSize: maxNativeCodeLength}
	p.PackFixedBytes(nativeCodeMagic)
	p.PackByte(nativeCodeVersion)
	p.PackStr(name)
	return p.Bytes
}

func decodeNativeCode(code []byte) (string, error) {
	p := wrappers.Packer{Bytes: code}
	magic := p.UnpackFixedBytes(len(nativeCodeMagic))
	version := p.UnpackByte()
	name := p.UnpackStr()
	switch {
	case p.Errored():
		return "", fmt.Errorf("malformed code header: %w", p.Err)
	case !bytes.Equal(magic, nativeCodeMagic):
		return "", fmt.Errorf("bad magic %x", magic)
	case version != nativeCodeVersion:
		return "", fmt.Errorf("unsupported code version %d", version)
	case p.Offset != len(code):
		return "", fmt.Errorf("%d trailing bytes", len(code)-p.Offset)
	}
	return name, nil
}

// NativeEngine runs Go programs from a Registry. Deployed code names the
// program to run.
type NativeEngine struct {
	registry *Registry

	lock     sync.Mutex
	compiled *cache.LRU
}

func NewNativeEngine(registry *Registry) *NativeEngine {
	return &NativeEngine{
		registry: registry,
		compiled: &cache.LRU{Size: programCacheSize},
	}
}

func (e *NativeEngine) compile(code *ContractCode) (*Program, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if p, ok := e.compiled.Get(code.Hash); ok {
		return p.(*Program), nil
	}
	name, err := decodeNativeCode(code.Code)
	if err != nil {
		return nil, &CompilationError{Msg: err.Error()}
	}
	p, ok := e.registry.get(name)
	if !ok {
		return nil, &LinkError{Msg: fmt.Sprintf("program %q is not registered", name)}
	}
	e.compiled.Put(code.Hash, p)
	return p, nil
}

func (e *NativeEngine) Precompile(code *ContractCode, _ *primitives.VMConfig) error {
	_, err := e.compile(code)
	return err
}

func (e *NativeEngine) Run(
	code *ContractCode,
	method string,
	ext External,
	ctx *VMContext,
	config *primitives.VMConfig,
	fees *primitives.RuntimeFeesConfig,
	promiseResults []PromiseResult,
) (*VMOutcome, error) {
	if method == "" {
		return nil, &MethodResolveError{}
	}
	program, err := e.compile(code)
	if err != nil {
		return nil, err
	}
	entry, ok := program.Methods[method]
	if !ok {
		return nil, &MethodResolveError{Method: method}
	}

	memory := NewLinearMemory(config.Limits.MaxMemoryPages)
	logic := NewLogic(ext, ctx, config, fees, promiseResults, memory)
	if err := logic.ChargeContractLoading(uint64(len(code.Code))); err != nil {
		return logic.Outcome(), err
	}

	guest := &Guest{Logic: logic, Memory: memory}
	err = guest.run(entry)
	if err != nil {
		logger.Debug("contract call failed",
			"account", ctx.CurrentAccountID,
			"method", method,
			"err", err,
		)
	}
	return logic.Outcome(), err
}

// Guest is the view a running program has of the host.
type Guest struct {
	Logic  *Logic
	Memory *LinearMemory

	heap uint64
}

func (g *Guest) run(entry Method) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if trap, ok := r.(*Trap); ok {
			err = trap.Err
			return
		}
		err = &WasmTrap{Msg: fmt.Sprint(r)}
	}()
	entry(g)
	return nil
}

// Alloc reserves [size] bytes of guest memory and returns their offset.
// Growing the memory is charged per page.
func (g *Guest) Alloc(size uint64) uint64 {
	ptr := g.heap
	end := ptr + size
	if end < ptr || !g.Memory.FitsMemory(ptr, size) {
		Raise(newHostError(MemoryAccessViolation, "out of guest memory"))
	}
	before := (ptr + PageSize - 1) / PageSize
	after := (end + PageSize - 1) / PageSize
	if after > before {
		cost := uint64(g.Logic.config.GrowMemCost) * (after - before)
		if cost > uint64(^uint32(0)) {
			cost = uint64(^uint32(0))
		}
		if err := g.Logic.Gas(uint32(cost)); err != nil {
			Raise(err)
		}
	}
	g.heap = end
	return ptr
}

// Call invokes a host function and aborts the program if it fails.
func (g *Guest) Call(f HostFunction, args ...uint64) uint64 {
	result, err := g.Logic.Invoke(Call(f, args...))
	if err != nil {
		Raise(err)
	}
	return result
}
