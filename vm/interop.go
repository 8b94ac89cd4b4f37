package vm

import (
	"errors"
	"fmt"

	"github.com/ledgervm/vm/core"
)

// InteropFunc is a host operation invokable from bytecode by name. The
// callback receives the engine and manipulates its stack and state
// directly; its returned state becomes the engine's state for that
// step.
type InteropFunc func(e *Engine) (ExecutionState, error)

// RegisterInterop adds a host callback under an exact name, by
// convention "Namespace.Method" or "Type()" for constructors. The
// registry is the sandboxing boundary: no interop is reachable unless
// the hosting environment registers it, and names cannot be rebound.
func (e *Engine) RegisterInterop(name string, fn InteropFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: interop name and callback are required", core.ErrInvalidArgument)
	}
	if _, exists := e.interops[name]; exists {
		return fmt.Errorf("%w: interop %q already registered", core.ErrInvalidArgument, name)
	}
	e.interops[name] = fn
	return nil
}

func (e *Engine) invokeInterop(name string) error {
	fn, ok := e.interops[name]
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownInterop, name)
	}
	state, err := fn(e)
	if err != nil {
		if !isFaultError(err) {
			err = fmt.Errorf("%w: %s: %v", core.ErrInteropFailure, name, err)
		}
		return err
	}
	if state == StateFault {
		// a callback signaling Fault without an error must still
		// surface one, or throw-mode delivery would report success
		return fmt.Errorf("%w: %s signaled fault", core.ErrInteropFailure, name)
	}
	e.state = state
	return nil
}

// isFaultError reports whether err already carries one of the core
// fault conditions, so interop failures keep their original taxonomy.
func isFaultError(err error) bool {
	for _, sentinel := range []error{
		core.ErrTypeMismatch,
		core.ErrStackUnderflow,
		core.ErrUnknownContext,
		core.ErrUnknownInterop,
		core.ErrInteropFailure,
		core.ErrMalformedBytecode,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// RegisterDefaultInterops installs the standard interop set: the
// storage triad plus the runtime queries. The engine must have been
// built with a Store.
func (e *Engine) RegisterDefaultInterops() error {
	if e.cfg.Store == nil {
		return fmt.Errorf("%w: default interops need a state store", core.ErrInvalidArgument)
	}
	for name, fn := range map[string]InteropFunc{
		"Data.Set":        interopDataSet,
		"Data.Get":        interopDataGet,
		"Data.Delete":     interopDataDelete,
		"Runtime.Log":     interopRuntimeLog,
		"Runtime.Time":    interopRuntimeTime,
		"Runtime.Context": interopRuntimeContext,
	} {
		if err := e.RegisterInterop(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Data.Set(field, value) writes a field of the currently executing
// contract. The contract name comes from the current frame, never from
// an argument, so a contract can only ever write its own namespace.
// Stack in: field (String) on top, then the value.
func interopDataSet(e *Engine) (ExecutionState, error) {
	field, err := e.stack.popString()
	if err != nil {
		return StateFault, err
	}
	value, err := e.stack.Pop()
	if err != nil {
		return StateFault, err
	}
	data, err := value.Serialize()
	if err != nil {
		return StateFault, err
	}
	contract := e.CurrentContext().Name()
	key := NewDefaultKeyGenerator().FieldKey(contract, field, false)
	if err := e.cfg.Store.Set(key, data); err != nil {
		return StateFault, fmt.Errorf("set %s.%s: %w", contract, field, err)
	}
	return StateRunning, nil
}

// Data.Get(contract, field, typeTag) reads any contract's field;
// cross-contract reads are permitted by design, only writes are
// isolated. A key never written reads back as an empty Bytes value.
// Stack in: contract (String) on top, then field (String), then the
// requested tag (Number). Stack out: the decoded value.
func interopDataGet(e *Engine) (ExecutionState, error) {
	contract, err := e.stack.popString()
	if err != nil {
		return StateFault, err
	}
	field, err := e.stack.popString()
	if err != nil {
		return StateFault, err
	}
	tagNum, err := e.stack.popNumber()
	if err != nil {
		return StateFault, err
	}
	tag64, _ := tagNum.AsNumber()
	if !tag64.IsInt64() || tag64.Int64() < 0 || tag64.Int64() > 255 {
		return StateFault, fmt.Errorf("%w: unknown tag %s", core.ErrTypeMismatch, tag64)
	}
	typ := Type(tag64.Int64())
	if !typ.Valid() {
		return StateFault, fmt.Errorf("%w: unknown tag %s", core.ErrTypeMismatch, tag64)
	}
	if typ == TypeObject {
		typ = TypeBytes
	}

	key := NewDefaultKeyGenerator().FieldKey(contract, field, false)
	data, err := e.cfg.Store.Get(key)
	if err != nil {
		return StateFault, fmt.Errorf("get %s.%s: %w", contract, field, err)
	}
	if len(data) == 0 {
		e.stack.Push(NewBytes(nil))
		return StateRunning, nil
	}
	value, err := FromBytes(data, typ)
	if err != nil {
		return StateFault, err
	}
	e.stack.Push(value)
	return StateRunning, nil
}

// Data.Delete(field) removes a field of the currently executing
// contract, under the same isolation rule as Data.Set.
func interopDataDelete(e *Engine) (ExecutionState, error) {
	field, err := e.stack.popString()
	if err != nil {
		return StateFault, err
	}
	contract := e.CurrentContext().Name()
	key := NewDefaultKeyGenerator().FieldKey(contract, field, false)
	if err := e.cfg.Store.Delete(key); err != nil {
		return StateFault, fmt.Errorf("delete %s.%s: %w", contract, field, err)
	}
	return StateRunning, nil
}

// Runtime.Log(message) appends a line to the engine's diagnostic sink.
func interopRuntimeLog(e *Engine) (ExecutionState, error) {
	v, err := e.stack.Pop()
	if err != nil {
		return StateFault, err
	}
	e.AppendLog(v.String())
	return StateRunning, nil
}

// Runtime.Time() pushes the host-supplied block timestamp.
func interopRuntimeTime(e *Engine) (ExecutionState, error) {
	e.stack.Push(NewTimestamp(e.BlockTime()))
	return StateRunning, nil
}

// Runtime.Context() pushes the name of the currently executing
// context.
func interopRuntimeContext(e *Engine) (ExecutionState, error) {
	e.stack.Push(NewString(e.CurrentContext().Name()))
	return StateRunning, nil
}
