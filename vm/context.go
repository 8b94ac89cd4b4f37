package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/ledgervm/vm/core"
)

// ExecutionContext is an addressable unit of bytecode: one deployed
// contract or module, resolvable by name. It is immutable once
// resolved; the engine only ever reads from it.
type ExecutionContext struct {
	name    string
	code    []byte
	methods map[string]int // exported method name -> instruction offset
}

// NewExecutionContext creates a context from a module's bytecode and
// its ABI-derived method offset table.
func NewExecutionContext(name string, code []byte, methods map[string]int) (*ExecutionContext, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: context name is empty", core.ErrInvalidArgument)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: context %q has no bytecode", core.ErrInvalidArgument, name)
	}
	m := make(map[string]int, len(methods))
	for method, offset := range methods {
		if offset < 0 || offset >= len(code) {
			return nil, fmt.Errorf("%w: method %q offset %d outside bytecode", core.ErrInvalidArgument, method, offset)
		}
		m[method] = offset
	}
	c := make([]byte, len(code))
	copy(c, code)
	return &ExecutionContext{name: name, code: c, methods: m}, nil
}

// Name returns the unique, case-sensitive context name.
func (c *ExecutionContext) Name() string {
	return c.name
}

// Code returns the context's bytecode. Callers must not mutate it.
func (c *ExecutionContext) Code() []byte {
	return c.code
}

// MethodOffset returns the instruction offset of an exported method.
func (c *ExecutionContext) MethodOffset(method string) (int, bool) {
	offset, ok := c.methods[method]
	return offset, ok
}

// ContextLoader resolves a context by name. It is injected by the
// host; the engine never hardcodes how contexts are located. A nil
// result means the name is unknown, which only becomes a fault when
// something actually calls into it.
type ContextLoader func(name string) *ExecutionContext

// Frame is one context's in-progress call: the context plus its
// instruction pointer. The evaluation stack is shared across frames.
type Frame struct {
	ctx *ExecutionContext
	ip  int
}

// Context returns the context owning this frame.
func (f *Frame) Context() *ExecutionContext {
	return f.ctx
}

// IP returns the frame's current instruction pointer.
func (f *Frame) IP() int {
	return f.ip
}

func (f *Frame) atEnd() bool {
	return f.ip >= len(f.ctx.code)
}

// instruction-stream readers; any truncation is malformed bytecode

func (f *Frame) readByte() (byte, error) {
	if f.atEnd() {
		return 0, fmt.Errorf("%w: truncated operand at %s:%d", core.ErrMalformedBytecode, f.ctx.name, f.ip)
	}
	b := f.ctx.code[f.ip]
	f.ip++
	return b, nil
}

func (f *Frame) readBytes(n int) ([]byte, error) {
	if f.ip+n > len(f.ctx.code) {
		return nil, fmt.Errorf("%w: truncated operand at %s:%d", core.ErrMalformedBytecode, f.ctx.name, f.ip)
	}
	b := f.ctx.code[f.ip : f.ip+n]
	f.ip += n
	return b, nil
}

func (f *Frame) readU16() (uint16, error) {
	b, err := f.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (f *Frame) readI64() (int64, error) {
	b, err := f.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (f *Frame) readString() (string, error) {
	n, err := f.readU16()
	if err != nil {
		return "", err
	}
	b, err := f.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
