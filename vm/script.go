package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ledgervm/vm/core"
)

// ScriptBuilder assembles bytecode for the engine. It is the in-repo
// stand-in for the external contract compiler and is what tests, the
// examples and the CLI use to produce runnable modules.
type ScriptBuilder struct {
	buf bytes.Buffer
}

// NewScriptBuilder returns an empty builder.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

// Offset returns the offset the next emitted instruction will have.
// Capture it before emitting a method body to build the ABI offset
// table, or to compute jump targets.
func (sb *ScriptBuilder) Offset() int {
	return sb.buf.Len()
}

// Bytes returns the assembled bytecode.
func (sb *ScriptBuilder) Bytes() []byte {
	return bytes.Clone(sb.buf.Bytes())
}

// Emit appends a bare opcode.
func (sb *ScriptBuilder) Emit(op Opcode) *ScriptBuilder {
	sb.buf.WriteByte(byte(op))
	return sb
}

func (sb *ScriptBuilder) emitString(s string) {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	sb.buf.Write(lenBuf[:])
	sb.buf.WriteString(s)
}

// EmitPushBool appends PUSHBOOL.
func (sb *ScriptBuilder) EmitPushBool(v bool) *ScriptBuilder {
	sb.Emit(OpPushBool)
	if v {
		sb.buf.WriteByte(1)
	} else {
		sb.buf.WriteByte(0)
	}
	return sb
}

// EmitPushNum appends PUSHNUM with a 64-bit signed operand.
func (sb *ScriptBuilder) EmitPushNum(v int64) *ScriptBuilder {
	sb.Emit(OpPushNum)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	sb.buf.Write(b[:])
	return sb
}

// EmitPushString appends PUSHSTR.
func (sb *ScriptBuilder) EmitPushString(s string) *ScriptBuilder {
	sb.Emit(OpPushStr)
	sb.emitString(s)
	return sb
}

// EmitPushBytes appends PUSHBYTES.
func (sb *ScriptBuilder) EmitPushBytes(data []byte) *ScriptBuilder {
	sb.Emit(OpPushBytes)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(data)))
	sb.buf.Write(lenBuf[:])
	sb.buf.Write(data)
	return sb
}

// EmitPushAddress appends PUSHADDR.
func (sb *ScriptBuilder) EmitPushAddress(addr core.Address) *ScriptBuilder {
	sb.Emit(OpPushAddr)
	sb.buf.Write(addr[:])
	return sb
}

// EmitJump appends one of JMP, JMPIF, JMPNOT with an absolute target.
func (sb *ScriptBuilder) EmitJump(op Opcode, target int) *ScriptBuilder {
	if op != OpJmp && op != OpJmpIf && op != OpJmpNot {
		panic(fmt.Sprintf("EmitJump: %s is not a jump opcode", op))
	}
	sb.Emit(op)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(target))
	sb.buf.Write(b[:])
	return sb
}

// EmitSetField appends SETFIELD for the named struct field.
func (sb *ScriptBuilder) EmitSetField(name string) *ScriptBuilder {
	sb.Emit(OpSetField)
	sb.emitString(name)
	return sb
}

// EmitGetField appends GETFIELD for the named struct field.
func (sb *ScriptBuilder) EmitGetField(name string) *ScriptBuilder {
	sb.Emit(OpGetField)
	sb.emitString(name)
	return sb
}

// EmitInterop appends INTEROP with the exact registered name.
func (sb *ScriptBuilder) EmitInterop(name string) *ScriptBuilder {
	sb.Emit(OpInterop)
	sb.emitString(name)
	return sb
}

// EmitCtxCall appends CTXCALL into the named context and method.
func (sb *ScriptBuilder) EmitCtxCall(contextName, method string) *ScriptBuilder {
	sb.Emit(OpCtxCall)
	sb.emitString(contextName)
	sb.emitString(method)
	return sb
}
