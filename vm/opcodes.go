package vm

import "fmt"

// Opcode is a one-byte instruction tag. Operands follow the opcode in
// the instruction stream, little-endian, with strings and byte blobs
// length-prefixed by a uint16.
type Opcode byte

const (
	OpNop Opcode = iota
	OpHalt
	OpRet

	// stack pushes
	OpPushNull  // no operand
	OpPushBool  // 1-byte operand, 0 or 1
	OpPushNum   // 8-byte signed operand
	OpPushStr   // u16 length + UTF-8 bytes
	OpPushBytes // u16 length + raw bytes
	OpPushAddr  // 20-byte operand

	// stack shuffling
	OpPop
	OpDup
	OpSwap

	// arithmetic over Number
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// comparison and logic
	OpEq
	OpLt
	OpGt
	OpNot
	OpAnd
	OpOr

	// control flow, absolute u16 offsets
	OpJmp
	OpJmpIf
	OpJmpNot

	// string / bytes
	OpCat
	OpSize

	// structs
	OpNewStruct
	OpSetField // u16 length + field name
	OpGetField // u16 length + field name

	// host and cross-context dispatch
	OpInterop // u16 length + interop name
	OpCtxCall // u16 length + context name, u16 length + method name

	OpBreakpoint
)

var opcodeNames = map[Opcode]string{
	OpNop:        "NOP",
	OpHalt:       "HALT",
	OpRet:        "RET",
	OpPushNull:   "PUSHNULL",
	OpPushBool:   "PUSHBOOL",
	OpPushNum:    "PUSHNUM",
	OpPushStr:    "PUSHSTR",
	OpPushBytes:  "PUSHBYTES",
	OpPushAddr:   "PUSHADDR",
	OpPop:        "POP",
	OpDup:        "DUP",
	OpSwap:       "SWAP",
	OpAdd:        "ADD",
	OpSub:        "SUB",
	OpMul:        "MUL",
	OpDiv:        "DIV",
	OpMod:        "MOD",
	OpEq:         "EQ",
	OpLt:         "LT",
	OpGt:         "GT",
	OpNot:        "NOT",
	OpAnd:        "AND",
	OpOr:         "OR",
	OpJmp:        "JMP",
	OpJmpIf:      "JMPIF",
	OpJmpNot:     "JMPNOT",
	OpCat:        "CAT",
	OpSize:       "SIZE",
	OpNewStruct:  "NEWSTRUCT",
	OpSetField:   "SETFIELD",
	OpGetField:   "GETFIELD",
	OpInterop:    "INTEROP",
	OpCtxCall:    "CTXCALL",
	OpBreakpoint: "BREAKPT",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}
