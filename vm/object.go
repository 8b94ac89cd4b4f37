// Package vm provides the implementation of the virtual machine.
package vm

import (
	"bytes"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"

	"github.com/ledgervm/vm/core"
)

// Type is the tag identifying which kind of value a VMObject holds.
type Type byte

const (
	TypeNone Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeBytes
	TypeEnum
	TypeStruct
	TypeObject
	TypeAddress
	TypeHash
	TypeTimestamp
)

var typeNames = map[Type]string{
	TypeNone:      "None",
	TypeBool:      "Bool",
	TypeNumber:    "Number",
	TypeString:    "String",
	TypeBytes:     "Bytes",
	TypeEnum:      "Enum",
	TypeStruct:    "Struct",
	TypeObject:    "Object",
	TypeAddress:   "Address",
	TypeHash:      "Hash",
	TypeTimestamp: "Timestamp",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// Valid reports whether t is a known tag.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// StructField is one named slot of a Struct value. Field order is
// insertion order and is preserved through serialization.
type StructField struct {
	Name  string
	Value *VMObject
}

// VMObject is the tagged value used for every stack slot, argument and
// storage payload. The tag determines which accessors are legal; an
// illegal coercion returns a core.ErrTypeMismatch error instead of a
// zero value.
type VMObject struct {
	typ Type

	boolVal bool
	num     *big.Int // Number, Enum value, Timestamp (as seconds)
	str     string   // String
	raw     []byte   // Bytes
	enum    string   // Enum type name
	fields  []StructField
	addr    core.Address
	hash    core.Hash
	child   *VMObject // Object box
}

// deterministic CBOR, used for Enum and Struct payloads
var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("cbor encode mode: %w", err))
	}
}

func NewNone() *VMObject {
	return &VMObject{typ: TypeNone}
}

func NewBool(v bool) *VMObject {
	return &VMObject{typ: TypeBool, boolVal: v}
}

// NewNumber creates a Number from an arbitrary-precision integer. The
// value is copied, the caller keeps ownership of n.
func NewNumber(n *big.Int) *VMObject {
	return &VMObject{typ: TypeNumber, num: new(big.Int).Set(n)}
}

func NewNumberFromInt64(n int64) *VMObject {
	return &VMObject{typ: TypeNumber, num: big.NewInt(n)}
}

func NewString(s string) *VMObject {
	return &VMObject{typ: TypeString, str: s}
}

func NewBytes(b []byte) *VMObject {
	return &VMObject{typ: TypeBytes, raw: bytes.Clone(b)}
}

// NewEnum creates an Enum value: an integer tag plus the name of the
// enum type it belongs to.
func NewEnum(value int64, enumType string) *VMObject {
	return &VMObject{typ: TypeEnum, num: big.NewInt(value), enum: enumType}
}

// NewStruct creates a Struct with the given fields. Field order is
// preserved; duplicate names keep the first occurrence.
func NewStruct(fields ...StructField) *VMObject {
	o := &VMObject{typ: TypeStruct}
	for _, f := range fields {
		o.setField(f.Name, f.Value)
	}
	return o
}

// NewObject boxes an existing value under the ambiguous Object tag.
// The box is resolved to Bytes whenever it is serialized.
func NewObject(inner *VMObject) *VMObject {
	return &VMObject{typ: TypeObject, child: inner.Clone()}
}

func NewAddress(a core.Address) *VMObject {
	return &VMObject{typ: TypeAddress, addr: a}
}

func NewHash(h core.Hash) *VMObject {
	return &VMObject{typ: TypeHash, hash: h}
}

// NewTimestamp creates a Timestamp from seconds since the epoch.
func NewTimestamp(seconds int64) *VMObject {
	return &VMObject{typ: TypeTimestamp, num: big.NewInt(seconds)}
}

// Type returns the tag of o.
func (o *VMObject) Type() Type {
	return o.typ
}

func (o *VMObject) mismatch(want Type) error {
	return fmt.Errorf("%w: expected %s, got %s", core.ErrTypeMismatch, want, o.typ)
}

// AsBool returns the boolean payload.
func (o *VMObject) AsBool() (bool, error) {
	if o.typ != TypeBool {
		return false, o.mismatch(TypeBool)
	}
	return o.boolVal, nil
}

// AsNumber returns a copy of the numeric payload.
func (o *VMObject) AsNumber() (*big.Int, error) {
	if o.typ != TypeNumber {
		return nil, o.mismatch(TypeNumber)
	}
	return new(big.Int).Set(o.num), nil
}

// AsString returns the string payload.
func (o *VMObject) AsString() (string, error) {
	if o.typ != TypeString {
		return "", o.mismatch(TypeString)
	}
	return o.str, nil
}

// AsBytes returns a copy of the raw byte payload. An Object box
// answers its inner value's serialized form, matching its storage
// normalization.
func (o *VMObject) AsBytes() ([]byte, error) {
	switch o.typ {
	case TypeBytes:
		return bytes.Clone(o.raw), nil
	case TypeObject:
		return o.child.Serialize()
	default:
		return nil, o.mismatch(TypeBytes)
	}
}

// AsEnum returns the enum value and the name of its enum type.
func (o *VMObject) AsEnum() (int64, string, error) {
	if o.typ != TypeEnum {
		return 0, "", o.mismatch(TypeEnum)
	}
	return o.num.Int64(), o.enum, nil
}

// AsAddress returns the address payload.
func (o *VMObject) AsAddress() (core.Address, error) {
	if o.typ != TypeAddress {
		return core.ZeroAddress, o.mismatch(TypeAddress)
	}
	return o.addr, nil
}

// AsHash returns the hash payload.
func (o *VMObject) AsHash() (core.Hash, error) {
	if o.typ != TypeHash {
		return core.ZeroHash, o.mismatch(TypeHash)
	}
	return o.hash, nil
}

// AsTimestamp returns the timestamp payload in seconds.
func (o *VMObject) AsTimestamp() (int64, error) {
	if o.typ != TypeTimestamp {
		return 0, o.mismatch(TypeTimestamp)
	}
	return o.num.Int64(), nil
}

// Field returns the named struct field.
func (o *VMObject) Field(name string) (*VMObject, error) {
	if o.typ != TypeStruct {
		return nil, o.mismatch(TypeStruct)
	}
	for _, f := range o.fields {
		if f.Name == name {
			return f.Value, nil
		}
	}
	return nil, fmt.Errorf("%w: struct has no field %q", core.ErrTypeMismatch, name)
}

// Fields returns the struct fields in insertion order.
func (o *VMObject) Fields() ([]StructField, error) {
	if o.typ != TypeStruct {
		return nil, o.mismatch(TypeStruct)
	}
	out := make([]StructField, len(o.fields))
	copy(out, o.fields)
	return out, nil
}

// SetField sets or replaces a struct field, keeping insertion order.
func (o *VMObject) SetField(name string, v *VMObject) error {
	if o.typ != TypeStruct {
		return o.mismatch(TypeStruct)
	}
	o.setField(name, v)
	return nil
}

func (o *VMObject) setField(name string, v *VMObject) {
	for i, f := range o.fields {
		if f.Name == name {
			o.fields[i].Value = v
			return
		}
	}
	o.fields = append(o.fields, StructField{Name: name, Value: v})
}

// Clone returns a deep copy of o. Mutating the copy never affects the
// original; the evaluation stack relies on this for its pop semantics.
func (o *VMObject) Clone() *VMObject {
	c := &VMObject{
		typ:     o.typ,
		boolVal: o.boolVal,
		str:     o.str,
		enum:    o.enum,
		addr:    o.addr,
		hash:    o.hash,
	}
	if o.num != nil {
		c.num = new(big.Int).Set(o.num)
	}
	if o.raw != nil {
		c.raw = bytes.Clone(o.raw)
	}
	if o.child != nil {
		c.child = o.child.Clone()
	}
	if o.fields != nil {
		c.fields = make([]StructField, len(o.fields))
		for i, f := range o.fields {
			c.fields[i] = StructField{Name: f.Name, Value: f.Value.Clone()}
		}
	}
	return c
}

// Equals reports deep, tag-sensitive equality. It is total: any two
// values can be compared, values of different tags are never equal.
func (o *VMObject) Equals(other *VMObject) bool {
	if o.typ != other.typ {
		return false
	}
	switch o.typ {
	case TypeNone:
		return true
	case TypeBool:
		return o.boolVal == other.boolVal
	case TypeNumber, TypeTimestamp:
		return o.num.Cmp(other.num) == 0
	case TypeString:
		return o.str == other.str
	case TypeBytes:
		return bytes.Equal(o.raw, other.raw)
	case TypeEnum:
		return o.enum == other.enum && o.num.Cmp(other.num) == 0
	case TypeStruct:
		if len(o.fields) != len(other.fields) {
			return false
		}
		for i, f := range o.fields {
			g := other.fields[i]
			if f.Name != g.Name || !f.Value.Equals(g.Value) {
				return false
			}
		}
		return true
	case TypeObject:
		return o.child.Equals(other.child)
	case TypeAddress:
		return o.addr == other.addr
	case TypeHash:
		return o.hash == other.hash
	default:
		return false
	}
}

// Cmp orders two values. Ordering is defined for Number and Timestamp
// only; any other tag pairing is a type mismatch.
func (o *VMObject) Cmp(other *VMObject) (int, error) {
	ordered := func(t Type) bool { return t == TypeNumber || t == TypeTimestamp }
	if !ordered(o.typ) {
		return 0, o.mismatch(TypeNumber)
	}
	if !ordered(other.typ) || o.typ != other.typ {
		return 0, other.mismatch(o.typ)
	}
	return o.num.Cmp(other.num), nil
}

// String renders o for logs and diagnostics. Not the wire form.
func (o *VMObject) String() string {
	switch o.typ {
	case TypeNone:
		return "none"
	case TypeBool:
		return fmt.Sprintf("%v", o.boolVal)
	case TypeNumber:
		return o.num.String()
	case TypeString:
		return o.str
	case TypeBytes:
		return fmt.Sprintf("0x%x", o.raw)
	case TypeEnum:
		return fmt.Sprintf("%s(%s)", o.enum, o.num)
	case TypeStruct:
		return fmt.Sprintf("struct{%d fields}", len(o.fields))
	case TypeObject:
		return fmt.Sprintf("object(%s)", o.child)
	case TypeAddress:
		return o.addr.String()
	case TypeHash:
		return o.hash.String()
	case TypeTimestamp:
		return fmt.Sprintf("@%s", o.num)
	default:
		return o.typ.String()
	}
}

// wire forms for the CBOR-encoded composite payloads

type enumWire struct {
	_     struct{} `cbor:",toarray"`
	Name  string
	Value []byte
}

type fieldWire struct {
	_    struct{} `cbor:",toarray"`
	Name string
	Type byte
	Data []byte
}

// Serialize produces the canonical byte form of o. The encoding is a
// pure function of the logical value, so identical values serialize to
// identical bytes on every node. Object boxes serialize as their inner
// value's bytes; they never reach storage under the ambiguous tag.
func (o *VMObject) Serialize() ([]byte, error) {
	switch o.typ {
	case TypeNone:
		return []byte{}, nil
	case TypeBool:
		if o.boolVal {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeNumber, TypeTimestamp:
		return encodeBig(o.num), nil
	case TypeString:
		return []byte(o.str), nil
	case TypeBytes:
		return bytes.Clone(o.raw), nil
	case TypeEnum:
		return cborEnc.Marshal(enumWire{Name: o.enum, Value: encodeBig(o.num)})
	case TypeStruct:
		wire := make([]fieldWire, len(o.fields))
		for i, f := range o.fields {
			data, err := f.Value.Serialize()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			wire[i] = fieldWire{Name: f.Name, Type: byte(f.Value.typ), Data: data}
		}
		return cborEnc.Marshal(wire)
	case TypeObject:
		return o.child.Serialize()
	case TypeAddress:
		return o.addr[:], nil
	case TypeHash:
		return o.hash[:], nil
	default:
		return nil, fmt.Errorf("%w: cannot serialize %s", core.ErrTypeMismatch, o.typ)
	}
}

// StorageType returns the tag o is persisted under. The ambiguous
// Object tag is normalized to Bytes so storage has a single canonical
// representation.
func (o *VMObject) StorageType() Type {
	if o.typ == TypeObject {
		return TypeBytes
	}
	return o.typ
}

// FromBytes reinterprets raw bytes under the requested tag, validating
// length and format per tag. Data read back from storage carries no
// tag of its own; the reader supplies it here. Requesting the
// ambiguous Object tag yields a Bytes value.
func FromBytes(data []byte, typ Type) (*VMObject, error) {
	switch typ {
	case TypeNone:
		if len(data) != 0 {
			return nil, fmt.Errorf("%w: None carries no payload", core.ErrTypeMismatch)
		}
		return NewNone(), nil
	case TypeBool:
		if len(data) != 1 || data[0] > 1 {
			return nil, fmt.Errorf("%w: invalid Bool payload", core.ErrTypeMismatch)
		}
		return NewBool(data[0] == 1), nil
	case TypeNumber:
		n, err := decodeBig(data)
		if err != nil {
			return nil, err
		}
		return NewNumber(n), nil
	case TypeString:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: String payload is not valid UTF-8", core.ErrTypeMismatch)
		}
		return NewString(string(data)), nil
	case TypeBytes, TypeObject:
		return NewBytes(data), nil
	case TypeEnum:
		var wire enumWire
		if err := cbor.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("%w: invalid Enum payload: %v", core.ErrTypeMismatch, err)
		}
		n, err := decodeBig(wire.Value)
		if err != nil {
			return nil, err
		}
		if !n.IsInt64() {
			return nil, fmt.Errorf("%w: Enum value out of range", core.ErrTypeMismatch)
		}
		return NewEnum(n.Int64(), wire.Name), nil
	case TypeStruct:
		var wire []fieldWire
		if err := cbor.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("%w: invalid Struct payload: %v", core.ErrTypeMismatch, err)
		}
		s := NewStruct()
		for _, f := range wire {
			v, err := FromBytes(f.Data, Type(f.Type))
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			s.setField(f.Name, v)
		}
		return s, nil
	case TypeAddress:
		if len(data) != len(core.Address{}) {
			return nil, fmt.Errorf("%w: Address payload must be %d bytes", core.ErrTypeMismatch, len(core.Address{}))
		}
		return NewAddress(core.Address(data)), nil
	case TypeHash:
		if len(data) != len(core.Hash{}) {
			return nil, fmt.Errorf("%w: Hash payload must be %d bytes", core.ErrTypeMismatch, len(core.Hash{}))
		}
		return NewHash(core.Hash(data)), nil
	case TypeTimestamp:
		n, err := decodeBig(data)
		if err != nil {
			return nil, err
		}
		if !n.IsInt64() {
			return nil, fmt.Errorf("%w: Timestamp out of range", core.ErrTypeMismatch)
		}
		return NewTimestamp(n.Int64()), nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", core.ErrTypeMismatch, byte(typ))
	}
}

// encodeBig produces the canonical form of a signed big integer: a
// single zero byte for zero, otherwise a sign byte (0 positive, 1
// negative) followed by the big-endian magnitude.
func encodeBig(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{0}
	}
	sign := byte(0)
	if n.Sign() < 0 {
		sign = 1
	}
	mag := n.Bytes()
	out := make([]byte, 0, len(mag)+1)
	out = append(out, sign)
	return append(out, mag...)
}

func decodeBig(data []byte) (*big.Int, error) {
	switch {
	case len(data) == 0:
		return nil, fmt.Errorf("%w: empty Number payload", core.ErrTypeMismatch)
	case len(data) == 1:
		if data[0] != 0 {
			return nil, fmt.Errorf("%w: invalid Number payload", core.ErrTypeMismatch)
		}
		return new(big.Int), nil
	case data[0] > 1:
		return nil, fmt.Errorf("%w: invalid Number sign byte", core.ErrTypeMismatch)
	case data[1] == 0:
		// leading zero in the magnitude breaks canonical form
		return nil, fmt.Errorf("%w: non-canonical Number payload", core.ErrTypeMismatch)
	}
	n := new(big.Int).SetBytes(data[1:])
	if data[0] == 1 {
		n.Neg(n)
	}
	return n, nil
}
