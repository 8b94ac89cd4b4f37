package vm

import "encoding/binary"

// Storage key layout. Every persisted contract field lives under a key
// derived from (contractName, fieldName, isProtected). The derivation
// is pure and the layout is a stable wire format: changing it would
// orphan all persisted state.

const (
	keyPrefixField     = 'f' // public contract field
	keyPrefixProtected = 'p' // protected field, reserved for the host
)

// DefaultKeyGenerator derives namespaced storage keys.
type DefaultKeyGenerator struct{}

// NewDefaultKeyGenerator creates a new instance of DefaultKeyGenerator.
func NewDefaultKeyGenerator() *DefaultKeyGenerator {
	return &DefaultKeyGenerator{}
}

// FieldKey generates the key for one contract field.
// Format: prefix + uvarint(len(contract)) + contract + field
// The length prefix keeps two contracts sharing a field name, or a
// contract name that is a prefix of another, from ever colliding.
func (kg *DefaultKeyGenerator) FieldKey(contract, field string, protected bool) []byte {
	key := kg.ContractPrefix(contract, protected)
	return append(key, []byte(field)...)
}

// ContractPrefix generates the key prefix covering every field of one
// contract, usable with PrefixRange for iteration.
func (kg *DefaultKeyGenerator) ContractPrefix(contract string, protected bool) []byte {
	prefix := byte(keyPrefixField)
	if protected {
		prefix = keyPrefixProtected
	}
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(contract)))

	key := make([]byte, 0, 1+n+len(contract))
	key = append(key, prefix)
	key = append(key, lenBuf[:n]...)
	return append(key, []byte(contract)...)
}

// PrefixRange returns key range that corresponds to the given prefix.
// It returns start (inclusive) and end (exclusive) keys for iteration.
func PrefixRange(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return nil, nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return prefix, end[:i+1]
		}
	}

	// every byte was 0xff: no upper bound
	return prefix, nil
}
