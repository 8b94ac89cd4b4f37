// Package core provides the fundamental types and interfaces shared by
// the virtual machine, its storage backends, and embedding hosts.
package core

import "encoding/hex"

// Address represents a blockchain identity
type Address [20]byte

// Hash represents a 32-byte digest
type Hash [32]byte

var ZeroAddress = Address{}
var ZeroHash = Hash{}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func AddressFromString(str string) Address {
	b, err := hex.DecodeString(str)
	if err != nil || len(b) != len(Address{}) {
		return ZeroAddress
	}
	return Address(b)
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func HashFromString(str string) Hash {
	b, err := hex.DecodeString(str)
	if err != nil || len(b) != len(Hash{}) {
		return ZeroHash
	}
	return Hash(b)
}
