package core

import "errors"

// Fault conditions the engine can terminate with, plus common errors
// shared by the storage and repository layers.
var (
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrUnknownContext    = errors.New("unknown context")
	ErrUnknownInterop    = errors.New("unknown interop")
	ErrInteropFailure    = errors.New("interop failure")
	ErrMalformedBytecode = errors.New("malformed bytecode")

	ErrInvalidArgument  = errors.New("invalid argument")
	ErrContractNotFound = errors.New("contract not found")
	ErrFunctionNotFound = errors.New("function not found")
)
