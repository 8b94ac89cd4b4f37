// Package abi describes the callable surface of a compiled contract
// module: its exported methods with their bytecode offsets, plus the
// struct and enum metadata the compiler emits alongside the bytecode.
package abi

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Contract is the ABI of one deployed module.
type Contract struct {
	Name    string      `json:"name"`
	Methods []Method    `json:"methods"`
	Structs []StructDef `json:"structs,omitempty"`
	Enums   []EnumDef   `json:"enums,omitempty"`
}

// Method is one exported method: its name, the instruction offset of
// its body, and its declared signature.
type Method struct {
	Name    string      `json:"name"`
	Offset  int         `json:"offset"`
	Inputs  []FieldDecl `json:"inputs,omitempty"`
	Outputs []FieldDecl `json:"outputs,omitempty"`
}

// FieldDecl declares one parameter, return value, or struct field.
// Decimals is the declared precision of a fixed-point field: the value
// travels as a scaled integer and the engine never consults it, but
// tooling and callers need it to render the number.
type FieldDecl struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Decimals int    `json:"decimals,omitempty"`
}

// StructDef is the layout of a struct type the contract exchanges.
type StructDef struct {
	Name   string      `json:"name"`
	Fields []FieldDecl `json:"fields"`
}

// EnumDef names the members of an enum type, in declaration order.
type EnumDef struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Validate checks internal consistency: non-empty names and no
// duplicate methods. Offsets are validated against the bytecode when
// the execution context is constructed, not here.
func (c *Contract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("contract name is empty")
	}
	seen := make(map[string]bool, len(c.Methods))
	for _, m := range c.Methods {
		if m.Name == "" {
			return fmt.Errorf("contract %s has a method with no name", c.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("contract %s declares method %s twice", c.Name, m.Name)
		}
		seen[m.Name] = true
		if m.Offset < 0 {
			return fmt.Errorf("method %s has negative offset %d", m.Name, m.Offset)
		}
	}
	return nil
}

// MethodOffsets returns the name -> offset table the execution context
// is built from.
func (c *Contract) MethodOffsets() map[string]int {
	offsets := make(map[string]int, len(c.Methods))
	for _, m := range c.Methods {
		offsets[m.Name] = m.Offset
	}
	return offsets
}

// Method returns the named method declaration.
func (c *Contract) Method(name string) (Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// DisplayName renders a method name for human-facing output, e.g.
// "increment" -> "Increment".
func (m Method) DisplayName() string {
	return cases.Title(language.English, cases.NoLower).String(m.Name)
}

// Encode serializes the ABI to JSON.
func (c *Contract) Encode() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Decode parses an ABI from JSON and validates it.
func Decode(data []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ABI: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
