package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterABI() *Contract {
	return &Contract{
		Name: "counter",
		Methods: []Method{
			{Name: "init", Offset: 0},
			{Name: "increment", Offset: 12, Outputs: []FieldDecl{{Name: "value", Type: "Number"}}},
		},
		Structs: []StructDef{
			{Name: "Snapshot", Fields: []FieldDecl{
				{Name: "value", Type: "Number"},
				{Name: "price", Type: "Number", Decimals: 8},
			}},
		},
		Enums: []EnumDef{
			{Name: "State", Members: []string{"Idle", "Active"}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := counterABI()

	data, err := original.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMethodOffsets(t *testing.T) {
	c := counterABI()
	offsets := c.MethodOffsets()
	assert.Equal(t, map[string]int{"init": 0, "increment": 12}, offsets)
}

func TestMethodLookup(t *testing.T) {
	c := counterABI()

	m, ok := c.Method("increment")
	require.True(t, ok)
	assert.Equal(t, 12, m.Offset)
	assert.Equal(t, "Increment", m.DisplayName())

	_, ok = c.Method("missing")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		contract Contract
		wantErr  string
	}{
		{
			name:     "empty name",
			contract: Contract{},
			wantErr:  "contract name is empty",
		},
		{
			name: "unnamed method",
			contract: Contract{
				Name:    "c",
				Methods: []Method{{Offset: 0}},
			},
			wantErr: "no name",
		},
		{
			name: "duplicate method",
			contract: Contract{
				Name:    "c",
				Methods: []Method{{Name: "m"}, {Name: "m"}},
			},
			wantErr: "twice",
		},
		{
			name: "negative offset",
			contract: Contract{
				Name:    "c",
				Methods: []Method{{Name: "m", Offset: -1}},
			},
			wantErr: "negative offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.contract.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"methods":[{"name":"m"}]}`))
	assert.Error(t, err)
}

func TestDecimalsSurviveRoundTrip(t *testing.T) {
	c := counterABI()
	data, err := c.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Structs[0].Fields[1].Decimals)
}
