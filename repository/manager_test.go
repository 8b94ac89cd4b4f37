package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervm/vm/abi"
	"github.com/ledgervm/vm/core"
	"github.com/ledgervm/vm/vm"
)

func testModule(name string) *Module {
	sb := vm.NewScriptBuilder()
	initOffset := sb.Offset()
	sb.EmitPushNum(0).EmitPushString("counter").EmitInterop("Data.Set").Emit(vm.OpRet)

	return &Module{
		Name: name,
		Code: sb.Bytes(),
		ABI: &abi.Contract{
			Name:    name,
			Methods: []abi.Method{{Name: "init", Offset: initOffset}},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	original := testModule("counter")
	require.NoError(t, mgr.Register(original))

	loaded, err := mgr.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, mgr.Register(testModule("counter")))
	err = mgr.Register(testModule("counter"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRegisterValidatesModule(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, mgr.Register(nil))
	assert.Error(t, mgr.Register(&Module{Name: "x"}))
	assert.Error(t, mgr.Register(&Module{Name: "x", Code: []byte{0}}))

	mismatched := testModule("counter")
	mismatched.ABI.Name = "other"
	assert.Error(t, mgr.Register(mismatched))
}

func TestRegisterRejectsPathEscapingNames(t *testing.T) {
	parent := t.TempDir()
	mgr, err := NewManager(filepath.Join(parent, "contracts"))
	require.NoError(t, err)

	for _, name := range []string{"../outside", "a/b", `a\b`, "..", "."} {
		module := testModule("counter")
		module.Name = name
		module.ABI.Name = name
		assert.ErrorIs(t, mgr.Register(module), core.ErrInvalidArgument, "name %q", name)

		_, err = mgr.Get(name)
		assert.ErrorIs(t, err, core.ErrContractNotFound, "name %q", name)
	}

	// nothing landed outside the repository root
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "contracts", entries[0].Name())
}

func TestGetUnknownModule(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = mgr.Get("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrContractNotFound)
}

func TestList(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, mgr.Register(testModule("alpha")))
	require.NoError(t, mgr.Register(testModule("beta")))

	names, err := mgr.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}

func TestLoader(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, mgr.Register(testModule("counter")))

	loader := mgr.Loader()

	ctx := loader("counter")
	require.NotNil(t, ctx)
	assert.Equal(t, "counter", ctx.Name())
	_, ok := ctx.MethodOffset("init")
	assert.True(t, ok)

	assert.Nil(t, loader("missing"))
}
