package vm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervm/vm/core"
	"github.com/ledgervm/vm/storage/memory"
)

func singleInteropContext(t *testing.T, name string) *ExecutionContext {
	t.Helper()
	sb := NewScriptBuilder()
	sb.EmitInterop(name).Emit(OpRet)
	ctx, err := NewExecutionContext("host-test", sb.Bytes(), map[string]int{"run": 0})
	require.NoError(t, err)
	return ctx
}

func TestUnknownInteropFaults(t *testing.T) {
	store := memory.NewStore()
	ctx := singleInteropContext(t, "No.Such.Interop")

	e, err := NewEngineForMethod(ctx, "run", Config{Store: store})
	require.NoError(t, err)
	require.NoError(t, e.RegisterDefaultInterops())

	assert.Equal(t, StateFault, e.Run())
	require.ErrorIs(t, e.FaultError(), core.ErrUnknownInterop)
	assert.Contains(t, e.FaultError().Error(), "No.Such.Interop")

	// nothing was partially applied
	assert.Equal(t, 0, store.Len())
}

func TestRegisterInteropClosedSet(t *testing.T) {
	ctx := singleInteropContext(t, "Custom.Op")
	e, err := NewEngineForMethod(ctx, "run", Config{})
	require.NoError(t, err)

	called := false
	fn := func(e *Engine) (ExecutionState, error) {
		called = true
		return StateRunning, nil
	}

	require.NoError(t, e.RegisterInterop("Custom.Op", fn))
	assert.Error(t, e.RegisterInterop("Custom.Op", fn), "rebinding must be rejected")
	assert.Error(t, e.RegisterInterop("", fn))
	assert.Error(t, e.RegisterInterop("X", nil))

	require.NoError(t, e.Execute())
	assert.True(t, called)
}

func TestInteropFailureWrapsError(t *testing.T) {
	ctx := singleInteropContext(t, "Always.Fails")
	e, err := NewEngineForMethod(ctx, "run", Config{})
	require.NoError(t, err)

	require.NoError(t, e.RegisterInterop("Always.Fails", func(e *Engine) (ExecutionState, error) {
		return StateFault, errors.New("assertion failed in contract")
	}))

	assert.Equal(t, StateFault, e.Run())
	require.ErrorIs(t, e.FaultError(), core.ErrInteropFailure)
	assert.Contains(t, e.FaultError().Error(), "assertion failed in contract")
}

func TestInteropFaultStateAlwaysCarriesError(t *testing.T) {
	// a callback may signal Fault through the state alone; the engine
	// must still record a fault error so both delivery modes report it
	register := func(t *testing.T) *Engine {
		ctx := singleInteropContext(t, "Just.Fault")
		e, err := NewEngineForMethod(ctx, "run", Config{})
		require.NoError(t, err)
		require.NoError(t, e.RegisterInterop("Just.Fault", func(e *Engine) (ExecutionState, error) {
			return StateFault, nil
		}))
		return e
	}

	e := register(t)
	assert.Equal(t, StateFault, e.Run())
	require.ErrorIs(t, e.FaultError(), core.ErrInteropFailure)
	assert.Contains(t, e.FaultError().Error(), "Just.Fault")

	e = register(t)
	assert.ErrorIs(t, e.Execute(), core.ErrInteropFailure)
}

func TestInteropKeepsCoreFaultTaxonomy(t *testing.T) {
	// an interop popping a missing argument surfaces as a stack
	// underflow, not a generic interop failure
	ctx := singleInteropContext(t, "Pop.One")
	e, err := NewEngineForMethod(ctx, "run", Config{})
	require.NoError(t, err)

	require.NoError(t, e.RegisterInterop("Pop.One", func(e *Engine) (ExecutionState, error) {
		if _, err := e.Stack().Pop(); err != nil {
			return StateFault, err
		}
		return StateRunning, nil
	}))

	assert.Equal(t, StateFault, e.Run())
	assert.ErrorIs(t, e.FaultError(), core.ErrStackUnderflow)
	assert.NotErrorIs(t, e.FaultError(), core.ErrInteropFailure)
}

func TestInteropCanHaltEngine(t *testing.T) {
	sb := NewScriptBuilder()
	sb.EmitInterop("Stop.Now").
		EmitPushNum(1). // never reached
		Emit(OpRet)
	ctx, err := NewExecutionContext("host-test", sb.Bytes(), map[string]int{"run": 0})
	require.NoError(t, err)

	e, err := NewEngineForMethod(ctx, "run", Config{})
	require.NoError(t, err)
	require.NoError(t, e.RegisterInterop("Stop.Now", func(e *Engine) (ExecutionState, error) {
		return StateHalt, nil
	}))

	assert.Equal(t, StateHalt, e.Run())
	assert.Equal(t, 0, e.Stack().Len())
}

func TestDefaultInteropsNeedStore(t *testing.T) {
	ctx := singleInteropContext(t, "Data.Set")
	e, err := NewEngineForMethod(ctx, "run", Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, e.RegisterDefaultInterops(), core.ErrInvalidArgument)
}

func TestDataGetNormalizesObjectTag(t *testing.T) {
	store := memory.NewStore()
	kg := NewDefaultKeyGenerator()

	// pre-seed a value, then read it back requesting the ambiguous tag
	require.NoError(t, store.Set(kg.FieldKey("reader", "blob", false), []byte("opaque")))

	sb := NewScriptBuilder()
	sb.EmitPushNum(int64(TypeObject)).
		EmitPushString("blob").
		EmitPushString("reader").
		EmitInterop("Data.Get").
		Emit(OpRet)
	ctx, err := NewExecutionContext("reader", sb.Bytes(), map[string]int{"run": 0})
	require.NoError(t, err)

	e, err := NewEngineForMethod(ctx, "run", Config{Store: store})
	require.NoError(t, err)
	require.NoError(t, e.RegisterDefaultInterops())
	require.NoError(t, e.Execute())

	results := e.Stack().Items()
	require.Len(t, results, 1)
	assert.Equal(t, TypeBytes, results[0].Type())
	raw, err := results[0].AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("opaque"), raw)
}

func TestDataGetRejectsOutOfRangeTag(t *testing.T) {
	// 256 truncates to the None tag as a byte; it must fault instead
	store := memory.NewStore()
	sb := NewScriptBuilder()
	sb.EmitPushNum(256).
		EmitPushString("field").
		EmitPushString("reader").
		EmitInterop("Data.Get").
		Emit(OpRet)
	ctx, err := NewExecutionContext("reader", sb.Bytes(), map[string]int{"run": 0})
	require.NoError(t, err)

	e, err := NewEngineForMethod(ctx, "run", Config{Store: store})
	require.NoError(t, err)
	require.NoError(t, e.RegisterDefaultInterops())

	assert.Equal(t, StateFault, e.Run())
	assert.ErrorIs(t, e.FaultError(), core.ErrTypeMismatch)
}

func TestDataDelete(t *testing.T) {
	store := memory.NewStore()
	kg := NewDefaultKeyGenerator()
	key := kg.FieldKey("owner", "field", false)
	require.NoError(t, store.Set(key, []byte("value")))

	sb := NewScriptBuilder()
	sb.EmitPushString("field").EmitInterop("Data.Delete").Emit(OpRet)
	ctx, err := NewExecutionContext("owner", sb.Bytes(), map[string]int{"run": 0})
	require.NoError(t, err)

	e, err := NewEngineForMethod(ctx, "run", Config{Store: store})
	require.NoError(t, err)
	require.NoError(t, e.RegisterDefaultInterops())
	require.NoError(t, e.Execute())

	value, err := store.Get(key)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestCrossContractReadIsPermitted(t *testing.T) {
	store := memory.NewStore()
	kg := NewDefaultKeyGenerator()

	// another contract's public field is readable by name
	seed, err := NewString("public data").Serialize()
	require.NoError(t, err)
	require.NoError(t, store.Set(kg.FieldKey("token", "symbol", false), seed))

	sb := NewScriptBuilder()
	sb.EmitPushNum(int64(TypeString)).
		EmitPushString("symbol").
		EmitPushString("token").
		EmitInterop("Data.Get").
		Emit(OpRet)
	ctx, err := NewExecutionContext("observer", sb.Bytes(), map[string]int{"run": 0})
	require.NoError(t, err)

	e, err := NewEngineForMethod(ctx, "run", Config{Store: store})
	require.NoError(t, err)
	require.NoError(t, e.RegisterDefaultInterops())
	require.NoError(t, e.Execute())

	results := e.Stack().Items()
	require.Len(t, results, 1)
	assert.True(t, results[0].Equals(NewString("public data")))
}

func TestRuntimeInterops(t *testing.T) {
	store := memory.NewStore()
	sb := NewScriptBuilder()
	sb.EmitPushString("deploying").
		EmitInterop("Runtime.Log").
		EmitInterop("Runtime.Context").
		EmitInterop("Runtime.Time").
		Emit(OpRet)
	ctx, err := NewExecutionContext("runtime-test", sb.Bytes(), map[string]int{"run": 0})
	require.NoError(t, err)

	e, err := NewEngineForMethod(ctx, "run", Config{Store: store, BlockTime: 1735689600})
	require.NoError(t, err)
	require.NoError(t, e.RegisterDefaultInterops())
	require.NoError(t, e.Execute())

	assert.Equal(t, []string{"deploying"}, e.Logs())

	results := e.Stack().Items()
	require.Len(t, results, 2)
	assert.True(t, results[0].Equals(NewString("runtime-test")))
	assert.True(t, results[1].Equals(NewTimestamp(1735689600)))
}
