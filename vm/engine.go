package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ledgervm/vm/core"
)

// ExecutionState is the engine's state machine.
type ExecutionState byte

const (
	// StateRunning means the engine has more instructions to step.
	StateRunning ExecutionState = iota
	// StateHalt is the clean terminal state: the last frame returned
	// or a HALT instruction was executed.
	StateHalt
	// StateFault is the terminal error state. The execution is over
	// and the host should discard its storage writes.
	StateFault
	// StateBreak is a voluntary suspension, entered via BREAKPT or a
	// step hook. Resume continues as if still Running.
	StateBreak
)

var stateNames = map[ExecutionState]string{
	StateRunning: "Running",
	StateHalt:    "Halt",
	StateFault:   "Fault",
	StateBreak:   "Break",
}

func (s ExecutionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ExecutionState(%d)", byte(s))
}

// Config carries the host-injected collaborators of one engine
// instance. Store and Loader may be nil when no interop or instruction
// needs them; registering the default interops requires a Store.
type Config struct {
	// Store is the key/value state view lent to storage interops.
	Store core.StateStore
	// Loader resolves named contexts for cross-context calls.
	Loader ContextLoader
	// StepHook, when set, runs before every instruction. Returning
	// false parks the engine in StateBreak without consuming the
	// instruction; hosts use this to impose metering or step limits.
	StepHook func(e *Engine) bool
	// BlockTime is the timestamp the Runtime.Time interop answers
	// with, in seconds.
	BlockTime int64
	// Logger receives engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine is the instruction-stepping virtual machine. One engine runs
// one top-level call into one context to a terminal state; engines are
// not reused and share nothing with each other except the host's
// store.
type Engine struct {
	cfg      Config
	entry    *ExecutionContext
	stack    *Stack
	frames   []*Frame
	state    ExecutionState
	faultErr error
	interops map[string]InteropFunc
	logs     []string
	log      *slog.Logger
}

// NewEngine builds an engine bound to one context and a starting
// instruction offset inside it. The initial state is Running.
func NewEngine(ctx *ExecutionContext, offset int, cfg Config) (*Engine, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: nil execution context", core.ErrInvalidArgument)
	}
	if offset < 0 || offset >= len(ctx.Code()) {
		return nil, fmt.Errorf("%w: start offset %d outside bytecode of %q", core.ErrInvalidArgument, offset, ctx.Name())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		entry:    ctx,
		stack:    NewStack(),
		frames:   []*Frame{{ctx: ctx, ip: offset}},
		state:    StateRunning,
		interops: make(map[string]InteropFunc),
		log:      logger,
	}, nil
}

// NewEngineForMethod builds an engine positioned at an exported method
// of ctx, as listed in its ABI offset table.
func NewEngineForMethod(ctx *ExecutionContext, method string, cfg Config) (*Engine, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: nil execution context", core.ErrInvalidArgument)
	}
	offset, ok := ctx.MethodOffset(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", core.ErrFunctionNotFound, ctx.Name(), method)
	}
	return NewEngine(ctx, offset, cfg)
}

// State returns the engine's current execution state.
func (e *Engine) State() ExecutionState {
	return e.state
}

// Stack returns the shared evaluation stack. Hosts push arguments here
// before running and read results after Halt.
func (e *Engine) Stack() *Stack {
	return e.stack
}

// Store returns the state view this engine was constructed with.
func (e *Engine) Store() core.StateStore {
	return e.cfg.Store
}

// BlockTime returns the host-supplied timestamp.
func (e *Engine) BlockTime() int64 {
	return e.cfg.BlockTime
}

// CurrentContext returns the context owning the topmost frame. Its
// name is the only legitimate source of "who is currently executing";
// the storage write interops key off it and nothing else.
func (e *Engine) CurrentContext() *ExecutionContext {
	if len(e.frames) == 0 {
		return e.entry
	}
	return e.frames[len(e.frames)-1].ctx
}

// FaultError returns the error that drove the engine into StateFault,
// or nil.
func (e *Engine) FaultError() error {
	return e.faultErr
}

// Logs returns the lines accumulated by the Runtime.Log interop.
func (e *Engine) Logs() []string {
	out := make([]string, len(e.logs))
	copy(out, e.logs)
	return out
}

// AppendLog adds a line to the diagnostic sink.
func (e *Engine) AppendLog(line string) {
	e.logs = append(e.logs, line)
}

func (e *Engine) fault(err error) {
	e.state = StateFault
	e.faultErr = err
	e.log.Debug("execution faulted",
		"context", e.CurrentContext().Name(),
		"error", err)
}

// Run steps the engine to a terminal state, or to StateBreak if a
// breakpoint or the step hook suspends it, and returns that state.
// A Fault comes back as an ordinary return value; chain-execution
// hosts check it and record a failed transaction without their own
// control flow being aborted.
func (e *Engine) Run() ExecutionState {
	for e.state == StateRunning {
		e.Step()
	}
	return e.state
}

// Execute is the throwing counterpart of Run: it steps to a terminal
// state and converts a Fault into an error, for tests and tooling that
// want an immediate diagnostic. A Break is resumed transparently.
func (e *Engine) Execute() error {
	for {
		switch e.Run() {
		case StateHalt:
			return nil
		case StateFault:
			return e.faultErr
		case StateBreak:
			e.Resume()
		}
	}
}

// Resume re-enters the Running state after a Break. Resuming an
// engine that is not suspended has no effect.
func (e *Engine) Resume() {
	if e.state == StateBreak {
		e.state = StateRunning
	}
}

// Step executes a single instruction. It is a no-op unless the engine
// is Running.
func (e *Engine) Step() {
	if e.state != StateRunning {
		return
	}
	if e.cfg.StepHook != nil && !e.cfg.StepHook(e) {
		e.state = StateBreak
		return
	}

	frame := e.frames[len(e.frames)-1]
	if frame.atEnd() {
		// running off the end of a context behaves like RET
		e.popFrame()
		return
	}

	op := Opcode(frame.ctx.code[frame.ip])
	frame.ip++

	if err := e.exec(frame, op); err != nil {
		e.fault(err)
	}
}

func (e *Engine) popFrame() {
	e.frames = e.frames[:len(e.frames)-1]
	if len(e.frames) == 0 {
		e.state = StateHalt
	}
}

func (e *Engine) exec(frame *Frame, op Opcode) error {
	switch op {
	case OpNop:
		return nil

	case OpHalt:
		e.frames = e.frames[:0]
		e.state = StateHalt
		return nil

	case OpRet:
		e.popFrame()
		return nil

	case OpPushNull:
		e.stack.Push(NewNone())
		return nil

	case OpPushBool:
		b, err := frame.readByte()
		if err != nil {
			return err
		}
		if b > 1 {
			return fmt.Errorf("%w: PUSHBOOL operand %d", core.ErrMalformedBytecode, b)
		}
		e.stack.Push(NewBool(b == 1))
		return nil

	case OpPushNum:
		v, err := frame.readI64()
		if err != nil {
			return err
		}
		e.stack.Push(NewNumberFromInt64(v))
		return nil

	case OpPushStr:
		s, err := frame.readString()
		if err != nil {
			return err
		}
		e.stack.Push(NewString(s))
		return nil

	case OpPushBytes:
		n, err := frame.readU16()
		if err != nil {
			return err
		}
		data, err := frame.readBytes(int(n))
		if err != nil {
			return err
		}
		e.stack.Push(NewBytes(data))
		return nil

	case OpPushAddr:
		data, err := frame.readBytes(len(core.Address{}))
		if err != nil {
			return err
		}
		e.stack.Push(NewAddress(core.Address(data)))
		return nil

	case OpPop:
		_, err := e.stack.Pop()
		return err

	case OpDup:
		top, err := e.stack.Peek()
		if err != nil {
			return err
		}
		e.stack.Push(top.Clone())
		return nil

	case OpSwap:
		return e.stack.Swap()

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return e.arith(op)

	case OpEq:
		b, err := e.stack.Pop()
		if err != nil {
			return err
		}
		a, err := e.stack.Pop()
		if err != nil {
			return err
		}
		e.stack.Push(NewBool(a.Equals(b)))
		return nil

	case OpLt, OpGt:
		b, err := e.stack.Pop()
		if err != nil {
			return err
		}
		a, err := e.stack.Pop()
		if err != nil {
			return err
		}
		cmp, err := a.Cmp(b)
		if err != nil {
			return err
		}
		if op == OpLt {
			e.stack.Push(NewBool(cmp < 0))
		} else {
			e.stack.Push(NewBool(cmp > 0))
		}
		return nil

	case OpNot:
		v, err := e.stack.popBool()
		if err != nil {
			return err
		}
		e.stack.Push(NewBool(!v))
		return nil

	case OpAnd, OpOr:
		b, err := e.stack.popBool()
		if err != nil {
			return err
		}
		a, err := e.stack.popBool()
		if err != nil {
			return err
		}
		if op == OpAnd {
			e.stack.Push(NewBool(a && b))
		} else {
			e.stack.Push(NewBool(a || b))
		}
		return nil

	case OpJmp, OpJmpIf, OpJmpNot:
		target, err := frame.readU16()
		if err != nil {
			return err
		}
		if int(target) >= len(frame.ctx.code) {
			return fmt.Errorf("%w: jump target %d outside bytecode", core.ErrMalformedBytecode, target)
		}
		taken := true
		if op != OpJmp {
			cond, err := e.stack.popBool()
			if err != nil {
				return err
			}
			taken = cond == (op == OpJmpIf)
		}
		if taken {
			frame.ip = int(target)
		}
		return nil

	case OpCat:
		b, err := e.stack.Pop()
		if err != nil {
			return err
		}
		a, err := e.stack.Pop()
		if err != nil {
			return err
		}
		return e.concat(a, b)

	case OpSize:
		v, err := e.stack.Pop()
		if err != nil {
			return err
		}
		switch v.Type() {
		case TypeString:
			s, _ := v.AsString()
			e.stack.Push(NewNumberFromInt64(int64(len(s))))
		case TypeBytes:
			b, _ := v.AsBytes()
			e.stack.Push(NewNumberFromInt64(int64(len(b))))
		default:
			return fmt.Errorf("%w: SIZE expects String or Bytes, got %s", core.ErrTypeMismatch, v.Type())
		}
		return nil

	case OpNewStruct:
		e.stack.Push(NewStruct())
		return nil

	case OpSetField:
		name, err := frame.readString()
		if err != nil {
			return err
		}
		val, err := e.stack.Pop()
		if err != nil {
			return err
		}
		st, err := e.stack.Pop()
		if err != nil {
			return err
		}
		if err := st.SetField(name, val); err != nil {
			return err
		}
		e.stack.Push(st)
		return nil

	case OpGetField:
		name, err := frame.readString()
		if err != nil {
			return err
		}
		st, err := e.stack.Pop()
		if err != nil {
			return err
		}
		val, err := st.Field(name)
		if err != nil {
			return err
		}
		e.stack.Push(val)
		return nil

	case OpInterop:
		name, err := frame.readString()
		if err != nil {
			return err
		}
		return e.invokeInterop(name)

	case OpCtxCall:
		ctxName, err := frame.readString()
		if err != nil {
			return err
		}
		method, err := frame.readString()
		if err != nil {
			return err
		}
		return e.ctxCall(ctxName, method)

	case OpBreakpoint:
		e.state = StateBreak
		return nil

	default:
		return fmt.Errorf("%w: unknown opcode %d at %s:%d", core.ErrMalformedBytecode, byte(op), frame.ctx.name, frame.ip-1)
	}
}

var errDivideByZero = errors.New("division by zero")

func (e *Engine) arith(op Opcode) error {
	b, err := e.stack.popNumber()
	if err != nil {
		return err
	}
	a, err := e.stack.popNumber()
	if err != nil {
		return err
	}
	x, _ := a.AsNumber()
	y, _ := b.AsNumber()
	out := new(big.Int)
	switch op {
	case OpAdd:
		out.Add(x, y)
	case OpSub:
		out.Sub(x, y)
	case OpMul:
		out.Mul(x, y)
	case OpDiv:
		if y.Sign() == 0 {
			return errDivideByZero
		}
		out.Quo(x, y)
	case OpMod:
		if y.Sign() == 0 {
			return errDivideByZero
		}
		out.Rem(x, y)
	}
	e.stack.Push(NewNumber(out))
	return nil
}

func (e *Engine) concat(a, b *VMObject) error {
	switch a.Type() {
	case TypeString:
		x, _ := a.AsString()
		y, err := b.AsString()
		if err != nil {
			return err
		}
		e.stack.Push(NewString(x + y))
		return nil
	case TypeBytes:
		x, _ := a.AsBytes()
		y, err := b.AsBytes()
		if err != nil {
			return err
		}
		e.stack.Push(NewBytes(append(x, y...)))
		return nil
	default:
		return fmt.Errorf("%w: CAT expects String or Bytes, got %s", core.ErrTypeMismatch, a.Type())
	}
}

// ctxCall resolves another named context through the loader and pushes
// a frame for it. The callee shares the evaluation stack; when it
// returns, the caller resumes after the CTXCALL instruction.
func (e *Engine) ctxCall(ctxName, method string) error {
	if e.cfg.Loader == nil {
		return fmt.Errorf("%w: no context loader installed, cannot resolve %q", core.ErrUnknownContext, ctxName)
	}
	ctx := e.cfg.Loader(ctxName)
	if ctx == nil {
		return fmt.Errorf("%w: %q", core.ErrUnknownContext, ctxName)
	}
	offset, ok := ctx.MethodOffset(method)
	if !ok {
		return fmt.Errorf("%w: %s.%s", core.ErrFunctionNotFound, ctxName, method)
	}
	e.frames = append(e.frames, &Frame{ctx: ctx, ip: offset})
	return nil
}
