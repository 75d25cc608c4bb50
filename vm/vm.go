// Package vm compiles flexscript source to register-machine instructions and
// executes them.
//
// A VM owns a register file, an operand stack, a lazily allocated memory
// pool and a table of host functions. It runs on the calling goroutine and
// suspends only at YIELD or after a single step; Execute resumes where it
// stopped.
package vm

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/flexscript/compiler"
	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/ir"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("flexscript.vm")

const (
	DefaultMaxSteps    = 10_000_000
	DefaultMemoryWords = 16384
	MaxStackDepth      = 1 << 16
)

// returnSentinel is the return address a fresh run starts with. A RETURN
// that pops it ends the run.
const returnSentinel = -1

// ErrExternalAddress is returned when registering a host function below the
// external threshold.
var ErrExternalAddress = errors.New("vm: external function address is below the external threshold")

// ExternalFunc is a host function. It receives its arguments in call order
// and returns one value, which the VM pushes as an int.
type ExternalFunc func(args []Value) Value

// Config tunes a VM.
type Config struct {
	MaxSteps    int  // steps per Execute before the run is force-terminated
	MemoryWords int  // size of the memory pool in 32-bit words
	Trace       bool // log every executed instruction at debug level
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{MaxSteps: DefaultMaxSteps, MemoryWords: DefaultMemoryWords}
}

// VM is one independent interpreter instance. It is not safe for concurrent
// use.
type VM struct {
	config   Config
	program  *Program
	compiled bool

	registers [RegisterCount]Value
	stack     []Value
	memory    []uint32
	externals map[int32]ExternalFunc

	ip         int
	zeroFlag   bool
	signFlag   bool
	terminated bool
	suspended  bool
	result     Value

	compileDiags diag.Container
	runtimeDiags diag.Container
}

// NewVM creates a VM with the default configuration.
func NewVM() *VM {
	return NewVMWithConfig(DefaultConfig())
}

// NewVMWithConfig creates a VM. Zero limits fall back to the defaults.
func NewVMWithConfig(cfg Config) *VM {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.MemoryWords <= 0 {
		cfg.MemoryWords = DefaultMemoryWords
	}
	v := &VM{config: cfg}
	v.reset()
	return v
}

// reset clears all program and runtime state, including registered host
// functions.
func (v *VM) reset() {
	v.program = nil
	v.compiled = false
	v.registers = [RegisterCount]Value{}
	v.stack = nil
	clear(v.memory)
	v.externals = make(map[int32]ExternalFunc)
	v.ip = -1
	v.zeroFlag, v.signFlag = false, false
	v.terminated, v.suspended = false, false
	v.result = None
	v.compileDiags.Clear()
	v.runtimeDiags.Clear()
}

// ---------------------------------------------------------------------------
// Compilation
// ---------------------------------------------------------------------------

// Compile runs the whole pipeline on src. Each stage runs only when the
// previous ones produced no diagnostics. The program carries whatever
// listings were produced; it is only runnable when the container is empty.
func Compile(src string) (*Program, *diag.Container) {
	diags := diag.NewContainer()
	idx := diag.NewLineIndex(src)
	prog := &Program{}

	ast, parseDiags := compiler.Parse(src)
	diags.Merge(parseDiags)
	if ast != nil {
		prog.AST = compiler.FormatProgram(ast)
	}
	if !diags.Empty() {
		diags.ResolveWith(idx)
		return prog, diags
	}

	mod, buildDiags := ir.Build(ast)
	diags.Merge(buildDiags)
	prog.IR = mod.String()
	if !diags.Empty() {
		diags.ResolveWith(idx)
		return prog, diags
	}

	gen, genDiags := Generate(mod)
	diags.Merge(genDiags)
	gen.AST = prog.AST
	for i := range gen.Origins {
		gen.Origins[i].Resolve(idx)
	}
	diags.ResolveWith(idx)
	return gen, diags
}

// CompileSource compiles src and loads the result, clearing all previous
// state. It reports whether compilation succeeded; on failure the
// diagnostics are in CompileDiagnostics.
func (v *VM) CompileSource(src string) bool {
	v.reset()
	prog, diags := Compile(src)
	v.program = prog
	v.compileDiags.Merge(diags)
	v.compiled = diags.Empty()
	if v.compiled {
		log.Debugf("compiled %d instructions, %d registers", len(prog.Instructions), len(prog.Registers))
	} else {
		log.Debugf("compilation failed with %d diagnostics", diags.Len())
	}
	return v.compiled
}

// LoadInstructions loads a raw instruction stream, bypassing the compiler.
func (v *VM) LoadInstructions(instrs []Instruction) {
	origins := make([]diag.Span, len(instrs))
	for i := range origins {
		origins[i] = diag.GeneratedSpan()
	}
	v.LoadProgram(&Program{
		Instructions: append([]Instruction(nil), instrs...),
		Origins:      origins,
		Registers:    map[string]int{},
	})
}

// LoadProgram loads an already compiled program, clearing all previous state.
func (v *VM) LoadProgram(p *Program) {
	v.reset()
	v.program = p
	v.compiled = true
	log.Debugf("loaded %d instructions", len(p.Instructions))
}

// RegisterExternal binds a host function to an address at or above the
// external threshold. Functions must be registered after the program is
// loaded; loading clears the table.
func (v *VM) RegisterExternal(addr int32, fn ExternalFunc) error {
	if !IsExternalAddress(addr) {
		return fmt.Errorf("%w: 0x%X", ErrExternalAddress, uint32(addr))
	}
	v.externals[addr] = fn
	return nil
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// Program returns the loaded program, or nil.
func (v *VM) Program() *Program { return v.program }

// Compiled reports whether a program is loaded and free of diagnostics.
func (v *VM) Compiled() bool { return v.compiled }

// InstructionIndex returns the instruction pointer, -1 when not running.
func (v *VM) InstructionIndex() int { return v.ip }

// CurrentLineNumber returns the source line of the instruction about to
// execute, or 0 when unknown.
func (v *VM) CurrentLineNumber() int {
	if v.program == nil || v.ip < 0 || v.ip >= len(v.program.Origins) {
		return 0
	}
	return v.program.Origins[v.ip].Line
}

// IsExecuting reports whether a run is in progress (possibly suspended).
func (v *VM) IsExecuting() bool { return v.ip >= 0 }

// IsSuspended reports whether the run stopped at a YIELD or after a single
// step and can be resumed.
func (v *VM) IsSuspended() bool { return v.suspended && v.ip >= 0 }

// IsTerminated reports whether the last run ended.
func (v *VM) IsTerminated() bool { return v.terminated }

func (v *VM) ZeroFlag() bool { return v.zeroFlag }
func (v *VM) SignFlag() bool { return v.signFlag }

// Register returns the value of register r.
func (v *VM) Register(r int) Value {
	if r < 0 || r >= RegisterCount {
		return None
	}
	return v.registers[r]
}

// RegisterOf returns the value of the register bound to a variable.
func (v *VM) RegisterOf(name string) (Value, bool) {
	if v.program == nil {
		return None, false
	}
	r, ok := v.program.Registers[name]
	if !ok {
		return None, false
	}
	return v.registers[r], true
}

// Stack returns a copy of the operand stack, bottom first.
func (v *VM) Stack() []Value {
	return append([]Value(nil), v.stack...)
}

// Result returns the value of the top-level return that ended the last
// run, or None.
func (v *VM) Result() Value { return v.result }

// Memory returns the memory pool, allocating it on first use.
func (v *VM) Memory() []uint32 {
	if v.memory == nil {
		v.memory = make([]uint32, v.config.MemoryWords)
	}
	return v.memory
}

// LoadWord reads one memory word.
func (v *VM) LoadWord(addr int32) (uint32, bool) {
	mem := v.Memory()
	if addr < 0 || int(addr) >= len(mem) {
		return 0, false
	}
	return mem[addr], true
}

// StoreWord writes one memory word.
func (v *VM) StoreWord(addr int32, word uint32) bool {
	mem := v.Memory()
	if addr < 0 || int(addr) >= len(mem) {
		return false
	}
	mem[addr] = word
	return true
}

func (v *VM) ASTString() string {
	if v.program == nil {
		return ""
	}
	return v.program.AST
}

func (v *VM) IRString() string {
	if v.program == nil {
		return ""
	}
	return v.program.IR
}

// UnpatchedInstructionString returns the block-grouped listing from before
// jump targets were patched.
func (v *VM) UnpatchedInstructionString() string {
	if v.program == nil {
		return ""
	}
	return v.program.Blocks
}

// InstructionString returns the flat, patched listing.
func (v *VM) InstructionString() string {
	if v.program == nil {
		return ""
	}
	return Listing(v.program.Instructions)
}

// CompileDiagnostics returns diagnostics from the last compilation.
func (v *VM) CompileDiagnostics() *diag.Container { return &v.compileDiags }

// RuntimeDiagnostics returns diagnostics raised while running.
func (v *VM) RuntimeDiagnostics() *diag.Container { return &v.runtimeDiags }
