package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/flexscript/compiler"
	"github.com/chazu/flexscript/diag"
	"github.com/chazu/flexscript/ir"
)

// Program is compiled, patched code ready to load into a VM.
type Program struct {
	Instructions []Instruction
	Origins      []diag.Span // index-aligned with Instructions
	Registers    map[string]int

	// Debug listings.
	AST    string
	IR     string
	Blocks string // pre-patch instructions grouped by block
}

// RegisterName returns the variable bound to register r, or "".
func (p *Program) RegisterName(r int) string {
	for name, idx := range p.Registers {
		if idx == r {
			return name
		}
	}
	return ""
}

// instructionBlock collects the instructions of one IR block, or of a block
// synthesized while lowering conditions. Jump and call targets inside hold
// block indices until the patch pass.
type instructionBlock struct {
	index        BlockIndex
	synthetic    bool
	instructions []Instruction
	origins      []diag.Span
	start        InstructionOffset // -1 until laid out
}

// comparisonTargets are the blocks a condition resolves to. When branching,
// Merge is the block laid out next; when producing a value, Merge is where
// both outcomes rejoin.
type comparisonTargets struct {
	True  BlockIndex
	False BlockIndex
	Merge BlockIndex
}

const noBlock BlockIndex = -1

var arithOpcodes = map[compiler.BinaryOp]Opcode{
	compiler.BinaryAdd:    OpAdd,
	compiler.BinarySub:    OpSub,
	compiler.BinaryMul:    OpMul,
	compiler.BinaryDiv:    OpDiv,
	compiler.BinaryMod:    OpMod,
	compiler.BinaryBitAnd: OpAnd,
	compiler.BinaryBitOr:  OpOr,
	compiler.BinaryBitXor: OpXor,
}

// comparisonJumps maps a comparison to the jump taken when it holds.
var comparisonJumps = map[compiler.BinaryOp]Opcode{
	compiler.BinaryEqual:        OpJeq,
	compiler.BinaryNotEqual:     OpJne,
	compiler.BinaryLess:         OpJlt,
	compiler.BinaryLessEqual:    OpJle,
	compiler.BinaryGreater:      OpJgt,
	compiler.BinaryGreaterEqual: OpJge,
}

type codegen struct {
	module *ir.Module
	diags  diag.Container

	blocks []*instructionBlock
	order  []BlockIndex // layout order: the order blocks are entered
	cur    *instructionBlock

	registers map[string]int
	overflow  bool
	temps     int
}

// Generate lowers a module into a flat instruction list with patched jump
// and call targets. The module must be free of errors.
func Generate(mod *ir.Module) (*Program, *diag.Container) {
	g := &codegen{module: mod, registers: make(map[string]int)}

	// IR block i owns instruction block i.
	for range mod.Blocks {
		g.newBlock(false)
	}
	for i, blk := range mod.Blocks {
		next := noBlock
		if i+1 < len(mod.Blocks) {
			next = BlockIndex(i + 1)
		}
		g.genBlock(blk, next)
	}

	prog := &Program{Registers: g.registers, IR: mod.String()}
	prog.Blocks = g.blockListing()
	prog.Instructions, prog.Origins = g.flatten()
	g.patch(prog.Instructions, prog.Origins)
	return prog, &g.diags
}

func (g *codegen) errorf(span diag.Span, format string, args ...any) {
	g.diags.Addf(span, diag.KindSemantic, format, args...)
}

// ---------------------------------------------------------------------------
// Blocks and registers
// ---------------------------------------------------------------------------

func (g *codegen) newBlock(synthetic bool) BlockIndex {
	idx := BlockIndex(len(g.blocks))
	g.blocks = append(g.blocks, &instructionBlock{index: idx, synthetic: synthetic, start: -1})
	return idx
}

// reserve allocates the three blocks a value-producing condition needs.
func (g *codegen) reserve() comparisonTargets {
	return comparisonTargets{True: g.newBlock(true), False: g.newBlock(true), Merge: g.newBlock(true)}
}

func (g *codegen) enter(idx BlockIndex) {
	g.cur = g.blocks[idx]
	g.order = append(g.order, idx)
}

func (g *codegen) emit(span diag.Span, op Opcode, args ...Operand) {
	g.cur.instructions = append(g.cur.instructions, NewInstruction(op, args...))
	g.cur.origins = append(g.cur.origins, span)
}

// reg returns the register bound to name, binding the next free one on
// first use.
func (g *codegen) reg(name string, span diag.Span) Operand {
	if r, ok := g.registers[name]; ok {
		return Reg(r)
	}
	r := len(g.registers)
	if r >= RegisterCount {
		if !g.overflow {
			g.errorf(span, "program needs more than %d registers", RegisterCount)
			g.overflow = true
		}
		return Reg(RegisterCount - 1)
	}
	g.registers[name] = r
	return Reg(r)
}

func (g *codegen) newTemp(span diag.Span) Operand {
	name := fmt.Sprintf("$c%d", g.temps)
	g.temps++
	return g.reg(name, span)
}

func zeroOf(t ir.Type) Operand {
	if t == ir.TypeFloat {
		return Const(Float(0))
	}
	return IntConst(0)
}

// ---------------------------------------------------------------------------
// Blocks, assignments and terminators
// ---------------------------------------------------------------------------

func (g *codegen) genBlock(blk *ir.Block, next BlockIndex) {
	g.enter(BlockIndex(blk.Index))
	if fn := g.module.FunctionAt(blk.Index); fn != nil {
		g.prologue(fn)
	}
	for _, a := range blk.Assignments {
		g.genAssignment(a)
	}
	g.genTerminator(blk, next)
}

// prologue moves the arguments off the stack into parameter registers,
// leaving the return address on top for RETURN.
func (g *codegen) prologue(fn *ir.Function) {
	ra := g.reg(fn.ReturnAddress, fn.SpanVal)
	g.emit(fn.SpanVal, OpPop, ra)
	for i := len(fn.Params) - 1; i >= 0; i-- {
		g.emit(fn.SpanVal, OpPop, g.reg(fn.Params[i].Name, fn.SpanVal))
	}
	g.emit(fn.SpanVal, OpPush, ra)
}

func (g *codegen) genAssignment(a ir.Assignment) {
	if a.Variable == "" {
		if call, ok := a.Value.(*ir.FunctionCall); ok {
			g.genCall(call, nil)
			return
		}
		g.materialize(a.Value)
		return
	}
	g.genValue(g.reg(a.Variable, a.SpanVal), a.Value)
}

func (g *codegen) genTerminator(blk *ir.Block, next BlockIndex) {
	switch t := blk.Terminator.(type) {
	case *ir.Return:
		if t.Value == nil {
			g.emit(t.SpanVal, OpReturn)
			return
		}
		g.emit(t.SpanVal, OpReturn, g.materialize(t.Value))

	case *ir.Branch:
		g.emit(t.SpanVal, OpJmp, blockTarget(BlockIndex(t.Target)))

	case *ir.CondBranch:
		g.handleComparison(t.Condition, comparisonTargets{
			True:  BlockIndex(t.Then),
			False: BlockIndex(t.FalseTarget()),
			Merge: next,
		}, nil)

	case *ir.Yield:
		g.emit(t.SpanVal, OpYield)
		g.emit(t.SpanVal, OpJmp, blockTarget(BlockIndex(t.Next)))

	case *ir.Halt:
		g.emit(diag.GeneratedSpan(), OpHalt)

	case nil:
		g.errorf(diag.GeneratedSpan(), "block %d has no terminator", blk.Index)

	default:
		g.errorf(t.Span(), "unsupported terminator %T", t)
	}
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// materialize returns v as an operand, computing compound values into a
// fresh register at this point in the instruction stream.
func (g *codegen) materialize(v ir.Value) Operand {
	switch v := v.(type) {
	case *ir.IntLiteral:
		return IntConst(v.Value)
	case *ir.FloatLiteral:
		return Const(Float(v.Value))
	case *ir.Identifier:
		return g.reg(v.Name, v.SpanVal)
	}
	tmp := g.newTemp(v.Span())
	g.genValue(tmp, v)
	return tmp
}

// genValue computes v into dst.
func (g *codegen) genValue(dst Operand, v ir.Value) {
	span := v.Span()
	switch v := v.(type) {
	case *ir.IntLiteral, *ir.FloatLiteral, *ir.Identifier:
		g.emit(span, OpMov, dst, g.materialize(v))

	case *ir.UnaryValue:
		switch v.Op {
		case compiler.UnaryNegate:
			operand := g.materialize(v.Operand)
			g.emit(span, OpSub, dst, zeroOf(v.Operand.Type()), operand)
		case compiler.UnaryInvert:
			g.emit(span, OpInv, dst, g.materialize(v.Operand))
		case compiler.UnaryNot:
			g.handleComparison(v, g.reserve(), &dst)
		}

	case *ir.BinaryValue:
		if ir.IsCondition(v) {
			g.handleComparison(v, g.reserve(), &dst)
			return
		}
		op, ok := arithOpcodes[v.Op]
		if !ok {
			g.errorf(span, "unsupported operator %s", v.Op)
			return
		}
		left := g.materialize(v.Left)
		right := g.materialize(v.Right)
		g.emit(span, op, dst, left, right)

	case *ir.TernaryValue:
		t := g.reserve()
		g.branch(v.Condition, t.True, t.False, t.True)
		g.enter(t.True)
		g.genValue(dst, v.IfTrue)
		g.emit(span, OpJmp, blockTarget(t.Merge))
		g.enter(t.False)
		g.genValue(dst, v.IfFalse)
		g.enter(t.Merge)

	case *ir.FunctionCall:
		g.genCall(v, &dst)

	case *ir.CastValue:
		g.genCast(dst, v)

	default:
		g.errorf(span, "unsupported value %T", v)
	}
}

func (g *codegen) genCast(dst Operand, v *ir.CastValue) {
	from := v.Operand.Type()
	src := g.materialize(v.Operand)
	switch {
	case from == v.To:
		g.emit(v.SpanVal, OpMov, dst, src)
	case from == ir.TypeInt && v.To == ir.TypeFloat:
		g.emit(v.SpanVal, OpItf, dst, src)
	case from == ir.TypeFloat && v.To == ir.TypeInt:
		g.emit(v.SpanVal, OpFti, dst, src)
	default:
		g.errorf(v.SpanVal, "invalid cast from %s to %s", from, v.To)
	}
}

// genCall pushes the arguments in order and calls. A value-returning call
// leaves its result on the stack; it is popped into dst, or dropped when dst
// is nil. External calls always leave a value.
func (g *codegen) genCall(call *ir.FunctionCall, dst *Operand) {
	span := call.SpanVal
	args := make([]Operand, len(call.Args))
	for i, arg := range call.Args {
		args[i] = g.materialize(arg)
	}
	for i, arg := range args {
		g.emit(call.Args[i].Span(), OpPush, arg)
	}
	argc := IntConst(int32(len(args)))

	var returns bool
	switch {
	case call.Extern != nil:
		g.emit(span, OpCall, IntConst(call.Extern.Address), argc)
		returns = true
	case call.Function != nil:
		g.emit(span, OpCall, blockTarget(BlockIndex(call.Function.Entry)), argc)
		returns = call.Function.Returns != ir.TypeNone
	default:
		g.errorf(span, "undefined function %s", call.Name)
		return
	}

	switch {
	case !returns:
	case dst != nil:
		g.emit(span, OpPop, *dst)
	default:
		g.emit(span, OpPop)
	}
}

// ---------------------------------------------------------------------------
// Conditions
// ---------------------------------------------------------------------------

// handleComparison lowers a condition. Without dst, control continues at
// targets.True or targets.False. With dst, the condition's truth is written
// as 1 or 0 and both outcomes rejoin at targets.Merge, which is left as the
// current block.
func (g *codegen) handleComparison(cond ir.Value, targets comparisonTargets, dst *Operand) {
	if dst == nil {
		g.branch(cond, targets.True, targets.False, targets.Merge)
		return
	}
	span := cond.Span()
	g.branch(cond, targets.True, targets.False, targets.True)
	g.enter(targets.True)
	g.emit(span, OpMov, *dst, IntConst(1))
	g.emit(span, OpJmp, blockTarget(targets.Merge))
	g.enter(targets.False)
	g.emit(span, OpMov, *dst, IntConst(0))
	g.enter(targets.Merge)
}

// branch jumps to t when cond holds and to f otherwise. next is the block
// laid out after the current one, so a jump to it can be left to fall
// through. && and || test their right operand in a block of its own, which
// is only reached when the left operand does not decide the result.
func (g *codegen) branch(cond ir.Value, t, f, next BlockIndex) {
	span := cond.Span()
	switch c := cond.(type) {
	case *ir.BinaryValue:
		switch {
		case c.Op == compiler.BinaryAnd:
			mid := g.newBlock(true)
			g.branch(c.Left, mid, f, mid)
			g.enter(mid)
			g.branch(c.Right, t, f, next)
			return
		case c.Op == compiler.BinaryOr:
			mid := g.newBlock(true)
			g.branch(c.Left, t, mid, mid)
			g.enter(mid)
			g.branch(c.Right, t, f, next)
			return
		case c.Op.IsComparison():
			left := g.materialize(c.Left)
			right := g.materialize(c.Right)
			g.emit(span, OpCmp, left, right)
			g.jumpIf(comparisonJumps[c.Op], t, f, next, span)
			return
		}
	case *ir.UnaryValue:
		if c.Op == compiler.UnaryNot {
			g.branch(c.Operand, f, t, next)
			return
		}
	}

	// Any other value is true when non-zero.
	v := g.materialize(cond)
	g.emit(span, OpCmp, v, zeroOf(cond.Type()))
	g.jumpIf(OpJne, t, f, next, span)
}

// jumpIf emits the jumps for a flag test whose jump cc is taken when the
// condition holds. The preferred form jumps away on the inverse test and
// falls through into the true block.
func (g *codegen) jumpIf(cc Opcode, t, f, next BlockIndex, span diag.Span) {
	switch {
	case t == next:
		g.emit(span, cc.Inverse(), blockTarget(f))
	case f == next:
		g.emit(span, cc, blockTarget(t))
	default:
		g.emit(span, cc.Inverse(), blockTarget(f))
		g.emit(span, OpJmp, blockTarget(t))
	}
}

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

// flatten concatenates blocks in layout order, recording each start offset.
func (g *codegen) flatten() ([]Instruction, []diag.Span) {
	var instrs []Instruction
	var origins []diag.Span
	for _, idx := range g.order {
		blk := g.blocks[idx]
		blk.start = InstructionOffset(len(instrs))
		instrs = append(instrs, blk.instructions...)
		origins = append(origins, blk.origins...)
	}
	return instrs, origins
}

// patch rewrites block indices in jump and local call operands into the
// start offsets of those blocks. It runs once, after flatten.
func (g *codegen) patch(instrs []Instruction, origins []diag.Span) {
	for i := range instrs {
		in := &instrs[i]
		if !in.Op.HasTarget() || in.Args[0].Kind != OperandConstant {
			continue
		}
		raw := in.Args[0].Value.AsInt()
		if in.Op == OpCall && IsExternalAddress(raw) {
			continue
		}
		idx := BlockIndex(raw)
		if idx < 0 || int(idx) >= len(g.blocks) || g.blocks[idx].start < 0 {
			g.errorf(origins[i], "Invalid block index %d", idx)
			continue
		}
		in.Args[0] = offsetTarget(g.blocks[idx].start)
	}
}

func (g *codegen) blockListing() string {
	var sb strings.Builder
	for _, idx := range g.order {
		blk := g.blocks[idx]
		if blk.synthetic {
			fmt.Fprintf(&sb, "block %d (synthetic):\n", idx)
		} else {
			fmt.Fprintf(&sb, "block %d:\n", idx)
		}
		for _, in := range blk.instructions {
			fmt.Fprintf(&sb, "  %s\n", in)
		}
	}
	return sb.String()
}

// IsExternalAddress reports whether a CALL address names a host function.
func IsExternalAddress(addr int32) bool {
	return uint32(addr) >= ir.ExternalThreshold
}
