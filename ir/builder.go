package ir

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/flexscript/compiler"
	"github.com/chazu/flexscript/diag"
)

// ExternalThreshold is the lowest address reserved for host functions.
// Addresses below it are local code offsets.
const ExternalThreshold = 0x10000

type loopTargets struct {
	breakTo    int
	continueTo int
}

// builder lowers one program. Scopes map source names to qualified variable
// names; scopes[0] holds top-level (global) variables and is visible from
// every function.
type builder struct {
	module *Module
	diags  diag.Container

	cur    *Block
	fn     *Function
	scopes []map[string]string
	fnBase int // first scope owned by the current function
	loops  []loopTargets
	temps  int

	calls map[*Function][]*Function
}

// Build lowers a parsed program into a Module. The module is always returned;
// it is only safe to generate code from when the container has no errors.
func Build(prog *compiler.Program) (*Module, *diag.Container) {
	b := &builder{
		module: &Module{VarTypes: make(map[string]Type)},
		scopes: []map[string]string{{}},
		calls:  make(map[*Function][]*Function),
	}

	var funcs []*compiler.FuncDecl
	var body []compiler.Stmt
	for _, s := range prog.Body.Statements {
		switch s := s.(type) {
		case *compiler.FuncDecl:
			if b.declareFunction(s) {
				funcs = append(funcs, s)
			}
		case *compiler.ExternDecl:
			b.declareExtern(s)
		default:
			body = append(body, s)
		}
	}

	// Top-level code owns block 0.
	b.enter(b.newBlock())
	for _, s := range body {
		b.lowerStmt(s)
	}
	if b.cur != nil {
		b.terminate(&Halt{SpanVal: diag.GeneratedSpan()})
	}

	for _, decl := range funcs {
		b.lowerFunction(decl)
	}
	b.checkRecursion()

	return b.module, &b.diags
}

func (b *builder) errorf(span diag.Span, format string, args ...any) {
	b.diags.Addf(span, diag.KindSemantic, format, args...)
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

func (b *builder) newBlock() int {
	idx := len(b.module.Blocks)
	b.module.Blocks = append(b.module.Blocks, &Block{Index: idx, Function: b.fn})
	return idx
}

func (b *builder) enter(idx int) {
	b.cur = b.module.Blocks[idx]
}

// terminate ends the current block. Code lowered afterwards is unreachable
// and dropped until another block is entered.
func (b *builder) terminate(t Terminator) {
	b.cur.Terminator = t
	b.cur = nil
}

// jump branches to target if the current block is still open.
func (b *builder) jump(target int, span diag.Span) {
	if b.cur != nil {
		b.terminate(&Branch{SpanVal: span, Target: target})
	}
}

func (b *builder) emit(variable string, v Value, span diag.Span) {
	b.cur.Assignments = append(b.cur.Assignments, Assignment{SpanVal: span, Variable: variable, Value: v})
}

func (b *builder) newTemp(t Type) string {
	name := fmt.Sprintf("$t%d", b.temps)
	b.temps++
	b.module.VarTypes[name] = t
	return name
}

// spill returns v as a literal or identifier, assigning compound values to a
// fresh temporary first.
func (b *builder) spill(v Value) Value {
	switch v.(type) {
	case *IntLiteral, *FloatLiteral, *Identifier:
		return v
	}
	tmp := b.newTemp(v.Type())
	b.emit(tmp, v, v.Span())
	return &Identifier{SpanVal: v.Span(), Name: tmp, Typ: v.Type()}
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (b *builder) pushScope() { b.scopes = append(b.scopes, map[string]string{}) }
func (b *builder) popScope()  { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *builder) lookup(name string) (string, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if q, ok := b.scopes[i][name]; ok {
			return q, true
		}
	}
	return "", false
}

// declare binds name in the innermost scope. Sibling scopes may reuse a
// name; a second binding of a different type gets its own variable.
func (b *builder) declare(name string, t Type, span diag.Span) string {
	return b.declareIn(len(b.scopes)-1, name, t, span)
}

// declareIn binds name in scopes[scope].
func (b *builder) declareIn(scope int, name string, t Type, span diag.Span) string {
	for i := len(b.scopes) - 1; i >= b.fnBase; i-- {
		if q, ok := b.scopes[i][name]; ok {
			b.errorf(span, "%s is already declared in this function", name)
			return q
		}
	}
	prefix := ""
	if b.fn != nil {
		prefix = b.fn.Name + "."
	}
	q := prefix + name
	for n := 2; ; n++ {
		if existing, ok := b.module.VarTypes[q]; !ok || existing == t {
			break
		}
		q = fmt.Sprintf("%s%s#%d", prefix, name, n)
	}
	b.module.VarTypes[q] = t
	b.scopes[scope][name] = q
	return q
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (b *builder) nameTaken(name string, span diag.Span) bool {
	if b.module.Function(name) != nil || b.module.Extern(name) != nil {
		b.errorf(span, "function %s is already declared", name)
		return true
	}
	return false
}

func (b *builder) declareFunction(decl *compiler.FuncDecl) bool {
	if b.nameTaken(decl.Name, decl.SpanVal) {
		return false
	}
	fn := &Function{
		SpanVal:       decl.SpanVal,
		Name:          decl.Name,
		Returns:       TypeOf(decl.Returns),
		Entry:         NoBlock,
		ReturnAddress: decl.Name + ".$ra",
	}
	b.module.VarTypes[fn.ReturnAddress] = TypeInt
	seen := map[string]bool{}
	for _, p := range decl.Params {
		if seen[p.Name] {
			b.errorf(p.SpanVal, "duplicate parameter %s in function %s", p.Name, decl.Name)
		}
		seen[p.Name] = true
		q := decl.Name + "." + p.Name
		b.module.VarTypes[q] = TypeOf(p.Type)
		fn.Params = append(fn.Params, Param{Name: q, Type: TypeOf(p.Type)})
	}
	b.module.Functions = append(b.module.Functions, fn)
	return true
}

func (b *builder) declareExtern(decl *compiler.ExternDecl) {
	if b.nameTaken(decl.Name, decl.SpanVal) {
		return
	}
	if uint32(decl.Address) < ExternalThreshold {
		b.errorf(decl.SpanVal, "external function %s address 0x%X is below 0x%X", decl.Name, uint32(decl.Address), ExternalThreshold)
	}
	ext := &Extern{SpanVal: decl.SpanVal, Name: decl.Name, Address: decl.Address, Returns: TypeOf(decl.Returns)}
	if ext.Returns == TypeFloat {
		b.errorf(decl.SpanVal, "external function %s must return int or nothing", decl.Name)
	}
	for _, p := range decl.Params {
		ext.Params = append(ext.Params, TypeOf(p.Type))
	}
	b.module.Externs = append(b.module.Externs, ext)
}

func (b *builder) lowerFunction(decl *compiler.FuncDecl) {
	fn := b.module.Function(decl.Name)
	b.fn = fn
	fn.Entry = b.newBlock()
	b.enter(fn.Entry)

	params := map[string]string{}
	for i, p := range decl.Params {
		params[p.Name] = fn.Params[i].Name
	}
	b.scopes = append(b.scopes[:1], params)
	b.fnBase = 1
	b.loops = nil

	for _, s := range decl.Body.Statements {
		b.lowerStmt(s)
	}

	// Falling off the end returns (zero for non-void functions).
	if b.cur != nil {
		ret := &Return{SpanVal: diag.GeneratedSpan()}
		if fn.Returns != TypeNone {
			tmp := b.newTemp(fn.Returns)
			b.emit(tmp, zero(fn.Returns, diag.GeneratedSpan()), diag.GeneratedSpan())
			ret.Value = &Identifier{SpanVal: diag.GeneratedSpan(), Name: tmp, Typ: fn.Returns}
		}
		b.terminate(ret)
	}

	b.scopes = b.scopes[:1]
	b.fnBase = 0
	b.fn = nil
}

// checkRecursion reports every call cycle. Variables are bound to fixed
// registers, so a function may not be active twice.
func (b *builder) checkRecursion() {
	const (
		white = iota
		grey
		black
	)
	color := map[*Function]int{}
	var path []*Function

	var visit func(fn *Function)
	visit = func(fn *Function) {
		color[fn] = grey
		path = append(path, fn)
		for _, callee := range b.calls[fn] {
			switch color[callee] {
			case white:
				visit(callee)
			case grey:
				var names []string
				start := 0
				for i, f := range path {
					if f == callee {
						start = i
					}
				}
				for _, f := range path[start:] {
					names = append(names, f.Name)
				}
				names = append(names, callee.Name)
				b.errorf(callee.SpanVal, "recursive call cycle %s is not supported", strings.Join(names, " -> "))
			}
		}
		path = path[:len(path)-1]
		color[fn] = black
	}
	for _, fn := range b.module.Functions {
		if color[fn] == white {
			visit(fn)
		}
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (b *builder) lowerStmt(s compiler.Stmt) {
	if b.cur == nil {
		return // unreachable
	}
	switch s := s.(type) {
	case *compiler.BlockStmt:
		b.pushScope()
		for _, inner := range s.Statements {
			b.lowerStmt(inner)
		}
		b.popScope()

	case *compiler.VarDecl:
		t := TypeOf(s.Type)
		var v Value
		if s.Value != nil {
			v = b.coerce(b.lowerExpr(s.Value, false), t)
		} else {
			v = zero(t, s.SpanVal)
		}
		q := b.declare(s.Name, t, s.SpanVal)
		b.emit(q, v, s.SpanVal)

	case *compiler.AssignStmt:
		b.lowerAssign(s)

	case *compiler.ExprStmt:
		if call, ok := s.Expr.(*compiler.CallExpr); ok {
			b.emit("", b.lowerCall(call, false, true), s.SpanVal)
			return
		}
		b.lowerExpr(s.Expr, true)
		b.errorf(s.SpanVal, "expression result is not used")

	case *compiler.IfStmt:
		b.lowerIf(s)

	case *compiler.WhileStmt:
		header, body, exit := b.newBlock(), b.newBlock(), b.newBlock()
		b.jump(header, s.SpanVal)
		b.enter(header)
		b.terminate(&CondBranch{SpanVal: s.Condition.Span(), Condition: b.lowerCondition(s.Condition), Then: body, Otherwise: exit})
		b.lowerLoopBody(s.Body, body, loopTargets{breakTo: exit, continueTo: header})
		b.jump(header, s.SpanVal)
		b.enter(exit)

	case *compiler.ForStmt:
		b.lowerFor(s)

	case *compiler.ReturnStmt:
		b.lowerReturn(s)

	case *compiler.BreakStmt:
		if len(b.loops) == 0 {
			b.errorf(s.SpanVal, "break outside of a loop")
			return
		}
		b.terminate(&Branch{SpanVal: s.SpanVal, Target: b.loops[len(b.loops)-1].breakTo})

	case *compiler.ContinueStmt:
		if len(b.loops) == 0 {
			b.errorf(s.SpanVal, "continue outside of a loop")
			return
		}
		b.terminate(&Branch{SpanVal: s.SpanVal, Target: b.loops[len(b.loops)-1].continueTo})

	case *compiler.YieldStmt:
		next := b.newBlock()
		b.terminate(&Yield{SpanVal: s.SpanVal, Next: next})
		b.enter(next)

	case *compiler.FuncDecl, *compiler.ExternDecl:
		// collected before lowering

	default:
		b.errorf(s.Span(), "unsupported statement %T", s)
	}
}

func (b *builder) lowerAssign(s *compiler.AssignStmt) {
	q, declared := b.lookup(s.Name)
	value := b.lowerExpr(s.Value, false)

	if s.Compound {
		if !declared {
			b.errorf(s.NameSpan, "unexpected type: %s is used before it is assigned", s.Name)
			return
		}
		current := &Identifier{SpanVal: s.NameSpan, Name: q, Typ: b.module.VarTypes[q]}
		value = b.binary(s.Op, current, value, s.SpanVal, false)
	}

	if !declared {
		t := value.Type()
		if t == TypeNone {
			t = TypeInt // already reported; keep later uses quiet
		}
		// Assignment to a new name binds it for the rest of the function.
		q = b.declareIn(b.fnBase, s.Name, t, s.NameSpan)
	} else {
		value = b.coerce(value, b.module.VarTypes[q])
	}
	b.emit(q, value, s.SpanVal)
}

// lowerScoped lowers a branch or loop body in its own scope.
func (b *builder) lowerScoped(s compiler.Stmt) {
	b.pushScope()
	b.lowerStmt(s)
	b.popScope()
}

func (b *builder) lowerIf(s *compiler.IfStmt) {
	cond := b.lowerCondition(s.Condition)

	then := b.newBlock()
	otherwise := NoBlock
	if s.Else != nil {
		otherwise = b.newBlock()
	}
	merge := b.newBlock() // then+1 when there is no else

	b.terminate(&CondBranch{SpanVal: s.Condition.Span(), Condition: cond, Then: then, Otherwise: otherwise})

	b.enter(then)
	b.lowerScoped(s.Then)
	b.jump(merge, s.SpanVal)

	if s.Else != nil {
		b.enter(otherwise)
		b.lowerScoped(s.Else)
		b.jump(merge, s.SpanVal)
	}
	b.enter(merge)
}

func (b *builder) lowerLoopBody(body compiler.Stmt, entry int, targets loopTargets) {
	b.loops = append(b.loops, targets)
	b.enter(entry)
	b.lowerScoped(body)
	b.loops = b.loops[:len(b.loops)-1]
}

func (b *builder) lowerFor(s *compiler.ForStmt) {
	b.pushScope()
	defer b.popScope()

	if s.Init != nil {
		b.lowerStmt(s.Init)
	}
	header, body, post, exit := b.newBlock(), b.newBlock(), b.newBlock(), b.newBlock()
	b.jump(header, s.SpanVal)

	b.enter(header)
	if s.Condition != nil {
		b.terminate(&CondBranch{SpanVal: s.Condition.Span(), Condition: b.lowerCondition(s.Condition), Then: body, Otherwise: exit})
	} else {
		b.terminate(&Branch{SpanVal: s.SpanVal, Target: body})
	}

	b.lowerLoopBody(s.Body, body, loopTargets{breakTo: exit, continueTo: post})
	b.jump(post, s.SpanVal)

	b.enter(post)
	if s.Post != nil {
		b.lowerStmt(s.Post)
	}
	b.jump(header, s.SpanVal)

	b.enter(exit)
}

func (b *builder) lowerReturn(s *compiler.ReturnStmt) {
	ret := &Return{SpanVal: s.SpanVal}

	var value Value
	if s.Value != nil {
		value = b.lowerExpr(s.Value, false)
	}

	if b.fn != nil {
		switch {
		case b.fn.Returns == TypeNone && value != nil:
			b.errorf(s.SpanVal, "function %s does not return a value", b.fn.Name)
			value = nil
		case b.fn.Returns != TypeNone && value == nil:
			b.errorf(s.SpanVal, "function %s must return %s", b.fn.Name, b.fn.Returns)
		case value != nil:
			value = b.coerce(value, b.fn.Returns)
		}
	}

	// Return values are always read from a variable.
	if value != nil {
		if _, ok := value.(*Identifier); ok {
			ret.Value = value
		} else {
			tmp := b.newTemp(value.Type())
			b.emit(tmp, value, value.Span())
			ret.Value = &Identifier{SpanVal: value.Span(), Name: tmp, Typ: value.Type()}
		}
	}
	b.terminate(ret)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func zero(t Type, span diag.Span) Value {
	if t == TypeFloat {
		return &FloatLiteral{SpanVal: span, Value: 0}
	}
	return &IntLiteral{SpanVal: span, Value: 0}
}

// coerce converts v to t. int widens to float implicitly; narrowing needs an
// explicit cast. Values with no type were already reported.
func (b *builder) coerce(v Value, t Type) Value {
	from := v.Type()
	if from == TypeNone || t == TypeNone || from == t {
		return v
	}
	if from == TypeInt && t == TypeFloat {
		return castTo(v, TypeFloat)
	}
	b.errorf(v.Span(), "cannot use float value as int without an explicit (int) cast")
	return v
}

// castTo wraps v in a cast, folding literals.
func castTo(v Value, t Type) Value {
	switch lit := v.(type) {
	case *IntLiteral:
		if t == TypeFloat {
			return &FloatLiteral{SpanVal: lit.SpanVal, Value: float32(lit.Value)}
		}
		return lit
	case *FloatLiteral:
		if t == TypeInt {
			return &IntLiteral{SpanVal: lit.SpanVal, Value: FloatToInt(lit.Value)}
		}
		return lit
	}
	return &CastValue{SpanVal: v.Span(), To: t, Operand: v}
}

// FloatToInt truncates toward zero, saturating at the int32 range. NaN
// converts to 0.
func FloatToInt(f float32) int32 {
	switch {
	case math.IsNaN(float64(f)):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// lowerCondition lowers a branch condition. Conditions are kept as trees.
func (b *builder) lowerCondition(e compiler.Expr) Value {
	return b.lowerExpr(e, true)
}

// lowerExpr lowers an expression. In lazy mode nothing is emitted: the
// result is a tree the code generator evaluates in place, so operands of &&,
// || and ?: are only computed when reached. Otherwise arithmetic operands
// are spilled to temporaries as they are lowered.
func (b *builder) lowerExpr(e compiler.Expr, lazy bool) Value {
	switch e := e.(type) {
	case *compiler.IntLiteral:
		return &IntLiteral{SpanVal: e.SpanVal, Value: e.Value}

	case *compiler.FloatLiteral:
		return &FloatLiteral{SpanVal: e.SpanVal, Value: e.Value}

	case *compiler.Identifier:
		q, ok := b.lookup(e.Name)
		if !ok || b.module.VarTypes[q] == TypeNone {
			b.errorf(e.SpanVal, "unexpected type: %s is used before it is assigned", e.Name)
			return &Identifier{SpanVal: e.SpanVal, Name: e.Name, Typ: TypeNone}
		}
		return &Identifier{SpanVal: e.SpanVal, Name: q, Typ: b.module.VarTypes[q]}

	case *compiler.UnaryExpr:
		return b.lowerUnary(e, lazy)

	case *compiler.BinaryExpr:
		if e.Op.IsLogical() {
			return &BinaryValue{
				SpanVal: e.SpanVal,
				Op:      e.Op,
				Left:    b.lowerExpr(e.Left, true),
				Right:   b.lowerExpr(e.Right, true),
				Typ:     TypeInt,
			}
		}
		if e.Op.IsComparison() {
			left, right := b.promote(b.lowerExpr(e.Left, true), b.lowerExpr(e.Right, true))
			return &BinaryValue{SpanVal: e.SpanVal, Op: e.Op, Left: left, Right: right, Typ: TypeInt}
		}
		left := b.lowerExpr(e.Left, lazy)
		right := b.lowerExpr(e.Right, lazy)
		return b.binary(e.Op, left, right, e.SpanVal, lazy)

	case *compiler.TernaryExpr:
		cond := b.lowerExpr(e.Condition, true)
		ifTrue, ifFalse := b.promote(b.lowerExpr(e.IfTrue, true), b.lowerExpr(e.IfFalse, true))
		t := ifTrue.Type()
		if ifFalse.Type() == TypeNone {
			t = TypeNone
		}
		return &TernaryValue{SpanVal: e.SpanVal, Condition: cond, IfTrue: ifTrue, IfFalse: ifFalse, Typ: t}

	case *compiler.CallExpr:
		return b.lowerCall(e, lazy, false)

	case *compiler.CastExpr:
		operand := b.lowerExpr(e.Operand, lazy)
		to := TypeOf(e.To)
		if operand.Type() == TypeNone {
			return &CastValue{SpanVal: e.SpanVal, To: to, Operand: operand}
		}
		if !lazy {
			operand = b.spill(operand)
		}
		v := castTo(operand, to)
		if c, ok := v.(*CastValue); ok {
			c.SpanVal = e.SpanVal
		}
		return v
	}

	b.errorf(e.Span(), "unsupported expression %T", e)
	return &IntLiteral{SpanVal: e.Span()}
}

// promote widens the int side of a mixed int/float pair.
func (b *builder) promote(left, right Value) (Value, Value) {
	switch {
	case left.Type() == TypeInt && right.Type() == TypeFloat:
		left = castTo(left, TypeFloat)
	case left.Type() == TypeFloat && right.Type() == TypeInt:
		right = castTo(right, TypeFloat)
	}
	return left, right
}

func (b *builder) lowerUnary(e *compiler.UnaryExpr, lazy bool) Value {
	if e.Op == compiler.UnaryNot {
		operand := b.lowerExpr(e.Operand, true)
		switch lit := operand.(type) {
		case *IntLiteral:
			return &IntLiteral{SpanVal: e.SpanVal, Value: boolInt(lit.Value == 0)}
		case *FloatLiteral:
			return &IntLiteral{SpanVal: e.SpanVal, Value: boolInt(lit.Value == 0)}
		}
		return &UnaryValue{SpanVal: e.SpanVal, Op: e.Op, Operand: operand, Typ: TypeInt}
	}

	operand := b.lowerExpr(e.Operand, lazy)
	t := operand.Type()
	if e.Op == compiler.UnaryInvert && t == TypeFloat {
		b.errorf(e.SpanVal, "operator ~ requires an int operand")
		t = TypeNone
	}

	switch lit := operand.(type) {
	case *IntLiteral:
		if e.Op == compiler.UnaryNegate {
			return &IntLiteral{SpanVal: e.SpanVal, Value: -lit.Value}
		}
		return &IntLiteral{SpanVal: e.SpanVal, Value: ^lit.Value}
	case *FloatLiteral:
		if e.Op == compiler.UnaryNegate {
			return &FloatLiteral{SpanVal: e.SpanVal, Value: -lit.Value}
		}
	}

	if !lazy {
		operand = b.spill(operand)
	}
	return &UnaryValue{SpanVal: e.SpanVal, Op: e.Op, Operand: operand, Typ: t}
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// binary builds an arithmetic or bitwise value, folding literal operands.
func (b *builder) binary(op compiler.BinaryOp, left, right Value, span diag.Span, lazy bool) Value {
	if left.Type() == TypeNone || right.Type() == TypeNone {
		return &BinaryValue{SpanVal: span, Op: op, Left: left, Right: right, Typ: TypeNone}
	}

	var t Type
	if op.IsBitwise() {
		if left.Type() == TypeFloat || right.Type() == TypeFloat {
			b.errorf(span, "operator %s requires int operands", op)
			return &BinaryValue{SpanVal: span, Op: op, Left: left, Right: right, Typ: TypeNone}
		}
		t = TypeInt
	} else {
		left, right = b.promote(left, right)
		t = left.Type()
	}

	if folded := fold(op, left, right, span); folded != nil {
		return folded
	}
	if !lazy {
		left, right = b.spill(left), b.spill(right)
	}
	return &BinaryValue{SpanVal: span, Op: op, Left: left, Right: right, Typ: t}
}

// fold evaluates op on two literals of the same type with the VM's
// semantics. Division and modulo by zero are left for run time.
func fold(op compiler.BinaryOp, left, right Value, span diag.Span) Value {
	switch l := left.(type) {
	case *IntLiteral:
		r, ok := right.(*IntLiteral)
		if !ok {
			return nil
		}
		a, c := l.Value, r.Value
		var v int32
		switch op {
		case compiler.BinaryAdd:
			v = a + c
		case compiler.BinarySub:
			v = a - c
		case compiler.BinaryMul:
			v = a * c
		case compiler.BinaryDiv:
			if c == 0 {
				return nil
			}
			v = a / c
		case compiler.BinaryMod:
			if c == 0 {
				return nil
			}
			v = a % c
		case compiler.BinaryBitAnd:
			v = a & c
		case compiler.BinaryBitOr:
			v = a | c
		case compiler.BinaryBitXor:
			v = a ^ c
		default:
			return nil
		}
		return &IntLiteral{SpanVal: span, Value: v}

	case *FloatLiteral:
		r, ok := right.(*FloatLiteral)
		if !ok {
			return nil
		}
		a, c := l.Value, r.Value
		var v float32
		switch op {
		case compiler.BinaryAdd:
			v = a + c
		case compiler.BinarySub:
			v = a - c
		case compiler.BinaryMul:
			v = a * c
		case compiler.BinaryDiv:
			if c == 0 {
				return nil
			}
			v = a / c
		case compiler.BinaryMod:
			if c == 0 {
				return nil
			}
			v = float32(math.Mod(float64(a), float64(c)))
		default:
			return nil
		}
		return &FloatLiteral{SpanVal: span, Value: v}
	}
	return nil
}

// lowerCall resolves a call. asStatement permits void callees.
func (b *builder) lowerCall(e *compiler.CallExpr, lazy, asStatement bool) Value {
	call := &FunctionCall{SpanVal: e.SpanVal, Name: e.Name}
	var params []Type

	if fn := b.module.Function(e.Name); fn != nil {
		call.Function = fn
		for _, p := range fn.Params {
			params = append(params, p.Type)
		}
		if b.fn != nil {
			b.calls[b.fn] = append(b.calls[b.fn], fn)
		}
	} else if ext := b.module.Extern(e.Name); ext != nil {
		call.Extern = ext
		params = ext.Params
	} else {
		b.errorf(e.SpanVal, "undefined function %s", e.Name)
		for _, arg := range e.Args {
			b.lowerExpr(arg, true)
		}
		return call
	}

	if len(e.Args) != len(params) {
		b.errorf(e.SpanVal, "function %s takes %d arguments, got %d", e.Name, len(params), len(e.Args))
	}
	for i, arg := range e.Args {
		v := b.lowerExpr(arg, lazy)
		if i < len(params) {
			v = b.coerce(v, params[i])
		}
		if !lazy {
			v = b.spill(v)
		}
		call.Args = append(call.Args, v)
	}

	if !asStatement && call.Type() == TypeNone {
		b.errorf(e.SpanVal, "function %s returns no value", e.Name)
	}
	return call
}
