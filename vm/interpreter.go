package vm

import (
	"github.com/chazu/flexscript/diag"
)

// Execute runs the loaded program. A stopped VM starts a fresh run at
// instruction 0; a suspended one resumes where it stopped. With singleStep
// exactly one instruction is executed.
//
// Execution stops at HALT, at a top-level RETURN, at YIELD, after a single
// step, on a fault, or when the step limit is reached. Problems are recorded
// in RuntimeDiagnostics and always leave the VM terminated.
func (v *VM) Execute(singleStep bool) {
	if v.program == nil || !v.compiled {
		v.runtimeDiags.Add(diag.GeneratedSpan(), diag.KindRuntime, "no compiled program to execute")
		log.Warningf("execute without a compiled program")
		return
	}
	if len(v.program.Instructions) == 0 {
		v.runtimeDiags.Add(diag.GeneratedSpan(), diag.KindRuntime, "program has no instructions")
		log.Warningf("execute with an empty program")
		v.ip = -1
		v.terminated = true
		return
	}

	if v.ip < 0 {
		v.start()
	}
	v.suspended = false
	v.run(singleStep)
}

// start begins a fresh run. Registers and memory keep their contents.
func (v *VM) start() {
	v.ip = 0
	v.stack = append(v.stack[:0], Int(returnSentinel))
	v.zeroFlag, v.signFlag = false, false
	v.terminated = false
	v.result = None
}

func (v *VM) run(singleStep bool) {
	instrs := v.program.Instructions
	for steps := 0; ; steps++ {
		if steps >= v.config.MaxSteps {
			v.fault("execution exceeded %d steps", v.config.MaxSteps)
			return
		}
		if v.ip < 0 || v.ip >= len(instrs) {
			v.fault("instruction pointer %d is outside the program", v.ip)
			return
		}

		in := instrs[v.ip]
		if v.config.Trace {
			log.Debugf("%04d  %-24s zf=%t sf=%t", v.ip, in, v.zeroFlag, v.signFlag)
		}
		v.step(in)

		switch {
		case v.ip < 0:
			return
		case v.suspended:
			return
		case singleStep:
			v.suspended = true
			return
		}
	}
}

// step executes one instruction, advancing or redirecting the instruction
// pointer.
func (v *VM) step(in Instruction) {
	next := v.ip + 1
	a := in.Args

	switch in.Op {
	case OpMov:
		if src, ok := v.read(a[1]); ok {
			v.write(a[0], src)
		}

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor:
		x, ok1 := v.read(a[1])
		y, ok2 := v.read(a[2])
		if !ok1 || !ok2 {
			return
		}
		r, err := arith(in.Op, x, y)
		if err != nil {
			v.warn("%s: %v", in.Op, err)
		}
		v.write(a[0], r)

	case OpInv:
		x, ok := v.read(a[1])
		if !ok {
			return
		}
		if x.IsFloat() {
			v.warn("INV: %v", errFloatBitwise)
			v.write(a[0], Int(0))
			break
		}
		v.write(a[0], Int(^x.AsInt()))

	case OpItf:
		if x, ok := v.read(a[1]); ok {
			v.write(a[0], Float(x.AsFloat()))
		}

	case OpFti:
		if x, ok := v.read(a[1]); ok {
			v.write(a[0], Int(x.AsInt()))
		}

	case OpCall:
		v.call(in)
		return

	case OpPush:
		if x, ok := v.read(a[0]); ok {
			v.push(x)
		}

	case OpPop:
		x, ok := v.pop()
		if ok && a[0].Valid() {
			v.write(a[0], x)
		}

	case OpCmp:
		x, ok1 := v.read(a[0])
		y, ok2 := v.read(a[1])
		if !ok1 || !ok2 {
			return
		}
		c := compare(x, y)
		v.zeroFlag = c == 0
		v.signFlag = c > 0

	case OpJmp, OpJz, OpJnz, OpJlt, OpJle, OpJgt, OpJge, OpJeq, OpJne:
		if !in.Op.taken(v.zeroFlag, v.signFlag) {
			break
		}
		target, ok := v.read(a[0])
		if !ok {
			return
		}
		v.jump(target.AsInt())
		return

	case OpYield:
		v.suspended = true

	case OpReturn:
		v.ret(in)
		return

	case OpHalt:
		v.finish()
		return

	default:
		v.warn("unhandled opcode %s", in.Op)
	}

	if v.ip >= 0 {
		v.ip = next
	}
}

// call dispatches CALL addr [, argc]. Local calls push the return address
// and jump; host calls pop argc arguments and push the result as an int.
func (v *VM) call(in Instruction) {
	target, ok := v.read(in.Args[0])
	if !ok {
		return
	}
	addr := target.AsInt()

	if !IsExternalAddress(addr) {
		if !v.push(Int(int32(v.ip + 1))) {
			return
		}
		v.jump(addr)
		return
	}

	fn, ok := v.externals[addr]
	if !ok {
		v.fault("no external function registered at 0x%X", uint32(addr))
		return
	}
	argc := 0
	if in.Args[1].Valid() {
		n, ok := v.read(in.Args[1])
		if !ok {
			return
		}
		argc = int(n.AsInt())
	}
	if argc < 0 || argc > len(v.stack) {
		v.fault("stack underflow: external call wants %d arguments, stack holds %d", argc, len(v.stack))
		return
	}
	args := append([]Value(nil), v.stack[len(v.stack)-argc:]...)
	v.stack = v.stack[:len(v.stack)-argc]

	result := fn(args)
	if v.push(Int(result.AsInt())) {
		v.ip++
	}
}

// ret pops the return address, then pushes the return value if there is
// one. Popping the sentinel ends the run with that value as the result.
func (v *VM) ret(in Instruction) {
	var value Value
	hasValue := in.Args[0].Valid()
	if hasValue {
		x, ok := v.read(in.Args[0])
		if !ok {
			return
		}
		value = x
	}

	addr, ok := v.pop()
	if !ok {
		return
	}
	if hasValue && !v.push(value) {
		return
	}

	if addr.AsInt() == returnSentinel {
		v.result = value
		v.finish()
		return
	}
	v.jump(addr.AsInt())
}

func (v *VM) jump(addr int32) {
	if addr < 0 || int(addr) >= len(v.program.Instructions) {
		v.fault("jump target %d is outside the program", addr)
		return
	}
	v.ip = int(addr)
}

func (v *VM) push(x Value) bool {
	if len(v.stack) >= MaxStackDepth {
		v.fault("stack overflow")
		return false
	}
	v.stack = append(v.stack, x)
	return true
}

func (v *VM) pop() (Value, bool) {
	if len(v.stack) == 0 {
		v.fault("stack underflow")
		return None, false
	}
	x := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return x, true
}

func (v *VM) read(o Operand) (Value, bool) {
	switch o.Kind {
	case OperandConstant:
		return o.Value, true
	case OperandRegister:
		if o.Register < 0 || o.Register >= RegisterCount {
			v.fault("invalid register r%d", o.Register)
			return None, false
		}
		return v.registers[o.Register], true
	}
	v.fault("missing operand")
	return None, false
}

func (v *VM) write(o Operand, x Value) {
	switch o.Kind {
	case OperandRegister:
		if o.Register < 0 || o.Register >= RegisterCount {
			v.fault("invalid register r%d", o.Register)
			return
		}
		v.registers[o.Register] = x
	case OperandConstant:
		v.fault("cannot write to constant %s", o)
	default:
		v.fault("missing destination operand")
	}
}

// finish ends the run normally.
func (v *VM) finish() {
	v.terminated = true
	v.suspended = false
	v.ip = -1
	log.Debugf("run finished, result %s", v.result)
}

func (v *VM) span() diag.Span {
	if v.ip >= 0 && v.ip < len(v.program.Origins) {
		return v.program.Origins[v.ip]
	}
	return diag.GeneratedSpan()
}

// warn records a runtime diagnostic without stopping.
func (v *VM) warn(format string, args ...any) {
	v.runtimeDiags.Addf(v.span(), diag.KindRuntime, format, args...)
	log.Warningf("at %d: "+format, append([]any{v.ip}, args...)...)
}

// fault records a runtime diagnostic and terminates the run.
func (v *VM) fault(format string, args ...any) {
	v.warn(format, args...)
	v.terminated = true
	v.suspended = false
	v.ip = -1
}
