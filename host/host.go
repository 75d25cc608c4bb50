// Package host provides the standard external functions a flexscript host
// exposes to scripts: console output, a clock, and access to the VM memory
// pool.
package host

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/flexscript/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("flexscript.host")

// Addresses of the standard externals.
const (
	AddrPrintInt   int32 = 0x10000
	AddrPrintFloat int32 = 0x10001
	AddrClockMs    int32 = 0x10002
	AddrMemLoad    int32 = 0x10003
	AddrMemStore   int32 = 0x10004
)

// Prelude declares the standard externals in script syntax. Scripts copy the
// lines they need.
const Prelude = `extern func print_int(int v) = 0x10000;
extern func print_float(float v) = 0x10001;
extern func clock_ms() -> int = 0x10002;
extern func mem_load(int addr) -> int = 0x10003;
extern func mem_store(int addr, int word) = 0x10004;
`

// Install registers the standard externals on v, writing output to out.
// Loading a program clears the external table, so call Install after every
// load.
func Install(v *vm.VM, out io.Writer) error {
	start := time.Now()

	table := []struct {
		addr int32
		fn   vm.ExternalFunc
	}{
		{AddrPrintInt, func(args []vm.Value) vm.Value {
			fmt.Fprintln(out, arg(args, 0).AsInt())
			return vm.None
		}},
		{AddrPrintFloat, func(args []vm.Value) vm.Value {
			fmt.Fprintln(out, vm.Float(arg(args, 0).AsFloat()))
			return vm.None
		}},
		{AddrClockMs, func([]vm.Value) vm.Value {
			ms := time.Since(start).Milliseconds()
			return vm.Int(int32(min(ms, math.MaxInt32)))
		}},
		{AddrMemLoad, func(args []vm.Value) vm.Value {
			addr := arg(args, 0).AsInt()
			word, ok := v.LoadWord(addr)
			if !ok {
				log.Warningf("mem_load: address %d out of range", addr)
				return vm.Int(0)
			}
			return vm.Int(int32(word))
		}},
		{AddrMemStore, func(args []vm.Value) vm.Value {
			addr := arg(args, 0).AsInt()
			if !v.StoreWord(addr, uint32(arg(args, 1).AsInt())) {
				log.Warningf("mem_store: address %d out of range", addr)
			}
			return vm.None
		}},
	}

	for _, e := range table {
		if err := v.RegisterExternal(e.addr, e.fn); err != nil {
			return fmt.Errorf("host: registering 0x%X: %w", e.addr, err)
		}
	}
	return nil
}

func arg(args []vm.Value, i int) vm.Value {
	if i < len(args) {
		return args[i]
	}
	return vm.Int(0)
}
