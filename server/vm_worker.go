package server

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/flexscript/host"
	"github.com/chazu/flexscript/vm"
)

var errWorkerStopped = errors.New("vm worker stopped")

// vmRequest represents a unit of work to be executed on the VM goroutine.
type vmRequest struct {
	fn   func(*vm.VM) any
	done chan vmResult
}

// vmResult holds the return value from a VM operation.
type vmResult struct {
	value any
	err   error
}

// VMWorker serializes all VM access through a single goroutine.
// A VM instance is single-threaded; every LSP handler that runs scripts
// goes through the worker.
type VMWorker struct {
	vm       *vm.VM
	requests chan vmRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewVMWorker creates a VMWorker and starts the processing goroutine.
func NewVMWorker(v *vm.VM) *VMWorker {
	w := &VMWorker{
		vm:       v,
		requests: make(chan vmRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes VM requests sequentially on a dedicated goroutine.
func (w *VMWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the VM, recovering from panics.
func (w *VMWorker) execute(fn func(*vm.VM) any) vmResult {
	var result vmResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.vm)
	}()
	return result
}

// Do submits a function for execution on the VM goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *VMWorker) Do(fn func(*vm.VM) any) (any, error) {
	req := vmRequest{
		fn:   fn,
		done: make(chan vmResult, 1),
	}
	select {
	case <-w.quit:
		return nil, errWorkerStopped
	default:
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, errWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *VMWorker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}

// RunResult is the outcome of running a script on the worker.
type RunResult struct {
	Result      string `json:"result"`
	Output      string `json:"output"`
	Suspended   bool   `json:"suspended"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// Run compiles and runs source on the worker VM with the host library
// installed. A yield leaves the run suspended.
func (w *VMWorker) Run(source string) (RunResult, error) {
	value, err := w.Do(func(v *vm.VM) any {
		var res RunResult
		if !v.CompileSource(source) {
			res.Diagnostics = v.CompileDiagnostics().String()
			return res
		}
		var out bytes.Buffer
		if err := host.Install(v, &out); err != nil {
			res.Diagnostics = err.Error()
			return res
		}
		v.Execute(false)
		res.Result = v.Result().String()
		res.Output = out.String()
		res.Suspended = v.IsSuspended()
		if !v.RuntimeDiagnostics().Empty() {
			res.Diagnostics = v.RuntimeDiagnostics().String()
		}
		return res
	})
	if err != nil {
		return RunResult{}, err
	}
	return value.(RunResult), nil
}
