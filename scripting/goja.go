package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

// Goja is the default Engine, backed by the pure-Go goja runtime. Each
// Execute runs in a fresh VM so scripts cannot leak state into later
// link activations.
type Goja struct{}

// NewGoja returns the goja-backed engine.
func NewGoja() *Goja { return &Goja{} }

func (e *Goja) Name() string { return "goja" }

// Execute binds the DOM and runs the script until it finishes or ctx
// is done.
func (e *Goja) Execute(ctx context.Context, script string, dom ViewerDOM) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	vm := goja.New()
	if err := bindDOM(vm, dom); err != nil {
		return fmt.Errorf("scripting: bind dom: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	defer vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunString(script); err != nil {
		if interrupted, ok := err.(*goja.InterruptedError); ok {
			if cause := interrupted.Unwrap(); cause != nil {
				return cause
			}
			return context.Canceled
		}
		return fmt.Errorf("scripting: %w", err)
	}
	return nil
}

// bindDOM installs the global viewer properties and the app object.
func bindDOM(vm *goja.Runtime, dom ViewerDOM) error {
	global := vm.GlobalObject()

	err := global.DefineAccessorProperty("pageNum",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(dom.PageNum())
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				dom.SetPageNum(int(call.Arguments[0].ToInteger()))
			}
			return goja.Undefined()
		}),
		goja.FLAG_TRUE, goja.FLAG_TRUE)
	if err != nil {
		return err
	}

	err = global.DefineAccessorProperty("numPages",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(dom.NumPages())
		}),
		nil,
		goja.FLAG_TRUE, goja.FLAG_TRUE)
	if err != nil {
		return err
	}

	err = global.DefineAccessorProperty("zoom",
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(dom.Zoom())
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				dom.SetZoom(call.Arguments[0].ToFloat())
			}
			return goja.Undefined()
		}),
		goja.FLAG_TRUE, goja.FLAG_TRUE)
	if err != nil {
		return err
	}

	app := vm.NewObject()
	err = app.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		dom.Alert(msg)
		return goja.Undefined()
	})
	if err != nil {
		return err
	}
	return vm.Set("app", app)
}
