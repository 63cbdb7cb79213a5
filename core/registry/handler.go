package registry

import (
	"context"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// signature is the reflective breakdown of a handler func.
type signature struct {
	// inputStruct is the handler's input struct type (pointer stripped),
	// or nil for handlers taking only a context.
	inputStruct reflect.Type
	outputType  reflect.Type
	invoke      func(ctx context.Context, in any) (any, error)
}

// inspectHandler checks a handler against the two accepted shapes:
//
//	func(context.Context, In) (Out, error)
//	func(context.Context) (Out, error)
//
// where In is a struct or pointer to struct. Handlers must return a value:
// the schema node set has no null kind, so there is nothing a void handler
// could advertise.
func inspectHandler(name string, handler any) (signature, error) {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func {
		return signature{}, fmt.Errorf("registry: procedure %q: handler must be a func, got %T", name, handler)
	}

	if t.NumIn() < 1 || t.NumIn() > 2 || t.In(0) != contextType {
		return signature{}, fmt.Errorf(
			"registry: procedure %q: handler must be func(context.Context[, In]) (Out, error)", name)
	}
	if t.NumOut() != 2 || t.Out(1) != errorType {
		return signature{}, fmt.Errorf(
			"registry: procedure %q: handler must return (Out, error)", name)
	}

	var sig signature
	sig.outputType = t.Out(0)

	wantsPointer := false
	if t.NumIn() == 2 {
		in := t.In(1)
		if in.Kind() == reflect.Pointer {
			wantsPointer = true
			in = in.Elem()
		}
		if in.Kind() != reflect.Struct {
			return signature{}, fmt.Errorf(
				"registry: procedure %q: input must be a struct or pointer to struct, got %s", name, t.In(1))
		}
		sig.inputStruct = in
	}

	fn := reflect.ValueOf(handler)
	hasInput := sig.inputStruct != nil
	sig.invoke = func(ctx context.Context, in any) (any, error) {
		args := []reflect.Value{reflect.ValueOf(ctx)}
		if hasInput {
			v := reflect.ValueOf(in)
			if !wantsPointer {
				v = v.Elem()
			}
			args = append(args, v)
		}
		out := fn.Call(args)
		if !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}

	return sig, nil
}
