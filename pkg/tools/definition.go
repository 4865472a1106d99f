package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Handler executes a tool call. The returned string is expected (but not
// required) to be a serialized tool result envelope; callers do best-effort
// parsing and fall back to plain text.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Definition describes a tool that the response generator can request.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Handler     Handler            `json:"-"`
}

// NewDefinitionFromFunc builds a Definition from a Go function, generating
// the parameter schema from the function's input struct by reflection.
// Supported signatures:
//
//	func(In) (string, error)
//	func(context.Context, In) (string, error)
func NewDefinitionFromFunc(name, description string, fn interface{}) (*Definition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.Errorf("tool %s is not a function", name)
	}
	if funcType.NumOut() != 2 ||
		funcType.Out(0).Kind() != reflect.String ||
		!funcType.Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
		return nil, errors.Errorf("tool %s must return (string, error)", name)
	}

	ctxType := reflect.TypeOf((*context.Context)(nil)).Elem()
	var inType reflect.Type
	hasCtx := false
	switch funcType.NumIn() {
	case 1:
		if funcType.In(0) == ctxType {
			hasCtx = true
		} else {
			inType = funcType.In(0)
		}
	case 2:
		if funcType.In(0) != ctxType {
			return nil, errors.Errorf("tool %s: first of two parameters must be context.Context", name)
		}
		hasCtx = true
		inType = funcType.In(1)
	default:
		return nil, errors.Errorf("tool %s has unsupported arity %d", name, funcType.NumIn())
	}

	var params *jsonschema.Schema
	if inType != nil {
		if inType.Kind() != reflect.Struct {
			return nil, errors.Errorf("tool %s input must be a struct", name)
		}
		reflector := &jsonschema.Reflector{DoNotReference: true}
		params = reflector.ReflectFromType(inType)
	}

	fnValue := reflect.ValueOf(fn)
	handler := func(ctx context.Context, args json.RawMessage) (string, error) {
		in := make([]reflect.Value, 0, 2)
		if hasCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if inType != nil {
			arg := reflect.New(inType)
			if len(args) > 0 {
				if err := json.Unmarshal(args, arg.Interface()); err != nil {
					return "", errors.Wrapf(err, "unmarshal arguments for tool %s", name)
				}
			}
			in = append(in, arg.Elem())
		}
		out := fnValue.Call(in)
		if errVal := out[1].Interface(); errVal != nil {
			return "", errVal.(error)
		}
		return out[0].String(), nil
	}

	return &Definition{
		Name:        name,
		Description: description,
		Parameters:  params,
		Handler:     handler,
	}, nil
}
