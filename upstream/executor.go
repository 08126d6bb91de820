package upstream

import (
	"context"
	"fmt"
)

// Executor resolves tool names to handler specs and runs them through one
// shared Caller.
type Executor struct {
	caller *Caller
	specs  map[string]*HandlerSpec
}

// NewExecutor builds an executor over the given specs. Every spec must be
// valid and uniquely named.
func NewExecutor(caller *Caller, specs []HandlerSpec) (*Executor, error) {
	byName := make(map[string]*HandlerSpec, len(specs))
	for i := range specs {
		spec := specs[i]
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[spec.ToolName]; dup {
			return nil, fmt.Errorf("duplicate handler spec for tool %q", spec.ToolName)
		}
		byName[spec.ToolName] = &spec
	}
	return &Executor{caller: caller, specs: byName}, nil
}

// Execute runs the named tool's handler spec.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	spec, ok := e.specs[name]
	if !ok {
		return nil, fmt.Errorf("no handler spec for tool %q", name)
	}
	return e.caller.Call(ctx, spec, args)
}
