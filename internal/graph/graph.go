// Package graph runs a fixed topology of named stages over a PipelineState.
//
// A topology is a stage registry plus an edge table. Each stage has exactly one
// outgoing edge: either an unconditional edge to the next stage, or a gate
// whose label selects the next stage from a declared route table. Execution
// starts at the entry stage and stops when an edge leads to End.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// End is the terminal marker an edge points to when the run is over.
const End = "__end__"

var (
	// ErrUnknownStage is returned when an edge or the entry names a stage that
	// was never registered.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrUndeclaredLabel is returned when a gate answers with a label that has
	// no route.
	ErrUndeclaredLabel = errors.New("gate returned undeclared label")
	// ErrInvalidUpdate is returned when a stage update breaks a state rule.
	ErrInvalidUpdate = errors.New("invalid stage update")
)

// IntegrityError reports a defect in the topology or in a stage, as opposed to
// a pipeline failure, which is always recorded in state.
type IntegrityError struct {
	Stage string
	Err   error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("graph integrity: stage %q: %v", e.Stage, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// StageFunc does one unit of work. It receives a private copy of the state
// and returns the fields it wants changed. A returned error means the stage
// produced no update; the engine records it in state.Errors and moves on.
type StageFunc func(ctx context.Context, s *state.PipelineState) (state.Update, error)

// GateFunc inspects the merged state and returns a route label.
type GateFunc func(s *state.PipelineState) string

// Conditional is a gated edge out of a stage.
type Conditional struct {
	Name   string
	Gate   GateFunc
	Routes map[string]string // label -> next stage
}

// Spec declares a topology. It is validated once by New.
type Spec struct {
	Entry       string
	Stages      map[string]StageFunc
	Edges       map[string]string
	Conditional map[string]Conditional
}

// Observer is notified as the run progresses. Implementations must not
// block for long and cannot influence the run.
type Observer interface {
	StageStarted(stage string, s *state.PipelineState)
	StageFinished(stage string, elapsed time.Duration, err error)
	GateDecided(stage, gate, label, next string)
	RunFinished(s *state.PipelineState)
}

// Graph is a validated, immutable topology.
type Graph struct {
	spec      Spec
	observers []Observer
}

// Option configures a Graph.
type Option func(*Graph)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(g *Graph) {
		if o != nil {
			g.observers = append(g.observers, o)
		}
	}
}

// New validates spec and returns a runnable graph.
func New(spec Spec, opts ...Option) (*Graph, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}
	g := &Graph{spec: spec}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func validate(spec Spec) error {
	if _, ok := spec.Stages[spec.Entry]; !ok {
		return &IntegrityError{Stage: spec.Entry, Err: fmt.Errorf("entry: %w", ErrUnknownStage)}
	}

	known := func(name string) bool {
		if name == End {
			return true
		}
		_, ok := spec.Stages[name]
		return ok
	}

	for _, name := range sortedKeys(spec.Stages) {
		if spec.Stages[name] == nil {
			return &IntegrityError{Stage: name, Err: errors.New("nil stage function")}
		}
		_, plain := spec.Edges[name]
		_, gated := spec.Conditional[name]
		switch {
		case plain && gated:
			return &IntegrityError{Stage: name, Err: errors.New("both conditional and unconditional edges")}
		case !plain && !gated:
			return &IntegrityError{Stage: name, Err: errors.New("no outgoing edge")}
		}
	}

	for from, to := range spec.Edges {
		if !known(from) || from == End {
			return &IntegrityError{Stage: from, Err: fmt.Errorf("edge source: %w", ErrUnknownStage)}
		}
		if !known(to) {
			return &IntegrityError{Stage: from, Err: fmt.Errorf("edge target %q: %w", to, ErrUnknownStage)}
		}
	}

	for from, c := range spec.Conditional {
		if !known(from) || from == End {
			return &IntegrityError{Stage: from, Err: fmt.Errorf("gate source: %w", ErrUnknownStage)}
		}
		if c.Gate == nil {
			return &IntegrityError{Stage: from, Err: errors.New("nil gate function")}
		}
		if len(c.Routes) == 0 {
			return &IntegrityError{Stage: from, Err: errors.New("gate has no routes")}
		}
		for label, to := range c.Routes {
			if !known(to) {
				return &IntegrityError{Stage: from, Err: fmt.Errorf("route %q -> %q: %w", label, to, ErrUnknownStage)}
			}
		}
	}
	return nil
}

// Run executes the topology from the entry stage until an edge reaches End.
// The initial state is not modified; the final state is returned. The only
// errors are integrity errors. Stage failures end up in state.Errors.
func (g *Graph) Run(ctx context.Context, initial *state.PipelineState) (*state.PipelineState, error) {
	current := initial.Clone()
	name := g.spec.Entry

	for name != End {
		stage, ok := g.spec.Stages[name]
		if !ok {
			return current, &IntegrityError{Stage: name, Err: ErrUnknownStage}
		}

		for _, o := range g.observers {
			o.StageStarted(name, current)
		}
		start := time.Now()
		update, err := stage(ctx, current.Clone())
		elapsed := time.Since(start)
		for _, o := range g.observers {
			o.StageFinished(name, elapsed, err)
		}

		if err != nil {
			update = state.Update{Errors: []string{fmt.Sprintf("%s: %v", name, err)}}
		}
		if update.CurrentStage == nil {
			update.CurrentStage = state.String(name)
		}
		if err := current.Apply(update); err != nil {
			return current, &IntegrityError{Stage: name, Err: fmt.Errorf("%w: %v", ErrInvalidUpdate, err)}
		}

		next, err := g.next(name, current)
		if err != nil {
			return current, err
		}
		name = next
	}

	for _, o := range g.observers {
		o.RunFinished(current)
	}
	return current, nil
}

// next resolves the outgoing edge of stage against the merged state.
func (g *Graph) next(stage string, s *state.PipelineState) (string, error) {
	if to, ok := g.spec.Edges[stage]; ok {
		return to, nil
	}
	c := g.spec.Conditional[stage]
	label := c.Gate(s)
	to, ok := c.Routes[label]
	if !ok {
		return "", &IntegrityError{Stage: stage, Err: fmt.Errorf("%w %q from %s", ErrUndeclaredLabel, label, c.Name)}
	}
	for _, o := range g.observers {
		o.GateDecided(stage, c.Name, label, to)
	}
	return to, nil
}

// Stages returns the registered stage names in sorted order.
func (g *Graph) Stages() []string {
	return sortedKeys(g.spec.Stages)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
