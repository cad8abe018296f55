package planner

import (
	"context"
	"fmt"
)

// Step is one unit of the plan pipeline. Steps mutate the state they are
// handed; returning an error aborts the chain.
type Step interface {
	Name() string
	Run(ctx context.Context, state *State) error
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, state *State) error

type funcStep struct {
	name string
	fn   StepFunc
}

func NewStep(name string, fn StepFunc) Step {
	return &funcStep{name: name, fn: fn}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Run(ctx context.Context, state *State) error {
	return s.fn(ctx, state)
}

// Chain executes steps in order. The chain short-circuits when the intent
// guard rejects the request, and between steps when the context is done.
type Chain struct {
	name  string
	steps []Step
}

func NewChain(name string, steps ...Step) *Chain {
	return &Chain{name: name, steps: steps}
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Execute(ctx context.Context, state *State) error {
	emit, _ := emitterFromContext(ctx)
	for i, step := range c.steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if emit != nil {
			emit(Event{Type: EventStepStart, Step: step.Name()})
		}
		if err := step.Run(ctx, state); err != nil {
			if emit != nil {
				emit(Event{Type: EventStepError, Step: step.Name(), Err: err})
			}
			return fmt.Errorf("step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		if emit != nil {
			emit(Event{Type: EventStepComplete, Step: step.Name()})
		}

		if state.Rejected {
			break
		}
	}
	return nil
}

// EventType identifies a pipeline progress event.
type EventType string

const (
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
	EventStepError    EventType = "step_error"
	// EventToken carries one streamed explanation token in Data.
	EventToken EventType = "token"
	// EventPlan carries the finished *Plan in Data.
	EventPlan EventType = "plan"
)

// Event is one progress notification from a running plan.
type Event struct {
	Type EventType `json:"type"`
	Step string    `json:"step,omitempty"`
	Data any       `json:"data,omitempty"`
	Err  error     `json:"-"`
}

// Emitter receives pipeline events. Emitters must be safe for calls from
// the goroutine running the chain.
type Emitter func(Event)

type emitterKey struct{}

// WithEmitter stores an event emitter in the context so callers can observe
// step progress and streamed tokens.
func WithEmitter(ctx context.Context, emit Emitter) context.Context {
	if emit == nil {
		return ctx
	}
	return context.WithValue(ctx, emitterKey{}, emit)
}

func emitterFromContext(ctx context.Context) (Emitter, bool) {
	emit, ok := ctx.Value(emitterKey{}).(Emitter)
	return emit, ok && emit != nil
}
