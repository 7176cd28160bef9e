package statemachine

import (
	"errors"
	"fmt"
	"maps"
)

var (
	// ErrDuplicateState is returned when two states share a name.
	ErrDuplicateState = errors.New("duplicate state name")

	// ErrUnknownState is returned when a transition targets a state that does not exist.
	ErrUnknownState = errors.New("transition to unknown state")

	// ErrUnreachableState is returned when no path from StartAt reaches a state.
	ErrUnreachableState = errors.New("unreachable state")

	// ErrMissingStart is returned when StartAt is unset.
	ErrMissingStart = errors.New("missing start state")

	// ErrMissingTransition is returned when a non-terminal state has nowhere to go.
	ErrMissingTransition = errors.New("state has no transition")
)

// StateError ties a build error to the state that caused it.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %q: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Builder assembles a Definition. The zero value is not usable; call NewBuilder.
type Builder struct {
	comment string
	startAt string
	states  []NamedState
	index   map[string]int
	err     error
}

// NewBuilder starts an empty definition.
func NewBuilder(comment string) *Builder {
	return &Builder{
		comment: comment,
		index:   make(map[string]int),
	}
}

// StartAt sets the first state.
func (b *Builder) StartAt(name string) *Builder {
	b.startAt = name

	return b
}

// Has reports whether a state with this name was added.
func (b *Builder) Has(name string) bool {
	_, ok := b.index[name]

	return ok
}

// Add appends a state. The first error (such as a duplicate name) sticks and is
// returned by Build.
func (b *Builder) Add(name string, state State) *Builder {
	if b.err != nil {
		return b
	}

	if b.Has(name) {
		b.err = &StateError{State: name, Err: ErrDuplicateState}

		return b
	}

	b.index[name] = len(b.states)
	b.states = append(b.states, NamedState{Name: name, State: state})

	return b
}

// Build validates the graph and returns the immutable definition.
func (b *Builder) Build() (*Definition, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.startAt == "" {
		return nil, ErrMissingStart
	}

	if !b.Has(b.startAt) {
		return nil, &StateError{State: b.startAt, Err: ErrUnknownState}
	}

	for _, named := range b.states {
		next := named.State.transitions()
		if len(next) == 0 && !named.State.terminal() {
			return nil, &StateError{State: named.Name, Err: ErrMissingTransition}
		}

		for _, target := range next {
			if !b.Has(target) {
				return nil, &StateError{State: named.Name, Err: fmt.Errorf("%w %q", ErrUnknownState, target)}
			}
		}
	}

	if unreachable := b.unreachable(); unreachable != "" {
		return nil, &StateError{State: unreachable, Err: ErrUnreachableState}
	}

	states := cloneStates(b.states)

	index := maps.Clone(b.index)

	return &Definition{
		comment: b.comment,
		startAt: b.startAt,
		states:  states,
		index:   index,
	}, nil
}

// unreachable returns the first state, in insertion order, not reachable from StartAt.
func (b *Builder) unreachable() string {
	seen := map[string]bool{b.startAt: true}
	queue := []string{b.startAt}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		for _, target := range b.states[b.index[name]].State.transitions() {
			if !seen[target] {
				seen[target] = true
				queue = append(queue, target)
			}
		}
	}

	for _, named := range b.states {
		if !seen[named.Name] {
			return named.Name
		}
	}

	return ""
}
