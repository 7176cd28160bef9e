// Package statemachine models workflow definitions in the Amazon States Language shape.
//
// A Definition is immutable once built: states are kept in insertion order, every
// transition is an explicit state name and the Builder refuses graphs with duplicate
// names, dangling transitions or unreachable states.
package statemachine

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// StateType is the ASL "Type" of a state.
type StateType string

const (
	TypeTask    StateType = "Task"
	TypeWait    StateType = "Wait"
	TypeChoice  StateType = "Choice"
	TypeSucceed StateType = "Succeed"
	TypeFail    StateType = "Fail"
)

// ErrorsAll matches every error a task can raise.
const ErrorsAll = "States.ALL"

// State is one node of a definition.
type State interface {
	Type() StateType

	// transitions lists every state name this state can move to.
	transitions() []string

	// terminal reports whether the state may end the execution.
	terminal() bool
}

// Task runs work on an external resource.
type Task struct {
	Resource   string
	InputPath  string
	OutputPath string
	Parameters map[string]any
	Catch      []Catcher
	Next       string
	End        bool
}

// Catcher routes matching task errors to a fallback state.
type Catcher struct {
	ErrorEquals []string `json:"ErrorEquals"`
	Next        string   `json:"Next"`
}

// Wait pauses the execution.
type Wait struct {
	Seconds int
	Next    string
	End     bool
}

// Choice branches on the state input.
type Choice struct {
	Choices []ChoiceRule
	Default string
}

// ChoiceRule is a single boolean comparison.
type ChoiceRule struct {
	Variable      string `json:"Variable"`
	BooleanEquals bool   `json:"BooleanEquals"`
	Next          string `json:"Next"`
}

// Succeed stops the execution successfully.
type Succeed struct{}

// Fail stops the execution as failed.
type Fail struct {
	Error string
	Cause string
}

func (Task) Type() StateType    { return TypeTask }
func (Wait) Type() StateType    { return TypeWait }
func (Choice) Type() StateType  { return TypeChoice }
func (Succeed) Type() StateType { return TypeSucceed }
func (Fail) Type() StateType    { return TypeFail }

func (t Task) transitions() []string {
	names := make([]string, 0, len(t.Catch)+1)
	if t.Next != "" {
		names = append(names, t.Next)
	}

	for _, c := range t.Catch {
		names = append(names, c.Next)
	}

	return names
}

func (w Wait) transitions() []string {
	if w.Next == "" {
		return nil
	}

	return []string{w.Next}
}

func (c Choice) transitions() []string {
	names := make([]string, 0, len(c.Choices)+1)
	for _, rule := range c.Choices {
		names = append(names, rule.Next)
	}

	if c.Default != "" {
		names = append(names, c.Default)
	}

	return names
}

func (Succeed) transitions() []string { return nil }
func (Fail) transitions() []string    { return nil }

func (t Task) terminal() bool   { return t.End }
func (w Wait) terminal() bool   { return w.End }
func (Choice) terminal() bool   { return false }
func (Succeed) terminal() bool { return true }
func (Fail) terminal() bool    { return true }

// MarshalJSON implements json.Marshaler.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       StateType      `json:"Type"`
		Resource   string         `json:"Resource"`
		InputPath  string         `json:"InputPath,omitempty"`
		Parameters map[string]any `json:"Parameters,omitempty"`
		OutputPath string         `json:"OutputPath,omitempty"`
		Catch      []Catcher      `json:"Catch,omitempty"`
		Next       string         `json:"Next,omitempty"`
		End        bool           `json:"End,omitempty"`
	}{TypeTask, t.Resource, t.InputPath, t.Parameters, t.OutputPath, t.Catch, t.Next, t.End})
}

// MarshalJSON implements json.Marshaler.
func (w Wait) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    StateType `json:"Type"`
		Seconds int       `json:"Seconds"`
		Next    string    `json:"Next,omitempty"`
		End     bool      `json:"End,omitempty"`
	}{TypeWait, w.Seconds, w.Next, w.End})
}

// MarshalJSON implements json.Marshaler.
func (c Choice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    StateType    `json:"Type"`
		Choices []ChoiceRule `json:"Choices"`
		Default string       `json:"Default,omitempty"`
	}{TypeChoice, c.Choices, c.Default})
}

// MarshalJSON implements json.Marshaler.
func (Succeed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type StateType `json:"Type"`
	}{TypeSucceed})
}

// MarshalJSON implements json.Marshaler.
func (f Fail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  StateType `json:"Type"`
		Error string    `json:"Error,omitempty"`
		Cause string    `json:"Cause,omitempty"`
	}{TypeFail, f.Error, f.Cause})
}

// NamedState pairs a state with its name.
type NamedState struct {
	Name  string
	State State
}

// Definition is a built, validated state machine.
type Definition struct {
	comment string
	startAt string
	states  []NamedState
	index   map[string]int
}

// Comment returns the definition comment.
func (d *Definition) Comment() string { return d.comment }

// StartAt returns the name of the first state.
func (d *Definition) StartAt() string { return d.startAt }

// Len returns the number of states.
func (d *Definition) Len() int { return len(d.states) }

// States returns copies of the states in insertion order.
func (d *Definition) States() []NamedState {
	return cloneStates(d.states)
}

// State looks a state up by name.
func (d *Definition) State(name string) (State, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}

	return cloneState(d.states[i].State), true
}

func cloneStates(states []NamedState) []NamedState {
	out := make([]NamedState, len(states))
	for i, named := range states {
		out[i] = NamedState{Name: named.Name, State: cloneState(named.State)}
	}

	return out
}

// cloneState copies the maps and slices a state holds so callers never share them
// with a built definition.
func cloneState(state State) State {
	switch s := state.(type) {
	case Task:
		s.Parameters = maps.Clone(s.Parameters)
		if s.Catch != nil {
			catch := make([]Catcher, len(s.Catch))
			for i, c := range s.Catch {
				catch[i] = Catcher{ErrorEquals: slices.Clone(c.ErrorEquals), Next: c.Next}
			}

			s.Catch = catch
		}

		return s
	case Choice:
		s.Choices = slices.Clone(s.Choices)

		return s
	default:
		return state
	}
}

// MarshalJSON writes {"Comment", "StartAt", "States"} keeping state order.
func (d *Definition) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"Comment":`)

	comment, err := json.Marshal(d.comment)
	if err != nil {
		return nil, err
	}

	buf.Write(comment)
	buf.WriteString(`,"StartAt":`)

	startAt, err := json.Marshal(d.startAt)
	if err != nil {
		return nil, err
	}

	buf.Write(startAt)
	buf.WriteString(`,"States":{`)

	for i, named := range d.states {
		if i > 0 {
			buf.WriteByte(',')
		}

		name, err := json.Marshal(named.Name)
		if err != nil {
			return nil, err
		}

		state, err := json.Marshal(named.State)
		if err != nil {
			return nil, err
		}

		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(state)
	}

	buf.WriteString("}}")

	return buf.Bytes(), nil
}

// String renders the definition as JSON, the form workflow engines accept.
func (d *Definition) String() string {
	raw, err := d.MarshalJSON()
	if err != nil {
		return ""
	}

	return string(raw)
}
