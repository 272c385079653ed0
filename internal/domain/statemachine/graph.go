// Package statemachine holds the transition engine shared by every financial
// entity. A Graph is pure data: each entity type declares one and the engine
// answers questions about it.
package statemachine

import (
	"fmt"
	"sort"
)

// State is a lifecycle state of an entity.
type State string

// Action names an event that moves an entity between states.
type Action string

// Transition is one edge of a graph.
type Transition struct {
	From   State
	Action Action
	To     State
}

// Definition describes a graph before validation.
type Definition struct {
	Name        string
	Initial     State
	States      []State
	Transitions []Transition
	// Immutable states forbid field edits; status-only transitions remain.
	Immutable []State
	// Terminal states have no outbound transitions.
	Terminal []State
	// Review states wait on a checker. Field edits are refused until the
	// record is withdrawn back to an editable state.
	Review []State
}

// Graph is a validated, read-only state graph.
type Graph struct {
	name        string
	initial     State
	states      map[State]struct{}
	transitions map[State]map[Action]State
	immutable   map[State]struct{}
	terminal    map[State]struct{}
	review      map[State]struct{}
}

// IllegalTransitionError is returned by Next for unlisted (state, action) pairs.
type IllegalTransitionError struct {
	Graph  string
	From   State
	Action Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: action %q is not allowed from state %q", e.Graph, e.Action, e.From)
}

// New validates def and builds a graph.
func New(def Definition) (*Graph, error) {
	g := &Graph{
		name:        def.Name,
		initial:     def.Initial,
		states:      make(map[State]struct{}, len(def.States)),
		transitions: make(map[State]map[Action]State),
		immutable:   make(map[State]struct{}, len(def.Immutable)),
		terminal:    make(map[State]struct{}, len(def.Terminal)),
		review:      make(map[State]struct{}, len(def.Review)),
	}
	for _, s := range def.States {
		g.states[s] = struct{}{}
	}
	if _, ok := g.states[def.Initial]; !ok {
		return nil, fmt.Errorf("statemachine %s: initial state %q is not declared", def.Name, def.Initial)
	}
	for _, s := range def.Immutable {
		if _, ok := g.states[s]; !ok {
			return nil, fmt.Errorf("statemachine %s: immutable state %q is not declared", def.Name, s)
		}
		g.immutable[s] = struct{}{}
	}
	for _, s := range def.Terminal {
		if _, ok := g.states[s]; !ok {
			return nil, fmt.Errorf("statemachine %s: terminal state %q is not declared", def.Name, s)
		}
		g.terminal[s] = struct{}{}
	}
	for _, s := range def.Review {
		if _, ok := g.states[s]; !ok {
			return nil, fmt.Errorf("statemachine %s: review state %q is not declared", def.Name, s)
		}
		g.review[s] = struct{}{}
	}
	for _, tr := range def.Transitions {
		if _, ok := g.states[tr.From]; !ok {
			return nil, fmt.Errorf("statemachine %s: transition from undeclared state %q", def.Name, tr.From)
		}
		if _, ok := g.states[tr.To]; !ok {
			return nil, fmt.Errorf("statemachine %s: transition to undeclared state %q", def.Name, tr.To)
		}
		if _, ok := g.terminal[tr.From]; ok {
			return nil, fmt.Errorf("statemachine %s: terminal state %q has outbound action %q", def.Name, tr.From, tr.Action)
		}
		edges, ok := g.transitions[tr.From]
		if !ok {
			edges = make(map[Action]State)
			g.transitions[tr.From] = edges
		}
		if _, dup := edges[tr.Action]; dup {
			return nil, fmt.Errorf("statemachine %s: duplicate action %q from %q", def.Name, tr.Action, tr.From)
		}
		edges[tr.Action] = tr.To
	}
	return g, nil
}

// MustNew is New for package-level graph declarations.
func MustNew(def Definition) *Graph {
	g, err := New(def)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns the graph name
func (g *Graph) Name() string { return g.name }

// Initial returns the state new entities start in
func (g *Graph) Initial() State { return g.initial }

// HasState reports whether s is declared
func (g *Graph) HasState(s State) bool {
	_, ok := g.states[s]
	return ok
}

// CanTransition reports whether action is allowed from state.
func (g *Graph) CanTransition(state State, action Action) bool {
	_, ok := g.transitions[state][action]
	return ok
}

// Next returns the target of action from state.
func (g *Graph) Next(state State, action Action) (State, error) {
	next, ok := g.transitions[state][action]
	if !ok {
		return "", &IllegalTransitionError{Graph: g.name, From: state, Action: action}
	}
	return next, nil
}

// IsImmutable reports whether field edits are forbidden in state.
func (g *Graph) IsImmutable(state State) bool {
	_, ok := g.immutable[state]
	return ok
}

// IsTerminal reports whether state has no outbound transitions.
func (g *Graph) IsTerminal(state State) bool {
	_, ok := g.terminal[state]
	return ok
}

// InReview reports whether state waits on a checker.
func (g *Graph) InReview(state State) bool {
	_, ok := g.review[state]
	return ok
}

// IsEditable reports whether a field edit is allowed in state.
func (g *Graph) IsEditable(state State) bool {
	return g.HasState(state) && !g.IsImmutable(state) && !g.IsTerminal(state) && !g.InReview(state)
}

// AvailableActions lists the actions allowed from state, sorted.
func (g *Graph) AvailableActions(state State) []Action {
	edges := g.transitions[state]
	actions := make([]Action, 0, len(edges))
	for a := range edges {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// States lists every declared state, sorted.
func (g *Graph) States() []State {
	return sortedStates(g.states)
}

// ImmutableStates lists states that block field edits, sorted.
func (g *Graph) ImmutableStates() []State {
	return sortedStates(g.immutable)
}

// LockedStates lists every state that refuses field edits. The storage
// guard excludes these from edit statements.
func (g *Graph) LockedStates() []State {
	locked := make(map[State]struct{}, len(g.immutable)+len(g.terminal)+len(g.review))
	for _, set := range []map[State]struct{}{g.immutable, g.terminal, g.review} {
		for s := range set {
			locked[s] = struct{}{}
		}
	}
	return sortedStates(locked)
}

// Actions lists every action used anywhere in the graph, sorted.
func (g *Graph) Actions() []Action {
	seen := make(map[Action]struct{})
	for _, edges := range g.transitions {
		for a := range edges {
			seen[a] = struct{}{}
		}
	}
	actions := make([]Action, 0, len(seen))
	for a := range seen {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

func sortedStates(set map[State]struct{}) []State {
	out := make([]State, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
