// Package issues keeps exactly one GitHub issue per repository and check in step with the
// latest findings.
package issues

import "fmt"

// State is the observed state of the managed issue
type State string

const (
	StateNone   State = "none"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Desired is whether the issue should exist after the sync
type Desired int

const (
	ShouldExist Desired = iota
	ShouldNotExist
)

func (d Desired) String() string {
	if d == ShouldExist {
		return "shouldExist"
	}
	return "shouldNotExist"
}

// Action is what a sync does to the issue
type Action string

const (
	ActionCreate           Action = "create"
	ActionUpdate           Action = "update"
	ActionUpdateReopen     Action = "update+reopen"
	ActionUpdateKeepClosed Action = "update (kept closed)"
	ActionCommentClose     Action = "comment+close"
	ActionNone             Action = "none"
)

type transitionKey struct {
	state   State
	desired Desired
}

// transitions is the lifecycle table; a closed issue that should exist depends on the
// manual override and is resolved in Transition
var transitions = map[transitionKey]Action{
	{StateNone, ShouldExist}:      ActionCreate,
	{StateOpen, ShouldExist}:      ActionUpdate,
	{StateClosed, ShouldExist}:    ActionUpdateReopen,
	{StateOpen, ShouldNotExist}:   ActionCommentClose,
	{StateClosed, ShouldNotExist}: ActionNone,
	{StateNone, ShouldNotExist}:   ActionNone,
}

// Transition returns the action for an issue in state when desired; overridden reports
// whether someone commented "closed" to keep a closed issue closed
func Transition(state State, desired Desired, overridden bool) (Action, error) {
	action, ok := transitions[transitionKey{state, desired}]
	if !ok {
		return "", fmt.Errorf("no transition from %s for %s", state, desired)
	}
	if action == ActionUpdateReopen && overridden {
		return ActionUpdateKeepClosed, nil
	}
	return action, nil
}

// ParseState maps a GitHub issue state onto State
func ParseState(s string) State {
	switch s {
	case "open":
		return StateOpen
	case "closed":
		return StateClosed
	default:
		return StateNone
	}
}
