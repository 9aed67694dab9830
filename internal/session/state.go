package session

import "fmt"

// State is the session lifecycle state.
type State int

const (
	// StateInitializing is the state before Bootstrap resolves.
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is an input to the state machine.
type Event string

const (
	EventBootstrapUser   Event = "bootstrapUser"
	EventBootstrapNoUser Event = "bootstrapNoUser"
	EventLoginSucceeded  Event = "loginSucceeded"
	EventSignupSucceeded Event = "signupSucceeded"
	EventLogout          Event = "logout"
)

type transitionKey struct {
	from  State
	event Event
}

// transitions is the complete table; pairs not listed are illegal.
var transitions = map[transitionKey]State{
	{StateInitializing, EventBootstrapUser}:      StateAuthenticated,
	{StateInitializing, EventBootstrapNoUser}:    StateUnauthenticated,
	{StateUnauthenticated, EventLoginSucceeded}:  StateAuthenticated,
	{StateUnauthenticated, EventSignupSucceeded}: StateAuthenticated,
	{StateAuthenticated, EventLogout}:            StateUnauthenticated,
}

// Next returns the state reached from s on ev, and false if the transition
// is not allowed.
func Next(s State, ev Event) (State, bool) {
	to, ok := transitions[transitionKey{s, ev}]
	return to, ok
}

// View is the screen a state renders as.
type View int

const (
	ViewLoading View = iota
	ViewLanding
	ViewDashboard
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewLanding:
		return "landing"
	case ViewDashboard:
		return "dashboard"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

func viewFor(s State) View {
	switch s {
	case StateAuthenticated:
		return ViewDashboard
	case StateUnauthenticated:
		return ViewLanding
	default:
		return ViewLoading
	}
}
