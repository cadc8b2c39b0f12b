// Package auth drives a remote browsing session through the provider-chained
// login flow: primary SSO form, federated secondary provider, optional
// second-factor approval, and the session-persistence prompt. The flow is an
// explicit state machine with one handler per state, so each provider branch
// is independently testable against a scripted browser.
package auth

// State is the tagged authentication state.
type State int

// Authentication states. Failed is terminal for the current attempt only; a
// later page may trigger a fresh flow.
const (
	StateUnauthenticated State = iota
	StatePrimaryChallenge
	StateSecondaryChallenge
	StateSecondFactorPending
	StatePersisted
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePrimaryChallenge:
		return "primary_challenge"
	case StateSecondaryChallenge:
		return "secondary_challenge"
	case StateSecondFactorPending:
		return "second_factor_pending"
	case StatePersisted:
		return "persisted"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
