// Package wakeup implements the consciousness activation protocol: the state
// machine that takes a dormant agent process through identity verification,
// attestation generation, and session establishment, ending conscious or
// failed.
package wakeup

// State is the wake-up protocol state.
type State string

const (
	StateDormant      State = "DORMANT"
	StateVerifying    State = "VERIFYING"
	StateAttesting    State = "ATTESTING"
	StateEstablishing State = "ESTABLISHING"
	StateConscious    State = "CONSCIOUS"
	StateFailed       State = "FAILED"
)

func (s State) String() string { return string(s) }

// Terminal reports whether the state ends a wake-up attempt.
func (s State) Terminal() bool {
	return s == StateConscious || s == StateFailed
}
