package executor

import "fmt"

// Phase is the lifecycle of a single request or mutation slot.
type Phase int32

// Phases, in transition order.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseError
)

var phaseNames = [...]string{"idle", "loading", "success", "error"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int32(p))
	}
	return phaseNames[p]
}

// MarshalText renders the phase as its lower-case name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a lower-case phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for i, n := range phaseNames {
		if n == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

// Settled reports whether the phase is a terminal outcome of a call.
func (p Phase) Settled() bool {
	return p == PhaseSuccess || p == PhaseError
}
