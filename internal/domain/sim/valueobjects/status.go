package valueobjects

// SimStatus is the lifecycle status reported by the provider. Status only
// changes through command execution or sync reconciliation, never by direct
// user edit.
type SimStatus string

const (
	StatusActive    SimStatus = "active"
	StatusInactive  SimStatus = "inactive"
	StatusSuspended SimStatus = "suspended"
)

func (s SimStatus) String() string {
	return string(s)
}

func (s SimStatus) IsValid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusSuspended
}

// CanTransitionTo reports whether a command may move the SIM from s to
// target. Sync reconciliation bypasses this check because the provider is
// authoritative for observed state.
func (s SimStatus) CanTransitionTo(target SimStatus) bool {
	transitions := map[SimStatus][]SimStatus{
		StatusActive:    {StatusInactive, StatusSuspended},
		StatusInactive:  {StatusActive},
		StatusSuspended: {StatusActive, StatusInactive},
	}

	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
