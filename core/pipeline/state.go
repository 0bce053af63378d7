package pipeline

// State is a position in the acquisition state machine.
// PENDING → FETCHED → REPROJECTED → NORMALIZED → CLIPPED → DONE, with SKIPPED and FAILED as exits.
type State int

const (
	StatePending     State = iota // Nothing produced yet
	StateFetched                  // Raw GeoTIFF on disk
	StateReprojected              // UTM GeoTIFF on disk
	StateNormalized               // Interchange grid on disk
	StateClipped                  // Grid clipped to a region geometry
	StateDone                     // All outputs final
	StateSkipped                  // Existing outputs left untouched
	StateFailed                   // A stage returned an error
)

var stateNames = map[State]string{
	StatePending:     "PENDING",
	StateFetched:     "FETCHED",
	StateReprojected: "REPROJECTED",
	StateNormalized:  "NORMALIZED",
	StateClipped:     "CLIPPED",
	StateDone:        "DONE",
	StateSkipped:     "SKIPPED",
	StateFailed:      "FAILED",
}

// String returns the state name
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseState is the inverse of String
func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return StatePending, false
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateDone || s == StateSkipped || s == StateFailed
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name; unknown names decode as PENDING
func (s *State) UnmarshalText(b []byte) error {
	st, _ := ParseState(string(b))
	*s = st
	return nil
}
