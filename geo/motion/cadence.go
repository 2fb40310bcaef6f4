package motion

import "fmt"

// Mode is the sampling regime the location provider is asked to run in.
type Mode int

const (
	Passive Mode = iota
	Frequent
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "Passive"
	case Frequent:
		return "Frequent"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Passive":
		*m = Passive
	case "Frequent":
		*m = Frequent
	default:
		return fmt.Errorf("unknown cadence mode %q", string(b))
	}
	return nil
}

// Cadence is a command to the location provider.
type Cadence struct {
	Mode                  Mode    `json:"mode"`
	DesiredAccuracyMeters float64 `json:"desiredAccuracy"`
}

var (
	CadenceFrequent = Cadence{Mode: Frequent, DesiredAccuracyMeters: 100}
	CadencePassive  = Cadence{Mode: Passive, DesiredAccuracyMeters: 1000}
)

func (c Cadence) String() string {
	return fmt.Sprintf("%s/%.0fm", c.Mode, c.DesiredAccuracyMeters)
}
