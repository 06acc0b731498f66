package network

import "fmt"

// Mode determines whether a network is being trained or evaluated.
// Stochastic layers such as dropout are only active in Train mode.
type Mode int

const (
	Train Mode = iota
	Eval
)

// String implements the fmt.Stringer interface
func (m Mode) String() string {
	switch m {
	case Train:
		return "train"
	case Eval:
		return "eval"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the Mode named by s
func ParseMode(s string) (Mode, error) {
	switch s {
	case "train":
		return Train, nil
	case "eval":
		return Eval, nil
	}
	return Train, fmt.Errorf("parsemode: unknown mode %q", s)
}
