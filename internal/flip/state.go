package flip

import "fmt"

// LeafState is the position of one leaf in the book.
type LeafState int

const (
	Closed LeafState = iota
	Flipping
	Open
)

func (s LeafState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Flipping:
		return "flipping"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("LeafState(%d)", int(s))
	}
}

// MarshalText encodes the state as its data-state attribute value.
func (s LeafState) MarshalText() ([]byte, error) {
	switch s {
	case Closed, Flipping, Open:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid leaf state %d", int(s))
}

// UnmarshalText decodes a data-state attribute value.
func (s *LeafState) UnmarshalText(text []byte) error {
	st, err := ParseLeafState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseLeafState parses "closed", "flipping" or "open".
func ParseLeafState(v string) (LeafState, error) {
	switch v {
	case "closed":
		return Closed, nil
	case "flipping":
		return Flipping, nil
	case "open":
		return Open, nil
	}
	return Closed, fmt.Errorf("unknown leaf state %q", v)
}

// CommittedStates returns the leaf states for a book resting at spread index:
// leaves before the index are open, the rest closed.
func CommittedStates(index, leafCount int) []LeafState {
	states := make([]LeafState, leafCount)
	for i := range states {
		if i < index {
			states[i] = Open
		} else {
			states[i] = Closed
		}
	}
	return states
}
