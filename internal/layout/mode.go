package layout

import "fmt"

// Mode selects how a spread is arranged.
type Mode int

const (
	// Flat moves the visible pages side by side into the container.
	Flat Mode = iota
	// Book builds one rotating leaf per physical sheet from clones of the pages.
	Book
)

func (m Mode) String() string {
	switch m {
	case Flat:
		return "flat"
	case Book:
		return "book"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "flat" or "book".
func ParseMode(v string) (Mode, error) {
	switch v {
	case "flat":
		return Flat, nil
	case "book", "flip":
		return Book, nil
	}
	return Flat, fmt.Errorf("unknown layout mode %q (want flat or book)", v)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
