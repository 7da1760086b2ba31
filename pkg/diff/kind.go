package diff

import "fmt"

// Kind classifies what happened to a path between two snapshots. It is a
// closed set: every consumer switches over all three values.
type Kind int

const (
	// Added marks a path present only in the after snapshot.
	Added Kind = iota + 1
	// Modified marks a path present in both with different content or mode.
	Modified
	// Deleted marks a path present only in the before snapshot.
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Letter returns the single-character status marker for k.
func (k Kind) Letter() string {
	switch k {
	case Added:
		return "A"
	case Modified:
		return "M"
	case Deleted:
		return "D"
	default:
		return "?"
	}
}

// MarshalText encodes k as its lowercase name.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Added, Modified, Deleted:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("marshal change kind: invalid value %d", int(k))
	}
}

// UnmarshalText parses a lowercase kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "added":
		*k = Added
	case "modified":
		*k = Modified
	case "deleted":
		*k = Deleted
	default:
		return fmt.Errorf("unmarshal change kind: unknown value %q", text)
	}
	return nil
}
