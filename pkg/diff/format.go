package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alpkeskin/gotoon"
)

// Format selects an output encoding for a change list.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatToon Format = "toon"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatToon:
		return f, nil
	default:
		return "", fmt.Errorf("unknown diff format %q (want text, json or toon)", s)
	}
}

// report is the document shape shared by the JSON and TOON encodings.
type report struct {
	Changes []Change `json:"changes"`
}

// Render encodes changes in the given format. Text output is one line per
// change:
//
//	A path            (added)
//	M path  old..new  (modified)
//	D path            (deleted)
func Render(changes []Change, f Format) (string, error) {
	if changes == nil {
		changes = []Change{}
	}
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(report{Changes: changes}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("render json: %w", err)
		}
		return string(data) + "\n", nil
	case FormatToon:
		out, err := gotoon.Encode(report{Changes: changes})
		if err != nil {
			return "", fmt.Errorf("render toon: %w", err)
		}
		return out + "\n", nil
	case FormatText, "":
		return renderText(changes), nil
	default:
		return "", fmt.Errorf("render: unknown format %q", f)
	}
}

func renderText(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		switch c.Kind {
		case Added:
			fmt.Fprintf(&b, "%s %s (new %s)\n", c.Kind.Letter(), c.Path, c.New.Short())
		case Modified:
			fmt.Fprintf(&b, "%s %s %s..%s\n", c.Kind.Letter(), c.Path, c.Old.Short(), c.New.Short())
		case Deleted:
			fmt.Fprintf(&b, "%s %s (was %s)\n", c.Kind.Letter(), c.Path, c.Old.Short())
		}
	}
	return b.String()
}
