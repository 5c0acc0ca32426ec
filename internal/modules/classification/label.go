// Package classification sorts each month's cross-section into the 18
// Size x Investment x Profitability portfolios.
package classification

import (
	"fmt"
	"strings"
)

// Size is the market-cap half a security falls in
type Size int

const (
	Small Size = iota
	Big
)

func (s Size) String() string {
	if s == Big {
		return "Big"
	}
	return "Small"
}

// Bucket is a 30/40/30 tercile position
type Bucket int

const (
	Low Bucket = iota
	Mid
	High
)

func (b Bucket) String() string {
	switch b {
	case Mid:
		return "Mid"
	case High:
		return "High"
	default:
		return "Low"
	}
}

// Label identifies one of the 18 portfolios
type Label struct {
	Size          Size
	Investment    Bucket
	Profitability Bucket
}

// Code renders the label as e.g. "Big-High_IA-Low_ROE"
func (l Label) Code() string {
	return fmt.Sprintf("%s-%s_IA-%s_ROE", l.Size, l.Investment, l.Profitability)
}

func (l Label) String() string {
	return l.Code()
}

// MarshalText renders the label code
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.Code()), nil
}

// UnmarshalText parses a label code
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLabel parses a code produced by Code
func ParseLabel(code string) (Label, error) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		return Label{}, fmt.Errorf("invalid portfolio label %q", code)
	}

	var l Label
	switch parts[0] {
	case "Small":
		l.Size = Small
	case "Big":
		l.Size = Big
	default:
		return Label{}, fmt.Errorf("invalid size in portfolio label %q", code)
	}

	ia, ok := parseBucket(parts[1], "_IA")
	if !ok {
		return Label{}, fmt.Errorf("invalid investment bucket in portfolio label %q", code)
	}
	roe, ok := parseBucket(parts[2], "_ROE")
	if !ok {
		return Label{}, fmt.Errorf("invalid profitability bucket in portfolio label %q", code)
	}
	l.Investment, l.Profitability = ia, roe
	return l, nil
}

func parseBucket(s, suffix string) (Bucket, bool) {
	name, found := strings.CutSuffix(s, suffix)
	if !found {
		return 0, false
	}
	for _, b := range []Bucket{Low, Mid, High} {
		if b.String() == name {
			return b, true
		}
	}
	return 0, false
}

// AllLabels returns the 18 labels in a fixed order: size, then investment,
// then profitability
func AllLabels() []Label {
	labels := make([]Label, 0, 18)
	for _, s := range []Size{Small, Big} {
		for _, ia := range []Bucket{Low, Mid, High} {
			for _, roe := range []Bucket{Low, Mid, High} {
				labels = append(labels, Label{Size: s, Investment: ia, Profitability: roe})
			}
		}
	}
	return labels
}
