package model

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Level is a discrete politeness category. Levels are ordered by declaration
// but are not a numeric scale.
type Level int

const (
	Polite Level = iota
	SomewhatPolite
	Neutral
	Impolite
)

var levelNames = [...]string{
	Polite:         "Polite",
	SomewhatPolite: "SomewhatPolite",
	Neutral:        "Neutral",
	Impolite:       "Impolite",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the four declared levels.
func (l Level) Valid() bool {
	return l >= 0 && int(l) < len(levelNames)
}

// ParseLevel converts a level name ("Polite", "SomewhatPolite", "Neutral",
// "Impolite") to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return Neutral, fmt.Errorf("model: unknown politeness level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("model: invalid politeness level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// MarshalCBOR writes the level as its name, matching the JSON form.
func (l Level) MarshalCBOR() ([]byte, error) {
	name, err := l.MarshalText()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(string(name))
}

func (l *Level) UnmarshalCBOR(data []byte) error {
	var name string
	if err := cbor.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("model: politeness level: %w", err)
	}
	return l.UnmarshalText([]byte(name))
}
