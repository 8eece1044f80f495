package rugby

import (
	"fmt"
	"strings"
)

// Country is one of the six competing nations.
type Country string

const (
	Ireland  Country = "Ireland"
	England  Country = "England"
	France   Country = "France"
	Wales    Country = "Wales"
	Scotland Country = "Scotland"
	Italy    Country = "Italy"
)

// Countries lists the nations in a stable order.
var Countries = []Country{Ireland, England, France, Wales, Scotland, Italy}

// Position is a fantasy selection slot.
type Position string

const (
	Prop      Position = "prop"
	Hooker    Position = "hooker"
	SecondRow Position = "second_row"
	BackRow   Position = "back_row"
	ScrumHalf Position = "scrum_half"
	OutHalf   Position = "out_half"
	Centre    Position = "centre"
	Back3     Position = "back_3"
)

// Positions lists the slots front row to back three.
var Positions = []Position{Prop, Hooker, SecondRow, BackRow, ScrumHalf, OutHalf, Centre, Back3}

// PositionLimits is the starting XV shape.
var PositionLimits = map[Position]int{
	Prop:      2,
	Hooker:    1,
	SecondRow: 2,
	BackRow:   3,
	ScrumHalf: 1,
	OutHalf:   1,
	Centre:    2,
	Back3:     3,
}

const (
	// BenchSize is the number of replacements a fantasy team may name.
	BenchSize = 3
	// StartingSize is the sum of PositionLimits.
	StartingSize = 15
)

// IsForward reports whether a fantasy position is in the pack.
func IsForward(position string) bool {
	switch Position(strings.ToLower(strings.TrimSpace(position))) {
	case Prop, Hooker, SecondRow, BackRow:
		return true
	}
	return false
}

// IsForward reports whether p is a forward slot.
func (p Position) IsForward() bool {
	return IsForward(string(p))
}

// Limit returns the starting XV cap for p, zero for unknown slots.
func (p Position) Limit() int {
	return PositionLimits[p]
}

func (p Position) Valid() bool {
	_, ok := PositionLimits[p]
	return ok
}

func (c Country) Valid() bool {
	for _, known := range Countries {
		if c == known {
			return true
		}
	}
	return false
}

// ParsePosition accepts any casing of a position value.
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown position %q", s)
	}
	return p, nil
}

// ParseCountry accepts any casing of a country name.
func ParseCountry(s string) (Country, error) {
	trimmed := strings.TrimSpace(s)
	for _, c := range Countries {
		if strings.EqualFold(string(c), trimmed) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown country %q", s)
}
