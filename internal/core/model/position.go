package model

import "fmt"

// Position is the corner the floating countdown is pinned to.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// DefaultPosition is used when no preference has been stored.
const DefaultPosition = PositionBottomRight

// Positions lists every corner in display order.
var Positions = []Position{PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight}

// ParsePosition validates a stored or user supplied corner name.
func ParsePosition(value string) (Position, error) {
	for _, position := range Positions {
		if string(position) == value {
			return position, nil
		}
	}
	return DefaultPosition, fmt.Errorf("unknown timer position %q", value)
}

// Label returns the human readable corner name.
func (position Position) Label() string {
	switch position {
	case PositionTopLeft:
		return "Top Left"
	case PositionTopRight:
		return "Top Right"
	case PositionBottomLeft:
		return "Bottom Left"
	default:
		return "Bottom Right"
	}
}

// Top reports whether the corner is on the top edge.
func (position Position) Top() bool {
	return position == PositionTopLeft || position == PositionTopRight
}

// Left reports whether the corner is on the left edge.
func (position Position) Left() bool {
	return position == PositionTopLeft || position == PositionBottomLeft
}
