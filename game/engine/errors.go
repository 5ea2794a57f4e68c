package engine

import "fmt"

// ConstructionError reports a layout the universe cannot be built from
type ConstructionError struct {
	Reason string
}

func (e *ConstructionError) Error() string {
	return "universe construction: " + e.Reason
}

func constructionErrorf(format string, args ...interface{}) error {
	return &ConstructionError{Reason: fmt.Sprintf(format, args...)}
}

// IllegalMoveError reports a move the rules reject. The universe is left unchanged.
type IllegalMoveError struct {
	Bot       int
	Direction Direction
	From      Position
	Reason    string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %q for bot %d at %v: %s", e.Direction, e.Bot, e.From, e.Reason)
}
