package agent

import (
	"errors"
	"fmt"
)

// RoutingError marks a fatal failure in a routing-critical stage (resolver,
// rephraser, decision). The turn terminates with an error event and no
// partial answer is attempted.
type RoutingError struct {
	Stage string
	Err   error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing stage %s: %v", e.Stage, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// IsRoutingError reports whether err is fatal for the turn.
func IsRoutingError(err error) bool {
	var re *RoutingError
	return errors.As(err, &re)
}

// apologyMessage substitutes for a failed or refused generation. A chat turn
// must always terminate with some message.
const apologyMessage = "I'm sorry, but I can't provide an answer to that right now. Please try rephrasing your question or ask something else."

// errLastMessageNotUser rejects histories that don't end with a user turn.
var errLastMessageNotUser = errors.New("agent: last message must be a user message")

// errNoMessages rejects empty histories.
var errNoMessages = errors.New("agent: at least one message is required")
