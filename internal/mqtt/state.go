package mqtt

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Connection states
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	// StateConnected means connected and subscribed to the topic.
	StateConnected = "connected"
)

// States lists every connection state, in lifecycle order.
var States = []string{StateDisconnected, StateConnecting, StateConnected}

const (
	eventConnect    = "connect"
	eventSubscribed = "subscribed"
	eventFail       = "fail"
	eventDisconnect = "disconnect"
)

func newStateMachine(onEnter func(state string)) *fsm.FSM {
	return fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateDisconnected}, Dst: StateConnecting},
			{Name: eventSubscribed, Src: []string{StateConnecting}, Dst: StateConnected},
			{Name: eventFail, Src: []string{StateConnecting}, Dst: StateDisconnected},
			{Name: eventDisconnect, Src: []string{StateConnecting, StateConnected}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onEnter != nil {
					onEnter(e.Dst)
				}
			},
		},
	)
}

// isIgnorableTransition reports errors that only mean the machine was
// already past the requested event.
func isIgnorableTransition(err error) bool {
	var invalid fsm.InvalidEventError
	var noTransition fsm.NoTransitionError
	return errors.As(err, &invalid) || errors.As(err, &noTransition)
}
