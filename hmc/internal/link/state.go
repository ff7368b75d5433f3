// Package link models the serialized links between a host and a memory cube:
// the wire itself, the master that frames and retransmits packets, and the
// slave that checks them and returns flow-control credit.
package link

import (
	"fmt"
)

// State is the retry or power state of a link master or slave.
type State int

// Link states.
const (
	Active State = iota
	StartRetry
	LinkRetry
	Wait
	Confirm
	TransitionToSleep
	Sleep
	TransitionToDown
	Down
	TransitionToRetrain
	Retrain1
	Retrain2
)

var stateNames = [...]string{
	"ACTIVE",
	"START_RETRY",
	"LINK_RETRY",
	"WAIT",
	"CONFIRM",
	"TRANSITION_TO_SLEEP",
	"SLEEP",
	"TRANSITION_TO_DOWN",
	"DOWN",
	"TRANSITION_TO_RETRAIN",
	"RETRAIN1",
	"RETRAIN2",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// Asleep tells if the link is in, or on its way into, a low power state.
func (s State) Asleep() bool {
	switch s {
	case Wait, Confirm, TransitionToSleep, Sleep, TransitionToDown, Down:
		return true
	}

	return false
}

// Retraining tells if the link is on its way back from a low power state.
func (s State) Retraining() bool {
	switch s {
	case TransitionToRetrain, Retrain1, Retrain2:
		return true
	}

	return false
}

// Side tells which end of a link a master or slave sits on.
type Side int

// Link sides.
const (
	HostSide Side = iota
	DeviceSide
)

func (s Side) String() string {
	if s == HostSide {
		return "host"
	}

	return "device"
}
