package main

import (
	"fmt"
	"time"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdSetVolume asks the volume sink to apply Volume (0-100).
type CmdSetVolume struct {
	Volume int
}

func (CmdSetVolume) commandMarker() {}
func (c CmdSetVolume) String() string {
	return fmt.Sprintf("CmdSetVolume(volume=%d)", c.Volume)
}

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// ==============================
// Broadcasts (state fan-out)
// ==============================

// StateBroadcast is a reducer-emitted notification for state subscribers.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastVolumeChanged reports a new session volume.
type BroadcastVolumeChanged struct {
	Volume int
	At     time.Time
}

func (BroadcastVolumeChanged) broadcastMarker() {}

// BroadcastActivationChanged reports an activation transition.
type BroadcastActivationChanged struct {
	Activated bool
	At        time.Time
}

func (BroadcastActivationChanged) broadcastMarker() {}

// BroadcastStepCommitted reports a confirmed step, including clamped ones.
type BroadcastStepCommitted struct {
	Direction Direction
	Volume    int
	Changed   bool
	At        time.Time
}

func (BroadcastStepCommitted) broadcastMarker() {}

// BroadcastZoneChanged reports that the sample moved to another threshold zone.
type BroadcastZoneChanged struct {
	Zone     Zone
	Distance float64
	At       time.Time
}

func (BroadcastZoneChanged) broadcastMarker() {}

// BroadcastSinkFailed reports a volume the sink did not accept.
type BroadcastSinkFailed struct {
	Volume int
	Error  string
	At     time.Time
}

func (BroadcastSinkFailed) broadcastMarker() {}
