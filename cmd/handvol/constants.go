package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_PLAYCD  = 200
	KEY_PAUSECD = 201

	maxKeyCode = 0xFFFF // input_event.code is a __u16
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Control core defaults
const (
	defaultTrajectorySize = 10 // Samples required before a step decision
	defaultStepSize       = 10 // Volume change per committed step

	defaultLenMin = 20.0  // Fingertip distance mapped to vol_min
	defaultLenMax = 150.0 // Fingertip distance mapped to vol_max

	defaultThresholdLow  = 30.0  // Step mode: below this is the "down" zone
	defaultThresholdHigh = 130.0 // Step mode: above this is the "up" zone

	volumeFloor   = 0   // Absolute lower bound of any volume
	volumeCeiling = 100 // Absolute upper bound of any volume

	// Landmark indices of the two tracked fingertips (thumb tip, index tip).
	defaultJointA = 4
	defaultJointB = 8

	// Continuous mode gate: finger_states[gateFinger] > gateAbove.
	defaultGateFinger = 4
	defaultGateAbove  = 2
)

// Transport defaults
const (
	defaultReadTimeoutMS = 500 // Default timeout for reading websocket responses (ms)
	defaultEventQueue    = 64  // Buffered events channel between sources and the daemon

	defaultCamillaMinDB = -65.0
	defaultCamillaMaxDB = 0.0

	defaultMIDIController = 7 // CC 7 is channel volume

	defaultIPCSocket = "/tmp/handvol.sock"
	defaultHTTPPort  = 3011
)
