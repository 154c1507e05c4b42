package main

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// activationKeymap turns key presses into activation gestures.
type activationKeymap struct {
	activate   uint16
	deactivate uint16
}

func newActivationKeymap(cfg ActivationKeysConfig) activationKeymap {
	return activationKeymap{
		activate:   uint16(cfg.ActivateKey),
		deactivate: uint16(cfg.DeactivateKey),
	}
}

// gestureFor maps one input event to a gesture. Releases and auto-repeat are ignored.
func (m activationKeymap) gestureFor(ev inputEvent) (Gesture, bool) {
	if ev.Type != EV_KEY || ev.Value != evValuePress {
		return "", false
	}
	switch ev.Code {
	case m.activate:
		return GesturePinch, true
	case m.deactivate:
		return GestureCShape, true
	default:
		return "", false
	}
}
