package main

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
)

// Gesture is a discrete label reported by the hand detector.
type Gesture string

const (
	GestureNone   Gesture = "none"
	GesturePinch  Gesture = "pinch"
	GestureCShape Gesture = "c_shape"
	GestureOther  Gesture = "other"
)

var gestureFolder = cases.Fold()

// ParseGesture normalizes a detector label.
//
// Detectors disagree on spelling ("C shape", "c-shape", "C_SHAPE"), so the label
// is case folded and separators are dropped before matching. Unknown labels map
// to GestureOther, an empty label to GestureNone.
func ParseGesture(label string) Gesture {
	key := gestureFolder.String(strings.TrimSpace(label))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)

	switch key {
	case "", "none", "nohand":
		return GestureNone
	case "pinch":
		return GesturePinch
	case "cshape", "c":
		return GestureCShape
	default:
		return GestureOther
	}
}

// UnmarshalJSON accepts any detector spelling.
func (g *Gesture) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*g = ParseGesture(s)
	return nil
}

// Activation is the gate that decides whether any controller runs.
type Activation bool

const (
	Deactivated Activation = false
	Activated   Activation = true
)

func (a Activation) String() string {
	if a {
		return "activated"
	}
	return "deactivated"
}

// NextActivation is the activation transition function.
// Pinch activates, C-shape deactivates, every other label leaves the state as is.
func NextActivation(cur Activation, g Gesture) Activation {
	switch g {
	case GesturePinch:
		return Activated
	case GestureCShape:
		return Deactivated
	default:
		return cur
	}
}
