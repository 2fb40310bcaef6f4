// Package events defines the reportable outcomes of motion tracking
// and the feeds they are published on.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/motiond/types/fix"
)

type Kind int

const (
	MotionStarted Kind = iota + 1
	MotionProgress
	MotionStopped
	FixRejected
)

var kindNames = map[Kind]string{
	MotionStarted:  "MotionStarted",
	MotionProgress: "MotionProgress",
	MotionStopped:  "MotionStopped",
	FixRejected:    "FixRejected",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kk, s := range kindNames {
		if s == string(b) {
			*k = kk
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", string(b))
}

// Kinds lists every event kind in declaration order.
func Kinds() []Kind {
	return []Kind{MotionStarted, MotionProgress, MotionStopped, FixRejected}
}

// RejectReason explains a FixRejected event. The zero value is used by every other kind.
type RejectReason int

const (
	NoReason RejectReason = iota
	OutOfTimeWindow
	InsufficientDistance
	Malformed
)

var reasonNames = map[RejectReason]string{
	NoReason:             "",
	OutOfTimeWindow:      "OutOfTimeWindow",
	InsufficientDistance: "InsufficientDistance",
	Malformed:            "Malformed",
}

func (r RejectReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RejectReason(%d)", int(r))
}

func (r RejectReason) MarshalText() ([]byte, error) {
	if _, ok := reasonNames[r]; !ok {
		return nil, fmt.Errorf("unknown reject reason %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *RejectReason) UnmarshalText(b []byte) error {
	for rr, s := range reasonNames {
		if s == string(b) {
			*r = rr
			return nil
		}
	}
	return fmt.Errorf("unknown reject reason %q", string(b))
}

// Reasons lists the reject reasons a FixRejected event may carry.
func Reasons() []RejectReason {
	return []RejectReason{OutOfTimeWindow, InsufficientDistance, Malformed}
}

// Event is a single observable outcome of processing a fix or a timer expiry.
// Fix is nil only for a MotionStopped emitted before any fix was received.
// DistanceMeters is the distance from the previous accepted fix, when there
// was one, for MotionStarted, MotionProgress and InsufficientDistance rejections.
type Event struct {
	Kind           Kind         `json:"kind"`
	Fix            *fix.Fix     `json:"fix,omitempty"`
	DistanceMeters float64      `json:"distance,omitempty"`
	Reason         RejectReason `json:"reason,omitempty"`
	At             time.Time    `json:"at"`
}

func (e Event) String() string {
	s := e.Kind.String()
	if e.Reason != NoReason {
		s += "(" + e.Reason.String() + ")"
	}
	if e.Fix != nil {
		s += " " + e.Fix.String()
	}
	if e.DistanceMeters > 0 {
		s += fmt.Sprintf(" d=%.1fm", e.DistanceMeters)
	}
	return s
}

// Started returns a MotionStarted event for f.
func Started(f fix.Fix, meters float64, at time.Time) Event {
	return Event{Kind: MotionStarted, Fix: &f, DistanceMeters: meters, At: at}
}

// Progress returns a MotionProgress event for f.
func Progress(f fix.Fix, meters float64, at time.Time) Event {
	return Event{Kind: MotionProgress, Fix: &f, DistanceMeters: meters, At: at}
}

// Stopped returns a MotionStopped event for the last received fix, which may be nil.
func Stopped(last *fix.Fix, at time.Time) Event {
	e := Event{Kind: MotionStopped, At: at}
	if last != nil {
		cp := *last
		e.Fix = &cp
	}
	return e
}

// Rejected returns a FixRejected event for f.
func Rejected(f fix.Fix, reason RejectReason, at time.Time) Event {
	return Event{Kind: FixRejected, Fix: &f, Reason: reason, At: at}
}

func (e Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Event) UnmarshalBinary(b []byte) error {
	return json.Unmarshal(b, e)
}

// Feed carries reportable events.
type Feed = event.FeedOf[Event]

// FixFeed carries fixes as they were received, before any filtering.
type FixFeed = event.FeedOf[fix.Fix]
