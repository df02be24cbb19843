// Copyright 2019-2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package runtime

// EventKind tags the variant held by an Event (spec §4.H: what
// happened during a run, surfaced to the host for logging/auditing
// independently of the committed action list).
type EventKind uint8

const (
	EvNone EventKind = iota
	EvActionPending // an action was queued, subject to later cancellation
	EvActionFired   // an action survived to Commit and was executed
	EvActionDropped // an action was cancelled by a later one (spec §4.H dedup)
	EvImplicitKeep  // Commit's implicit-keep outcome: applied, or suppressed by discard
	EvScriptError   // `error "..."` ran, or a runtime fault aborted the script
	EvLoopLimit     // the instruction budget set by Context.Prepare was hit
	EvBad
)

var eventKindName = [EvBad + 1]string{
	EvNone:          "none",
	EvActionPending: "action-pending",
	EvActionFired:   "action-fired",
	EvActionDropped: "action-dropped",
	EvImplicitKeep:  "implicit-keep",
	EvScriptError:   "script-error",
	EvLoopLimit:     "loop-limit",
	EvBad:           "invalid",
}

func (k EventKind) String() string {
	if int(k) >= len(eventKindName) {
		k = EvBad
	}
	return eventKindName[k]
}

// Event records one point of interest during Run/Commit. The
// interpreter appends to Context.Events rather than calling back into
// the host mid-run, keeping Run itself synchronous and side-effect
// free until Commit (spec §4.H).
type Event struct {
	Kind   EventKind
	Action string // action name, when Kind is one of the Action* kinds
	Detail string
	PC     int
}

// EventFlags is a bitmask over EventKind, used by callers that only
// care whether a kind of event occurred at all during a run (e.g.
// "did anything get dropped by dedup?") without walking Context.Events.
type EventFlags uint32

// Set records e, returning whether it was already set.
func (f *EventFlags) Set(e EventKind) bool {
	m := uint32(1) << uint32(e)
	prev := uint32(*f)&m != 0
	*f |= EventFlags(m)
	return prev
}

// Clear removes e, returning whether it had been set.
func (f *EventFlags) Clear(e EventKind) bool {
	m := uint32(1) << uint32(e)
	prev := uint32(*f)&m != 0
	*f &^= EventFlags(m)
	return prev
}

// Test reports whether any of events is set.
func (f EventFlags) Test(events ...EventKind) bool {
	for _, e := range events {
		if uint32(f)&(uint32(1)<<uint32(e)) != 0 {
			return true
		}
	}
	return false
}

func (f EventFlags) String() string {
	var s string
	for e := EvNone + 1; e < EvBad; e++ {
		if f.Test(e) {
			if s != "" {
				s += "|"
			}
			s += e.String()
		}
	}
	if s == "" {
		return eventKindName[EvNone]
	}
	return s
}
