package domain

// SessionEvent triggers a TrainingSession status change.
type SessionEvent string

const (
	SessionEventJoin     SessionEvent = "join"
	SessionEventComplete SessionEvent = "complete" // final round completed
	SessionEventCancel   SessionEvent = "cancel"
)

type sessionTransition struct {
	From  SessionStatus
	Event SessionEvent
	To    SessionStatus
}

var sessionTransitions = []sessionTransition{
	{From: SessionWaiting, Event: SessionEventJoin, To: SessionActive},
	{From: SessionActive, Event: SessionEventComplete, To: SessionCompleted},
	{From: SessionWaiting, Event: SessionEventCancel, To: SessionCancelled},
	{From: SessionActive, Event: SessionEventCancel, To: SessionCancelled},
}

// NextSessionStatus returns the status reached from `from` on ev, if the edge exists.
func NextSessionStatus(from SessionStatus, ev SessionEvent) (SessionStatus, bool) {
	for _, tr := range sessionTransitions {
		if tr.From == from && tr.Event == ev {
			return tr.To, true
		}
	}
	return "", false
}

// SessionStatusesAllowing lists every status from which ev is legal.
func SessionStatusesAllowing(ev SessionEvent) []SessionStatus {
	var out []SessionStatus
	for _, tr := range sessionTransitions {
		if tr.Event == ev {
			out = append(out, tr.From)
		}
	}
	return out
}

// RoundEvent is an operation on a SessionRound.
type RoundEvent string

const (
	RoundEventEdit     RoundEvent = "edit"   // replace exercises of a draft
	RoundEventRevise   RoundEvent = "revise" // replace exercises of a released round
	RoundEventRelease  RoundEvent = "release"
	RoundEventDelete   RoundEvent = "delete"
	RoundEventComplete RoundEvent = "complete"
)

type roundTransition struct {
	From  RoundStatus
	Event RoundEvent
	To    RoundStatus
}

// Deleting a draft has no target status; the round is gone.
var roundTransitions = []roundTransition{
	{From: RoundDraft, Event: RoundEventEdit, To: RoundDraft},
	{From: RoundReleased, Event: RoundEventRevise, To: RoundReleased},
	{From: RoundDraft, Event: RoundEventRelease, To: RoundReleased},
	{From: RoundDraft, Event: RoundEventDelete},
	{From: RoundReleased, Event: RoundEventComplete, To: RoundCompleted},
}

// RoundAllows reports whether ev may be applied to a round in status from.
func RoundAllows(from RoundStatus, ev RoundEvent) bool {
	for _, tr := range roundTransitions {
		if tr.From == from && tr.Event == ev {
			return true
		}
	}
	return false
}

// EditEventFor picks the event that replaces a round's exercises in its current status.
func EditEventFor(status RoundStatus) RoundEvent {
	if status == RoundReleased {
		return RoundEventRevise
	}
	return RoundEventEdit
}

// EditableRoundStatuses lists the statuses whose exercise list may be replaced.
func EditableRoundStatuses() []RoundStatus {
	var out []RoundStatus
	for _, tr := range roundTransitions {
		if tr.Event == RoundEventEdit || tr.Event == RoundEventRevise {
			out = append(out, tr.From)
		}
	}
	return out
}
