// Package realtime carries per-session invalidation events between the API
// and subscribed clients. Events hold identifiers only; receivers re-fetch state.
package realtime

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType is the wire name of an event.
type EventType string

const (
	EventRoundReleased    EventType = "round-released"
	EventRoundUpdated     EventType = "round-updated"
	EventRoundDeleted     EventType = "round-deleted"
	EventRoundCompleted   EventType = "round-completed"
	EventSessionCompleted EventType = "session-completed"
	EventSessionCancelled EventType = "session-cancelled"
)

// Party identifies which side of a session acted.
type Party string

const (
	PartyAthlete Party = "ATHLETE"
	PartyTrainer Party = "TRAINER"
)

type Payload struct {
	RoundID     string `json:"roundId,omitempty"`
	RoundNumber int    `json:"roundNumber,omitempty"`
	CancelledBy Party  `json:"cancelledBy,omitempty"`
}

type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Payload   Payload   `json:"payload"`
}

// ChannelForSession is the channel key every event of a session is published on.
func ChannelForSession(sessionID primitive.ObjectID) string {
	return "session-" + sessionID.Hex()
}

func roundEvent(t EventType, sessionID, roundID primitive.ObjectID, roundNumber int) Event {
	return Event{
		Type:      t,
		SessionID: sessionID.Hex(),
		Payload:   Payload{RoundID: roundID.Hex(), RoundNumber: roundNumber},
	}
}

func RoundReleased(sessionID, roundID primitive.ObjectID, roundNumber int) Event {
	return roundEvent(EventRoundReleased, sessionID, roundID, roundNumber)
}

func RoundUpdated(sessionID, roundID primitive.ObjectID, roundNumber int) Event {
	return roundEvent(EventRoundUpdated, sessionID, roundID, roundNumber)
}

func RoundDeleted(sessionID, roundID primitive.ObjectID, roundNumber int) Event {
	return roundEvent(EventRoundDeleted, sessionID, roundID, roundNumber)
}

func RoundCompleted(sessionID, roundID primitive.ObjectID, roundNumber int) Event {
	return roundEvent(EventRoundCompleted, sessionID, roundID, roundNumber)
}

func SessionCompleted(sessionID primitive.ObjectID) Event {
	return Event{Type: EventSessionCompleted, SessionID: sessionID.Hex()}
}

func SessionCancelled(sessionID primitive.ObjectID, by Party) Event {
	return Event{
		Type:      EventSessionCancelled,
		SessionID: sessionID.Hex(),
		Payload:   Payload{CancelledBy: by},
	}
}
