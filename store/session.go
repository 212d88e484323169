package store

import "errors"

// ErrSessionCorrupted is returned by drivers when persisted session state
// cannot be parsed. The engine resets such sessions instead of failing the turn.
var ErrSessionCorrupted = errors.New("session state corrupted")

// ConversationPhase is the phase of a conversation session.
type ConversationPhase string

const (
	PhaseGreeting        ConversationPhase = "GREETING"
	PhaseGatheringInfo   ConversationPhase = "GATHERING_INFO"
	PhaseConfirming      ConversationPhase = "CONFIRMING"
	PhaseRequestCreated  ConversationPhase = "REQUEST_CREATED"
	PhaseManagingRequest ConversationPhase = "MANAGING_REQUEST"
	PhaseEscalated       ConversationPhase = "ESCALATED"
)

// IsValid reports whether the phase is one of the known phases.
func (p ConversationPhase) IsValid() bool {
	switch p {
	case PhaseGreeting, PhaseGatheringInfo, PhaseConfirming,
		PhaseRequestCreated, PhaseManagingRequest, PhaseEscalated:
		return true
	}
	return false
}

// Slot names used across extraction, merging and clarification.
const (
	SlotServiceCategory = "service_category"
	SlotLocation        = "location"
	SlotDescription     = "description"
	SlotUrgency         = "urgency"
)

// Slots is the accumulated structured information for a session.
// A request is complete when category, location and description are all set;
// urgency is optional.
type Slots struct {
	ServiceCategory string `json:"service_category,omitempty"`
	Location        string `json:"location,omitempty"`
	Description     string `json:"description,omitempty"`
	Urgency         string `json:"urgency,omitempty"`
}

// Complete reports whether the three required slots are filled.
func (s Slots) Complete() bool {
	return s.ServiceCategory != "" && s.Location != "" && s.Description != ""
}

// Missing returns the names of unfilled required slots, in the order
// the engine asks for them.
func (s Slots) Missing() []string {
	var missing []string
	if s.ServiceCategory == "" {
		missing = append(missing, SlotServiceCategory)
	}
	if s.Location == "" {
		missing = append(missing, SlotLocation)
	}
	if s.Description == "" {
		missing = append(missing, SlotDescription)
	}
	return missing
}

// FilledCount returns the number of filled fields, urgency included.
func (s Slots) FilledCount() int {
	count := 0
	for _, v := range []string{s.ServiceCategory, s.Location, s.Description, s.Urgency} {
		if v != "" {
			count++
		}
	}
	return count
}

// Turn is a single exchange kept in the session history window.
type Turn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// Session is the durable per-conversation state, keyed by the stable user key.
// Sessions are never hard-deleted; after the inactivity window they are
// logically reset back to GREETING by the cleanup runner.
type Session struct {
	ID        int32
	UserKey   string
	Phase     ConversationPhase
	Slots     Slots
	History   []Turn
	TurnCount int
	// PendingSlot is the slot the engine is currently asking for;
	// UnclearStreak counts consecutive unclear extractions and is capped by
	// the clarification limit before escalation.
	PendingSlot    string
	UnclearStreak  int
	LastActivityTs int64
	CreatedTs      int64
	UpdatedTs      int64
}

// Reset clears the conversational state while keeping identity and counters
// that survive a logical expiry.
func (s *Session) Reset() {
	s.Phase = PhaseGreeting
	s.Slots = Slots{}
	s.History = nil
	s.PendingSlot = ""
	s.UnclearStreak = 0
}

type FindSession struct {
	ID      *int32
	UserKey *string
	// LastActivityBefore selects sessions idle since the given unix timestamp.
	LastActivityBefore *int64
	// ExcludePhase filters out sessions already in the given phase.
	ExcludePhase *ConversationPhase
	Limit        *int
}

type DeleteSession struct {
	ID int32
}
