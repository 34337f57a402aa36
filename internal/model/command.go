package model

import "time"

// Command is a parsed chat command handed over by a messaging front end.
type Command struct {
	Name     string   `json:"command" binding:"required,max=64"`
	Args     []string `json:"args" binding:"max=8,dive,max=128"`
	CallerID string   `json:"caller_id" binding:"required,max=128"`
}

// CommandResult is the uniform reply delivered back to the conversation.
// Kind is empty on success.
type CommandResult struct {
	OK   bool   `json:"ok"`
	Text string `json:"text"`
	Kind string `json:"kind,omitempty"`
}

// EventType identifies a booking event.
type EventType string

const (
	EventSubjectCreated EventType = "subject.created"
	EventSubjectDeleted EventType = "subject.deleted"
	EventSlotBooked     EventType = "slot.booked"
)

// BookingEvent is published after a mutation has been committed.
type BookingEvent struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Subject  string    `json:"subject"`
	Capacity int       `json:"capacity,omitempty"`
	Slot     int       `json:"slot,omitempty"`
	Claimant string    `json:"claimant,omitempty"`
	At       time.Time `json:"at"`
}
