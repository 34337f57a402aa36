package model

import (
	"regexp"
	"unicode/utf8"
)

// Names double as record keys on disk, so both characters and encoded bytes
// are bounded. MaxSubjectNameBytes leaves room for the ".json.tmp.<n>"
// suffix within a 255-byte file name.
const (
	MaxSubjectNameLength = 64
	MaxSubjectNameBytes  = 200
)

var subjectNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)

// ValidSubjectName reports whether name is usable as a subject key.
// Only letters, digits, '_' and '-' are accepted so a name can never
// escape the storage root or collide with temp files.
func ValidSubjectName(name string) bool {
	if name == "" || len(name) > MaxSubjectNameBytes || utf8.RuneCountInString(name) > MaxSubjectNameLength {
		return false
	}
	return subjectNamePattern.MatchString(name)
}

// Slot is one numbered task within a subject. An empty Claimant means free.
type Slot struct {
	Index    int    `json:"task"`
	Claimant string `json:"user,omitempty"`
}

// Free reports whether nobody has booked the slot.
func (s Slot) Free() bool {
	return s.Claimant == ""
}

// Subject is a named collection of bookable task slots.
type Subject struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Slots    []Slot `json:"slots"`
}

// NewSubject returns a subject with capacity free slots numbered from 1.
func NewSubject(name string, capacity int) *Subject {
	slots := make([]Slot, capacity)
	for i := range slots {
		slots[i] = Slot{Index: i + 1}
	}
	return &Subject{Name: name, Capacity: capacity, Slots: slots}
}

// FreeSlots returns the unbooked slots in index order.
func (s *Subject) FreeSlots() []Slot {
	free := make([]Slot, 0, len(s.Slots))
	for _, slot := range s.Slots {
		if slot.Free() {
			free = append(free, slot)
		}
	}
	return free
}

// FreeCount returns the number of unbooked slots.
func (s *Subject) FreeCount() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Free() {
			n++
		}
	}
	return n
}

// SlotOf returns the index of the slot held by claimant, if any.
func (s *Subject) SlotOf(claimant string) (int, bool) {
	for _, slot := range s.Slots {
		if slot.Claimant == claimant && claimant != "" {
			return slot.Index, true
		}
	}
	return 0, false
}

// Summary condenses the subject for catalog listings.
func (s *Subject) Summary() SubjectSummary {
	return SubjectSummary{Name: s.Name, Capacity: s.Capacity, Free: s.FreeCount()}
}

// SubjectSummary is one catalog entry.
type SubjectSummary struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Free     int    `json:"free"`
}

// CreateSubjectRequest is the payload for creating a subject.
type CreateSubjectRequest struct {
	Name     string `json:"name" binding:"required,subject"`
	Capacity int    `json:"capacity" binding:"required,min=1"`
}

// BookSlotRequest is the payload for booking a task in a subject.
type BookSlotRequest struct {
	Slot     int    `json:"slot" binding:"required,min=1"`
	Claimant string `json:"claimant" binding:"required,max=128"`
}
