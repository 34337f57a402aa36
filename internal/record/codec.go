// Package record encodes a subject's slot map to and from its durable form.
//
// A record is a JSON object keyed by slot index, written in ascending index
// order, with null marking a free slot:
//
//	{"1":null,"2":"u1","3":null}
//
// The layout matches the files written by the earlier chat bot, so existing
// data directories load unchanged (including numeric claimant IDs).
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/stemsi/taskbook/internal/model"
)

// ErrMalformed is returned for bytes that do not form a valid record.
var ErrMalformed = errors.New("malformed record")

// Encode serialises slots. Slots must be numbered 1..len(slots) in order.
func Encode(slots []model.Slot) ([]byte, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: no slots", ErrMalformed)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, slot := range slots {
		if slot.Index != i+1 {
			return nil, fmt.Errorf("%w: slot %d at position %d", ErrMalformed, slot.Index, i+1)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(slot.Index))
		buf.WriteString(`":`)
		if slot.Free() {
			buf.WriteString("null")
			continue
		}
		// json.Marshal would coerce invalid bytes to U+FFFD and merge claimants.
		if !utf8.ValidString(slot.Claimant) {
			return nil, fmt.Errorf("%w: claimant of slot %d is not valid UTF-8", ErrMalformed, slot.Index)
		}
		claimant, err := json.Marshal(slot.Claimant)
		if err != nil {
			return nil, fmt.Errorf("encode claimant of slot %d: %w", slot.Index, err)
		}
		buf.Write(claimant)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses a record and checks its invariants: indices are exactly
// 1..n and no claimant holds more than one slot.
func Decode(data []byte) ([]model.Slot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing content", ErrMalformed)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no slots", ErrMalformed)
	}

	slots := make([]model.Slot, len(raw))
	seen := make(map[string]int, len(raw))
	for key, value := range raw {
		index, err := strconv.Atoi(key)
		if err != nil || index < 1 || index > len(raw) || key != strconv.Itoa(index) {
			return nil, fmt.Errorf("%w: unexpected slot key %q", ErrMalformed, key)
		}

		claimant, err := claimantOf(value)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", ErrMalformed, index, err)
		}
		if claimant != "" {
			if prev, dup := seen[claimant]; dup {
				return nil, fmt.Errorf("%w: claimant %q holds slots %d and %d", ErrMalformed, claimant, prev, index)
			}
			seen[claimant] = index
		}
		slots[index-1] = model.Slot{Index: index, Claimant: claimant}
	}
	return slots, nil
}

func claimantOf(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("claimant has type %T", value)
	}
}
