// internal/flow/slots.go
package flow

import (
	"strconv"
	"strings"

	"convocore/internal/intent"
	"convocore/internal/models"
)

// SlotValidationError tells the user why an answer was rejected, in terms
// they can act on.
type SlotValidationError struct {
	Slot    string `json:"slot"`
	Message string `json:"message"`
}

// ValidateSlot checks a raw user answer against a slot declaration and
// returns the canonical value to store. Matching is accent and case
// insensitive, same as intent scoring.
func ValidateSlot(slot models.Slot, answer string) (string, *SlotValidationError) {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return "", &SlotValidationError{Slot: slot.Name, Message: "empty answer"}
	}

	switch slot.Type {
	case models.SlotNumber:
		normalized := intent.Normalize(trimmed)
		for _, token := range intent.Tokenize(normalized) {
			if _, err := strconv.ParseFloat(token, 64); err == nil {
				return token, nil
			}
		}
		return "", &SlotValidationError{Slot: slot.Name, Message: "expected a number"}

	case models.SlotOption:
		normalized := intent.Normalize(trimmed)
		for _, option := range slot.Options {
			if normalized == intent.Normalize(option) {
				return option, nil
			}
		}
		// Accept an option mentioned inside a longer answer.
		for _, option := range slot.Options {
			candidate := intent.Normalize(option)
			if candidate != "" && strings.Contains(normalized, candidate) {
				return option, nil
			}
		}
		return "", &SlotValidationError{Slot: slot.Name, Message: "expected one of: " + strings.Join(slot.Options, ", ")}

	default:
		return trimmed, nil
	}
}
