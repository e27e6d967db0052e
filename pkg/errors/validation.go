package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// MaxIDLength bounds part numbers and relationship ids.
const MaxIDLength = 256

// ValidatePartNumber validates a part number used as a graph node id.
// field names the input in the message (e.g. "parent_part_number").
//
// The rules are intentionally conservative:
//   - No empty or whitespace-only ids
//   - No control characters
//   - Maximum length of 256 characters
func ValidatePartNumber(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeValidation, "%s is required", field)
	}
	if len(id) > MaxIDLength {
		return New(ErrCodeValidation, "%s too long (max %d characters)", field, MaxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeValidation, "%s contains invalid control characters", field)
		}
	}
	return nil
}

// ValidateQty validates a relationship quantity.
func ValidateQty(qty float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return New(ErrCodeValidation, "qty must be a finite number")
	}
	if qty <= 0 {
		return New(ErrCodeValidation, "qty must be > 0")
	}
	return nil
}

// ValidateAttributeKey validates an attribute key.
func ValidateAttributeKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return New(ErrCodeValidation, "attribute key cannot be empty")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeValidation, "attribute key %q contains invalid control characters", key)
		}
	}
	return nil
}

// snapshotIDRegex matches ids produced by the snapshot store.
var snapshotIDRegex = regexp.MustCompile(`^snap_[0-9]{8}_[0-9]{6}_[0-9a-f]{8}$`)

// ValidateSnapshotID validates a snapshot id before it is used as a file
// name or database key.
func ValidateSnapshotID(id string) error {
	if id == "" {
		return New(ErrCodeValidation, "snapshot_id is required")
	}
	if !snapshotIDRegex.MatchString(id) {
		return New(ErrCodeValidation, "invalid snapshot id: %q", id)
	}
	return nil
}

// CheckSnapshotLookup reports NOT_FOUND for ids that cannot name a stored
// snapshot, keeping them out of file paths and database keys.
func CheckSnapshotLookup(id string) error {
	if !snapshotIDRegex.MatchString(id) {
		return New(ErrCodeNotFound, "Snapshot '%s' not found", id)
	}
	return nil
}
