package internal

import (
	"fmt"
	"strings"
)

// ValidatePlayerName checks the join/create name rules: 3-15 characters,
// letters, digits and spaces only, no leading space. Returns a
// ValidationError naming the violated constraint.
func ValidatePlayerName(name string) error {
	if len(name) < MinNameLength {
		return &ValidationError{
			Field:  "player_name",
			Reason: fmt.Sprintf("must be at least %d characters", MinNameLength),
		}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{
			Field:  "player_name",
			Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength),
		}
	}
	if strings.HasPrefix(name, " ") {
		return &ValidationError{
			Field:  "player_name",
			Reason: "must not start with a space",
		}
	}
	for _, r := range name {
		if !isNameRune(r) {
			return &ValidationError{
				Field:  "player_name",
				Reason: "only letters, digits and spaces are allowed",
			}
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == ' ':
		return true
	}
	return false
}

// ValidateGameCode checks the 4-character uppercase room code shape.
func ValidateGameCode(code string) error {
	if len(code) != GameCodeLength {
		return &ValidationError{
			Field:  "game_code",
			Reason: fmt.Sprintf("must be exactly %d characters", GameCodeLength),
		}
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return &ValidationError{
				Field:  "game_code",
				Reason: "must contain only uppercase letters",
			}
		}
	}
	return nil
}
