package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// GameCodeLength is the length of generated game codes
	GameCodeLength = 6
	// GameCodeAlphabet is the characters used in game codes (avoid confusing chars)
	GameCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	MaxNameLength = 32
	MinPINLength  = 4
	MaxPINLength  = 8
	MaxTaskLength = 280
)

// ValidateGameCode checks a normalized game code
func ValidateGameCode(code GameCode) error {
	if len(code) != GameCodeLength {
		return ErrInvalidGameCode
	}
	for _, r := range string(code) {
		if !strings.ContainsRune(GameCodeAlphabet, r) {
			return ErrInvalidGameCode
		}
	}
	return nil
}

// ValidateName checks a player display name
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxNameLength || strings.TrimSpace(name) != name {
		return ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrInvalidName
		}
	}
	return nil
}

// ValidatePIN checks that a PIN is 4-8 ASCII digits
func ValidatePIN(pin string) error {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return ErrInvalidPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPIN
		}
	}
	return nil
}

// ValidateTask checks a single task description
func ValidateTask(task string) error {
	if task == "" || utf8.RuneCountInString(task) > MaxTaskLength {
		return ErrInvalidTask
	}
	return nil
}
