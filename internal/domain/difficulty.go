package domain

import (
	"fmt"
	"strings"
)

// Difficulty is the closed classification a trail belongs to. The string
// value is the capitalized-first-letter display form stored in the
// registries.
type Difficulty string

const (
	DifficultyVeryEasy     Difficulty = "Very easy"
	DifficultyEasy         Difficulty = "Easy"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyModerate     Difficulty = "Moderate"
	DifficultyDifficult    Difficulty = "Difficult"
)

// Tiers returns every difficulty in the fixed scan order used for
// cross-registry search. The order is part of the contract: removal and
// repair both walk registries in this sequence.
func Tiers() []Difficulty {
	return []Difficulty{
		DifficultyVeryEasy,
		DifficultyEasy,
		DifficultyIntermediate,
		DifficultyModerate,
		DifficultyDifficult,
	}
}

// ParseDifficulty maps a raw difficulty value to its tier,
// case-insensitively and ignoring surrounding whitespace. Any value outside
// the five known tiers yields ErrUnsupportedDifficulty; this is the only
// place an unsupported value can surface, so downstream routing over
// Difficulty is exhaustive by construction.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "very easy":
		return DifficultyVeryEasy, nil
	case "easy":
		return DifficultyEasy, nil
	case "intermediate":
		return DifficultyIntermediate, nil
	case "moderate":
		return DifficultyModerate, nil
	case "difficult":
		return DifficultyDifficult, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDifficulty, raw)
	}
}

// String returns the display form.
func (d Difficulty) String() string { return string(d) }

// Slug returns the lowercase underscore form used in configuration keys and
// API paths ("very_easy", "easy", ...).
func (d Difficulty) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(d)), " ", "_")
}

// ParseTierSlug resolves a slug back to its tier.
func ParseTierSlug(slug string) (Difficulty, error) {
	for _, tier := range Tiers() {
		if tier.Slug() == strings.ToLower(strings.TrimSpace(slug)) {
			return tier, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDifficulty, slug)
}
