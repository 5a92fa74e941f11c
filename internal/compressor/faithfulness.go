package compressor

import "regexp"
import "strings"

var (
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	numberPattern      = regexp.MustCompile(`\b\d+\.?\d*\b`)
	uuidPattern        = regexp.MustCompile(`\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
)

var entityKeywords = []string{"MUST", "NEVER", "ALWAYS", "REQUIRED", "FORMAT"}

var pureNumber = regexp.MustCompile(`^\d+$`)
var allCaps = regexp.MustCompile(`^[A-Z]+$`)

// extractEntities returns the set of proper nouns, numbers, UUIDs, and
// constraint keywords present in text — the same entity vocabulary the
// utility scorer's identifier/entity factors look for.
func extractEntities(text string) map[string]bool {
	entities := map[string]bool{}
	for _, m := range properNounPattern.FindAllString(text, -1) {
		entities[m] = true
	}
	for _, m := range numberPattern.FindAllString(text, -1) {
		entities[m] = true
	}
	for _, m := range uuidPattern.FindAllString(strings.ToLower(text), -1) {
		entities[m] = true
	}
	for _, kw := range entityKeywords {
		if strings.Contains(text, kw) {
			entities[kw] = true
		}
	}
	return entities
}

func isCritical(entity string) bool {
	if pureNumber.MatchString(entity) || allCaps.MatchString(entity) {
		return true
	}
	switch entity {
	case "MUST", "NEVER", "ALWAYS", "REQUIRED":
		return true
	}
	return false
}

// FaithfulnessScore measures how much entity-bearing information survived
// compression: Jaccard similarity over extracted entity sets, boosted by
// 0.1 (capped at 1.0) if every critical entity from the original survived.
// An original with no extractable entities trivially scores 1.0 — there's
// nothing to preserve.
func FaithfulnessScore(original, compressed string) float64 {
	originalEntities := extractEntities(original)
	if len(originalEntities) == 0 {
		return 1.0
	}
	compressedEntities := extractEntities(compressed)

	intersection := 0
	for e := range originalEntities {
		if compressedEntities[e] {
			intersection++
		}
	}
	union := len(originalEntities)
	for e := range compressedEntities {
		if !originalEntities[e] {
			union++
		}
	}

	jaccard := 1.0
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}

	criticalPreserved := true
	for e := range originalEntities {
		if isCritical(e) && !compressedEntities[e] {
			criticalPreserved = false
			break
		}
	}
	if criticalPreserved {
		jaccard += 0.1
		if jaccard > 1.0 {
			jaccard = 1.0
		}
	}

	return jaccard
}
