package callctx

import "regexp"

var (
	phonePattern   = regexp.MustCompile(`\b\d{10}\b`)
	bookingPattern = regexp.MustCompile(`\b[A-Z]{2,3}\d{6,8}\b`)
)

// ExtractEntities pulls structured tokens out of free text with fixed
// patterns. Deterministic and offline: no provider call is involved.
// Returns an empty map when nothing matches.
func ExtractEntities(text string) map[string][]string {
	entities := make(map[string][]string)
	if phones := dedupe(phonePattern.FindAllString(text, -1)); len(phones) > 0 {
		entities["phone_numbers"] = phones
	}
	if bookings := dedupe(bookingPattern.FindAllString(text, -1)); len(bookings) > 0 {
		entities["booking_ids"] = bookings
	}
	return entities
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// mergeEntities folds src into dst without duplicating values per
// category.
func mergeEntities(dst, src map[string][]string) map[string][]string {
	if dst == nil {
		dst = make(map[string][]string)
	}
	for category, values := range src {
		dst[category] = dedupe(append(dst[category], values...))
	}
	return dst
}
