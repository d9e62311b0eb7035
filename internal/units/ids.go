package units

import "strings"

// CompareIDs orders ids by numeric value with no width limit. Ids that are
// not plain digit strings sort after all numeric ids, lexically.
func CompareIDs(a, b string) int {
	an, aok := normalizeNumeric(a)
	bn, bok := normalizeNumeric(b)

	switch {
	case aok && bok:
		if len(an) != len(bn) {
			if len(an) < len(bn) {
				return -1
			}
			return 1
		}
		if c := strings.Compare(an, bn); c != 0 {
			return c
		}
		// "7" and "007" are equal in value; keep the order total
		return strings.Compare(a, b)
	case aok:
		return -1
	case bok:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// normalizeNumeric strips leading zeros from a digit string.
func normalizeNumeric(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return "", false
		}
	}
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return trimmed, true
}
