package models

// ContainsID reports whether id is in ids.
func ContainsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AddID appends id unless it is already present.
func AddID(ids []string, id string) []string {
	if ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveID returns ids without any occurrence of id.
func RemoveID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ToggleID removes id if present, otherwise appends it. The second result is
// the membership after the toggle.
func ToggleID(ids []string, id string) ([]string, bool) {
	if ContainsID(ids, id) {
		return RemoveID(ids, id), false
	}
	return append(ids, id), true
}

// CloneIDs copies an id slice, keeping nil as nil and empty as empty.
func CloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	return append(make([]string, 0, len(ids)), ids...)
}
