package dedupe

import "strings"

// FormatReason joins the rendered entries with "; ".
func FormatReason(entries []DuplicateEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Reason()
	}
	return strings.Join(parts, "; ")
}
