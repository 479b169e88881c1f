package compile

import (
	"strings"
)

// IsValidCell reports whether cell carries a value, i.e. it is not empty
// after trimming surrounding whitespace.
func IsValidCell(cell string) bool {
	return strings.TrimSpace(cell) != ""
}

// cellOrDefault returns cell if it is valid, otherwise def if that is valid.
// The boolean is false when neither carries a value.
func cellOrDefault(cell, def string) (string, bool) {
	if IsValidCell(cell) {
		return cell, true
	}
	if IsValidCell(def) {
		return def, true
	}

	return "", false
}

// MakeInList converts a comma separated cell into a parenthesized list of
// quoted values, suitable for the "in" operator:
//
//	a, "b", c -> ("a", "b", "c")
//
// Cells that already start with "(" are returned unchanged.
func MakeInList(cell string) string {
	if strings.HasPrefix(cell, "(") {
		return cell
	}

	items := []string{}
	for item := range strings.SplitSeq(cell, ",") {
		if item == "" {
			continue
		}

		item = strings.TrimSpace(item)
		if !strings.HasPrefix(item, `"`) {
			item = `"` + item + `"`
		}

		items = append(items, item)
	}

	return "(" + strings.Join(items, ", ") + ")"
}
