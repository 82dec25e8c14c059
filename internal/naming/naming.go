// Package naming derives table, column and relation names from entity
// kind names.
package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// CamelToSnake converts a CamelCase string to snake_case.
// Consecutive uppercase letters (acronyms) are kept together:
// "ID" → "id", "GroupID" → "group_id", "GroupTracks" → "group_tracks".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				next := rune(0)
				if i+1 < len(runes) {
					next = runes[i+1]
				}
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TableName converts a kind name to a snake_case plural table name.
// e.g. "Group" -> "groups", "Performer" -> "performers"
func TableName(kind string) string {
	return inflection.Plural(CamelToSnake(kind))
}

// ForeignKey returns the column that references kind from another table.
// e.g. "Group" -> "group_id"
func ForeignKey(kind string) string {
	return CamelToSnake(kind) + "_id"
}

// Plural returns the plural form of a CamelCase name, inflecting only the
// last word: "Track" -> "Tracks", "BandMember" -> "BandMembers".
func Plural(name string) string {
	return inflection.Plural(name)
}

// Singular is the inverse of Plural: "Tracks" -> "Track".
func Singular(name string) string {
	return inflection.Singular(name)
}

// IsIdent reports whether s is a safe SQL identifier: a lowercase letter
// followed by lowercase letters, digits or underscores.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
