package broadcast

import "strings"

const All = "all"

// aliases maps a session role to the recipient token used for its group.
var aliases = map[string]string{
	"patient":   "patients",
	"doctor":    "doctors",
	"reception": "reception",
	"admin":     "admins",
}

// Matches reports whether a broadcast addressed to recipients should be shown
// to a session with the given role: "all", the exact role, or the role's
// group alias.
func Matches(role string, recipients []string) bool {
	alias := aliases[role]
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if r == All || r == role || (alias != "" && r == alias) {
			return true
		}
	}
	return false
}

// Alias returns the group token for role, or role itself when it has none.
func Alias(role string) string {
	if a, ok := aliases[role]; ok {
		return a
	}
	return role
}
