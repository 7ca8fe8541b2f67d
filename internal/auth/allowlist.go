package auth

import "strings"

// AllowList is an immutable set of permitted email addresses.
type AllowList struct {
	emails map[string]struct{}
}

// ParseAllowList builds an AllowList from a comma-separated string.
func ParseAllowList(raw string) AllowList {
	return NewAllowList(strings.Split(raw, ","))
}

// NewAllowList normalizes emails to lowercase and drops empty entries.
func NewAllowList(emails []string) AllowList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = normalizeEmail(e)
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return AllowList{emails: set}
}

// Allowed reports whether email is on the list. Empty input is never allowed.
func (a AllowList) Allowed(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	_, ok := a.emails[email]
	return ok
}

// Len returns the number of distinct entries.
func (a AllowList) Len() int {
	return len(a.emails)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
