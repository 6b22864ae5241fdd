package main

import "strings"

// matchDevice reports the first name in names that starts with prefix.
// An empty prefix matches any name; config validation keeps it from being
// configured.
func matchDevice(names []string, prefix string) (string, bool) {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return n, true
		}
	}
	return "", false
}

func stateFor(matched bool) PresenceState {
	if matched {
		return StatePresent
	}
	return StateAbsent
}
