// Package guard holds the single-operator authorization predicate.
package guard

import "github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"

// Authorize reports whether sender is the configured operator.
// An empty identity never matches, so a missing operator config denies everyone.
func Authorize(sender, operator lib.Identity) bool {
	if sender == "" || operator == "" {
		return false
	}
	return sender == operator
}
