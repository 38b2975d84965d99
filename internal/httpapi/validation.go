package httpapi

import (
	"fmt"
	"regexp"
	"strings"

	"MessagingWebserver/internal/domain"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 24
	minPasswordLen = 8
	// argon2 happily hashes anything, so cap the work a single request can ask for.
	maxPasswordLen = 256
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func normalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

func validUsername(s string) bool {
	return len(s) >= minUsernameLen && len(s) <= maxUsernameLen && usernamePattern.MatchString(s)
}

func validateRegistration(username, password string) error {
	fields := map[string]string{}
	if !validUsername(username) {
		fields["username"] = fmt.Sprintf("must be %d-%d chars [A-Za-z0-9_]", minUsernameLen, maxUsernameLen)
	}
	switch {
	case len(password) < minPasswordLen:
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLen)
	case len(password) > maxPasswordLen:
		fields["password"] = "too long"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func validateLogin(username, password string) error {
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "required"
	}
	if password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}
