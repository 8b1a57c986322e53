package schema

import (
	"regexp"

	"db-relay/internal/errs"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidateName checks an authored identifier: a Latin letter followed by
// letters, digits or underscores. Reflected names are taken as they are.
func ValidateName(name string) error {
	if name == "" {
		return errs.New(errs.ErrKindInvalidInput, "the name is empty")
	}
	if !namePattern.MatchString(name) {
		return errs.Newf(errs.ErrKindInvalidInput,
			"the name (%s) must start with a Latin letter and contain only Latin letters, digits or underscores", name)
	}
	return nil
}
