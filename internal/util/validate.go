package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// validMetricChars matches identifier characters plus the separators metric
// names use for namespacing.
var validMetricChars = regexp.MustCompile(`^[a-zA-Z0-9_.:\-]+$`)

// ValidateProcessID checks that id is a UUID and returns it in canonical
// lowercase form. Braced and urn:uuid: forms are accepted.
func ValidateProcessID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("process id must not be empty")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("process id %q is not a valid UUID: %w", id, err)
	}
	return parsed.String(), nil
}

// ValidateMetricName checks that a metric name:
//   - Is not empty
//   - Only contains a-z, A-Z, 0-9, underscores, periods, colons, and hyphens
//   - Starts with a letter or underscore
func ValidateMetricName(name string) error {
	if name == "" {
		return fmt.Errorf("metric name must not be empty")
	}

	if !validMetricChars.MatchString(name) {
		return fmt.Errorf("metric name %q contains invalid characters (only a-z, A-Z, 0-9, underscores, periods, colons, and hyphens are allowed)", name)
	}

	first := name[0]
	if !isLetter(first) && first != '_' {
		return fmt.Errorf("metric name must start with a letter or underscore, got %q", string(first))
	}

	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
