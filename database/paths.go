package database

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ConsoleSegment is the internal route prefix the console is mounted under.
// It is never a valid admin path: the rewrite in front of the router hides it.
const ConsoleSegment = "_console"

var ErrInvalidAdminPath = errors.New("invalid admin path")

var adminPathPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

// reservedPaths collide with public or internal routes.
var reservedPaths = map[string]bool{
	"api":          true,
	"uploads":      true,
	"static":       true,
	"cabins":       true,
	"contacts":     true,
	"reviews":      true,
	"about":        true,
	ConsoleSegment: true,
}

// ValidateAdminPath checks that path can serve as the console URL segment.
func ValidateAdminPath(path string) error {
	if !adminPathPattern.MatchString(path) {
		return fmt.Errorf("%w: use 3-64 letters, digits, '-' or '_'", ErrInvalidAdminPath)
	}
	if reservedPaths[strings.ToLower(path)] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAdminPath, path)
	}
	return nil
}
