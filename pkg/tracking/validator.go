// Package tracking provides the metric/event tracking surface and the
// validation rules that guard metric names, event names, tags, and cache
// invalidation patterns before they reach any sink.
package tracking

import (
	"fmt"
	"path"
	"strings"
)

// Validation limits
const (
	MaxNameLength     = 100
	MaxPatternLength  = 200
	MaxTagCount       = 20
	MaxTagKeyLength   = 50
	MaxTagValueLength = 200
)

// ValidationError indicates an input that was rejected before reaching the
// gateway or tracking sink. Unlike transient dependency failures, validation
// errors are always surfaced synchronously to the caller.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// ValidateMetricName validates a metric name: non-empty, at most 100
// characters, charset [A-Za-z0-9_.-].
func ValidateMetricName(name string) error {
	return validateName("metric name", name)
}

// ValidateEventName validates an event name using the same rules as metric
// names.
func ValidateEventName(name string) error {
	return validateName("event name", name)
}

// ValidateTags validates a tag set: at most 20 tags, keys at most 50
// characters, values at most 200 characters, keys non-empty.
func ValidateTags(tags map[string]string) error {
	if len(tags) > MaxTagCount {
		return &ValidationError{Field: "tags", Message: fmt.Sprintf("too many tags: %d (max %d)", len(tags), MaxTagCount)}
	}
	for k, v := range tags {
		if k == "" {
			return &ValidationError{Field: "tags", Message: "tag key must not be empty"}
		}
		if len(k) > MaxTagKeyLength {
			return &ValidationError{Field: "tags", Message: fmt.Sprintf("tag key %q exceeds %d characters", k, MaxTagKeyLength)}
		}
		if len(v) > MaxTagValueLength {
			return &ValidationError{Field: "tags", Message: fmt.Sprintf("value for tag %q exceeds %d characters", k, MaxTagValueLength)}
		}
	}
	return nil
}

// ValidatePattern validates a cache invalidation pattern: non-empty, at most
// 200 characters, safe charset, and not a bare wildcard. A bare "*" or "**"
// is rejected so an overly broad administrative request cannot flush the
// whole cache by accident.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return &ValidationError{Field: "pattern", Message: "pattern must not be empty"}
	}
	if len(pattern) > MaxPatternLength {
		return &ValidationError{Field: "pattern", Message: fmt.Sprintf("pattern exceeds %d characters", MaxPatternLength)}
	}
	if strings.Trim(pattern, "*") == "" {
		return &ValidationError{Field: "pattern", Message: "bare wildcard patterns are not allowed"}
	}
	for _, r := range pattern {
		if !isPatternRune(r) {
			return &ValidationError{Field: "pattern", Message: fmt.Sprintf("invalid character %q in pattern", r)}
		}
	}
	// Charset-valid globs can still be syntactically broken (unclosed "[")
	if _, err := path.Match(pattern, ""); err != nil {
		return &ValidationError{Field: "pattern", Message: "malformed glob pattern"}
	}
	return nil
}

func validateName(field, name string) error {
	if name == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: field, Message: fmt.Sprintf("exceeds %d characters", MaxNameLength)}
	}
	for _, r := range name {
		if !isNameRune(r) {
			return &ValidationError{Field: field, Message: fmt.Sprintf("invalid character %q", r)}
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	return r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r == '_' || r == '.' || r == '-'
}

func isPatternRune(r rune) bool {
	return isNameRune(r) || r == ':' || r == '*' || r == '?' || r == '[' || r == ']'
}
