package execshell

import (
	"errors"
	"regexp"
	"strings"
)

// Pattern definitions for executable/argument safety validation, adapted
// from the teacher's internal/exec validators (see DESIGN.md) and folded
// directly into the one package that calls them.
var (
	shellMetachars     = regexp.MustCompile(`[;&|` + "`" + `$<>]`)
	controlChars       = regexp.MustCompile(`[\r\n]`)
	quoteChars         = regexp.MustCompile(`["']`)
	bareNamePattern    = regexp.MustCompile(`^[A-Za-z0-9._+-]+$`)
	windowsDriveLetter = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
)

var (
	errEmptyValue           = errors.New("executable value is empty")
	errNullByte             = errors.New("executable value contains null byte")
	errControlChar          = errors.New("executable value contains control characters")
	errShellMetachar        = errors.New("executable value contains shell metacharacters")
	errQuoteChar            = errors.New("executable value contains quote characters")
	errOptionInjection      = errors.New("executable value starts with dash (option injection)")
	errInvalidBareNameChars = errors.New("executable value contains invalid characters for bare name")

	errEmptyArgument         = errors.New("argument is empty")
	errArgumentNullByte      = errors.New("argument contains null byte")
	errArgumentControlChar   = errors.New("argument contains control characters")
	errArgumentShellMetachar = errors.New("argument contains shell metacharacters")
)

// isLikelyPath reports whether value looks like a file path (rather than a
// bare executable name): it starts with . or ~, contains / or \ anywhere,
// or starts with a Windows drive letter.
func isLikelyPath(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, ".") || strings.HasPrefix(value, "~") {
		return true
	}
	if strings.Contains(value, "/") || strings.Contains(value, "\\") {
		return true
	}
	return windowsDriveLetter.MatchString(value)
}

// sanitizeExecutableValue validates command and returns it trimmed if safe,
// rejecting null bytes, control characters, shell metacharacters, quotes,
// and bare-name option injection (a leading dash).
func sanitizeExecutableValue(value string) (string, error) {
	if value == "" {
		return "", errEmptyValue
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errEmptyValue
	}
	if strings.Contains(trimmed, "\x00") {
		return "", errNullByte
	}
	if controlChars.MatchString(value) {
		return "", errControlChar
	}
	if shellMetachars.MatchString(trimmed) {
		return "", errShellMetachar
	}
	if quoteChars.MatchString(trimmed) {
		return "", errQuoteChar
	}

	// Paths have already passed the checks above; allow them through.
	if isLikelyPath(trimmed) {
		return trimmed, nil
	}

	if strings.HasPrefix(trimmed, "-") {
		return "", errOptionInjection
	}
	if !bareNamePattern.MatchString(trimmed) {
		return "", errInvalidBareNameChars
	}
	return trimmed, nil
}

// sanitizeArgument validates a single command-line argument. This is less
// strict than sanitizeExecutableValue because arguments can legitimately
// start with - or contain quotes; it still rejects null bytes, control
// characters, and shell metacharacters.
func sanitizeArgument(arg string) (string, error) {
	if arg == "" {
		return "", errEmptyArgument
	}
	if strings.Contains(arg, "\x00") {
		return "", errArgumentNullByte
	}
	if controlChars.MatchString(arg) {
		return "", errArgumentControlChar
	}
	if shellMetachars.MatchString(arg) {
		return "", errArgumentShellMetachar
	}
	return arg, nil
}
