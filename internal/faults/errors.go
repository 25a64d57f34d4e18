package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingElement       = errors.New("missing element")
	ErrUpstreamFailure      = errors.New("upstream reported failure")
	ErrNoSerializer         = errors.New("no serializer available")
	ErrNoDeserializer       = errors.New("no deserializer available")
	ErrUnsupportedRecursion = errors.New("unsupported recursion")
	ErrUsage                = errors.New("usage error")
	ErrConnectivity         = errors.New("connectivity error")
	ErrConfiguration        = errors.New("configuration error")
)

// Exit codes returned by the CLI for each error class.
const (
	ExitGeneric       = 1
	ExitUsage         = 2
	ExitShape         = 3
	ExitUpstream      = 4
	ExitSerialization = 5
	ExitConnectivity  = 6
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUsage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Missing reports a shape error for the named element of a payload.
func Missing(component, element string) error {
	return Wrap(ErrMissingElement, component, "parse", fmt.Sprintf("expected %s", element), nil)
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage), errors.Is(err, ErrConfiguration):
		return ExitUsage
	case errors.Is(err, ErrMissingElement):
		return ExitShape
	case errors.Is(err, ErrUpstreamFailure):
		return ExitUpstream
	case errors.Is(err, ErrNoSerializer), errors.Is(err, ErrNoDeserializer), errors.Is(err, ErrUnsupportedRecursion):
		return ExitSerialization
	case errors.Is(err, ErrConnectivity):
		return ExitConnectivity
	default:
		return ExitGeneric
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "harvest failure"
	}
	return strings.Join(parts, ": ")
}
