package weather

import (
	"fmt"
	"strings"
)

// ProviderError reports a failed call to the weather provider: transport
// failure, non-2xx status or a body that is missing the expected grouping.
// StatusCode is zero when no HTTP response was obtained.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IncompleteDataError lists the snapshot fields that could not be turned into
// readings. Readings for the remaining fields are still produced.
type IncompleteDataError struct {
	Missing []AttributeKind
}

func (e *IncompleteDataError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, k := range e.Missing {
		names = append(names, string(k))
	}
	return "incomplete weather data: missing " + strings.Join(names, ", ")
}

// LookupError is returned when no device can be resolved for an installation.
type LookupError struct {
	InstallationID string
	Err            error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device lookup for installation %s: %v", e.InstallationID, e.Err)
	}
	return fmt.Sprintf("no device found for installation %s", e.InstallationID)
}

func (e *LookupError) Unwrap() error { return e.Err }
