package driver

import "fmt"

// ProviderError is returned when a provider rejects or fails a request.
//
// Status carries the provider's symbolic status (e.g. "RESOURCE_EXHAUSTED")
// when one is available. RawResponse must never include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Status      string
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	switch {
	case e.StatusCode > 0 && e.Status != "":
		return fmt.Sprintf("%s request failed: status %d %s: %s", e.Provider, e.StatusCode, e.Status, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
	}
}

// Retryable reports whether the failure is transient on the provider side.
func (e *ProviderError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
