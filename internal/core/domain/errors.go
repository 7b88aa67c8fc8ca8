package domain

import "fmt"

// ContentBlockedError is the typed block signal raised by the analyzer.
// It is not an error in transport terms; the gateway surfaces it as a 200
// response with blocked=true.
type ContentBlockedError struct {
	Reason       string
	Direction    Direction
	Signals      *MLSignals
	Preprocessed *PreprocessedText
	Confidence   float64
	MatchedRule  string
	LatencyMs    float64
}

func (e *ContentBlockedError) Error() string {
	return fmt.Sprintf("content blocked (%s): %s", e.Direction, e.Reason)
}

// BackendError wraps a failure talking to the upstream LLM backend.
type BackendError struct {
	Err        error
	BackendURL string
	StatusCode int
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend request to %s failed: HTTP %d: %v", e.BackendURL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend request to %s failed: %v", e.BackendURL, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// FirewallError is an internal pipeline failure.
type FirewallError struct {
	Err       error
	Stage     string
	RequestID string
}

func (e *FirewallError) Error() string {
	return fmt.Sprintf("firewall failure in %s [%s]: %v", e.Stage, e.RequestID, e.Err)
}

func (e *FirewallError) Unwrap() error {
	return e.Err
}

// ValidationError marks a malformed request or a comparison guardrail
// violation; the HTTP layer maps it to 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

// NotFoundError marks an unknown run or dataset; mapped to 404.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ServiceUnavailableError marks a subsystem that never initialized; 503.
type ServiceUnavailableError struct {
	Service string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s not initialized", e.Service)
}
