package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tturner/gpdplot/internal/gpd"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned by the model client for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is matches gpd.ErrDataNotFound for 404 responses.
func (e *HTTPStatusError) Is(target error) bool {
	return target == gpd.ErrDataNotFound && e.StatusCode == http.StatusNotFound
}

// WrapServiceError wraps model service failures with user-friendly context
func WrapServiceError(err error, baseURL string) error {
	if err == nil {
		return nil
	}

	message := fmt.Sprintf("Model service request to %s failed", baseURL)
	hint := "The model service may be down, or the parameter combination is not supported by this model"
	switch {
	case gpd.IsDomainUnavailable(err):
		message = fmt.Sprintf("Could not resolve parameter domain from %s", baseURL)
		hint = "The previous domain is still usable; re-select the field to retry"
	case gpd.IsDatasetFetchFailed(err):
		message = fmt.Sprintf("Could not fetch model data from %s", baseURL)
	}

	return UserFriendlyError{
		Message: message,
		Reason:  extractServiceReason(err),
		Hint:    hint,
		Try:     fmt.Sprintf("gpdplot domain --base-url %s --model BKM --gpd GPD_E", baseURL),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Run gpdplot init-config to write a commented default file",
		Try:     fmt.Sprintf("gpdplot init-config --config %s", configPath),
		Err:     err,
	}
}

func extractServiceReason(err error) string {
	var statusErr *HTTPStatusError
	if stderrors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return "Data not found - the service has no table for this combination"
		case statusErr.StatusCode >= 500:
			return "Model service returned a server error"
		default:
			return fmt.Sprintf("Model service rejected the request (HTTP %d)", statusErr.StatusCode)
		}
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Request timeout - the model service did not answer in time"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - nothing is listening at the service address"
	}
	if strings.Contains(errStr, "no such host") {
		return "Unknown host - check the service base URL"
	}
	if strings.Contains(errStr, "decode") || strings.Contains(errStr, "invalid character") {
		return "Received malformed JSON from the model service"
	}
	if strings.Contains(errStr, "empty") {
		return "Data not found"
	}

	return "Model service communication failed"
}
