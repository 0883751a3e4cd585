package credential

import (
	"fmt"
	"net/http"

	"github.com/chinmina/ebay-oauth-bridge/internal/environment"
)

// ConfigurationError indicates that credentials for an environment are
// missing or invalid. It is fatal to the operation that encountered it.
type ConfigurationError struct {
	Environment environment.Environment
	Reason      string
	Err         error
}

func (e ConfigurationError) Error() string {
	msg := "credential configuration"
	if e.Environment.Valid() {
		msg += " for " + e.Environment.Identifier()
	}
	msg += ": " + e.Reason

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

// Status hides configuration detail from API clients.
func (e ConfigurationError) Status() (int, string) {
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
