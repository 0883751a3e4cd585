package oauth

import (
	"fmt"
	"net/http"
)

// ValidationError reports a missing or empty required argument. It is a
// programmer error and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Status() (int, string) {
	return http.StatusBadRequest, e.Error()
}
