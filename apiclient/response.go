package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Response is a fully read 2xx reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("[Response.Decode] empty body")
	}
	return errors.Wrap(json.Unmarshal(r.Body, v), "[Response.Decode] json.Unmarshal")
}

// StatusError is returned for every non-2xx reply.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is matches errors.ErrHTTPStatus.
func (e *StatusError) Is(target error) bool {
	return target == sessionerrors.ErrHTTPStatus
}

// StatusCode returns the HTTP status carried by err, or 0 when err holds no
// *StatusError.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
