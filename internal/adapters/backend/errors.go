package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/klynaa/internal/domain/apierror"
)

// Sentinel error kinds for this package.
var (
	// ErrNoRefreshToken is returned when a refresh is needed but no refresh
	// token is held.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshFailed wraps a failed token refresh.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrInvalidBaseURL is returned by New for a base URL that is not absolute.
	ErrInvalidBaseURL = errors.New("invalid base url")
)

const (
	unexpectedMessage = "An unexpected error occurred"
	maxErrorBody      = 1 << 20
)

// decodeError turns a non-2xx response into an *apierror.Error. The body may
// be a bare JSON string, an object with message or detail, and optionally an
// errors object mapping fields to messages.
func decodeError(resp *http.Response) *apierror.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg, details := parseErrorBody(raw)
	if msg == "" {
		msg = unexpectedMessage
	}
	e := apierror.New(resp.StatusCode, msg)
	if len(details) > 0 {
		e = e.WithDetails(details)
	}
	return e
}

func parseErrorBody(raw []byte) (string, map[string][]string) {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return "", nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return body, nil
	}

	switch data := v.(type) {
	case string:
		return data, nil
	case map[string]any:
		var msg string
		if s, ok := data["message"].(string); ok && s != "" {
			msg = s
		} else if s, ok := data["detail"].(string); ok && s != "" {
			msg = s
		}
		return msg, fieldErrors(data["errors"])
	}
	return "", nil
}

func fieldErrors(v any) map[string][]string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string][]string, len(m))
	for field, raw := range m {
		switch msgs := raw.(type) {
		case string:
			out[field] = []string{msgs}
		case []any:
			for _, msg := range msgs {
				out[field] = append(out[field], fmt.Sprint(msg))
			}
		default:
			out[field] = []string{fmt.Sprint(msgs)}
		}
	}
	return out
}

// transportError wraps a failure that produced no response.
func transportError(op string, err error) *apierror.Error {
	return apierror.Wrap(apierror.DefaultStatus, fmt.Sprintf("%s: %v", op, err), err)
}
