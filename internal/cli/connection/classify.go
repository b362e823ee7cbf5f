package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

const (
	maxErrorBody    = 64 << 10
	maxErrorMessage = 200
)

// Classify maps the result of one HTTP exchange to a *domain.DomainError.
//
//	err != nil (no response)  transport
//	2xx                       nil
//	401                       auth
//	400, 404, 409, other 4xx  validation
//	>= 500                    server
//	anything else             server (malformed)
//
// The server's message, when the body carries one, replaces the default
// message. Classify reads resp.Body but does not close it.
func Classify(resp *http.Response, err error) error {
	if err != nil {
		return domain.ErrTransport.WithCause(err).WithDetails(transportDetail(err))
	}
	if resp == nil {
		return domain.ErrTransport.WithDetails("no response")
	}

	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	var base *domain.DomainError
	switch {
	case status == http.StatusUnauthorized:
		base = domain.ErrUnauthorized
	case status == http.StatusBadRequest:
		base = domain.ErrBadRequest
	case status == http.StatusNotFound:
		base = domain.ErrNotFound
	case status == http.StatusConflict:
		base = domain.ErrConflict
	case status >= 400 && status < 500:
		base = domain.ErrRejected
	case status >= 500:
		base = domain.ErrServer
	default:
		base = domain.ErrMalformedResponse
	}

	de := base.WithStatus(status)
	if resp.Body == nil {
		return de
	}
	message, code := parseErrorBody(resp.Body)
	de = de.WithMessage(message)
	if code != "" {
		de = de.WithDetails("server code " + code)
	}
	return de
}

func transportDetail(err error) string {
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "host lookup failed"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection failed"
	}
	return "no response"
}

// parseErrorBody extracts a message and an optional server error code.
//
// Accepted shapes: {"message": ..}, {"code": .., "message": ..},
// {"error": ..} and plain text.
func parseErrorBody(r io.Reader) (message, code string) {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "", ""
	}
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return "", ""
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, key := range []string{"message", "error"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				message = strings.TrimSpace(s)
				break
			}
		}
		switch v := payload["code"].(type) {
		case string:
			code = v
		case float64:
			code = fmt.Sprintf("%.0f", v)
		}
		return truncate(message), code
	}

	if data[0] == '<' {
		// HTML error pages are dropped.
		return "", ""
	}
	return truncate(string(data)), ""
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxErrorMessage {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxErrorMessage]) + "..."
}
