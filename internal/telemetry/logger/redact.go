package logger

import (
	"context"
	"log/slog"
	"strings"
)

// Credential prefixes. A value or word starting with one is partially
// masked wherever it appears, including inside error messages.
var tokenPrefixes = []string{
	"pbtk_",   // local fallback token
	"Bearer ", // Authorization header value
	"eyJ",     // JWT issued by the remote api
}

// Attribute keys containing one of these are redacted whole.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"credential",
	"auth",
	"bearer",
}

const redactedValue = "***REDACTED***"

// redactHandler scrubs credentials from record attributes before the
// inner handler formats them.
type redactHandler struct {
	inner slog.Handler
}

func (h *redactHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &redactHandler{inner: h.inner.WithAttrs(clean)}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			clean[i] = redactAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}

	case slog.KindString:
		s := v.String()
		if masked := RedactString(s); masked != s {
			return slog.String(a.Key, masked)
		}
		if s != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}

	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, RedactString(err.Error()))
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// RedactString masks every credential in s: local tokens, bearer values
// and JWTs, keeping a short hint of each. Other text is unchanged.
func RedactString(s string) string {
	var b strings.Builder
	rest := s
	for {
		i, prefix := nextToken(rest)
		if i < 0 {
			if b.Len() == 0 {
				return s
			}
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:i])
		rest = rest[i:]
		end := len(prefix) + tokenLen(rest[len(prefix):])
		b.WriteString(maskValue(rest[:end], prefix))
		rest = rest[end:]
	}
}

// nextToken finds the earliest credential prefix in s that starts a word.
func nextToken(s string) (int, string) {
	best, bestPrefix := -1, ""
	for _, p := range tokenPrefixes {
		from := 0
		for {
			j := strings.Index(s[from:], p)
			if j < 0 {
				break
			}
			j += from
			if j == 0 || isSeparator(s[j-1]) {
				if best < 0 || j < best {
					best, bestPrefix = j, p
				}
				break
			}
			from = j + 1
		}
	}
	return best, bestPrefix
}

func tokenLen(s string) int {
	for i := 0; i < len(s); i++ {
		if isSeparator(s[i]) {
			return i
		}
	}
	return len(s)
}

func isSeparator(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '"', '\'', ',', ';', '(', ')', '[', ']', '{', '}', '=', ':':
		return true
	}
	return false
}

// maskValue keeps the prefix and three characters from each end of the
// credential body.
func maskValue(value, prefix string) string {
	if len(value) <= len(prefix)+6 {
		return prefix + "***"
	}
	body := value[len(prefix):]
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// IsSensitiveKey reports whether an attribute key names a secret.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}
