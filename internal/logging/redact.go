package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const maskedValue = "***"

// secretPatterns catches the key=value and header shapes SPEC_FULL.md §9
// names: apikey=..., api_key=..., X-Api-Key: ..., Authorization: Bearer ...
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(apikey|api_key|access_token|webhook_secret)=([^&\s"']+)`),
	regexp.MustCompile(`(?i)(x-api-key|authorization)\s*:\s*(?:bearer\s+)?([^\s"']+)`),
}

// sensitiveFieldNames are logrus field keys whose values are masked outright
// rather than pattern-scanned, because the whole value is secret.
var sensitiveFieldNames = map[string]bool{
	"apikey": true, "api_key": true, "password": true, "secret": true,
	"webhook_secret": true, "token": true, "access_token": true,
}

// RedactString scrubs apikey=/header-style secrets out of a free-form string
// (a log message, an error message destined for last_error, etc).
func RedactString(s string) string {
	out := s
	for _, re := range secretPatterns {
		out = re.ReplaceAllString(out, "$1="+maskedValue)
	}
	return out
}

// FingerprintURL returns a short stable id plus a sanitized scheme+host for a
// secret-bearing URL (notification target, indexer base URL), so call sites
// can log "which target" without ever emitting the query string, path, or
// userinfo. Grounded on original_source/services/notifications.py's
// _target_fingerprint.
func FingerprintURL(raw string) (id, sanitized string) {
	if raw == "" {
		return "unknown", "unknown"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "unknown", "unknown"
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "unknown"
	}
	host := u.Hostname()
	if host == "" {
		host = "unknown"
	}
	sum := sha256.Sum256([]byte(scheme + "::" + host))
	sanitized = scheme + "://" + host
	return hex.EncodeToString(sum[:])[:8], sanitized
}

// RedactHook is a logrus.Hook that scrubs secret-shaped values from every
// field and the message before the entry reaches any formatter/sink.
type RedactHook struct{}

func NewRedactHook() *RedactHook { return &RedactHook{} }

func (h *RedactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *RedactHook) Fire(entry *logrus.Entry) error {
	entry.Message = RedactString(entry.Message)
	for k, v := range entry.Data {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if sensitiveFieldNames[strings.ToLower(k)] {
			entry.Data[k] = maskedValue
			continue
		}
		entry.Data[k] = RedactString(s)
	}
	return nil
}
