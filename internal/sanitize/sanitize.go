package sanitize

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/nchat/trustplane/internal/ids"
)

// Sanitizer redacts LogEntry values according to a Config's field-policy
// table and message-body pattern substitutions.
type Sanitizer struct {
	cfg Config
}

// New creates a Sanitizer with the given config.
func New(cfg Config) *Sanitizer {
	return &Sanitizer{cfg: cfg}
}

// walkState accumulates the report fields across one recursive walk and
// tracks visited pointers to break cycles.
type walkState struct {
	redacted []string
	hashed   []string
	masked   []string
	visited  map[uintptr]bool
}

// Sanitize produces a redacted copy of entry plus a report of what changed.
// It never panics on unexpected shapes — anything it doesn't recognize is
// passed through unchanged.
func (s *Sanitizer) Sanitize(entry LogEntry) Result {
	start := time.Now()

	st := &walkState{visited: make(map[uintptr]bool)}
	out := entry

	scrubbed, patterns := scrubMessage(entry.Message)
	out.Message = scrubbed

	if entry.Context != nil {
		out.Context = s.walkMap(entry.Context, st).(map[string]interface{})
	}
	if entry.Metadata != nil {
		out.Metadata = s.walkMap(entry.Metadata, st).(map[string]interface{})
	}

	return Result{
		Entry:              out,
		FieldsRedacted:     st.redacted,
		FieldsHashed:       st.hashed,
		FieldsMasked:       st.masked,
		PatternsMatched:    patternNames(patterns),
		SanitizationTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

func patternNames(ps []patternName) []string {
	if ps == nil {
		return nil
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// walkMap applies field policy to every key in m, recursing into nested
// maps and slices of maps. Scalars at a policy-matched key are redacted
// per that policy; everything else is passed through scrubMessage if it's
// a string, or walked recursively if it's a nested shape.
func (s *Sanitizer) walkMap(m map[string]interface{}, st *walkState) interface{} {
	ptr := reflect.ValueOf(m).Pointer()
	if st.visited[ptr] {
		return map[string]interface{}{}
	}
	st.visited[ptr] = true
	defer delete(st.visited, ptr)

	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = s.walkValue(k, v, st)
	}
	return out
}

func (s *Sanitizer) walkValue(key string, v interface{}, st *walkState) interface{} {
	policy, matched := s.cfg.FieldPolicies[strings.ToLower(key)]

	switch typed := v.(type) {
	case map[string]interface{}:
		return s.walkMap(typed, st)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			if nested, ok := item.(map[string]interface{}); ok {
				out[i] = s.walkMap(nested, st)
			} else {
				out[i] = s.walkValue(key, item, st)
			}
		}
		return out
	case string:
		if matched {
			return s.applyPolicy(key, typed, policy, st)
		}
		scrubbed, _ := scrubMessage(typed)
		return s.truncateIfNeeded(scrubbed)
	default:
		return v
	}
}

func (s *Sanitizer) applyPolicy(key, value string, policy FieldPolicy, st *walkState) string {
	switch policy {
	case PolicyRedact:
		st.redacted = append(st.redacted, key)
		return "[REDACTED]"
	case PolicyHash:
		st.hashed = append(st.hashed, key)
		digest := ids.HMACSHA256Hex([]byte(s.cfg.HashSalt), []byte(value))
		width := s.cfg.HashHexWidth
		if width <= 0 || width > len(digest) {
			width = len(digest)
		}
		return fmt.Sprintf("[HASH:%s]", digest[:width])
	case PolicyMask:
		st.masked = append(st.masked, key)
		return maskValue(key, value)
	default: // PolicyPreserve
		return value
	}
}

func (s *Sanitizer) truncateIfNeeded(value string) string {
	if s.cfg.MaxFieldLength <= 0 || len(value) <= s.cfg.MaxFieldLength {
		return value
	}
	return value[:s.cfg.MaxFieldLength] + "[truncated]"
}
