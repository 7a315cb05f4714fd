// Package sanitize implements the Log Sanitizer: field-policy redaction,
// message-body pattern substitution, and a cycle-safe recursive walk over
// arbitrary log context/metadata shapes.
//
// Grounded on the teacher's internal/evidence hash-chaining idiom (an
// HMAC-keyed, non-reversible transform over sensitive values) reused here
// via internal/ids.HMACSHA256Hex for the "hash" field policy, and on the
// ConfigButler-gitops-reverser internal/sanitize package's field-allowlist
// walk structure, generalized from a single allow/deny pass to the spec's
// four-way redact/hash/mask/preserve policy table.
package sanitize

import "time"

// LogEntry is one structured log record to be sanitized.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
	Context   map[string]interface{}
	Metadata  map[string]interface{}
}

// Result is the outcome of sanitizing one LogEntry.
type Result struct {
	Entry              LogEntry
	FieldsRedacted     []string
	FieldsHashed       []string
	FieldsMasked       []string
	PatternsMatched    []string
	SanitizationTimeMs float64
}

// FieldPolicy is the action taken for a matched field key.
type FieldPolicy int

const (
	PolicyPreserve FieldPolicy = iota
	PolicyRedact
	PolicyHash
	PolicyMask
)

// Config parameterizes a Sanitizer: the field policy table, the HMAC salt
// used for the hash policy, and truncation/output widths.
type Config struct {
	HashSalt        string
	HashHexWidth    int // truncated width of the hashed hex digest
	MaxFieldLength  int
	FieldPolicies   map[string]FieldPolicy // lower-cased key -> policy
}

// DefaultConfig matches the field table in spec §4.10.
func DefaultConfig(hashSalt string) Config {
	return Config{
		HashSalt:       hashSalt,
		HashHexWidth:   16,
		MaxFieldLength: 2048,
		FieldPolicies: map[string]FieldPolicy{
			"password":    PolicyRedact,
			"secret":      PolicyRedact,
			"token":       PolicyRedact,
			"apikey":      PolicyRedact,
			"privatekey":  PolicyRedact,
			"sessionid":   PolicyHash,
			"refreshtoken": PolicyHash,
			"deviceid":    PolicyHash,
			"email":       PolicyMask,
			"phone":       PolicyMask,
			"creditcard":  PolicyMask,
			"userid":      PolicyPreserve,
			"messageid":   PolicyPreserve,
			"channelid":   PolicyPreserve,
		},
	}
}
