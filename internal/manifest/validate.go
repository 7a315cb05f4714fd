package manifest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nchat/trustplane/internal/scopes"
)

var (
	appIDPattern = regexp.MustCompile(`^[a-z][a-z0-9._-]{2,63}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	semverCore   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// FieldError is a single accumulated validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the outcome of Validate: never short-circuits, always
// accumulates every violation found across the whole manifest.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

func (r *Result) fail(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// Validate is a pure function: manifest value -> (valid?, errors[]).
// It never mutates m and never stops at the first error.
func Validate(m AppManifest) Result {
	r := Result{Valid: true, Errors: []FieldError{}}

	if m.SchemaVersion != "1.0" {
		r.fail("schemaVersion", `must be "1.0"`)
	}

	if !appIDPattern.MatchString(m.AppID) {
		r.fail("appId", "must match ^[a-z][a-z0-9._-]{2,63}$")
	}

	nameLen := len([]rune(m.Name))
	if nameLen < 1 || nameLen > 64 {
		r.fail("name", "must be 1..64 characters")
	}

	if len([]rune(m.Description)) > 200 {
		r.fail("description", "must be at most 200 characters")
	}

	if !isValidSemver(m.Version) {
		r.fail("version", "must be a semver string, e.g. 1.2.3 or 1.2.3-beta.1")
	}

	if strings.TrimSpace(m.Developer.Name) == "" {
		r.fail("developer.name", "is required")
	}
	if !emailPattern.MatchString(m.Developer.Email) {
		r.fail("developer.email", "must be a syntactically valid email")
	}

	if len(m.Scopes) == 0 {
		r.fail("scopes", "must be a non-empty subset of the scope set")
	} else if !scopes.AllKnown(m.Scopes) {
		r.fail("scopes", "must only contain recognized scope strings or wildcards")
	}

	if len(m.Events) > 0 {
		if strings.TrimSpace(m.WebhookURL) == "" {
			r.fail("webhookUrl", "is required when events is non-empty")
		} else if !isHTTPURL(m.WebhookURL) {
			r.fail("webhookUrl", "must use the http or https scheme")
		}
	}

	seenCommands := make(map[string]bool, len(m.Commands))
	dupeReported := false
	for _, c := range m.Commands {
		lower := strings.ToLower(c.Name)
		if lower != c.Name {
			r.fail("commands", "command name \""+c.Name+"\" must be lowercase")
		}
		if strings.TrimSpace(c.Description) == "" {
			r.fail("commands", "command \""+c.Name+"\" must have a non-empty description")
		}
		if seenCommands[lower] {
			if !dupeReported {
				r.fail("commands", "duplicate command name \""+lower+"\"")
				dupeReported = true
			}
			continue
		}
		seenCommands[lower] = true
	}

	if m.RateLimit.RequestsPerMinute <= 0 {
		r.fail("rateLimit.requestsPerMinute", "must be greater than 0")
	}

	return r
}

func isHTTPURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// isValidSemver accepts MAJOR.MINOR.PATCH with an optional -prerelease
// suffix (dot-separated alphanumeric identifiers), per semver.org §9,
// without pulling in a full semver library for one predicate.
func isValidSemver(v string) bool {
	core := v
	if idx := strings.IndexByte(v, '-'); idx >= 0 {
		core = v[:idx]
		pre := v[idx+1:]
		if pre == "" {
			return false
		}
		for _, ident := range strings.Split(pre, ".") {
			if ident == "" || !isAlnumIdent(ident) {
				return false
			}
		}
	}
	// Build metadata (+...) is stripped for core matching if present.
	if idx := strings.IndexByte(core, '+'); idx >= 0 {
		core = core[:idx]
	}
	if !semverCore.MatchString(core) {
		return false
	}
	parts := strings.SplitN(core, ".", 3)
	for _, p := range parts {
		if len(p) > 1 && p[0] == '0' {
			return false
		}
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

func isAlnumIdent(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '-') {
			return false
		}
	}
	return true
}
