// Package manifest defines the AppManifest value and its pure validator.
// Grounded on the teacher's schema-shaped config structs
// (internal/config/config.go) generalized into a validated domain value,
// and on internal/marketplace's connector/template value objects.
package manifest

// Developer identifies the third party that authored an app.
type Developer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RateLimit is the app's requested default call budget.
type RateLimit struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
}

// Command is a slash-command style capability the app exposes.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AppManifest is the third-party app's declared contract. Once accepted by
// the lifecycle FSM it is treated as immutable; resubmission replaces it
// wholesale rather than patching it in place.
type AppManifest struct {
	SchemaVersion string    `json:"schemaVersion"`
	AppID         string    `json:"appId"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Version       string    `json:"version"`
	Developer     Developer `json:"developer"`
	Scopes        []string  `json:"scopes"`
	Events        []string  `json:"events,omitempty"`
	WebhookURL    string    `json:"webhookUrl,omitempty"`
	Commands      []Command `json:"commands,omitempty"`
	RateLimit     RateLimit `json:"rateLimit"`
}
