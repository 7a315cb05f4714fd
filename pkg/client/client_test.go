package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueToken_PostsExpectedBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Issued{AccessToken: "nchat_at_x", TokenType: "Bearer", ExpiresIn: 3600})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AppID: "app_1", ClientSecret: "secret"})
	issued, err := c.IssueToken(context.Background(), "ins_1", []string{"read:messages"})

	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("/oauth/token", gotPath)
	assert.Equal("app_1", gotBody["appId"])
	assert.Equal("ins_1", gotBody["installationId"])
	assert.Equal("nchat_at_x", issued.AccessToken)
}

func TestIntrospectToken_ReportsInactiveOnServerFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(IntrospectionResult{Active: false})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	result, err := c.IntrospectToken(context.Background(), "bogus")

	assert.NoError(t, err)
	assert.False(t, result.Active)
}

func TestCheckRateLimit_BuildsPathFromActionAndIdentifier(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(RateLimitStatus{Allowed: true, Remaining: 5, Limit: 10})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	status, err := c.CheckRateLimit(context.Background(), "message", "user1")

	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("/ratelimits/message/user1", gotPath)
	assert.True(status.Allowed)
	assert.Equal(5, status.Remaining)
}

func TestDo_ReturnsErrorOnServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid client secret"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.IssueToken(context.Background(), "ins_1", nil)
	assert.Error(t, err)
}
