package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nchat/trustplane/internal/abuse/raid"
	"github.com/nchat/trustplane/internal/abuse/spam"
	"github.com/nchat/trustplane/internal/apps"
	"github.com/nchat/trustplane/internal/auth"
	"github.com/nchat/trustplane/internal/events"
	"github.com/nchat/trustplane/internal/manifest"
	"github.com/nchat/trustplane/internal/opsfeed"
	"github.com/nchat/trustplane/internal/platform"
	"github.com/nchat/trustplane/internal/privacy"
	"github.com/nchat/trustplane/internal/quota"
)

// -- App lifecycle -----------------------------------------------------

func handleRegisterApp(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Manifest manifest.AppManifest `json:"manifest"`
			Actor    string                `json:"actor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		app, clientSecret, err := p.Apps.RegisterApp(req.Manifest, req.Actor)
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			*apps.RegisteredApp
			ClientSecret string `json:"clientSecret"`
		}{app, clientSecret})
	}
}

func handleListApps(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Apps.ListApps())
	}
}

func handleGetApp(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app := p.Apps.GetApp(mux.Vars(r)["id"])
		if app == nil {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func handleApproveApp(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := p.Apps.ApproveApp(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func handleRejectApp(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		app, err := p.Apps.RejectApp(mux.Vars(r)["id"], req.Reason)
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func handleSuspendApp(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := p.Apps.SuspendApp(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func handleInstallApp(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WorkspaceID string   `json:"workspaceId"`
			Actor       string   `json:"actor"`
			Scopes      []string `json:"scopes,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		inst, err := p.Apps.InstallApp(mux.Vars(r)["id"], req.WorkspaceID, req.Actor, req.Scopes)
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, inst)
	}
}

func handleEnableInstallation(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := p.Apps.EnableInstallation(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func handleDisableInstallation(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := p.Apps.DisableInstallation(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func handleUninstallApp(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := p.Apps.UninstallApp(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, statusForAppsError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func statusForAppsError(err error) int {
	appsErr, ok := err.(*apps.Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appsErr.Code() {
	case apps.CodeAppNotFound, apps.CodeInstallationNotFound:
		return http.StatusNotFound
	case apps.CodeManifestInvalid, apps.CodeScopeNotInManifest:
		return http.StatusBadRequest
	case apps.CodeDuplicateAppID, apps.CodeInstallationExists, apps.CodeInvalidStateTransition:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// -- Token issuance ------------------------------------------------------

func handleIssueToken(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AppID          string   `json:"appId"`
			InstallationID string   `json:"installationId"`
			ClientSecret   string   `json:"clientSecret"`
			Scopes         []string `json:"scopes,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		app := p.Apps.GetApp(req.AppID)
		if app == nil {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		inst := p.Apps.GetInstallation(req.InstallationID)
		if inst == nil {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		issued, err := p.Auth.IssueTokens(auth.IssueRequest{ClientSecret: req.ClientSecret, RequestedScopes: req.Scopes}, app, inst)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if p.Metrics != nil {
			p.Metrics.TokensIssued.Inc()
		}
		writeJSON(w, http.StatusOK, issued)
	}
}

func handleRefreshToken(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		issued, err := p.Auth.RefreshAccessToken(req.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeJSON(w, http.StatusOK, issued)
	}
}

func handleIntrospectToken(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		tok, err := p.Auth.ValidateToken(req.Token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"active": true, "token": tok})
	}
}

func handleRevokeToken(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := p.Auth.RevokeToken(req.Token); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if p.Metrics != nil {
			p.Metrics.TokensRevoked.Inc()
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	}
}

// -- Webhook subscription CRUD -------------------------------------------

func handleSubscribeWebhook(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AppID          string   `json:"appId"`
			InstallationID string   `json:"installationId"`
			Events         []string `json:"events"`
			WebhookURL     string   `json:"webhookUrl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		inst := p.Apps.GetInstallation(req.InstallationID)
		if inst == nil {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		types := make([]events.Type, 0, len(req.Events))
		for _, e := range req.Events {
			types = append(types, events.Type(e))
		}
		sub, err := p.Events.Subscribe(req.AppID, req.InstallationID, types, req.WebhookURL, inst.GrantedScopes)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

func handleGetWebhook(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := p.Events.Get(mux.Vars(r)["id"])
		if sub == nil {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func handleUnsubscribeWebhook(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.Events.Unsubscribe(mux.Vars(r)["id"]); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
	}
}

// -- Rate limit inspection -------------------------------------------------

func handleRateLimitStatus(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		result := p.Limiter.Probe(quota.Action(vars["action"]), vars["identifier"], quota.CheckOptions{
			ChannelID: r.URL.Query().Get("channelId"),
		})
		writeJSON(w, http.StatusOK, result)
	}
}

// -- Spam rule CRUD & analysis ---------------------------------------------

func handleAddSpamRule(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rule spam.Rule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := p.Spam.AddRule(rule); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, rule)
	}
}

func handleAnalyzeSpam(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string      `json:"content"`
			Context spam.Context `json:"context"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result := p.Spam.Analyze(req.Content, req.Context)
		if p.Metrics != nil {
			p.Metrics.SpamVerdicts.WithLabelValues(string(result.Severity), boolLabelStr(result.IsSpam)).Inc()
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func boolLabelStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// -- Raid / lockdown status --------------------------------------------

func handleGetLockdown(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"key":   key,
			"level": p.Raid.LockdownLevel(key),
		})
	}
}

func handleSetLockdown(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Level      string `json:"level"`
			DurationMs int64  `json:"durationMs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		key := mux.Vars(r)["key"]
		level := raid.LockdownLevel(req.Level)
		if level == raid.LockdownNone {
			p.Raid.LiftLockdown(key)
		} else {
			p.Raid.ActivateLockdown(key, level, time.Duration(req.DurationMs)*time.Millisecond)
			if p.Feed != nil {
				p.Feed.Publish(opsfeed.EventLockdownActivated, map[string]string{"key": key, "level": req.Level})
			}
			if p.Metrics != nil {
				p.Metrics.LockdownsActive.WithLabelValues(req.Level).Inc()
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "level": p.Raid.LockdownLevel(key)})
	}
}

// -- Privacy settings CRUD ------------------------------------------------

func handleGetPrivacy(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := p.Privacy.Get(mux.Vars(r)["userId"])
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func handleUpdatePrivacy(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		var req struct {
			Level     *string         `json:"level,omitempty"`
			Overrides privacy.Update   `json:"overrides"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if req.Level != nil {
			settings, err := p.Privacy.SetLevel(userID, privacy.Level(*req.Level), req.Overrides)
			if err == privacy.ErrNotFound {
				created := p.Privacy.Create(userID, privacy.Level(*req.Level), req.Overrides)
				writeJSON(w, http.StatusCreated, created)
				return
			}
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, settings)
			return
		}

		settings, err := p.Privacy.UpdateSettings(userID, req.Overrides)
		if err != nil {
			if err == privacy.ErrNotFound {
				created := p.Privacy.Create(userID, privacy.LevelBalanced, req.Overrides)
				writeJSON(w, http.StatusCreated, created)
				return
			}
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func handlePrivacyAudit(p *platform.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]
		entries := p.Privacy.AuditLog(privacy.AuditFilter{UserID: userID})
		writeJSON(w, http.StatusOK, entries)
	}
}

var errNotFound = httpNotFoundError("resource not found")

type httpNotFoundError string

func (e httpNotFoundError) Error() string { return string(e) }
