package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/service"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

const sessionTTL = 12 * time.Hour

// SystemHandler serves the operator management API: sessions, credentials,
// deny entries, notifications, and usage reporting.
type SystemHandler struct {
	store   *store.Store
	authSvc *service.AuthService
	deny    *service.DenyList
}

func NewSystemHandler(st *store.Store, authSvc *service.AuthService, deny *service.DenyList) *SystemHandler {
	return &SystemHandler{store: st, authSvc: authSvc, deny: deny}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// Login handles POST /system/admin/session.
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &body); err != nil || body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "InvalidBody", "Email and password are required")
		return
	}

	admin, err := h.authSvc.LoginAdmin(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "InvalidLogin", "Invalid email or password")
		return
	}

	token, err := h.authSvc.IssueJWT(admin.ID, admin.Email, sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SessionError", "Failed to issue session token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_token": token,
		"admin":         admin,
		"expires_in":    int64(sessionTTL.Seconds()),
	})
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// ListCredentials handles GET /system/credential.
func (h *SystemHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListCredentials(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to list credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credentials": list})
}

// CreateCredential handles POST /system/credential. The raw secret appears
// once in this response and is never retrievable again.
func (h *SystemHandler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
		Tier  string `json:"tier"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", "Request body must be JSON")
		return
	}
	if body.Tier == "" {
		body.Tier = model.TierStandard
	}
	switch body.Tier {
	case model.TierStandard, model.TierElevated, model.TierPremium:
	default:
		writeError(w, http.StatusBadRequest, "InvalidTier", "tier must be standard, elevated, or premium")
		return
	}

	rawSecret, cred, err := GenerateCredential(body.Label, body.Tier)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "KeygenError", "Failed to generate credential")
		return
	}
	if err := h.store.CreateCredential(r.Context(), cred); err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to store credential")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"credential": cred,
		"secret":     rawSecret,
	})
}

// RevokeCredential handles DELETE /system/credential/{credentialId}.
func (h *SystemHandler) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "credentialId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidParameter", "credentialId must be an integer")
		return
	}
	if err := h.store.DeactivateCredential(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NotFound", "Credential not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to revoke credential")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": id})
}

// UpdateCredentialTier handles PUT /system/credential/{credentialId}/tier.
func (h *SystemHandler) UpdateCredentialTier(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "credentialId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidParameter", "credentialId must be an integer")
		return
	}
	var body struct {
		Tier string `json:"tier"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", "Request body must be JSON")
		return
	}
	switch body.Tier {
	case model.TierStandard, model.TierElevated, model.TierPremium:
	default:
		writeError(w, http.StatusBadRequest, "InvalidTier", "tier must be standard, elevated, or premium")
		return
	}

	if err := h.store.UpdateCredentialTier(r.Context(), id, body.Tier); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NotFound", "Credential not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to update tier")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "tier": body.Tier})
}

// GenerateCredential creates a fresh credential secret and its stored form.
// The secret is SecretPrefix + 64 hex chars; only its hash is persisted.
func GenerateCredential(label, tier string) (string, *model.Credential, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}
	rawSecret := service.SecretPrefix + hex.EncodeToString(randomBytes)

	cred := &model.Credential{
		KeyHash:   store.HashSecret(rawSecret),
		KeyPrefix: rawSecret[:len(service.SecretPrefix)+8],
		Label:     label,
		Tier:      tier,
		IsActive:  true,
	}
	return rawSecret, cred, nil
}

// ---------------------------------------------------------------------------
// Deny list
// ---------------------------------------------------------------------------

// ListDenyEntries handles GET /system/denylist.
func (h *SystemHandler) ListDenyEntries(w http.ResponseWriter, r *http.Request) {
	list, err := h.deny.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to list deny entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": list})
}

// AddDenyEntry handles POST /system/denylist. A null credential_id creates a
// global entry.
func (h *SystemHandler) AddDenyEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetID     string `json:"target_id"`
		Reason       string `json:"reason"`
		CredentialID *int64 `json:"credential_id"`
	}
	if err := readJSON(r, &body); err != nil || body.TargetID == "" {
		writeError(w, http.StatusBadRequest, "InvalidBody", "target_id is required")
		return
	}

	entry, err := h.deny.Add(r.Context(), body.TargetID, body.Reason, body.CredentialID)
	if err != nil {
		if errors.Is(err, service.ErrDenyConflict) {
			writeError(w, http.StatusConflict, "Conflict", "An active entry for this target and scope already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to add deny entry")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// RemoveDenyEntry handles DELETE /system/denylist/{targetId}. An optional
// credential_id query scopes the removal.
func (h *SystemHandler) RemoveDenyEntry(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetId")

	var credentialID *int64
	if v := r.URL.Query().Get("credential_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidParameter", "credential_id must be an integer")
			return
		}
		credentialID = &id
	}

	if err := h.deny.Remove(r.Context(), targetID, credentialID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NotFound", "No active entry for this target and scope")
			return
		}
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to remove deny entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": targetID})
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// ListNotifications handles GET /system/notification?unread=true&limit=.
func (h *SystemHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListNotifications(r.Context(), queryBool(r, "unread"), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

// MarkNotificationRead handles PUT /system/notification/{notificationId}/read.
func (h *SystemHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidParameter", "notificationId must be an integer")
		return
	}
	if err := h.store.MarkNotificationRead(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NotFound", "Notification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to mark notification read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"read": id})
}

// ---------------------------------------------------------------------------
// Usage reporting
// ---------------------------------------------------------------------------

// RecentUsage handles GET /system/usage?credential_id=&limit=.
func (h *SystemHandler) RecentUsage(w http.ResponseWriter, r *http.Request) {
	var credentialID int64
	if v := r.URL.Query().Get("credential_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidParameter", "credential_id must be an integer")
			return
		}
		credentialID = id
	}

	list, err := h.store.ListRecentUsage(r.Context(), credentialID, queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to list usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": list})
}

// UsageSummary handles GET /system/usage/summary?days=.
func (h *SystemHandler) UsageSummary(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	if days <= 0 || days > 90 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	list, err := h.store.SummarizeUsage(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "StoreError", "Failed to summarize usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since, "summary": list})
}
