package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"snipr/internal/domain"
	"snipr/internal/service"
)

// AdminHandler serves the super-admin surface: API key lifecycle and
// permanent link deletion.
type AdminHandler struct {
	keys  *service.APIKeyService
	links *service.LinkService
	log   *zap.Logger
}

func NewAdminHandler(keys *service.APIKeyService, links *service.LinkService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		keys:  keys,
		links: links,
		log:   log,
	}
}

type createKeyRequest struct {
	Tier         int16  `json:"tier" validate:"required,min=1,max=4"`
	Name         string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description  string `json:"description,omitempty" validate:"omitempty,max=500"`
	DailyLimit   *int   `json:"daily_limit,omitempty" validate:"omitempty,min=1"`
	MonthlyLimit *int   `json:"monthly_limit,omitempty" validate:"omitempty,min=1"`
}

type apiKeyResponse struct {
	ID           int64     `json:"id"`
	Key          string    `json:"key,omitempty"` // only populated on create
	Tier         int16     `json:"tier"`
	Name         string    `json:"name,omitempty"`
	Description  string    `json:"description,omitempty"`
	IsActive     bool      `json:"is_active"`
	DailyLimit   *int      `json:"daily_limit"`
	MonthlyLimit *int      `json:"monthly_limit"`
	UsageToday   int       `json:"usage_today"`
	UsageMonth   int       `json:"usage_month"`
	CreatedAt    time.Time `json:"created_at"`
}

func toKeyResponse(key *domain.ApiKey, includeToken bool) apiKeyResponse {
	resp := apiKeyResponse{
		ID:           key.ID,
		Tier:         key.Tier,
		Name:         key.Name,
		Description:  key.Description,
		IsActive:     key.IsActive,
		DailyLimit:   key.DailyLimit,
		MonthlyLimit: key.MonthlyLimit,
		UsageToday:   key.UsageToday,
		UsageMonth:   key.UsageMonth,
		CreatedAt:    key.CreatedAt,
	}
	if includeToken {
		resp.Key = key.Key
	}
	return resp
}

// CreateKey handles POST /api/admin/keys. The token is returned exactly
// once, in this response.
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.keys.Create(r.Context(), service.CreateKeyParams{
		Tier:         req.Tier,
		Name:         req.Name,
		Description:  req.Description,
		DailyLimit:   req.DailyLimit,
		MonthlyLimit: req.MonthlyLimit,
	})
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toKeyResponse(key, true))
}

// ListKeys handles GET /api/admin/keys.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	out := make([]apiKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, toKeyResponse(key, false))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  out,
		"count": len(out),
	})
}

type updateKeyRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=500"`
	IsActive     *bool   `json:"is_active,omitempty"`
	DailyLimit   *int    `json:"daily_limit,omitempty" validate:"omitempty,min=1"`
	MonthlyLimit *int    `json:"monthly_limit,omitempty" validate:"omitempty,min=1"`
	ClearLimits  bool    `json:"clear_limits,omitempty"`
}

// UpdateKey handles PATCH /api/admin/keys/{id}.
func (h *AdminHandler) UpdateKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.keyID(w, r)
	if !ok {
		return
	}

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.keys.Update(r.Context(), id, service.UpdateKeyParams{
		Name:         req.Name,
		Description:  req.Description,
		IsActive:     req.IsActive,
		DailyLimit:   req.DailyLimit,
		MonthlyLimit: req.MonthlyLimit,
		ClearLimits:  req.ClearLimits,
	})
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toKeyResponse(key, false))
}

// DeleteKey handles DELETE /api/admin/keys/{id}.
func (h *AdminHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	id, ok := h.keyID(w, r)
	if !ok {
		return
	}

	if err := h.keys.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetKeyUsage handles POST /api/admin/keys/{id}/reset.
func (h *AdminHandler) ResetKeyUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.keyID(w, r)
	if !ok {
		return
	}

	if err := h.keys.ResetUsage(r.Context(), id); err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	key, err := h.keys.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toKeyResponse(key, false))
}

// adminLinkResponse exposes the state fields the owner-facing link
// responses hide: deletion flag and owning key.
type adminLinkResponse struct {
	Code              string     `json:"code"`
	Target            string     `json:"target"`
	OwnerKey          *string    `json:"owner_key,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ClickCount        int64      `json:"click_count"`
	IsActive          bool       `json:"is_active"`
	IsDeleted         bool       `json:"is_deleted"`
	PasswordProtected bool       `json:"password_protected"`
}

// GetLink handles GET /api/admin/links/{code}: an audit read that sees
// links in any state, soft-deleted ones included.
func (h *AdminHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Inspect(r.Context(), r.PathValue("code"))
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, adminLinkResponse{
		Code:              link.Code,
		Target:            link.Target,
		OwnerKey:          link.OwnerKey,
		CreatedAt:         link.CreatedAt,
		ExpiresAt:         link.ExpiresAt,
		ClickCount:        link.ClickCount,
		IsActive:          link.IsActive,
		IsDeleted:         link.IsDeleted,
		PasswordProtected: link.PasswordHash != nil,
	})
}

// DeleteLink handles DELETE /api/admin/links/{code}: the permanent variant
// that also removes the link's click events.
func (h *AdminHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.links.PermanentDelete(r.Context(), r.PathValue("code")); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) keyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid key id")
		return 0, false
	}
	return id, true
}
