package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"snipr/internal/auth"
	"snipr/internal/domain"
	"snipr/internal/service"
)

var validate = validator.New()

// LinksHandler serves the authenticated link-management API.
type LinksHandler struct {
	links   *service.LinkService
	clicks  *service.ClickService
	baseURL string
	log     *zap.Logger
}

func NewLinksHandler(links *service.LinkService, clicks *service.ClickService, baseURL string, log *zap.Logger) *LinksHandler {
	return &LinksHandler{
		links:   links,
		clicks:  clicks,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

type createLinkRequest struct {
	URL           string `json:"url" validate:"required,max=2048"`
	CustomCode    string `json:"custom_code,omitempty" validate:"omitempty,max=20"`
	ExpiresInDays int    `json:"expires_in_days,omitempty" validate:"omitempty,min=1,max=3650"`
	Password      string `json:"password,omitempty" validate:"omitempty,min=1,max=128"`
	Title         string `json:"title,omitempty" validate:"omitempty,max=255"`
	Description   string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Tags          string `json:"tags,omitempty" validate:"omitempty,max=500"`
}

type linkResponse struct {
	Code              string     `json:"code"`
	ShortURL          string     `json:"short_url"`
	Target            string     `json:"target"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ClickCount        int64      `json:"click_count"`
	IsActive          bool       `json:"is_active"`
	PasswordProtected bool       `json:"password_protected"`
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
}

func (h *LinksHandler) toResponse(link *domain.Link) linkResponse {
	return linkResponse{
		Code:              link.Code,
		ShortURL:          h.baseURL + "/" + link.Code,
		Target:            link.Target,
		CreatedAt:         link.CreatedAt,
		ExpiresAt:         link.ExpiresAt,
		ClickCount:        link.ClickCount,
		IsActive:          link.IsActive,
		PasswordProtected: link.IsPasswordProtected(),
		Title:             link.Title,
		Description:       link.Description,
		Tags:              link.TagList(),
	}
}

// Create handles POST /api/shorten. A reused existing link answers 200, a
// freshly created one 201.
func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, created, err := h.links.Create(r.Context(), req.URL, service.CreateOptions{
		CustomCode:    req.CustomCode,
		ExpiresInDays: req.ExpiresInDays,
		Password:      req.Password,
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
	}, key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, h.toResponse(link))
}

// List handles GET /api/links.
func (h *LinksHandler) List(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	links, err := h.links.List(r.Context(), key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	out := make([]linkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, h.toResponse(link))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"links": out,
		"count": len(out),
	})
}

// Get handles GET /api/links/{code}.
func (h *LinksHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	link, err := h.links.Get(r.Context(), r.PathValue("code"), key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(link))
}

type updateLinkRequest struct {
	Target        *string `json:"target,omitempty" validate:"omitempty,max=2048"`
	Title         *string `json:"title,omitempty" validate:"omitempty,max=255"`
	Description   *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Tags          *string `json:"tags,omitempty" validate:"omitempty,max=500"`
	ExpiresInDays *int    `json:"expires_in_days,omitempty" validate:"omitempty,min=0,max=3650"`
	Password      *string `json:"password,omitempty" validate:"omitempty,max=128"`
}

// Update handles PATCH /api/links/{code} with partial semantics: absent
// fields stay untouched, empty strings clear.
func (h *LinksHandler) Update(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	var req updateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, err := h.links.Update(r.Context(), r.PathValue("code"), service.UpdateFields{
		Target:        req.Target,
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
		ExpiresInDays: req.ExpiresInDays,
		Password:      req.Password,
	}, key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(link))
}

// Delete handles DELETE /api/links/{code} (soft).
func (h *LinksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	if err := h.links.SoftDelete(r.Context(), r.PathValue("code"), key); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle handles POST /api/links/{code}/toggle.
func (h *LinksHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	link, err := h.links.ToggleActive(r.Context(), r.PathValue("code"), key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toResponse(link))
}

type cloneLinkRequest struct {
	CustomCode string `json:"custom_code,omitempty" validate:"omitempty,max=20"`
}

// Clone handles POST /api/links/{code}/clone.
func (h *LinksHandler) Clone(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	var req cloneLinkRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	link, err := h.links.Clone(r.Context(), r.PathValue("code"), req.CustomCode, key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.toResponse(link))
}

type bulkCreateRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,max=100,dive,required"`
}

type bulkItemResponse struct {
	Target string        `json:"target"`
	Link   *linkResponse `json:"link,omitempty"`
	Reused bool          `json:"reused,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// BulkCreate handles POST /api/shorten/bulk. Items succeed or fail
// independently; the response carries both partitions.
func (h *LinksHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.links.BulkCreate(r.Context(), req.URLs, key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	out := make([]bulkItemResponse, 0, len(results))
	succeeded := 0
	for _, res := range results {
		item := bulkItemResponse{Target: res.Target, Reused: res.Reused}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			resp := h.toResponse(res.Link)
			item.Link = &resp
			succeeded++
		}
		out = append(out, item)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results":   out,
		"succeeded": succeeded,
		"failed":    len(out) - succeeded,
	})
}

// Stats handles GET /api/stats/{code}.
func (h *LinksHandler) Stats(w http.ResponseWriter, r *http.Request) {
	key, ok := auth.APIKeyFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "API key required")
		return
	}

	stats, err := h.clicks.Stats(r.Context(), r.PathValue("code"), key)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"link":      h.toResponse(stats.Link),
		"breakdown": stats.Breakdown,
	})
}
