package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"snipr/internal/analytics"
	"snipr/internal/auth"
	"snipr/internal/service"
)

// accessTokenHeader lets a verified visitor revisit a password-protected
// link without re-supplying the password.
const accessTokenHeader = "X-Link-Access-Token"

// RedirectHandler serves the public short-link surface: the redirect itself
// and the password-verification exchange.
type RedirectHandler struct {
	links     *service.LinkService
	processor *analytics.Processor
	tokens    *auth.AccessTokenService
	log       *zap.Logger
}

func NewRedirectHandler(links *service.LinkService, processor *analytics.Processor, tokens *auth.AccessTokenService, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		links:     links,
		processor: processor,
		tokens:    tokens,
		log:       log,
	}
}

// Redirect handles GET /{code}. Password-protected links answer 401 with a
// password_required marker unless a valid access token accompanies the
// request. The click is recorded asynchronously so the redirect never waits
// on storage.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	link, err := h.links.Resolve(r.Context(), code, "")
	if errors.Is(err, service.ErrPasswordRequired) && h.tokens != nil {
		if token := r.Header.Get(accessTokenHeader); token != "" && h.tokens.Validate(token, code) == nil {
			link, err = h.links.ResolveVerified(r.Context(), code)
		}
	}
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	h.submitClick(code, r)
	http.Redirect(w, r, link.Target, http.StatusFound)
}

type resolveRequest struct {
	Password string `json:"password"`
}

// Resolve handles POST /{code}: password verification for protected links.
// On success the target is returned along with a short-lived access token so
// the client can follow the redirect directly.
func (h *RedirectHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.links.Resolve(r.Context(), code, req.Password)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}

	resp := map[string]interface{}{"target": link.Target}
	if h.tokens != nil && link.IsPasswordProtected() {
		token, err := h.tokens.Issue(code)
		if err != nil {
			h.log.Error("failed to issue access token", zap.Error(err))
		} else {
			resp["access_token"] = token
		}
	}

	h.submitClick(code, r)
	respondJSON(w, http.StatusOK, resp)
}

func (h *RedirectHandler) submitClick(code string, r *http.Request) {
	if h.processor == nil {
		return
	}

	err := h.processor.Submit(&analytics.Job{
		Code: code,
		Request: service.RequestContext{
			IPAddress: service.ClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), r.Header.Get("X-Real-IP")),
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
			ClickedAt: time.Now().UTC(),
		},
	})
	if err != nil {
		h.log.Warn("click not recorded", zap.String("code", code), zap.Error(err))
	}
}
