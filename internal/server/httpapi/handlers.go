package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
	"github.com/Anshumanformal/Tab-SyncAR/internal/service"
)

type handlers struct {
	auth    service.AuthService
	urls    service.URLService
	devices service.DeviceService
	log     *zap.Logger
}

type addURLsRequest struct {
	URLs []model.NewURL `json:"urls"`
}

type deleteURLsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type mintTokenRequest struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// mintToken stands in for the identity-provider callback: the upstream
// flow has already proven the email by the time this is called.
func (h *handlers) mintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}
	if req.Provider == "" {
		req.Provider = "google"
	}
	tokens, _, err := h.auth.TokenForEmail(r.Context(), req.Email, req.Provider)
	if err != nil {
		h.fail(w, "mint token", err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// me returns the account the presented token belongs to.
func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	u, err := h.auth.User(r.Context(), userID)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handlers) listURLs(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	out, err := h.urls.List(r.Context(), userID)
	if err != nil {
		h.fail(w, "list urls", err)
		return
	}
	if out == nil {
		out = []model.SavedURL{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) addURLs(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	var req addURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}
	inserted, err := h.urls.Add(r.Context(), userID, req.URLs)
	if err != nil {
		h.fail(w, "add urls", err)
		return
	}
	writeJSON(w, http.StatusCreated, inserted)
}

func (h *handlers) deleteURLs(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	var req deleteURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids required")
		return
	}
	if err := h.urls.Delete(r.Context(), userID, req.IDs); err != nil {
		h.fail(w, "delete urls", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) listDevices(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	out, err := h.devices.List(r.Context(), userID)
	if err != nil {
		h.fail(w, "list devices", err)
		return
	}
	if out == nil {
		out = []model.Device{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) registerDevice(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	var info model.DeviceInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeError(w, http.StatusBadRequest, "invalid device payload")
		return
	}
	dev, err := h.devices.Register(r.Context(), userID, info)
	if err != nil {
		h.fail(w, "register device", err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// fail maps service errors to status codes; sentinels cross layers, codes
// exist only here at the edge.
func (h *handlers) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrCapacity):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case isValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error(op, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidation(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "validation:")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
