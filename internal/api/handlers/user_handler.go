package handlers

import (
	"net/http"

	appMiddleware "github.com/markdave123-py/intellbee/internal/api/middlewares"
	"github.com/markdave123-py/intellbee/internal/models"
	"github.com/markdave123-py/intellbee/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type prefsRequest struct {
	Lang        string `json:"lang"`
	VoiceGender string `json:"voiceGender"`
}

type prefsResponse struct {
	OK    bool         `json:"ok"`
	Prefs models.Prefs `json:"prefs"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	email, ok := appMiddleware.UserEmail(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.users.Profile(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) SetPrefs(w http.ResponseWriter, r *http.Request) {
	email, ok := appMiddleware.UserEmail(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req prefsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	prefs, err := h.users.UpdatePrefs(r.Context(), email, req.Lang, req.VoiceGender)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefsResponse{OK: true, Prefs: prefs})
}
