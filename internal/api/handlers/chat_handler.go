package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	appMiddleware "github.com/markdave123-py/intellbee/internal/api/middlewares"
	"github.com/markdave123-py/intellbee/internal/models"
	"github.com/markdave123-py/intellbee/internal/services"
)

const (
	// DefaultMaxUploadBytes caps a whole multipart chat request.
	DefaultMaxUploadBytes = 32 << 20

	// maxUploadMemory bounds what ParseMultipartForm keeps in memory; larger
	// files spill to temp files.
	maxUploadMemory = 8 << 20
)

var errBodyTooLarge = errors.New("request body too large")

type ChatHandler struct {
	chat      *services.ChatService
	maxUpload int64
}

// NewChatHandler caps multipart bodies at maxUpload bytes; zero or less uses
// DefaultMaxUploadBytes.
func NewChatHandler(chat *services.ChatService, maxUpload int64) *ChatHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &ChatHandler{chat: chat, maxUpload: maxUpload}
}

type ChatRequest struct {
	Message string          `json:"message"`
	ChatID  json.RawMessage `json:"chat_id"`
	Lang    string          `json:"lang"`
}

type historyResponse struct {
	Conversations []models.Conversation `json:"conversations"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	email, ok := appMiddleware.UserEmail(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var (
		in  services.ChatInput
		err error
	)
	if isMultipart(r) {
		if r.ContentLength > h.maxUpload {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("%v: limit is %d bytes", errBodyTooLarge, h.maxUpload))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		in, err = readMultipart(r)
	} else {
		in, err = readJSON(r)
	}
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.chat.SendMessage(r.Context(), email, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	email, ok := appMiddleware.UserEmail(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Conversations: h.chat.History(r.Context(), email)})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func readJSON(r *http.Request) (services.ChatInput, error) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		return services.ChatInput{}, fmt.Errorf("invalid body")
	}
	return services.ChatInput{
		ChatID: chatIDString(req.ChatID),
		Text:   req.Message,
		Lang:   req.Lang,
	}, nil
}

// chatIDString accepts chat_id as a string or a bare number; null means none.
func chatIDString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func readMultipart(r *http.Request) (services.ChatInput, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.ChatInput{}, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return services.ChatInput{}, fmt.Errorf("invalid multipart body")
	}

	image, err := formAttachment(r.MultipartForm, "image")
	if err != nil {
		return services.ChatInput{}, err
	}
	audio, err := formAttachment(r.MultipartForm, "audio")
	if err != nil {
		return services.ChatInput{}, err
	}

	return services.ChatInput{
		ChatID: r.PostFormValue("chat_id"),
		Text:   r.PostFormValue("message"),
		Lang:   r.PostFormValue("lang"),
		Image:  image,
		Audio:  audio,
	}, nil
}

func formAttachment(form *multipart.Form, field string) (*services.Attachment, error) {
	if form == nil || len(form.File[field]) == 0 {
		return nil, nil
	}
	header := form.File[field][0]

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("invalid %s file", field)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("invalid %s file", field)
	}
	return &services.Attachment{
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
