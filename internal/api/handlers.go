package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xferlogic/gateway/internal/auth"
	"github.com/xferlogic/gateway/internal/core"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeSVG  = "image/svg+xml"

	providerErrorMessage = "The generation provider failed to process the request"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type APIHandler struct {
	users      *core.UserService
	generation *core.GenerationService
	documents  *core.DocumentService
	tokens     *auth.TokenService
	db         Pinger
	log        *logrus.Logger

	// exposeProviderErrors forwards upstream provider messages to clients.
	exposeProviderErrors bool
}

func NewAPIHandler(
	users *core.UserService,
	generation *core.GenerationService,
	documents *core.DocumentService,
	tokens *auth.TokenService,
	db Pinger,
	log *logrus.Logger,
	exposeProviderErrors bool,
) *APIHandler {
	return &APIHandler{
		users:                users,
		generation:           generation,
		documents:            documents,
		tokens:               tokens,
		db:                   db,
		log:                  log,
		exposeProviderErrors: exposeProviderErrors,
	}
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var providerErr *core.ProviderError
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrEmailExists),
		errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrPasswordTooLong),
		errors.Is(err, core.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &providerErr):
		if h.exposeProviderErrors {
			writeError(w, http.StatusInternalServerError, providerErr.Error())
		} else {
			writeError(w, http.StatusInternalServerError, providerErrorMessage)
		}
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.users.Register(r.Context(), req.Email, req.Password); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	user, err := h.users.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type TextRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

func (h *APIHandler) TextHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.generation.GenerateText(r.Context(), identity.UserID, req.Prompt, req.Model)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": result.Text})
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

func (h *APIHandler) ImageHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req ImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.generation.GenerateImage(r.Context(), identity.UserID, req.Prompt)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"image": result.URL})
}

type TextDocumentRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) PDFHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req TextDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	data, err := h.documents.RenderPDF(r.Context(), identity.UserID, req.Text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeFile(w, contentTypePDF, "document.pdf", data)
}

func (h *APIHandler) DOCXHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req TextDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	data, err := h.documents.RenderDOCX(r.Context(), identity.UserID, req.Text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeFile(w, contentTypeDOCX, "document.docx", data)
}

type ExcelRequest struct {
	Rows [][]any `json:"rows"`
}

func (h *APIHandler) ExcelHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req ExcelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	data, err := h.documents.RenderXLSX(r.Context(), identity.UserID, req.Rows)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeFile(w, contentTypeXLSX, "document.xlsx", data)
}

type SVGRequest struct {
	SVG string `json:"svg"`
}

func (h *APIHandler) SVGHandler(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req SVGRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	data, err := h.documents.RenderSVG(r.Context(), identity.UserID, req.SVG)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeSVG)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
