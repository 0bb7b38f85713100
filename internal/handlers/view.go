package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindmap-backend/internal/middleware"
	"mindmap-backend/internal/render"
	"mindmap-backend/internal/service/mapview"
	"mindmap-backend/pkg/api"
)

// ViewHandler serves mind-map views and their node mutation RPCs.
type ViewHandler struct {
	service mapview.Service
	emitter *render.Emitter
	logger  *zap.Logger
}

// NewViewHandler creates a view handler.
func NewViewHandler(service mapview.Service, emitter *render.Emitter, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{service: service, emitter: emitter, logger: logger}
}

// Routes mounts the view endpoints under /view/{viewName}.
func (h *ViewHandler) Routes(r chi.Router) {
	r.Get("/", h.Render)
	r.Get("/data", h.Data)
	r.Get("/state-fields", h.StateFields)
	r.Get("/config-form", h.ConfigurationForm)
	r.Post("/rename", h.Rename)
	r.Post("/move", h.Move)
	r.Post("/delete", h.Delete)
	r.Post("/create", h.Create)
}

// Render handles GET /view/{viewName}
func (h *ViewHandler) Render(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "viewName")
	user := middleware.CurrentUser(r.Context())

	data, err := h.service.MindData(r.Context(), name, queryState(r), user)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	cfg, err := h.service.View(r.Context(), name)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = h.emitter.Render(w, render.Page{
		View:        cfg,
		NodeData:    data.NodeData,
		LabelStyles: data.LabelStyles,
		Editable:    data.Editable,
		RootValue:   data.RootValue,
	})
	if err != nil {
		h.logger.Error("Render failed", zap.String("view", name), zap.Error(err))
	}
}

// Data handles GET /view/{viewName}/data
func (h *ViewHandler) Data(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.MindData(r.Context(), chi.URLParam(r, "viewName"), queryState(r), middleware.CurrentUser(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	api.JSON(w, http.StatusOK, data)
}

// StateFields handles GET /view/{viewName}/state-fields
func (h *ViewHandler) StateFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.service.StateFields(r.Context(), chi.URLParam(r, "viewName"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// ConfigurationForm handles GET /view/{viewName}/config-form
func (h *ViewHandler) ConfigurationForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.service.ConfigurationForm(r.Context(), chi.URLParam(r, "viewName"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	api.JSON(w, http.StatusOK, form)
}

// Rename handles POST /view/{viewName}/rename
func (h *ViewHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req api.RenameRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	err := h.service.Rename(r.Context(), chi.URLParam(r, "viewName"), req.ID.String(), req.Topic, middleware.CurrentUser(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	api.OK(w)
}

// Move handles POST /view/{viewName}/move
func (h *ViewHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req api.MoveRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	err := h.service.Move(r.Context(), chi.URLParam(r, "viewName"), req.ID.String(), req.ParentID.String(), middleware.CurrentUser(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	api.OK(w)
}

// Delete handles POST /view/{viewName}/delete
func (h *ViewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	err := h.service.Delete(r.Context(), chi.URLParam(r, "viewName"), req.ID.String(), middleware.CurrentUser(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	api.OK(w)
}

// Create handles POST /view/{viewName}/create
func (h *ViewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	created, err := h.service.Create(r.Context(), chi.URLParam(r, "viewName"), mapview.CreateInput{
		Topic:     req.Topic,
		ParentID:  req.ParentID.String(),
		RootValue: req.RootValue.String(),
	}, middleware.CurrentUser(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	api.Created(w, created.ID, created.Topic, created.HyperLink)
}
