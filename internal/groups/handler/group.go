package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"fleetbook/internal/groups/service"
	httputil "fleetbook/pkg/http"
	"fleetbook/pkg/logger"
	"fleetbook/pkg/middleware"
	"fleetbook/pkg/model"
)

type GroupHandler struct {
	service service.GroupService
	log     *logger.Logger
}

func NewGroupHandler(groupService service.GroupService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{
		service: groupService,
		log:     log,
	}
}

func (h *GroupHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/groups", h.Create)
	router.GET("/api/v1/groups", h.GetAll)
	router.GET("/api/v1/groups/:id", h.GetByID)
	router.PATCH("/api/v1/groups/:id", h.Update)
	router.DELETE("/api/v1/groups/:id", h.Delete)
	router.POST("/api/v1/groups/:id/join", h.Join)
	router.POST("/api/v1/groups/:id/leave", h.Leave)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var group model.Group
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "error", writeErr)
		}
		return
	}

	creatorID := middleware.UserIDFrom(r.Context())
	if err := h.service.Create(r.Context(), creatorID, &group); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, group); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *GroupHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := middleware.UserIDFrom(r.Context())

	membership, err := h.service.GetByID(r.Context(), userID, ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, membership); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *GroupHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	groups, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, groups, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.GroupUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "error", writeErr)
		}
		return
	}

	editorID := middleware.UserIDFrom(r.Context())
	if err := h.service.Update(r.Context(), ps.ByName("id"), editorID, &update); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	editorID := middleware.UserIDFrom(r.Context())

	if err := h.service.Delete(r.Context(), ps.ByName("id"), editorID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := middleware.UserIDFrom(r.Context())

	joined, err := h.service.Join(r.Context(), ps.ByName("id"), userID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Join", "error", writeErr)
		}
		return
	}

	if !joined {
		if err := httputil.WriteNotice(w, nil, "Already a member"); err != nil {
			h.log.Error("failed to write notice response", "handler", "Join", "error", err)
		}
		return
	}

	if err := httputil.WriteCreated(w, nil); err != nil {
		h.log.Error("failed to write created response", "handler", "Join", "error", err)
	}
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := middleware.UserIDFrom(r.Context())

	if err := h.service.Leave(r.Context(), ps.ByName("id"), userID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Leave", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}
