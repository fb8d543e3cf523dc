package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"menagerie/internal/api"
	"menagerie/pkg/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logging.Error("Server", err, "Failed to encode response")
		}
	}
}

// writeError maps domain errors onto HTTP status codes: not-found to 404,
// invalid config to 400, in-use conflicts to 409, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case api.IsNotFound(err):
		status = http.StatusNotFound
	case api.IsConfigError(err):
		status = http.StatusBadRequest
	case errors.Is(err, api.ErrTemplateInUse):
		status = http.StatusConflict
	case api.IsConnectError(err):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func instanceManager(w http.ResponseWriter) api.InstanceManagerHandler {
	h := api.GetInstanceManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: api.ErrInstanceManagerNotRegistered.Error()})
	}
	return h
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	h := instanceManager(w)
	if h == nil {
		return
	}
	writeJSON(w, http.StatusOK, h.ListInstances())
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	h := instanceManager(w)
	if h == nil {
		return
	}
	var req api.CreateInstanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := h.CreateInstance(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	h := instanceManager(w)
	if h == nil {
		return
	}
	status, err := h.GetInstance(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	h := instanceManager(w)
	if h == nil {
		return
	}
	var req api.UpdateInstanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := h.UpdateInstance(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	h := instanceManager(w)
	if h == nil {
		return
	}
	if err := h.DeleteInstance(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartInstance(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, api.InstanceManagerHandler.StartInstance)
}

func (s *Server) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, api.InstanceManagerHandler.StopInstance)
}

func (s *Server) handleRestartInstance(w http.ResponseWriter, r *http.Request) {
	s.lifecycleOp(w, r, api.InstanceManagerHandler.RestartInstance)
}

// lifecycleOp runs one of the start/stop/restart method expressions against
// the registered handler.
func (s *Server) lifecycleOp(w http.ResponseWriter, r *http.Request,
	op func(api.InstanceManagerHandler, context.Context, string) (*api.InstanceStatus, error)) {
	h := instanceManager(w)
	if h == nil {
		return
	}
	status, err := op(h, r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	h := api.GetTemplateManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template manager handler not registered"})
		return
	}
	writeJSON(w, http.StatusOK, h.ListTemplates())
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	h := api.GetTemplateManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template manager handler not registered"})
		return
	}
	var tmpl api.TemplateInfo
	if !decodeBody(w, r, &tmpl) {
		return
	}
	created, err := h.CreateTemplate(tmpl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	h := api.GetTemplateManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template manager handler not registered"})
		return
	}
	tmpl, err := h.GetTemplate(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	h := api.GetTemplateManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template manager handler not registered"})
		return
	}
	var tmpl api.TemplateInfo
	if !decodeBody(w, r, &tmpl) {
		return
	}
	updated, err := h.UpdateTemplate(r.PathValue("id"), tmpl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	h := api.GetTemplateManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "template manager handler not registered"})
		return
	}
	if err := h.DeleteTemplate(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addCredentialRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	h := api.GetCredentialManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "credential manager handler not registered"})
		return
	}
	writeJSON(w, http.StatusOK, h.ListCredentials())
}

func (s *Server) handleAddCredential(w http.ResponseWriter, r *http.Request) {
	h := api.GetCredentialManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "credential manager handler not registered"})
		return
	}
	var req addCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	info, err := h.AddCredential(req.Name, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleDeactivateCredential(w http.ResponseWriter, r *http.Request) {
	h := api.GetCredentialManager()
	if h == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "credential manager handler not registered"})
		return
	}
	if err := h.DeactivateCredential(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	h := instanceManager(w)
	if h == nil {
		return
	}
	writeJSON(w, http.StatusOK, h.Stats())
}
