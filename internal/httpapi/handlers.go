package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-agent/atlas/internal/task"
)

type taskRequest struct {
	Description  string             `json:"description"`
	Risk         string             `json:"risk"`
	Urgency      string             `json:"urgency"`
	TargetWorker string             `json:"target_worker,omitempty"`
	Beliefs      map[string]float64 `json:"beliefs,omitempty"`
	Evidence     []string           `json:"evidence,omitempty"`
	Payload      map[string]any     `json:"payload,omitempty"`
	Source       string             `json:"source,omitempty"`
}

type taskResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    map[string]any    `json:"data,omitempty"`
	Errors  []string          `json:"errors,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Uptime: time.Since(s.startedAt).String()})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	boundary := task.Request{
		Description:  req.Description,
		Risk:         task.Risk(req.Risk),
		Urgency:      task.Urgency(req.Urgency),
		TargetWorker: req.TargetWorker,
		Beliefs:      req.Beliefs,
		Evidence:     req.Evidence,
		Payload:      req.Payload,
		Source:       req.Source,
	}
	t, err := task.FromRequest(boundary)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.coord.Handle(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{
		Success: result.Success,
		Message: result.Message,
		Data:    result.Data,
		Errors:  result.Errors,
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, true)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, false)
}

func (s *Server) resolveApproval(w http.ResponseWriter, r *http.Request, approved bool) {
	id := chi.URLParam(r, "id")
	result, err := s.approvals.HandleApprovalResponse(r.Context(), id, approved)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{
		Success: result.Success,
		Message: result.Message,
		Data:    result.Data,
		Errors:  result.Errors,
	})
}

func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.approvals.GetPendingApprovals())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
