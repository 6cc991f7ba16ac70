package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"structura/apperr"
	"structura/models"
	"structura/services"
)

type WorkforceHandler struct {
	registry *services.WorkforceRegistry
}

func NewWorkforceHandler(registry *services.WorkforceRegistry) *WorkforceHandler {
	return &WorkforceHandler{registry: registry}
}

func (h *WorkforceHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryID(r, "project_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var workers []models.FieldWorker
	if projectID != 0 {
		workers, err = h.registry.ListWorkersForProject(r.Context(), projectID)
	} else {
		workers, err = h.registry.ListWorkers(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (h *WorkforceHandler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var in services.WorkerInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	worker, err := h.registry.CreateWorker(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

func (h *WorkforceHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	worker, err := h.registry.GetWorker(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (h *WorkforceHandler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch services.WorkerPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	worker, err := h.registry.UpdateWorker(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (h *WorkforceHandler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.registry.DeleteWorker(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkforceHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	subtaskID, err := queryID(r, "subtask_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subtaskID == 0 {
		writeError(w, r, apperr.NewValidationError("subtask_id", "is required"))
		return
	}
	out, err := h.registry.ListAssignmentsForSubtask(r.Context(), subtaskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Assign accepts either one {subtask_id, field_worker_id} object or an
// array of them. An array is committed all-or-nothing.
func (h *WorkforceHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, r, err)
		return
	}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		var pairs []models.AssignmentPair
		if err := json.Unmarshal(raw, &pairs); err != nil {
			writeError(w, r, apperr.NewValidationError("body", "malformed JSON: "+err.Error()))
			return
		}
		out, err := h.registry.AssignWorkersBulk(r.Context(), pairs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
		return
	}

	var pair models.AssignmentPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		writeError(w, r, apperr.NewValidationError("body", "malformed JSON: "+err.Error()))
		return
	}
	out, err := h.registry.AssignWorker(r.Context(), pair)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// UnassignBySubtask answers 204 and reports the removed rows in
// X-Deleted-Count.
func (h *WorkforceHandler) UnassignBySubtask(w http.ResponseWriter, r *http.Request) {
	subtaskID, err := queryID(r, "subtask_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.registry.UnassignBySubtask(r.Context(), subtaskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Deleted-Count", strconv.FormatInt(n, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkforceHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.registry.Unassign(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
