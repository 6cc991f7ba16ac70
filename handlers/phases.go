package handlers

import (
	"net/http"

	"structura/apperr"
	"structura/services"
)

type PhaseHandler struct {
	phases *services.PhaseService
}

func NewPhaseHandler(phases *services.PhaseService) *PhaseHandler {
	return &PhaseHandler{phases: phases}
}

func (h *PhaseHandler) ListPhases(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryID(r, "project_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if projectID == 0 {
		writeError(w, r, apperr.NewValidationError("project_id", "is required"))
		return
	}
	out, err := h.phases.ListPhases(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PhaseHandler) CreatePhase(w http.ResponseWriter, r *http.Request) {
	var in services.PhaseInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	phase, err := h.phases.CreatePhase(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, phase)
}

func (h *PhaseHandler) GetPhase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	phase, err := h.phases.GetPhase(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

func (h *PhaseHandler) UpdatePhase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch services.PhasePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	phase, err := h.phases.UpdatePhase(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

func (h *PhaseHandler) DeletePhase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.phases.DeletePhase(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PhaseHandler) ListSubtasks(w http.ResponseWriter, r *http.Request) {
	phaseID, err := queryID(r, "phase_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if phaseID == 0 {
		writeError(w, r, apperr.NewValidationError("phase_id", "is required"))
		return
	}
	out, err := h.phases.ListSubtasks(r.Context(), phaseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PhaseHandler) CreateSubtask(w http.ResponseWriter, r *http.Request) {
	var in services.SubtaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.phases.CreateSubtask(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *PhaseHandler) UpdateSubtask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch services.SubtaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.phases.UpdateSubtask(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *PhaseHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.phases.DeleteSubtask(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
