package handlers

import (
	"net/http"

	"structura/services"
)

type ProjectHandler struct {
	coordinator *services.AssignmentCoordinator
	workforce   *services.WorkforceRegistry
}

func NewProjectHandler(coordinator *services.AssignmentCoordinator, workforce *services.WorkforceRegistry) *ProjectHandler {
	return &ProjectHandler{coordinator: coordinator, workforce: workforce}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	projects, err := h.coordinator.ListProjects(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateProjectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.coordinator.CreateProject(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.coordinator.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Update serves both PUT and PATCH. Omitted assignee fields are left as
// they are; an explicit null unassigns.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch services.ProjectPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := h.coordinator.UpdateProject(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.coordinator.DeleteProject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Workers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	workers, err := h.workforce.ListWorkersForProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}
