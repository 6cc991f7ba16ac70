package handlers

import (
	"net/http"

	"structura/models"
	"structura/services"
)

// AccountHandler serves one account table: /users, /supervisors or /clients.
type AccountHandler struct {
	kind        models.AccountKind
	accounts    *services.AccountService
	coordinator *services.AssignmentCoordinator
}

func NewAccountHandler(kind models.AccountKind, accounts *services.AccountService, coordinator *services.AssignmentCoordinator) *AccountHandler {
	return &AccountHandler{kind: kind, accounts: accounts, coordinator: coordinator}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.accounts.ListAccounts(r.Context(), h.kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		out any
		err error
	)
	if h.kind == models.KindUser {
		var in services.OwnerInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		out, err = h.accounts.CreateOwner(r.Context(), in)
	} else {
		var in services.AssigneeInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
		out, err = h.accounts.CreateAssignee(r.Context(), h.kind, in)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := h.accounts.GetAccount(r.Context(), h.kind, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Update applies a partial update. For supervisors and clients a project_id
// in the body relinks the account through the assignment coordinator.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var out any
	if h.kind == models.KindUser {
		var patch services.OwnerPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}
		out, err = h.accounts.UpdateOwner(r.Context(), id, patch)
	} else {
		var patch services.AssigneePatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}
		out, err = h.accounts.UpdateAssignee(r.Context(), h.kind, id, patch)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.coordinator.DeleteAccount(r.Context(), h.kind, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
