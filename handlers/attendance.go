package handlers

import (
	"net/http"

	"structura/apperr"
	"structura/models"
	"structura/services"
)

type AttendanceHandler struct {
	ledger *services.AttendanceLedger
}

func NewAttendanceHandler(ledger *services.AttendanceLedger) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger}
}

func (h *AttendanceHandler) Query(w http.ResponseWriter, r *http.Request) {
	var filter models.AttendanceFilter
	var err error
	if filter.ProjectID, err = queryID(r, "project_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.FieldWorkerID, err = queryID(r, "field_worker_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("attendance_date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			writeError(w, r, apperr.NewValidationError("attendance_date", err.Error()))
			return
		}
		filter.Date = &d
	}
	out, err := h.ledger.Query(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Create records a new day. A second create for the same worker and day
// answers 409; use PUT to change an existing record.
func (h *AttendanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.RecordAttendanceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.ledger.Record(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateByKey changes the record named by field_worker_id and
// attendance_date in the body.
func (h *AttendanceHandler) UpdateByKey(w http.ResponseWriter, r *http.Request) {
	var in services.RecordAttendanceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := apperr.Validate(&in); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.ledger.UpdateByKey(r.Context(), in.FieldWorkerID, *in.AttendanceDate, in.AttendanceFields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AttendanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var fields services.AttendanceFields
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.ledger.Update(r.Context(), id, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.ledger.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
