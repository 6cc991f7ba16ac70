package handlers

import (
	"net/http"

	"structura/models"

	"gorm.io/gorm"
)

// AddressHandler serves the read-only region/province/city/barangay lists.
type AddressHandler struct {
	db *gorm.DB
}

func NewAddressHandler(db *gorm.DB) *AddressHandler {
	return &AddressHandler{db: db}
}

func (h *AddressHandler) Regions(w http.ResponseWriter, r *http.Request) {
	listAddress[models.Region](h.db, w, r, "")
}

func (h *AddressHandler) Provinces(w http.ResponseWriter, r *http.Request) {
	listAddress[models.Province](h.db, w, r, "region")
}

func (h *AddressHandler) Cities(w http.ResponseWriter, r *http.Request) {
	listAddress[models.City](h.db, w, r, "province")
}

func (h *AddressHandler) Barangays(w http.ResponseWriter, r *http.Request) {
	listAddress[models.Barangay](h.db, w, r, "city")
}

// listAddress lists rows of T by name, filtered by the parent id carried in
// the query parameter of the same name as the parent (e.g. ?region=4).
func listAddress[T any](db *gorm.DB, w http.ResponseWriter, r *http.Request, parent string) {
	q := db.WithContext(r.Context()).Order("name")
	if parent != "" {
		parentID, err := queryID(r, parent)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if parentID != 0 {
			q = q.Where(parent+"_id = ?", parentID)
		}
	}
	out := []T{}
	if err := q.Find(&out).Error; err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
