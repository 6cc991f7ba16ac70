package models

import (
	"strings"

	"structura/vault"
)

// AccountKind names one of the three disjoint credential stores.
type AccountKind string

const (
	KindUser       AccountKind = "user"
	KindSupervisor AccountKind = "supervisor"
	KindClient     AccountKind = "client"
)

// Table returns the table backing an account kind.
func (k AccountKind) Table() string {
	switch k {
	case KindUser:
		return "users"
	case KindSupervisor:
		return "supervisors"
	case KindClient:
		return "clients"
	}
	return ""
}

// ProjectColumn returns the projects column that points at an assignee of
// this kind. Owners are not assignees and return "".
func (k AccountKind) ProjectColumn() string {
	switch k {
	case KindSupervisor:
		return "supervisor_id"
	case KindClient:
		return "client_id"
	}
	return ""
}

// AccountRef is a tagged reference to a row in one of the account tables.
type AccountRef struct {
	Kind AccountKind
	ID   uint
}

// Account is implemented by every account variant.
type Account interface {
	Ref() AccountRef
	Secret() string
	Identity() Identity
}

// Identity is the result of resolving credentials to an account.
type Identity struct {
	Kind        AccountKind `json:"type"`
	ID          uint        `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Role        string      `json:"role"`
	DisplayName string      `json:"display_name"`
	ProjectID   *uint       `json:"project_id,omitempty"`
}

// displayName is the full name, or the email when no name is on file.
func displayName(first, last, email string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return email
	}
	return name
}

// NormalizeEmail is applied on every write and every lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// prepareCredentials runs from the BeforeSave hooks of every account model.
func prepareCredentials(email, secret *string) error {
	*email = NormalizeEmail(*email)
	if *secret == "" {
		return nil
	}
	stored, err := vault.StoreSecret(*secret)
	if err != nil {
		return err
	}
	*secret = stored
	return nil
}
