package models

import (
	"time"

	"gorm.io/gorm"
)

type ClientStatus string

const (
	ClientActive      ClientStatus = "active"
	ClientDeactivated ClientStatus = "deactivated"
)

// Client is the customer side of a project. ProjectID mirrors
// Project.ClientID.
type Client struct {
	ID           uint         `gorm:"primaryKey" json:"client_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ProjectID    *uint        `gorm:"index" json:"project_id"`
	Project      *Project     `gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL" json:"-"`
	FirstName    string       `gorm:"not null;size:100" json:"first_name"`
	MiddleName   *string      `gorm:"size:100" json:"middle_name"`
	LastName     string       `gorm:"not null;size:100" json:"last_name"`
	Email        string       `gorm:"uniqueIndex;not null;size:100" json:"email"`
	PasswordHash string       `gorm:"not null;size:255" json:"-"`
	PhoneNumber  string       `gorm:"size:20" json:"phone_number"`
	Birthdate    *Date        `json:"birthdate"`
	Status       ClientStatus `gorm:"not null;size:20" json:"status"`
}

func (c *Client) BeforeSave(_ *gorm.DB) error {
	if c.Status == "" {
		c.Status = ClientActive
	}
	return prepareCredentials(&c.Email, &c.PasswordHash)
}

func (*Client) Role() string { return "Client" }

func (c *Client) Ref() AccountRef { return AccountRef{Kind: KindClient, ID: c.ID} }
func (c *Client) Secret() string  { return c.PasswordHash }

func (c *Client) Identity() Identity {
	return Identity{
		Kind:        KindClient,
		ID:          c.ID,
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Role:        c.Role(),
		DisplayName: displayName(c.FirstName, c.LastName, c.Email),
		ProjectID:   c.ProjectID,
	}
}
