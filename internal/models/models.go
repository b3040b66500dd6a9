package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleList is a string slice stored as a JSON text column so the same model
// migrates on postgres and on the sqlite test database.
type RoleList []string

func (r RoleList) Value() (driver.Value, error) {
	data, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *RoleList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(r))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(r))
	default:
		return fmt.Errorf("cannot scan %T into RoleList", src)
	}
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"  json:"username"`
	PasswordHash string    `gorm:"not null"              json:"-"`
	Roles        RoleList  `gorm:"type:text;not null"    json:"roles"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Note struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user"`
	Title     string    `gorm:"not null"                 json:"title"`
	Text      string    `gorm:"not null"                 json:"text"`
	Completed bool      `gorm:"not null;default:false"   json:"completed"`
	Ticket    uint      `gorm:"uniqueIndex;not null"     json:"ticket"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// Counter backs human-facing sequences such as note ticket numbers.
// Values only ever move forward, so deleted notes never free a ticket.
type Counter struct {
	Name  string `gorm:"primaryKey" json:"name"`
	Value uint   `gorm:"not null"   json:"value"`
}
