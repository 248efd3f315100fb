package models

import (
	"time"
)

// Property represents one condominium unit and a snapshot of its current owner
type Property struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Villa      string    `gorm:"column:villa;not null;size:50"`
	RowLetter  string    `gorm:"column:row_letter;not null;size:10"`
	Number     int       `gorm:"column:number;not null"`
	OwnerName  string    `gorm:"column:owner_name;not null;size:100"`
	OwnerPhone string    `gorm:"column:owner_phone;size:30"`
	OwnerID    *uint     `gorm:"column:owner_id"` // Link to User if registered
	Owner      *User     `gorm:"foreignKey:OwnerID"`
	CreatedAt  time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Property) TableName() string {
	return "properties"
}

// OwnedBy reports whether the property is registered to the given user
func (p *Property) OwnedBy(userID uint) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}
