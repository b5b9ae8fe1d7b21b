package model

import "time"

// Document is one ledger collection stored as a row.
type Document struct {
	Collection string    `gorm:"size:64;primaryKey"`
	Body       string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Document) TableName() string {
	return "ledger_documents"
}
