package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/ringcall/internal/ledger/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps documents in the ledger_documents table of a SQL database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("ledger: db is nil")
	}
	if err := db.AutoMigrate(&model.Document{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context, collection Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc model.Document
	err := s.db.WithContext(ctx).First(&doc, "collection = ?", string(collection)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return []byte(doc.Body), nil
}

func (s *GormStore) Save(ctx context.Context, collection Collection, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := model.Document{
		Collection: string(collection),
		Body:       string(doc),
		UpdatedAt:  time.Now().UTC(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).Create(&row).Error
	})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
