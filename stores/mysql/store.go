package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"slidedeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// documentRow is the table layout. Data holds the whole document; title,
// creator and revision are copied out for listing and the conditional update.
type documentRow struct {
	ID        string `gorm:"primaryKey;size:26"`
	Title     string `gorm:"size:255;not null"`
	Creator   string `gorm:"size:255;not null"`
	Revision  int64  `gorm:"not null"`
	Data      []byte `gorm:"type:longblob;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }

type mysqlStore struct {
	db *gorm.DB
}

// NewStore opens dsn and migrates the documents table.
func NewStore(dsn string) *mysqlStore {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to open mysql database: %v", err)
	}
	store, err := NewStoreWithDB(db)
	if err != nil {
		log.Fatalf("failed to migrate documents table: %v", err)
	}
	return store
}

func NewStoreWithDB(db *gorm.DB) (*mysqlStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, err
	}
	return &mysqlStore{db: db}, nil
}

func toRow(doc *core.Document) (*documentRow, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &documentRow{
		ID:       doc.ID,
		Title:    doc.Title,
		Creator:  doc.Creator,
		Revision: doc.Revision,
		Data:     data,
	}, nil
}

func (s *mysqlStore) Create(ctx context.Context, doc *core.Document) (*core.Document, error) {
	stored := doc.Clone()
	stored.ID = ulid.Make().String()
	stored.Revision = 1
	stored.Normalize()

	row, err := toRow(stored)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("document_id", stored.ID)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}
	log.Info("Document created successfully")
	return stored, nil
}

func (s *mysqlStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		logrus.WithField("document_id", id).WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	return core.DecodeDocument(row.Data)
}

func (s *mysqlStore) List(ctx context.Context) ([]*core.Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	docs := make([]*core.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := core.DecodeDocument(row.Data)
		if err != nil {
			logrus.WithField("document_id", row.ID).WithError(err).Warn("Skipping undecodable document")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Replace updates the row only where the revision still matches the one
// read, so concurrent writers from other processes are detected too.
func (s *mysqlStore) Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"document_id": doc.ID, "if_revision": ifRevision})

	current, err := s.FindID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	stored, err := core.Supersede(current, doc, ifRevision)
	if err != nil {
		log.WithField("revision", current.Revision).Warn("Revision mismatch")
		return nil, err
	}
	row, err := toRow(stored)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&documentRow{}).
		Where("id = ? AND revision = ?", stored.ID, current.Revision).
		Updates(map[string]any{
			"title":    row.Title,
			"revision": row.Revision,
			"data":     row.Data,
		})
	if res.Error != nil {
		log.WithError(res.Error).Error("Failed to update document")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: document %s changed during update", core.ErrConflict, stored.ID)
	}
	log.WithField("revision", stored.Revision).Info("Document replaced successfully")
	return stored, nil
}
