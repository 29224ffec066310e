package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"slidedeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// A single connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between the connections of one process.
	db.SetMaxOpenConns(1)

	docTableStmt := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		creator TEXT NOT NULL,
		revision INTEGER NOT NULL,
		data BLOB NOT NULL
	);`
	if _, err = db.Exec(docTableStmt); err != nil {
		log.Fatalf("failed to create documents table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Create(ctx context.Context, doc *core.Document) (*core.Document, error) {
	stored := doc.Clone()
	stored.ID = ulid.Make().String()
	stored.Revision = 1
	stored.Normalize()

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{
		"document_id": stored.ID,
		"data_length": len(data),
	})

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (id, title, creator, revision, data) VALUES (?, ?, ?, ?, ?)",
		stored.ID, stored.Title, stored.Creator, stored.Revision, data)
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}
	log.Info("Document created successfully")
	return stored, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findID(ctx context.Context, q queryer, id string) (*core.Document, error) {
	var data []byte
	err := q.QueryRowContext(ctx, "SELECT data FROM documents WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return core.DecodeDocument(data)
}

func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	log.Debug("Retrieving document by ID")

	doc, err := findID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
		} else {
			log.WithError(err).Error("Failed to retrieve document")
		}
		return nil, err
	}
	log.Debug("Document retrieved successfully")
	return doc, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]*core.Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, data FROM documents ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*core.Document{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		doc, err := core.DecodeDocument(data)
		if err != nil {
			logrus.WithField("document_id", id).WithError(err).Warn("Skipping undecodable document")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *sqliteStore) Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"document_id": doc.ID, "if_revision": ifRevision})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // Rollback on any error

	current, err := findID(ctx, tx, doc.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to read document to replace")
		return nil, err
	}

	stored, err := core.Supersede(current, doc, ifRevision)
	if err != nil {
		log.WithField("revision", current.Revision).Warn("Revision mismatch")
		return nil, err
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE documents SET title = ?, data = ?, revision = ? WHERE id = ? AND revision = ?",
		stored.Title, data, stored.Revision, stored.ID, current.Revision)
	if err != nil {
		log.WithError(err).Error("Failed to update document")
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: document %s changed during update", core.ErrConflict, stored.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.WithField("revision", stored.Revision).Info("Document replaced successfully")
	return stored, nil
}
