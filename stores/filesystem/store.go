package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"slidedeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore keeps one JSON file per document under basePath. Writes are
// serialized within the process; a second process writing the same
// directory is not coordinated with.
type fsStore struct {
	mu       sync.Mutex
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) documentPath(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid document id %q: %w", id, core.ErrNotFound)
	}
	return filepath.Join(s.basePath, id+".json"), nil
}

func (s *fsStore) read(id string) (*core.Document, error) {
	filePath, err := s.documentPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return core.DecodeDocument(data)
}

func (s *fsStore) write(doc *core.Document) error {
	filePath, err := s.documentPath(doc.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

func (s *fsStore) Create(ctx context.Context, doc *core.Document) (*core.Document, error) {
	stored := doc.Clone()
	stored.ID = ulid.Make().String()
	stored.Revision = 1
	stored.Normalize()

	log := logrus.WithFields(logrus.Fields{"document_id": stored.ID, "base_path": s.basePath})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(stored); err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}

	log.Info("Document created successfully")
	return stored, nil
}

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	doc, err := s.read(id)
	if err != nil {
		log.WithError(err).Warn("Failed to retrieve document")
		return nil, err
	}

	log.Debug("Document retrieved successfully")
	return doc, nil
}

func (s *fsStore) List(ctx context.Context) ([]*core.Document, error) {
	log := logrus.WithField("base_path", s.basePath)

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Document{}, nil
		}
		log.WithError(err).Error("Failed to read document directory")
		return nil, err
	}

	docs := make([]*core.Document, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		doc, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			log.WithError(err).Warnf("Failed to read document file %s, skipping", name)
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	log.Debugf("Listed %d documents", len(docs))
	return docs, nil
}

func (s *fsStore) Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"document_id": doc.ID, "if_revision": ifRevision})

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(doc.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to read document to replace")
		return nil, err
	}

	stored, err := core.Supersede(current, doc, ifRevision)
	if err != nil {
		log.WithField("revision", current.Revision).Warn("Revision mismatch")
		return nil, err
	}
	if err := s.write(stored); err != nil {
		log.WithError(err).Error("Failed to write document file")
		return nil, err
	}

	log.WithField("revision", stored.Revision).Info("Document replaced successfully")
	return stored, nil
}
