package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"slidedeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore keeps documents in process memory. Records are copied on the way
// in and out so callers never share state with the store.
type memStore struct {
	mu        sync.RWMutex
	documents map[string]*core.Document
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{documents: make(map[string]*core.Document)}
}

func (s *memStore) Create(ctx context.Context, doc *core.Document) (*core.Document, error) {
	stored := doc.Clone()
	stored.ID = ulid.Make().String()
	stored.Revision = 1
	stored.Normalize()

	s.mu.Lock()
	s.documents[stored.ID] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"document_id": stored.ID,
		"title":       stored.Title,
	}).Info("Document created successfully")
	return stored.Clone(), nil
}

func (s *memStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()

	if !ok {
		log.WithField("error", "document not found").Warn("Document with specified ID not found")
		return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
	}
	log.Debug("Document retrieved successfully")
	return doc.Clone(), nil
}

func (s *memStore) List(ctx context.Context) ([]*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*core.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc.Clone())
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	logrus.Debugf("Listed %d documents", len(docs))
	return docs, nil
}

func (s *memStore) Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"document_id": doc.ID, "if_revision": ifRevision})

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.documents[doc.ID]
	if !ok {
		log.Warn("Document to replace not found")
		return nil, fmt.Errorf("document with id %s: %w", doc.ID, core.ErrNotFound)
	}

	stored, err := core.Supersede(current, doc, ifRevision)
	if err != nil {
		log.WithField("revision", current.Revision).Warn("Revision mismatch")
		return nil, err
	}
	s.documents[stored.ID] = stored

	log.WithField("revision", stored.Revision).Info("Document replaced successfully")
	return stored.Clone(), nil
}
