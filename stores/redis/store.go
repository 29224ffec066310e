package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"slidedeck/core"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// DocumentKey holds one document as JSON.
	DocumentKey = "slidedeck:document:{%s}"
	// IndexKey is the set of every document id.
	IndexKey = "slidedeck:documents"
)

// maxWatchRetries bounds how often an unconditional Replace retries after
// another client touched the key between WATCH and EXEC.
const maxWatchRetries = 8

type redisStore struct {
	rdb redis.UniversalClient
}

// NewStore creates a new Redis-based store.
func NewStore(addr, password string, db int) *redisStore {
	return NewStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func NewStoreWithClient(rdb redis.UniversalClient) *redisStore {
	return &redisStore{rdb: rdb}
}

func documentKey(id string) string {
	return fmt.Sprintf(DocumentKey, id)
}

func (s *redisStore) Create(ctx context.Context, doc *core.Document) (*core.Document, error) {
	stored := doc.Clone()
	stored.ID = ulid.Make().String()
	stored.Revision = 1
	stored.Normalize()

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("document_id", stored.ID)

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, documentKey(stored.ID), data, 0)
		pipe.SAdd(ctx, IndexKey, stored.ID)
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}
	log.Info("Document created successfully")
	return stored, nil
}

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get(ctx context.Context, c getter, id string) (*core.Document, error) {
	data, err := c.Get(ctx, documentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return core.DecodeDocument(data)
}

func (s *redisStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	doc, err := get(ctx, s.rdb, id)
	if err != nil {
		logrus.WithField("document_id", id).WithError(err).Warn("Failed to retrieve document")
		return nil, err
	}
	return doc, nil
}

func (s *redisStore) List(ctx context.Context) ([]*core.Document, error) {
	ids, err := s.rdb.SMembers(ctx, IndexKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	docs := make([]*core.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := get(ctx, s.rdb, id)
		if err != nil {
			logrus.WithField("document_id", id).WithError(err).Warn("Failed to read indexed document, skipping")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Replace uses WATCH on the document key so the revision check and the
// write form one optimistic transaction.
func (s *redisStore) Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"document_id": doc.ID, "if_revision": ifRevision})
	key := documentKey(doc.ID)

	var stored *core.Document
	txf := func(tx *redis.Tx) error {
		current, err := get(ctx, tx, doc.ID)
		if err != nil {
			return err
		}
		next, err := core.Supersede(current, doc, ifRevision)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			stored = next
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			log.WithField("revision", stored.Revision).Info("Document replaced successfully")
			return stored, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			log.WithError(err).Warn("Failed to replace document")
			return nil, err
		}
		if ifRevision != 0 {
			// The key changed under a conditional write.
			return nil, fmt.Errorf("%w: document %s changed during update", core.ErrConflict, doc.ID)
		}
	}
	return nil, fmt.Errorf("%w: document %s kept changing during update", core.ErrConflict, doc.ID)
}
