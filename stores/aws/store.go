package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strings"
	"sync"

	"slidedeck/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// ObjectAPI is the subset of the S3 client the store uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Store keeps one JSON object per document under prefix. The revision
// check in Replace is a read followed by a write: it is serialized inside
// this process only, two servers sharing a bucket can still overwrite each
// other.
type s3Store struct {
	mu       sync.Mutex
	s3Client ObjectAPI
	bucket   string
	prefix   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName, prefix string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return NewStoreWithClient(s3.NewFromConfig(cfg), bucketName, prefix)
}

func NewStoreWithClient(client ObjectAPI, bucketName, prefix string) *s3Store {
	return &s3Store{
		s3Client: client,
		bucket:   bucketName,
		prefix:   prefix,
	}
}

func (s *s3Store) documentKey(id string) (string, error) {
	// It should be a simple name, not a path.
	if path.Base(id) != id {
		return "", fmt.Errorf("invalid document id: must not be a path: %w", core.ErrNotFound)
	}
	if id == "" || id == "." || id == ".." {
		return "", fmt.Errorf("invalid document id: must not be empty or a dot directory: %w", core.ErrNotFound)
	}
	return s.prefix + id + ".json", nil
}

func (s *s3Store) get(ctx context.Context, key string) (*core.Document, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return core.DecodeDocument(data)
}

func (s *s3Store) put(ctx context.Context, doc *core.Document) error {
	key, err := s.documentKey(doc.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *s3Store) Create(ctx context.Context, doc *core.Document) (*core.Document, error) {
	stored := doc.Clone()
	stored.ID = ulid.Make().String()
	stored.Revision = 1
	stored.Normalize()

	log := logrus.WithFields(logrus.Fields{"document_id": stored.ID, "bucket": s.bucket})
	if err := s.put(ctx, stored); err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}
	log.Info("Document created successfully")
	return stored, nil
}

func (s *s3Store) FindID(ctx context.Context, id string) (*core.Document, error) {
	key, err := s.documentKey(id)
	if err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, key)
	if err != nil {
		logrus.WithField("document_id", id).WithError(err).Warn("Failed to retrieve document")
		return nil, err
	}
	return doc, nil
}

func (s *s3Store) List(ctx context.Context) ([]*core.Document, error) {
	docs := []*core.Document{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		for _, object := range output.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			doc, err := s.get(ctx, key)
			if err != nil {
				logrus.WithField("key", key).WithError(err).Warn("Failed to read document object, skipping")
				continue
			}
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *s3Store) Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error) {
	log := logrus.WithFields(logrus.Fields{"document_id": doc.ID, "if_revision": ifRevision})

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.FindID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	stored, err := core.Supersede(current, doc, ifRevision)
	if err != nil {
		log.WithField("revision", current.Revision).Warn("Revision mismatch")
		return nil, err
	}
	if err := s.put(ctx, stored); err != nil {
		log.WithError(err).Error("Failed to replace document")
		return nil, err
	}
	log.WithField("revision", stored.Revision).Info("Document replaced successfully")
	return stored, nil
}
