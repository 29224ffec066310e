package stores

import (
	"context"
	"errors"

	"slidedeck/config"
	"slidedeck/core"
	"slidedeck/stores/aws"
	"slidedeck/stores/filesystem"
	"slidedeck/stores/memory"
	"slidedeck/stores/mysql"
	"slidedeck/stores/redis"
	"slidedeck/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// maxUpdateAttempts bounds the compare-and-swap loop of an unconditional
// Update.
const maxUpdateAttempts = 5

func GetStore(cfg *config.Config) core.DocumentStore {
	storageType := cfg.Storage.Type
	var store core.DocumentStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		storageField["basePath"] = cfg.Storage.Path
		store = filesystem.NewStore(cfg.Storage.Path)
	case "sqlite":
		storageField["dataSourceName"] = cfg.Storage.DataSourceName
		store = sqlite.NewStore(cfg.Storage.DataSourceName)
	case "s3":
		if cfg.S3.Bucket == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3.Bucket
		store = aws.NewStore(cfg.S3.Bucket, cfg.S3.Prefix)
	case "redis":
		storageField["addr"] = cfg.Redis.Addr
		store = redis.NewStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "mysql":
		if cfg.Mysql.DSN == "" {
			logrus.Fatal("MYSQL_DSN environment variable must be set for mysql storage type")
		}
		store = mysql.NewStore(cfg.Mysql.DSN)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

// Update reads the document, applies fn to it and writes it back. With a
// non-zero ifRevision the write is conditional and a mismatch is returned
// as is. Without one, a conflicting concurrent write makes Update start
// over from a fresh read.
func Update(ctx context.Context, store core.DocumentStore, id string, ifRevision int64, fn func(*core.Document) error) (*core.Document, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := store.FindID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(current); err != nil {
			return nil, err
		}

		expect := ifRevision
		if expect == 0 {
			expect = current.Revision
		}
		stored, err := store.Replace(ctx, current, expect)
		if err == nil {
			return stored, nil
		}
		if ifRevision != 0 || !errors.Is(err, core.ErrConflict) {
			return nil, err
		}
		lastErr = err
		logrus.WithField("document_id", id).WithField("attempt", attempt+1).Debug("Retrying update after concurrent write")
	}
	return nil, lastErr
}
