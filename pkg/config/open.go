package config

import (
	"context"
	stderrors "errors"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/cache"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
	"github.com/mbuck21/BOM-Manager/pkg/storage/file"
	"github.com/mbuck21/BOM-Manager/pkg/storage/memory"
	"github.com/mbuck21/BOM-Manager/pkg/storage/mongo"
	"github.com/mbuck21/BOM-Manager/pkg/storage/sqlite"
)

// SQLiteFileName is the database created inside a sqlite storage path.
const SQLiteFileName = "bom.db"

// Open builds the repositories and cache c names and opens a backend on
// them. Anything opened before a failure is closed again.
func Open(ctx context.Context, c Config, logger *log.Logger) (*backend.Backend, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	var closers []io.Closer
	fail := func(err error) (*backend.Backend, error) {
		if cerr := closeAll(closers...); cerr != nil {
			logger.Warn("cleanup after failed open", "err", cerr)
		}
		return nil, err
	}

	dbs := map[string]*sqlite.DB{}
	openDB := func(dir string) (*sqlite.DB, error) {
		path := filepath.Join(dir, SQLiteFileName)
		if db, ok := dbs[path]; ok {
			return db, nil
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		dbs[path] = db
		closers = append(closers, db)
		return db, nil
	}

	var state storage.StateRepository
	switch c.Storage.Backend {
	case "memory":
		state = memory.NewStateRepository()
	case "sqlite":
		db, err := openDB(c.Storage.Path)
		if err != nil {
			return fail(err)
		}
		state = db.State()
	default:
		state = file.NewStateRepository(filepath.Join(c.Storage.Path, file.StateFileName))
	}

	var snaps storage.SnapshotRepository
	switch c.Snapshots.Backend {
	case "memory":
		snaps = memory.NewSnapshotRepository()
	case "sqlite":
		db, err := openDB(c.SnapshotPath())
		if err != nil {
			return fail(err)
		}
		snaps = db.Snapshots()
	case "mongo":
		repo, err := mongo.Open(ctx, mongo.Options{
			URI:        c.Snapshots.MongoURI,
			Database:   c.Snapshots.MongoDatabase,
			Collection: c.Snapshots.MongoCollection,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, repo)
		snaps = repo
	default:
		repo, err := file.NewSnapshotRepository(filepath.Join(c.SnapshotPath(), "snapshots"))
		if err != nil {
			return fail(err)
		}
		snaps = repo
	}

	ch, err := c.OpenCache(ctx)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, ch)

	b, err := backend.Open(ctx, backend.Options{
		State:     state,
		Snapshots: snaps,
		Cache:     ch,
		CacheTTL:  c.Cache.TTL.Duration,
		Rollup:    c.WeightOptions(),
		Logger:    logger,
	})
	if err != nil {
		return fail(err)
	}
	logger.Debug("backend ready",
		"storage", c.Storage.Backend, "snapshots", c.Snapshots.Backend, "cache", c.Cache.Backend)
	return b, nil
}

// OpenCache builds the rollup cache c names.
func (c Config) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Cache.Backend {
	case "file":
		dir, err := c.CacheDir()
		if err != nil {
			return nil, err
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "cache dir %s", dir)
		}
		return fc, nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
			Prefix:   c.Cache.RedisPrefix,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "connect redis %s", c.Cache.RedisAddr)
		}
		return rc, nil
	}
	return cache.NewNullCache(), nil
}

// closeAll closes every closer and joins the errors.
func closeAll(cs ...io.Closer) error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return stderrors.Join(errs...)
}
