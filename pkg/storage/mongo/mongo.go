// Package mongo stores snapshots in a MongoDB collection.
//
// Each document carries the indexed header fields (root, signature,
// creation time) next to the JSON-encoded snapshot, so attribute values
// keep their exact JSON representation.
package mongo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
)

const (
	DefaultDatabase   = "bom"
	DefaultCollection = "snapshots"
	connectTimeout    = 10 * time.Second
)

// Options configures the snapshot repository.
type Options struct {
	URI        string
	Database   string
	Collection string
}

type snapshotDoc struct {
	ID        string    `bson:"_id"`
	Root      string    `bson:"root"`
	Signature string    `bson:"signature"`
	CreatedAt time.Time `bson:"created_at"`
	CreatedNs int64     `bson:"created_ns"`
	Payload   []byte    `bson:"payload"`
}

// SnapshotRepository is a storage.SnapshotRepository backed by MongoDB.
type SnapshotRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ storage.SnapshotRepository = (*SnapshotRepository)(nil)

var listOrder = bson.D{{Key: "created_ns", Value: 1}, {Key: "_id", Value: 1}}

// Open connects, pings and ensures indexes exist.
func Open(ctx context.Context, opts Options) (*SnapshotRepository, error) {
	if opts.URI == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo uri is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "ping mongo")
	}

	coll := client.Database(opts.Database).Collection(opts.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "root", Value: 1}, {Key: "signature", Value: 1}}},
		{Keys: listOrder},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create indexes")
	}
	return &SnapshotRepository{client: client, coll: coll}, nil
}

// Save inserts the snapshot. A duplicate id is a CONFLICT.
func (r *SnapshotRepository) Save(ctx context.Context, snap *bom.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode snapshot %s", snap.ID)
	}
	_, err = r.coll.InsertOne(ctx, snapshotDoc{
		ID:        snap.ID,
		Root:      snap.RootPartNumber,
		Signature: snap.Signature,
		CreatedAt: snap.CreatedAt,
		CreatedNs: snap.CreatedAt.UnixNano(),
		Payload:   payload,
	})
	if mongo.IsDuplicateKeyError(err) {
		return errors.New(errors.ErrCodeConflict, "Snapshot '%s' already exists", snap.ID)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "insert snapshot %s", snap.ID)
	}
	return nil
}

// Get loads a snapshot by id.
func (r *SnapshotRepository) Get(ctx context.Context, id string) (*bom.Snapshot, error) {
	var doc snapshotDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeNotFound, "Snapshot '%s' not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "find snapshot %s", id)
	}
	return decode(doc)
}

// List returns snapshots for root, or all snapshots when root is empty.
func (r *SnapshotRepository) List(ctx context.Context, root string) ([]*bom.Snapshot, error) {
	filter := bson.M{}
	if root != "" {
		filter["root"] = root
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(listOrder))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list snapshots")
	}
	var docs []snapshotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read snapshots")
	}
	out := make([]*bom.Snapshot, 0, len(docs))
	for _, d := range docs {
		s, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// FindBySignature returns the oldest matching snapshot, or nil.
func (r *SnapshotRepository) FindBySignature(ctx context.Context, root, signature string) (*bom.Snapshot, error) {
	var doc snapshotDoc
	err := r.coll.FindOne(ctx,
		bson.M{"root": root, "signature": signature},
		options.FindOne().SetSort(listOrder),
	).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "find snapshot by signature")
	}
	return decode(doc)
}

// Close disconnects the client.
func (r *SnapshotRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Drop removes the collection. Used by tests to start clean.
func (r *SnapshotRepository) Drop(ctx context.Context) error {
	return r.coll.Drop(ctx)
}

func decode(d snapshotDoc) (*bom.Snapshot, error) {
	var s bom.Snapshot
	if err := json.Unmarshal(d.Payload, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode snapshot %s", d.ID)
	}
	return &s, nil
}
