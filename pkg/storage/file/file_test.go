package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
	"github.com/mbuck21/BOM-Manager/pkg/storage/storagetest"
)

func TestStateRepository(t *testing.T) {
	storagetest.RunStateRepository(t, func(t *testing.T) (storage.StateRepository, func() storage.StateRepository) {
		path := filepath.Join(t.TempDir(), StateFileName)
		return NewStateRepository(path), func() storage.StateRepository { return NewStateRepository(path) }
	})
}

func TestSnapshotRepository(t *testing.T) {
	storagetest.RunSnapshotRepository(t, func(t *testing.T) storage.SnapshotRepository {
		repo, err := NewSnapshotRepository(filepath.Join(t.TempDir(), "snapshots"))
		if err != nil {
			t.Fatal(err)
		}
		return repo
	})
}

func TestStateRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateFileName)
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewStateRepository(path).Load(context.Background())
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Load error = %v, want invalid format", err)
	}
}

func TestSnapshotRepositoryRejectsUnsafeIDs(t *testing.T) {
	repo, _ := NewSnapshotRepository(t.TempDir())
	if _, err := repo.Get(context.Background(), "../bom"); !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("Get(../bom) error = %v, want validation", err)
	}
}
