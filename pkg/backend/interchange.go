package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/mbuck21/BOM-Manager/pkg/bom"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
	"github.com/mbuck21/BOM-Manager/pkg/interchange"
	"github.com/mbuck21/BOM-Manager/pkg/result"
	"github.com/mbuck21/BOM-Manager/pkg/storage"
)

// ImportPartsCSV upserts every valid row of the parts file at path.
func (b *Backend) ImportPartsCSV(ctx context.Context, path string, replaceAttributes bool) result.Result[interchange.ImportReport] {
	return importFile(path, func(r io.Reader) result.Result[interchange.ImportReport] {
		return b.ImportParts(ctx, r, path, replaceAttributes)
	})
}

// ImportRelationshipsCSV upserts every valid row of the relationships file
// at path.
func (b *Backend) ImportRelationshipsCSV(ctx context.Context, path string, allowDangling, replaceAttributes bool) result.Result[interchange.ImportReport] {
	return importFile(path, func(r io.Reader) result.Result[interchange.ImportReport] {
		return b.ImportRelationships(ctx, r, path, allowDangling, replaceAttributes)
	})
}

func importFile(path string, run func(io.Reader) result.Result[interchange.ImportReport]) result.Result[interchange.ImportReport] {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return result.Fail[interchange.ImportReport](errors.New(errors.ErrCodeNotFound, "CSV file not found: %s", path))
	}
	if err != nil {
		return result.Fail[interchange.ImportReport](errors.Wrap(errors.ErrCodeInternal, err, "open %s", path))
	}
	defer f.Close()
	return run(f)
}

// ImportParts upserts parts read from r. Bad rows are reported in the
// returned report and do not stop the import; all good rows are persisted
// together.
func (b *Backend) ImportParts(ctx context.Context, r io.Reader, name string, replaceAttributes bool) result.Result[interchange.ImportReport] {
	rows, rowErrs, err := interchange.ReadParts(r)
	if err != nil {
		return result.Fail[interchange.ImportReport](err)
	}
	return mutate(ctx, b, "import_parts", func(g *bom.Graph) (mutation[interchange.ImportReport], error) {
		rep := interchange.ImportReport{File: name, RowErrors: slices.Clone(rowErrs), FailedRows: len(rowErrs)}
		var warnings []string
		var undo []func()
		for _, row := range rows {
			warnings = append(warnings, row.Warnings...)
			in := row.Input
			in.ReplaceAttributes = replaceAttributes
			ch, err := g.UpsertPart(in)
			if err != nil {
				rep.Fail(row.Row, errors.UserMessage(err))
				continue
			}
			count(&rep, ch.Created)
			id, prev := ch.Part.PartNumber, ch.Previous
			undo = append(undo, func() { g.RestorePart(id, prev) })
		}
		return importMutation(rep, warnings, undo), nil
	})
}

// ImportRelationships upserts relationships read from r.
func (b *Backend) ImportRelationships(ctx context.Context, r io.Reader, name string, allowDangling, replaceAttributes bool) result.Result[interchange.ImportReport] {
	rows, rowErrs, err := interchange.ReadRelationships(r)
	if err != nil {
		return result.Fail[interchange.ImportReport](err)
	}
	return mutate(ctx, b, "import_relationships", func(g *bom.Graph) (mutation[interchange.ImportReport], error) {
		rep := interchange.ImportReport{File: name, RowErrors: slices.Clone(rowErrs), FailedRows: len(rowErrs)}
		var warnings []string
		var undo []func()
		for _, row := range rows {
			warnings = append(warnings, row.Warnings...)
			in := row.Input
			in.AllowDangling = allowDangling
			in.ReplaceAttributes = replaceAttributes
			ch, err := g.UpsertRelationship(in)
			if err != nil {
				rep.Fail(row.Row, errors.UserMessage(err))
				continue
			}
			count(&rep, ch.Created)
			for _, w := range ch.Warnings {
				warnings = append(warnings, rowPrefix(row.Row)+w)
			}
			id, prev := ch.Relationship.RelID, ch.Previous
			undo = append(undo, func() { g.RestoreRelationship(id, prev) })
		}
		return importMutation(rep, warnings, undo), nil
	})
}

func importMutation(rep interchange.ImportReport, warnings []string, undo []func()) mutation[interchange.ImportReport] {
	if rep.RowErrors == nil {
		rep.RowErrors = []string{}
	}
	return mutation[interchange.ImportReport]{
		data:     rep,
		warnings: warnings,
		undo: func() {
			for _, fn := range slices.Backward(undo) {
				fn()
			}
		},
	}
}

func count(rep *interchange.ImportReport, created bool) {
	if created {
		rep.Created++
	} else {
		rep.Updated++
	}
}

func rowPrefix(n int) string {
	return fmt.Sprintf("Row %d: ", n)
}

// ExportPartsCSV writes every part to path atomically.
func (b *Backend) ExportPartsCSV(_ context.Context, path string, opts interchange.ExportOptions) result.Result[interchange.ExportReport] {
	return result.Guard("export_parts", func() (interchange.ExportReport, []string, error) {
		b.mu.RLock()
		parts := b.graph.Catalog().List()
		b.mu.RUnlock()
		return exportFile(path, len(parts), func(w io.Writer) ([]string, error) {
			return interchange.WriteParts(w, parts, opts)
		})
	})
}

// ExportRelationshipsCSV writes every relationship to path atomically.
func (b *Backend) ExportRelationshipsCSV(_ context.Context, path string, opts interchange.ExportOptions) result.Result[interchange.ExportReport] {
	return result.Guard("export_relationships", func() (interchange.ExportReport, []string, error) {
		b.mu.RLock()
		rels := b.graph.Relationships()
		b.mu.RUnlock()
		return exportFile(path, len(rels), func(w io.Writer) ([]string, error) {
			return interchange.WriteRelationships(w, rels, opts)
		})
	})
}

func exportFile(path string, rows int, write func(io.Writer) ([]string, error)) (interchange.ExportReport, []string, error) {
	if path == "" {
		return interchange.ExportReport{}, nil, errors.New(errors.ErrCodeValidation, "output path is required")
	}
	data, cols, err := interchange.Encode(write)
	if err != nil {
		return interchange.ExportReport{}, nil, errors.Wrap(errors.ErrCodeInternal, err, "encode CSV")
	}
	if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
		return interchange.ExportReport{}, nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	return interchange.ExportReport{File: path, Rows: rows, Columns: cols}, nil, nil
}
