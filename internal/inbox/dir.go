package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/amishk599/jobintake/internal/model"
)

// DirReader reads HTML list exports laid out as <root>/<folder>/<provider>/*.html.
// Each file is one item sent by "list:<provider>".
type DirReader struct {
	root   string
	logger *slog.Logger
}

var _ Reader = (*DirReader)(nil)

func NewDirReader(root string, logger *slog.Logger) *DirReader {
	return &DirReader{root: root, logger: logger}
}

// ListInboundItems returns items ordered by modification time, then path.
// A missing folder yields no items.
func (d *DirReader) ListInboundItems(_ context.Context, folder string) ([]model.InboundItem, error) {
	base := filepath.Join(d.root, folder)
	providers, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.TransportError{Op: "read list folder " + base, Err: err}
	}

	var items []model.InboundItem
	for _, p := range providers {
		if !p.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(base, p.Name()))
		if err != nil {
			return nil, &model.TransportError{Op: "read provider folder " + p.Name(), Err: err}
		}
		for _, f := range files {
			if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".html") {
				continue
			}
			path := filepath.Join(base, p.Name(), f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, &model.TransportError{Op: "read " + path, Err: err}
			}
			info, err := f.Info()
			if err != nil {
				return nil, &model.TransportError{Op: "stat " + path, Err: err}
			}
			items = append(items, model.InboundItem{
				ID:             p.Name() + "/" + f.Name(),
				SenderIdentity: "list:" + strings.ToLower(p.Name()),
				RawPayload:     data,
				ReceivedAt:     info.ModTime().UTC(),
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ReceivedAt.Equal(items[j].ReceivedAt) {
			return items[i].ReceivedAt.Before(items[j].ReceivedAt)
		}
		return items[i].ID < items[j].ID
	})
	d.logger.Debug("list exports found", "folder", folder, "count", len(items))
	return items, nil
}

// ArchiveItems moves each file under <root>/<archiveFolder>, keeping its
// provider directory. The source folder is recovered from the id.
func (d *DirReader) ArchiveItems(_ context.Context, ids []string, archiveFolder string) error {
	for _, id := range ids {
		src, err := d.locate(id, archiveFolder)
		if err != nil {
			return err
		}
		dst := filepath.Join(d.root, archiveFolder, filepath.FromSlash(id))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return &model.TransportError{Op: "create archive folder", Err: err}
		}
		if err := os.Rename(src, dst); err != nil {
			return &model.TransportError{Op: "archive " + id, Err: err}
		}
	}
	return nil
}

// locate finds the folder currently holding id, skipping the archive.
func (d *DirReader) locate(id, archiveFolder string) (string, error) {
	folders, err := os.ReadDir(d.root)
	if err != nil {
		return "", &model.TransportError{Op: "read list root", Err: err}
	}
	for _, f := range folders {
		if !f.IsDir() || f.Name() == archiveFolder {
			continue
		}
		path := filepath.Join(d.root, f.Name(), filepath.FromSlash(id))
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("list item %q not found", id)
}
