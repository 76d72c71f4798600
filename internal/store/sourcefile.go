package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobintake/internal/model"
)

// SourceFile keeps the registry in a hand-editable YAML document.
type SourceFile struct {
	path string
}

var _ SourceRepository = (*SourceFile)(nil)

// NewSourceFile returns a repository backed by the YAML file at path. The file
// does not need to exist yet.
func NewSourceFile(path string) *SourceFile {
	return &SourceFile{path: path}
}

type sourceFileDoc struct {
	Sources []sourceFileEntry `yaml:"sources"`
}

type sourceFileEntry struct {
	Name        string   `yaml:"name"`
	OfficialURL string   `yaml:"official_url,omitempty"`
	Creation    bool     `yaml:"creation"`
	Enrichment  bool     `yaml:"enrichment"`
	Analysis    bool     `yaml:"analysis"`
	Senders     []string `yaml:"senders,omitempty"`
}

// LoadSources reads the file. A missing file is an empty registry.
func (f *SourceFile) LoadSources(_ context.Context) ([]model.Source, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var doc sourceFileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	sources := make([]model.Source, 0, len(doc.Sources))
	for _, e := range doc.Sources {
		sources = append(sources, model.Source{
			Name:        model.SourceName(e.Name),
			OfficialURL: e.OfficialURL,
			Capabilities: model.Capabilities{
				Creation:   e.Creation,
				Enrichment: e.Enrichment,
				Analysis:   e.Analysis,
			},
			SenderIdentities: e.Senders,
		})
	}
	return sources, nil
}

// SaveSources rewrites the file atomically.
func (f *SourceFile) SaveSources(_ context.Context, sources []model.Source) error {
	doc := sourceFileDoc{Sources: make([]sourceFileEntry, 0, len(sources))}
	for _, s := range sources {
		doc.Sources = append(doc.Sources, sourceFileEntry{
			Name:        string(s.Name),
			OfficialURL: s.OfficialURL,
			Creation:    s.Capabilities.Creation,
			Enrichment:  s.Capabilities.Enrichment,
			Analysis:    s.Capabilities.Analysis,
			Senders:     s.SenderIdentities,
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode sources file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".sources-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp sources file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write sources file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close sources file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace sources file: %w", err)
	}
	return nil
}
