package sources

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/johnrirwin/feedmix/internal/models"
)

// SourceSpec is one entry of a sources import file.
type SourceSpec struct {
	Title string `yaml:"title"`
	Type  string `yaml:"type"`
	URL   string `yaml:"url"`
}

// SourcesFile is the YAML document accepted by the import command:
//
//	sources:
//	  - title: Some blog
//	    type: wordpress
//	    url: blog.example.com
type SourcesFile struct {
	Sources []SourceSpec `yaml:"sources"`
}

// LoadSourcesFile reads a YAML sources file.
func LoadSourcesFile(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSourcesFile(data)
}

func ParseSourcesFile(data []byte) (*SourcesFile, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	return &file, nil
}

// ImportResult reports one entry of an import.
type ImportResult struct {
	Spec   SourceSpec
	Source models.Source
	Err    error
}

// BuildAll registers every entry, keeping per-entry errors instead of stopping.
func (f *SourcesFile) BuildAll(ctx context.Context, registry *Registry) []ImportResult {
	results := make([]ImportResult, 0, len(f.Sources))
	for _, spec := range f.Sources {
		src, err := registry.Register(ctx, models.AddSourceParams{
			Title: spec.Title,
			Type:  models.SourceType(spec.Type),
			URL:   spec.URL,
		})
		results = append(results, ImportResult{Spec: spec, Source: src, Err: err})
	}
	return results
}
