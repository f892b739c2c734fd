package variant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Source supplies the variant list.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/source.go . Source
type Source interface {
	// Variants returns the current catalog contents.
	Variants(ctx context.Context) ([]Variant, error)
}

// Document is the on-disk and over-the-wire catalog format.
type Document struct {
	Version  int       `json:"version" yaml:"version"`
	Variants []Variant `json:"variants" yaml:"variants"`
}

// Decode reads a catalog document. A bare JSON array of variants is accepted
// as well.
func Decode(data []byte, format string) ([]Variant, error) {
	switch format {
	case "yaml", "yml":
		var doc Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml catalog: %w", err)
		}
		return doc.Variants, nil
	case "json", "":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var list []Variant
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, fmt.Errorf("decode json catalog: %w", err)
			}
			return list, nil
		}
		var doc Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode json catalog: %w", err)
		}
		return doc.Variants, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// FileSource reads variants from a local JSON or YAML file.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Variants implements Source.
func (s *FileSource) Variants(ctx context.Context) ([]Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	//nolint:gosec // G304: path comes from user configuration
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(s.path)), ".")
	return Decode(data, format)
}
