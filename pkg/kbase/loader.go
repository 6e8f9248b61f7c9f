// pkg/kbase/loader.go
package kbase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"inquiry-core/internal/common/errors"
	commonhttp "inquiry-core/internal/common/http"
)

//go:embed default_kb.json
var defaultDocument []byte

// Source selects where a knowledge base is loaded from. Path wins over URL;
// with neither set the embedded default is used.
type Source struct {
	Path    string
	URL     string
	Timeout time.Duration
}

func (s Source) String() string {
	switch {
	case s.Path != "":
		return s.Path
	case s.URL != "":
		return s.URL
	default:
		return "embedded"
	}
}

// Parse decodes and validates a knowledge base document.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewKnowledgeBaseInvalidError(fmt.Sprintf("decode: %v", err))
	}

	result, err := Validate(&doc)
	if err != nil {
		return nil, errors.NewKnowledgeBaseInvalidError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewKnowledgeBaseInvalidError(result.Summary()).
			WithMetadata("errors", result.Errors)
	}
	return &doc, nil
}

func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewKnowledgeBaseUnavailableError(fmt.Errorf("read %s: %w", path, err))
	}
	return Parse(data)
}

func LoadURL(ctx context.Context, url string, timeout time.Duration) (*Document, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := commonhttp.NewClient(timeout).Fetch(ctx, url)
	if err != nil {
		return nil, errors.NewKnowledgeBaseUnavailableError(err)
	}
	return Parse(data)
}

// Default returns a fresh copy of the embedded knowledge base.
func Default() *Document {
	doc, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded knowledge base is invalid: %v", err))
	}
	return doc
}

func Load(ctx context.Context, src Source) (*Document, error) {
	switch {
	case src.Path != "":
		return LoadFile(src.Path)
	case src.URL != "":
		return LoadURL(ctx, src.URL, src.Timeout)
	default:
		return Default(), nil
	}
}

// Save writes d as indented JSON after validating it.
func Save(path string, d *Document) error {
	result, err := Validate(d)
	if err != nil {
		return err
	}
	if !result.Valid {
		return errors.NewKnowledgeBaseInvalidError(result.Summary())
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal knowledge base: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
