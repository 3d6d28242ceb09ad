package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"offersync/internal/config"
	"offersync/pkg/logging"
)

// FileSink writes one JSON file per record into a directory. File names come
// from a text/template rendered with the sprig function map against the
// record, e.g. {{ .Operation }}_skipped_{{ .ResourceID }}.json.
type FileSink struct {
	dir  string
	name *template.Template
}

// NewFileSink parses the filename template of cfg. An empty template falls
// back to config.DefaultAuditFileTemplate.
func NewFileSink(cfg config.AuditConfig) (*FileSink, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("audit directory is required")
	}
	pattern := cfg.FileTemplate
	if strings.TrimSpace(pattern) == "" {
		pattern = config.DefaultAuditFileTemplate
	}
	tmpl, err := template.New("audit-file").Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("parse audit file template: %w", err)
	}
	return &FileSink{dir: cfg.Dir, name: tmpl}, nil
}

// Write persists every record. Each file is written to a temporary name in
// the target directory and renamed into place.
func (s *FileSink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := s.FileName(rec)
		if err != nil {
			return err
		}
		path := filepath.Join(s.dir, name)
		if err := writeJSONAtomic(path, rec); err != nil {
			return err
		}
		logging.Info("Audit", "Wrote %s audit for %s to %s (%d skipped, %d failed)",
			rec.Operation, rec.ResourceID, path, len(rec.Skipped), len(rec.Failed))
	}
	return nil
}

// FileName renders the file name of rec.
func (s *FileSink) FileName(rec Record) (string, error) {
	var buf bytes.Buffer
	if err := s.name.Execute(&buf, rec); err != nil {
		return "", fmt.Errorf("render audit file name for %s: %w", rec.ResourceID, err)
	}
	name := strings.TrimSpace(buf.String())
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("audit file name %q for %s is not a plain file name", name, rec.ResourceID)
	}
	return name, nil
}

func writeJSONAtomic(path string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	encoded = append(encoded, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".offersync-audit-*")
	if err != nil {
		return fmt.Errorf("create temporary audit file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temporary audit file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize temporary audit file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace audit file %s: %w", path, err)
	}
	return nil
}
