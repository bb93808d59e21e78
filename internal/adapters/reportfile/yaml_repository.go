// Package reportfile persists reconciliation reports.
package reportfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"gopkg.in/yaml.v3"
)

// Report file errors.
var (
	ErrReportNotFound = errors.New("report file not found")
	ErrReportCorrupt  = errors.New("report file is corrupt")
	ErrSaveFailed     = errors.New("failed to save report")
)

// YAMLRepository stores reports as YAML files.
type YAMLRepository struct{}

// NewYAMLRepository creates a new YAML-based report repository.
func NewYAMLRepository() *YAMLRepository {
	return &YAMLRepository{}
}

// Load reads a report from the given path.
func (r *YAMLRepository) Load(_ context.Context, path string) (execution.ReportDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return execution.ReportDTO{}, ErrReportNotFound
		}
		return execution.ReportDTO{}, fmt.Errorf("failed to read report: %w", err)
	}

	var dto execution.ReportDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return execution.ReportDTO{}, fmt.Errorf("%w: %w", ErrReportCorrupt, err)
	}
	if dto.RunID == "" {
		return execution.ReportDTO{}, fmt.Errorf("%w: missing run_id", ErrReportCorrupt)
	}

	return dto, nil
}

// Save writes a report to the given path.
func (r *YAMLRepository) Save(_ context.Context, path string, dto execution.ReportDTO) error {
	data, err := yaml.Marshal(&dto)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %w", ErrSaveFailed, err)
	}

	// Write atomically by writing to temp file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	return nil
}

// Exists returns true if a report exists at the given path.
func (r *YAMLRepository) Exists(_ context.Context, path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
