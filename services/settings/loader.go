// Package settings loads the deployment settings document into the data
// store once, before the server accepts traffic.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deployservice/deploy-service/metrics"
	"github.com/deployservice/deploy-service/models"
	"github.com/deployservice/deploy-service/repositories"
	"github.com/deployservice/deploy-service/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned for a settings file with no content
var ErrEmptyDocument = errors.New("settings document is empty")

// Loader reads a settings file and hands it to the data store
type Loader struct {
	store   repositories.DeploymentSettingsDataStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewLoader creates a new Loader. m may be nil.
func NewLoader(store repositories.DeploymentSettingsDataStore, m *metrics.Metrics, logger *zap.Logger) *Loader {
	return &Loader{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Load reads, parses and validates the document at path, then calls
// InitializeData exactly once. Any error means the process must not serve.
func (l *Loader) Load(ctx context.Context, path string) error {
	start := time.Now()

	document, err := ReadFile(path)
	if err != nil {
		l.metrics.RecordSettingsLoad(false)
		return err
	}

	if err := l.store.InitializeData(ctx, document); err != nil {
		l.metrics.RecordSettingsLoad(false)
		return fmt.Errorf("failed to initialize settings store: %w", err)
	}

	l.metrics.RecordSettingsLoad(true)
	l.logger.Info("deployment settings loaded",
		zap.String("path", path),
		zap.Int("projects", len(document.Projects)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// ReadFile reads and parses the settings document at path
func ReadFile(path string) (*models.GlobalDeploymentSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %q: %w", path, err)
	}

	document, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %q: %w", path, err)
	}
	return document, nil
}

// Format is the encoding of a settings document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes and validates a settings document. Unknown fields are
// ignored; missing names and duplicate names are errors.
func Parse(data []byte, format Format) (*models.GlobalDeploymentSettings, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}

	var document models.GlobalDeploymentSettings
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&document); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid JSON: unexpected data after document")
		}
	}

	if err := utils.ValidateStruct(&document); err != nil {
		return nil, err
	}
	if err := document.CheckUniqueNames(); err != nil {
		return nil, err
	}
	return &document, nil
}
