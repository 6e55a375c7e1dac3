package cli

import (
	"os"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/capture"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// settings is the optional YAML settings file. Omitted keys keep defaults.
//
//	backup:
//	  auto_backup_enabled: true
//	  backup_frequency: 24h
//	  retention_period_days: 30
//	capture:
//	  min_content_length: 100
//	  idle_threshold: 60s
//	similarity:
//	  min_relevance_score: 0.7
type settings struct {
	Backup     model.BackupConfig         `yaml:"backup"`
	Capture    capture.Config             `yaml:"capture"`
	Similarity contexts.SimilarityOptions `yaml:"similarity"`
}

func defaultSettings() *settings {
	return &settings{
		Backup:     model.DefaultBackupConfig(),
		Capture:    capture.DefaultConfig(),
		Similarity: contexts.DefaultSimilarityOptions(),
	}
}

// loadSettings returns defaults when path is empty
func loadSettings(path string) (*settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read settings file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, goerr.Wrap(err, "failed to parse settings file", goerr.V("path", path))
	}

	if err := s.Backup.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid backup settings", goerr.V("path", path))
	}
	if err := s.Capture.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid capture settings", goerr.V("path", path))
	}
	if s.Similarity.MaxResults <= 0 {
		return nil, goerr.Wrap(model.ErrValidation, "similarity max_results must be positive", goerr.V("path", path))
	}

	return s, nil
}
