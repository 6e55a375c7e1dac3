package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// BackupFormatVersion is written into every backup. Restore refuses backups
// carrying any other version.
const BackupFormatVersion = "1.0.0"

type BackupMetadata struct {
	Timestamp    int64  `json:"timestamp"`
	ContextCount int    `json:"contextCount"`
	Version      string `json:"version"`
}

// Backup is an immutable snapshot of every Context
type Backup struct {
	Metadata BackupMetadata `json:"metadata"`
	Contexts []*Context     `json:"contexts"`
}

// BackupInfo describes a stored backup without its contexts
type BackupInfo struct {
	Timestamp    int64  `json:"timestamp"`
	ContextCount int    `json:"contextCount"`
	Version      string `json:"version"`
	Filename     string `json:"filename"`
}

// BackupConfig controls automatic backups and retention
type BackupConfig struct {
	AutoBackupEnabled   bool          `json:"autoBackupEnabled" yaml:"auto_backup_enabled"`
	BackupFrequency     time.Duration `json:"backupFrequency" yaml:"backup_frequency"`
	RetentionPeriodDays int           `json:"retentionPeriodDays" yaml:"retention_period_days"`
}

// DefaultBackupConfig returns daily backups kept for 30 days
func DefaultBackupConfig() BackupConfig {
	return BackupConfig{
		AutoBackupEnabled:   true,
		BackupFrequency:     24 * time.Hour,
		RetentionPeriodDays: 30,
	}
}

func (c BackupConfig) Validate() error {
	if c.RetentionPeriodDays < 0 {
		return goerr.Wrap(ErrValidation, "retention period must not be negative",
			goerr.V("retention_period_days", c.RetentionPeriodDays))
	}
	if c.AutoBackupEnabled && c.BackupFrequency <= 0 {
		return goerr.Wrap(ErrValidation, "backup frequency must be positive",
			goerr.V("backup_frequency", c.BackupFrequency))
	}
	return nil
}

// Retention returns the retention period as a duration. Zero disables the sweep.
func (c BackupConfig) Retention() time.Duration {
	return time.Duration(c.RetentionPeriodDays) * 24 * time.Hour
}
