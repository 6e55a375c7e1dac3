package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type emptyParams struct{}

type backupIDParams struct {
	ID string `json:"id" jsonschema:"Backup ID (file name) as returned by list_backups"`
}

type setBackupConfigParams struct {
	AutoBackupEnabled   bool   `json:"auto_backup_enabled" jsonschema:"Enable scheduled backups"`
	BackupFrequency     string `json:"backup_frequency,omitempty" jsonschema:"Interval between scheduled backups such as 24h or 30m. Omit to keep the current value"`
	RetentionPeriodDays int    `json:"retention_period_days,omitempty" jsonschema:"Delete backups older than this many days. Omit to keep the current value"`
}

func (s *Server) registerBackupTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_backup",
		Description: "Snapshot every context record into a new backup",
	}, s.createBackup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_backups",
		Description: "List backups, newest first",
	}, s.listBackups)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "restore_backup",
		Description: "Replace every context record with the contents of a backup",
	}, s.restoreBackup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_backup",
		Description: "Delete a backup",
	}, s.deleteBackup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "set_backup_config",
		Description: "Change the backup schedule and retention period",
	}, s.setBackupConfig)
}

func (s *Server) createBackup(ctx context.Context, req *mcp.CallToolRequest, params emptyParams) (*mcp.CallToolResult, any, error) {
	id, err := s.uc.CreateBackup(ctx)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Backup created: %s", id))
}

func (s *Server) listBackups(ctx context.Context, req *mcp.CallToolRequest, params emptyParams) (*mcp.CallToolResult, any, error) {
	infos, err := s.uc.ListBackups(ctx)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(infos)
}

func (s *Server) restoreBackup(ctx context.Context, req *mcp.CallToolRequest, params backupIDParams) (*mcp.CallToolResult, any, error) {
	n, err := s.uc.RestoreBackup(ctx, params.ID)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Restored %d contexts from %s", n, params.ID))
}

func (s *Server) deleteBackup(ctx context.Context, req *mcp.CallToolRequest, params backupIDParams) (*mcp.CallToolResult, any, error) {
	deleted, err := s.uc.DeleteBackup(ctx, params.ID)
	if err != nil {
		return nil, nil, err
	}
	if !deleted {
		return textResult(fmt.Sprintf("Backup %s not found", params.ID))
	}
	return textResult(fmt.Sprintf("Backup %s deleted", params.ID))
}

func (s *Server) setBackupConfig(ctx context.Context, req *mcp.CallToolRequest, params setBackupConfigParams) (*mcp.CallToolResult, any, error) {
	cfg := s.uc.BackupConfig()
	cfg.AutoBackupEnabled = params.AutoBackupEnabled
	if params.BackupFrequency != "" {
		freq, err := time.ParseDuration(params.BackupFrequency)
		if err != nil {
			return nil, nil, goerr.Wrap(model.ErrValidation, "invalid backup frequency",
				goerr.V("backup_frequency", params.BackupFrequency))
		}
		cfg.BackupFrequency = freq
	}
	if params.RetentionPeriodDays != 0 {
		cfg.RetentionPeriodDays = params.RetentionPeriodDays
	}

	if err := s.uc.SetBackupConfig(cfg); err != nil {
		return nil, nil, err
	}
	return jsonResult(cfg)
}
