package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/repository"
	"github.com/m-mizutani/ctxkeep/pkg/service/mcp"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/backup"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/capture"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/service"
	"github.com/m-mizutani/gt"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func connect(t *testing.T) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	repo, err := repository.NewFileSystem(t.TempDir())
	gt.NoError(t, err)
	storage, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)

	store := contexts.New(repo)
	gt.NoError(t, store.Init(ctx))
	uc := service.New(store, backup.New(storage, backup.WithSource(store)), capture.New(store))

	server := mcp.NewServer(uc, "test")
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	_, err = server.Connect(ctx, serverTransport)
	gt.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func call(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.False(t, res.IsError)
	gt.A(t, res.Content).Length(1)

	text, ok := res.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return text.Text
}

func callFails(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return
	}
	gt.True(t, res.IsError)
}

func TestListTools(t *testing.T) {
	session := connect(t)

	res, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, name := range []string{
		"create_context", "get_context", "list_contexts", "update_context", "delete_context",
		"search_contexts", "find_similar",
		"create_backup", "list_backups", "restore_backup", "delete_backup", "set_backup_config",
		"register_session", "update_session", "capture_session", "capture_all_sessions",
		"end_session", "get_active_sessions",
	} {
		gt.True(t, names[name])
	}
}

func TestContextTools(t *testing.T) {
	session := connect(t)

	var created model.Context
	out := call(t, session, "create_context", map[string]any{
		"content": "Remember to rotate the API key",
		"metadata": map[string]any{
			"tags":     []string{"security"},
			"priority": "high",
		},
	})
	gt.NoError(t, json.Unmarshal([]byte(out), &created))
	gt.Equal(t, created.Metadata.Priority, model.PriorityHigh)

	out = call(t, session, "get_context", map[string]any{"id": string(created.ID)})
	gt.S(t, out).Contains("rotate the API key")

	out = call(t, session, "update_context", map[string]any{
		"id":      string(created.ID),
		"content": "API key rotated",
	})
	gt.S(t, out).Contains("API key rotated")

	var found []*model.Context
	out = call(t, session, "search_contexts", map[string]any{"query": "rotated", "tags": []string{"SECURITY"}})
	gt.NoError(t, json.Unmarshal([]byte(out), &found))
	gt.A(t, found).Length(1)

	var listed []*model.Context
	out = call(t, session, "list_contexts", map[string]any{})
	gt.NoError(t, json.Unmarshal([]byte(out), &listed))
	gt.A(t, listed).Length(1)

	out = call(t, session, "delete_context", map[string]any{"id": string(created.ID)})
	gt.S(t, out).Contains("deleted")

	callFails(t, session, "get_context", map[string]any{"id": string(created.ID)})
	callFails(t, session, "create_context", map[string]any{"content": "x", "metadata": map[string]any{"priority": "urgent"}})
	callFails(t, session, "find_similar", map[string]any{"query": "no embedder"})
}

func TestBackupTools(t *testing.T) {
	session := connect(t)

	call(t, session, "create_context", map[string]any{"content": "first"})
	call(t, session, "create_context", map[string]any{"content": "second"})

	out := call(t, session, "create_backup", map[string]any{})
	gt.S(t, out).Contains("backup-")
	id := strings.TrimPrefix(out, "Backup created: ")

	var infos []*model.BackupInfo
	out = call(t, session, "list_backups", map[string]any{})
	gt.NoError(t, json.Unmarshal([]byte(out), &infos))
	gt.A(t, infos).Length(1)
	gt.Equal(t, infos[0].ContextCount, 2)

	call(t, session, "create_context", map[string]any{"content": "third"})
	out = call(t, session, "restore_backup", map[string]any{"id": id})
	gt.S(t, out).Contains("Restored 2 contexts")

	var listed []*model.Context
	out = call(t, session, "list_contexts", map[string]any{})
	gt.NoError(t, json.Unmarshal([]byte(out), &listed))
	gt.A(t, listed).Length(2)

	out = call(t, session, "set_backup_config", map[string]any{
		"auto_backup_enabled":   false,
		"backup_frequency":      "12h",
		"retention_period_days": 14,
	})
	gt.S(t, out).Contains(`"retentionPeriodDays": 14`)
	callFails(t, session, "set_backup_config", map[string]any{"auto_backup_enabled": true, "backup_frequency": "soon"})

	out = call(t, session, "delete_backup", map[string]any{"id": id})
	gt.S(t, out).Contains("deleted")
	callFails(t, session, "restore_backup", map[string]any{"id": id})
}

func TestSessionTools(t *testing.T) {
	session := connect(t)

	out := call(t, session, "register_session", map[string]any{
		"id":           "s1",
		"content":      strings.Repeat("buffered ", 20),
		"project_path": "/repo",
	})
	gt.S(t, out).Contains(`"id": "s1"`)

	call(t, session, "update_session", map[string]any{"id": "s2", "content": "short"})

	var sessions []*model.ActiveSession
	out = call(t, session, "get_active_sessions", map[string]any{})
	gt.NoError(t, json.Unmarshal([]byte(out), &sessions))
	gt.A(t, sessions).Length(2)

	out = call(t, session, "capture_session", map[string]any{"id": "s2"})
	gt.S(t, out).Contains("not captured")

	out = call(t, session, "capture_session", map[string]any{
		"id":       "s1",
		"metadata": map[string]any{"tags": []string{"meeting"}},
	})
	gt.S(t, out).Contains("s1 captured")

	out = call(t, session, "capture_all_sessions", map[string]any{})
	gt.S(t, out).Contains("Captured 0 sessions")

	out = call(t, session, "end_session", map[string]any{"id": "s2", "capture": false})
	gt.S(t, out).Contains("captured: false")

	var listed []*model.Context
	out = call(t, session, "search_contexts", map[string]any{"tags": []string{"meeting"}})
	gt.NoError(t, json.Unmarshal([]byte(out), &listed))
	gt.A(t, listed).Length(1)
	gt.Equal(t, listed[0].Metadata.SessionID, model.SessionID("s1"))
}
