package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/shard-coordinator/internal/adapter/memory"
	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/mocks"
	portagent "github.com/alanyang/shard-coordinator/internal/port/agent"
	"github.com/alanyang/shard-coordinator/internal/service/coordination"
)

// ── helpers ───────────────────────────────────────────────────────────────────

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func makeReq(args map[string]any) mcpmcp.CallToolRequest {
	var req mcpmcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(r *mcpmcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	if t, ok := r.Content[0].(mcpmcp.TextContent); ok {
		return t.Text
	}
	return ""
}

// newInspector registers two dynamic agents and one mass indexer, then lets
// the mass indexer's lease lapse.
func newInspector(t *testing.T) *coordination.Inspector {
	t.Helper()
	store := memory.NewAgentStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pulse := func(l *coordination.Link, at time.Time) {
		err := store.InTx(context.Background(), func(ctx context.Context, repo portagent.Repository) error {
			_, err := l.Pulse(ctx, repo, at)
			return err
		})
		require.NoError(t, err)
	}
	link := func(agentType domainagent.Type) *coordination.Link {
		return coordination.NewLink(coordination.LinkConfig{
			Type:            agentType,
			Name:            string(agentType),
			PulseInterval:   time.Second,
			PulseExpiration: 10 * time.Second,
		}, logger)
	}

	pulse(link(domainagent.TypeEventProcessingDynamicSharding), now)
	pulse(link(domainagent.TypeEventProcessingDynamicSharding), now)
	pulse(link(domainagent.TypeMassIndexing), now.Add(-time.Minute))
	return coordination.NewInspector(store, func() time.Time { return now })
}

func failingInspector(t *testing.T) *coordination.Inspector {
	t.Helper()
	repo := mocks.NewMockAgentRepository(gomock.NewController(t))
	repo.EXPECT().FindAllOrderByID(gomock.Any()).Return(nil, errors.New("db down"))
	return coordination.NewInspector(repo, nil)
}

// ── describe_cluster ──────────────────────────────────────────────────────────

func TestDescribeClusterHandler(t *testing.T) {
	res, err := describeClusterHandler(newInspector(t))(context.Background(), makeReq(nil))
	require.NoError(t, err)

	text := resultText(res)
	assert.True(t, strings.HasPrefix(text, "cluster\n"))
	assert.Contains(t, text, "agents: 3")
	assert.Contains(t, text, "  MASS_INDEXING\n")
}

func TestDescribeClusterHandler_RepoError(t *testing.T) {
	res, err := describeClusterHandler(failingInspector(t))(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "error: ")
	assert.Contains(t, resultText(res), "db down")
}

// ── list_agents ───────────────────────────────────────────────────────────────

func TestListAgentsHandler(t *testing.T) {
	ins := newInspector(t)

	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{"no filter", nil, 3},
		{"by type", map[string]any{"type": string(domainagent.TypeEventProcessingDynamicSharding)}, 2},
		{"live only", map[string]any{"live_only": true}, 2},
		{"live mass indexers", map[string]any{"type": string(domainagent.TypeMassIndexing), "live_only": true}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := listAgentsHandler(ins)(context.Background(), makeReq(tc.args))
			require.NoError(t, err)

			var got []domainagent.Agent
			require.NoError(t, json.Unmarshal([]byte(resultText(res)), &got))
			assert.Len(t, got, tc.want)
		})
	}
}

func TestListAgentsHandler_InvalidType(t *testing.T) {
	res, err := listAgentsHandler(newInspector(t))(context.Background(), makeReq(map[string]any{"type": "coder"}))
	require.NoError(t, err)
	assert.Equal(t, "error: invalid type", resultText(res))
}

func TestListAgentsHandler_RepoError(t *testing.T) {
	res, err := listAgentsHandler(failingInspector(t))(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "db down")
}

// ── troubleshoot_cluster ──────────────────────────────────────────────────────

func TestTroubleshootPrompt(t *testing.T) {
	res, err := troubleshootHandler(newInspector(t))(context.Background(), mcpmcp.GetPromptRequest{})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcpmcp.RoleUser, res.Messages[0].Role)

	content, ok := res.Messages[0].Content.(mcpmcp.TextContent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(content.Text, troubleshootIntro))
	assert.Contains(t, content.Text, "\ncluster\n")
}

func TestTroubleshootPrompt_RepoError(t *testing.T) {
	_, err := troubleshootHandler(failingInspector(t))(context.Background(), mcpmcp.GetPromptRequest{})
	assert.Error(t, err)
}

func TestNew_ServesHandler(t *testing.T) {
	s := New(newInspector(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotNil(t, s.Handler())
}
