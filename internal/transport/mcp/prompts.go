package mcp

import (
	"context"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/shard-coordinator/internal/service/coordination"
)

const troubleshootIntro = `You are looking at the agent table of a leaderless shard coordinator.
Each agent moves SUSPENDED -> WAITING -> RUNNING. An event processor only processes
its shard while RUNNING, and only after every live peer has recorded the same
cluster. Rows whose lease expired are deleted by whichever agent pulses next.
Explain why the cluster below is or is not fully RUNNING.

`

// RegisterPrompts registers the troubleshooting prompt, which embeds a fresh
// cluster dump.
func RegisterPrompts(s *mcpserver.MCPServer, ins *coordination.Inspector) {
	s.AddPrompt(
		mcpmcp.NewPrompt("troubleshoot_cluster",
			mcpmcp.WithPromptDescription("Ask for a diagnosis of the current cluster state."),
		),
		troubleshootHandler(ins),
	)
}

func troubleshootHandler(ins *coordination.Inspector) mcpserver.PromptHandlerFunc {
	return func(ctx context.Context, _ mcpmcp.GetPromptRequest) (*mcpmcp.GetPromptResult, error) {
		tree, err := ins.Tree(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe cluster: %w", err)
		}
		return mcpmcp.NewGetPromptResult(
			"Cluster troubleshooting",
			[]mcpmcp.PromptMessage{
				mcpmcp.NewPromptMessage(
					mcpmcp.RoleUser,
					mcpmcp.TextContent{
						Type: "text",
						Text: troubleshootIntro + tree.String(),
					},
				),
			},
		), nil
	}
}
