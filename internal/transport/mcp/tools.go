package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainagent "github.com/alanyang/shard-coordinator/internal/domain/agent"
	"github.com/alanyang/shard-coordinator/internal/service/coordination"
)

// RegisterTools registers the read-only cluster tools.
func RegisterTools(s *mcpserver.MCPServer, ins *coordination.Inspector) {
	s.AddTool(mcpmcp.NewTool("describe_cluster",
		mcpmcp.WithDescription("Render the agent table as a tree: one group per agent type with its live cluster descriptor, each agent's state, lease and assignment, then what the agents in this process were last told to do."),
		mcpmcp.WithReadOnlyHintAnnotation(true),
	), describeClusterHandler(ins))

	s.AddTool(mcpmcp.NewTool("list_agents",
		mcpmcp.WithDescription("List agent rows ordered by id, as JSON."),
		mcpmcp.WithString("type",
			mcpmcp.Description("Only agents of this type"),
			mcpmcp.Enum(
				string(domainagent.TypeEventProcessingDynamicSharding),
				string(domainagent.TypeEventProcessingStaticSharding),
				string(domainagent.TypeMassIndexing),
			),
		),
		mcpmcp.WithBoolean("live_only", mcpmcp.Description("Skip agents whose lease has expired")),
		mcpmcp.WithReadOnlyHintAnnotation(true),
	), listAgentsHandler(ins))
}

// ── Tool handlers ─────────────────────────────────────────────────────────

func describeClusterHandler(ins *coordination.Inspector) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, _ mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		tree, err := ins.Tree(ctx)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		return mcpmcp.NewToolResultText(tree.String()), nil
	}
}

func listAgentsHandler(ins *coordination.Inspector) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		f := coordination.AgentFilter{
			Type:     domainagent.Type(mcpmcp.ParseString(req, "type", "")),
			LiveOnly: mcpmcp.ParseBoolean(req, "live_only", false),
		}
		if f.Type != "" && !f.Type.Valid() {
			return mcpmcp.NewToolResultText("error: invalid type"), nil
		}

		agents, err := ins.FindAgents(ctx, f)
		if err != nil {
			return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
		}
		data, _ := json.Marshal(agents)
		return mcpmcp.NewToolResultText(string(data)), nil
	}
}
