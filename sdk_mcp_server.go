package copilotsdk

import (
	internalmcp "github.com/copilotstream/copilot-sdk-go/internal/mcp"
)

// CreateSdkMcpServer creates an in-process MCP server configuration with
// SdkMcpTool tools.
//
// The server runs within your application; when the model invokes one of
// its tools, the CLI calls back over the SDK connection instead of
// spawning an external server process.
//
// The returned config can be used directly in SessionConfig.MCPServers:
//
//	addTool := copilotsdk.NewSdkMcpTool("add", "Add two numbers",
//	    copilotsdk.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
//	    func(ctx context.Context, req *copilotsdk.CallToolRequest) (*copilotsdk.CallToolResult, error) {
//	        args, _ := copilotsdk.ParseArguments(req)
//	        a, b := args["a"].(float64), args["b"].(float64)
//	        return copilotsdk.TextResult(fmt.Sprintf("Result: %v", a+b)), nil
//	    },
//	)
//
//	calculator := copilotsdk.CreateSdkMcpServer("calculator", "1.0.0", addTool)
//
//	cfg := &copilotsdk.SessionConfig{
//	    MCPServers: map[string]copilotsdk.MCPServerConfig{
//	        "calculator": calculator,
//	    },
//	}
//
// Parameters:
//   - name: server name, also used as the key in the MCPServers map
//   - version: server version string
//   - tools: SdkMcpTool instances to register with the server
func CreateSdkMcpServer(name, version string, tools ...*SdkMcpTool) *MCPSdkServerConfig {
	server := internalmcp.NewSDKServer(name, version)

	for _, tool := range tools {
		mcpTool := internalmcp.NewTool(tool.ToolName, tool.ToolDescription, tool.ToolSchema)
		mcpTool.Annotations = tool.ToolAnnotations
		server.AddTool(mcpTool, tool.ToolHandler)
	}

	return &MCPSdkServerConfig{
		Type:     MCPServerTypeSDK,
		Name:     name,
		Instance: server,
	}
}
