package main

import "github.com/langflow-mcp/langflow-mcp/internal/cli"

func main() {
	cli.Execute()
}
