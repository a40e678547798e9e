package tools

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Sized is any cache handle.
type Sized interface {
	Len() int
}

// recency is implemented by the LRU policy.
type recency interface {
	Limit() int
	Keys() iter.Seq[string]
}

// BondsCacheHandler returns the MCP tool handler for the "bonds-cache" tool.
// It reports the cache size and, for an LRU cache, its keys from least to
// most recently used. Listing keys does not count as use.
func BondsCacheHandler(c Sized) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		return mcp.NewToolResultText(formatCache(c)), nil
	}
}

func formatCache(c Sized) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "entries: %d\n", c.Len())
	r, ok := c.(recency)
	if !ok {
		return sb.String()
	}
	fmt.Fprintf(&sb, "limit: %d\n", r.Limit())
	sb.WriteString("least to most recently used:\n")
	i := 0
	for key := range r.Keys() {
		i++
		fmt.Fprintf(&sb, "%d. %s\n", i, key)
	}
	return sb.String()
}
