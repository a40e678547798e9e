package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/bonds-mcp/internal/fetch"
)

// DateLayout is the upstream's date format.
const DateLayout = "20060102"

// Requester is the part of fetch.Deduplicator the tool needs.
type Requester interface {
	Request(ctx context.Context, q fetch.Query) ([]fetch.Result, error)
}

// BondsFetchHandler returns the MCP tool handler for the "bonds-fetch" tool.
func BondsFetchHandler(r Requester) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		date, err := req.RequireString("date")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := time.Parse(DateLayout, date); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("date must be YYYYMMDD, got %q", date)), nil
		}
		raw, err := req.RequireString("isins")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ids := SplitIDs(raw)
		if len(ids) == 0 {
			return mcp.NewToolResultError("at least one ISIN is required"), nil
		}

		results, err := r.Request(ctx, fetch.Query{Date: date, IDs: ids})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatResults(date, ids, results)), nil
	}
}

// SplitIDs splits on commas and whitespace and drops empty items.
func SplitIDs(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
}

func formatResults(date string, requested []string, results []fetch.Result) string {
	var sb strings.Builder
	sb.WriteString("# Bonds as of ")
	sb.WriteString(date)
	sb.WriteString("\n\n")

	found := make(map[string]struct{}, len(results))
	for _, r := range results {
		found[r.ID] = struct{}{}
		sb.WriteString("- ")
		sb.WriteString(r.ID)
		if r.IsLoading {
			sb.WriteString(" (loading)")
		}
		sb.WriteString(": ")
		sb.Write(r.Data)
		sb.WriteString("\n")
	}

	var missing []string
	for _, id := range requested {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
			found[id] = struct{}{}
		}
	}
	if len(missing) > 0 {
		sb.WriteString("\nNot found: ")
		sb.WriteString(strings.Join(missing, ", "))
		sb.WriteString("\n")
	}
	if len(results) == 0 && len(missing) == 0 {
		return "No results."
	}
	return sb.String()
}
