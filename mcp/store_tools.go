package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/anantham/nutrilens"
	"github.com/anantham/nutrilens/internal/store"
)

// handleStoreList handles the nutrilens_store_list tool call.
func (s *Server) handleStoreList(_ context.Context, _ map[string]any) (*ToolResult, error) {
	stores, err := store.ListStores()
	if err != nil {
		return errorResult("list stores failed: %v", err)
	}
	return &ToolResult{Content: formatStoreList(stores, s.client.Config().Store)}, nil
}

// handleStoreInfo handles the nutrilens_store_info tool call.
func (s *Server) handleStoreInfo(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	stats, err := s.client.Stats(ctx)
	if err != nil {
		return errorResult("get store info failed: %v", err)
	}
	return &ToolResult{Content: formatStoreInfo(s.client.Config(), stats)}, nil
}

// formatStoreList marks the active store with an asterisk.
func formatStoreList(stores []string, active string) string {
	if len(stores) == 0 {
		return fmt.Sprintf("No stores found under %s.", store.DefaultStoreRoot())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Local stores (%d):\n\n", len(stores))
	for _, id := range stores {
		marker := " "
		if id == active {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %s\n", marker, id)
	}
	return sb.String()
}

func formatStoreInfo(cfg nutrilens.Config, stats *nutrilens.StoreStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Store: %s\n", cfg.Store)
	fmt.Fprintf(&sb, "Path: %s\n", cfg.DBPath)
	fmt.Fprintf(&sb, "Schema: v%s\n\n", stats.SchemaVersion)

	sb.WriteString("Statistics:\n")
	fmt.Fprintf(&sb, "  Learned ingredients: %d\n", stats.IngredientCount)
	fmt.Fprintf(&sb, "  Corrections: %d\n", stats.CorrectionCount)
	fmt.Fprintf(&sb, "  Users: %d\n", stats.UserCount)
	return sb.String()
}
