package mcp_test

import (
	"context"
	"strings"
	"testing"

	"github.com/anantham/nutrilens"
	"github.com/anantham/nutrilens/internal/store"
	nutrimcp "github.com/anantham/nutrilens/mcp"
)

func newStoreServer(t *testing.T, storeID string) *nutrimcp.Server {
	t.Helper()
	t.Setenv(store.HomeEnv, t.TempDir())

	client, err := nutrilens.New(nutrilens.Config{Store: storeID})
	if err != nil {
		t.Fatalf("nutrilens.New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return nutrimcp.NewServer(client)
}

func TestTool_StoreList_MarksActive(t *testing.T) {
	server := newStoreServer(t, "clinic/north")

	result, err := server.CallTool(context.Background(), "nutrilens_store_list", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("CallTool() returned error result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "* clinic/north") {
		t.Errorf("store list should mark clinic/north active, got:\n%s", result.Content)
	}
}

func TestTool_StoreInfo(t *testing.T) {
	server := newStoreServer(t, "kitchen")
	ctx := context.Background()

	if _, err := server.CallTool(ctx, "nutrilens_record_correction", map[string]any{
		"field": "calories", "ai_value": 300.0, "user_value": 400.0, "user_id": "u1",
	}); err != nil {
		t.Fatal(err)
	}

	result, err := server.CallTool(ctx, "nutrilens_store_info", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool() returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("CallTool() returned error result: %s", result.Content)
	}
	for _, want := range []string{"Store: kitchen", "Corrections: 1", "Users: 1", "Schema: v1"} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("store info missing %q:\n%s", want, result.Content)
		}
	}
}
