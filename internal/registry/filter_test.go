package registry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func TestExportToolFilter_HidesExportToolsByDefault(t *testing.T) {
	t.Setenv("TCO2EQ_ENABLE_EXPORTS", "")
	f := NewExportToolFilterFromEnv()

	tools := []mcp.Tool{
		{Name: "profile_sheet"},
		{Name: "export_sheet_csv"},
		{Name: "render_report"},
	}
	got := f.FilterTools(context.Background(), tools)
	require.Len(t, got, 2)
	for _, tool := range got {
		require.NotEqual(t, "export_sheet_csv", tool.Name)
	}
}

func TestExportToolFilter_EnabledViaEnv(t *testing.T) {
	for _, v := range []string{"1", "true", "YES"} {
		t.Setenv("TCO2EQ_ENABLE_EXPORTS", v)
		f := NewExportToolFilterFromEnv()

		tools := []mcp.Tool{{Name: "export_sheet_csv"}}
		got := f.FilterTools(context.Background(), tools)
		require.Len(t, got, 1, "env value %q", v)
	}
}
