package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/loopvinyl/tco2eq-v3/internal/runtime"
	"github.com/loopvinyl/tco2eq-v3/internal/security"
	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
	"github.com/loopvinyl/tco2eq-v3/pkg/mcperr"
	"github.com/loopvinyl/tco2eq-v3/pkg/pagination"
	"github.com/loopvinyl/tco2eq-v3/pkg/validation"
	"github.com/xuri/excelize/v2"
)

// --- Input / Output Schemas (typed for discovery) ---

// OpenWorkbookInput defines parameters for opening a workbook from disk.
type OpenWorkbookInput struct {
	Path string `json:"path" validate:"required,filepath_ext" jsonschema_description:"Path to an Excel workbook inside an allowed directory"`
}

// OpenWorkbookURLInput defines parameters for downloading a workbook.
type OpenWorkbookURLInput struct {
	URL string `json:"url" validate:"required,wburl" jsonschema_description:"HTTPS URL of an Excel workbook (http allowed for loopback)"`
}

// OpenWorkbookOutput documents the response fields for both open tools.
type OpenWorkbookOutput struct {
	WorkbookID      string `json:"workbook_id" jsonschema_description:"Server-assigned workbook handle ID"`
	Path            string `json:"path,omitempty" jsonschema_description:"Canonical path for disk-backed workbooks"`
	MaxPayloadBytes int    `json:"maxPayloadBytes" jsonschema_description:"Effective payload size limit in bytes"`
	PreviewRowLimit int    `json:"previewRowLimit" jsonschema_description:"Default row limit for previews"`
}

// CloseWorkbookInput defines parameters for closing a workbook.
type CloseWorkbookInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID to close"`
}

// CloseWorkbookOutput reports the close outcome.
type CloseWorkbookOutput struct {
	Closed bool `json:"closed" jsonschema_description:"True when the handle was closed"`
}

// ListStructureInput defines parameters for structure discovery.
type ListStructureInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
}

// ListStructureOutput summarizes workbook structure.
type ListStructureOutput struct {
	WorkbookID string                `json:"workbook_id"`
	SheetCount int                   `json:"sheet_count"`
	Sheets     []workbooks.SheetMeta `json:"sheets"`
}

// PreviewSheetInput defines parameters for previewing a sheet.
type PreviewSheetInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
	Sheet      string `json:"sheet,omitempty" validate:"required_without=Cursor" jsonschema_description:"Sheet name to preview (or supply cursor)"`
	Rows       int    `json:"rows,omitempty" jsonschema_description:"Max rows per page (bounded)"`
	Cursor     string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page"`
}

// PageMeta captures paging/truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PreviewSheetOutput carries a bounded page of display-formatted rows.
type PreviewSheetOutput struct {
	WorkbookID string     `json:"workbook_id"`
	Sheet      string     `json:"sheet"`
	Header     []string   `json:"header"`
	Rows       [][]string `json:"rows"`
	Meta       PageMeta   `json:"meta"`
}

const maxPreviewRows = 200

// RegisterFoundationTools wires workbook lifecycle and bounded inspection
// tools.
func RegisterFoundationTools(s *server.MCPServer, reg *Registry, limits runtime.Limits, mgr *workbooks.Manager) {
	// open_workbook
	openTool := mcp.NewTool(
		"open_workbook",
		mcp.WithDescription("Open an Excel workbook from an allowed directory and return a handle ID with effective limits. Handles expire after idle TTL; reopening the same path reuses the live handle."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to an Excel workbook (.xlsx, .xlsm, .xltx, .xltm) inside an allowed directory")),
		mcp.WithOutputSchema[OpenWorkbookOutput](),
	)
	s.AddTool(openTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in OpenWorkbookInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		id, canonical, err := mgr.GetOrOpenByPath(ctx, in.Path)
		if err != nil {
			return openErrResult(err), nil
		}
		out := OpenWorkbookOutput{
			WorkbookID:      id,
			Path:            canonical,
			MaxPayloadBytes: limits.MaxPayloadBytes,
			PreviewRowLimit: limits.PreviewRowLimit,
		}
		summary := fmt.Sprintf("workbook_id=%s", id)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(openTool)

	// open_workbook_url
	openURL := mcp.NewTool(
		"open_workbook_url",
		mcp.WithDescription("Download an Excel workbook over HTTPS, parse it in memory, and return a handle ID. Downloads are capped by max_fetch_bytes; the handle behaves like a disk-backed one but has no canonical path."),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTPS URL of an Excel workbook")),
		mcp.WithOutputSchema[OpenWorkbookOutput](),
	)
	s.AddTool(openURL, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in OpenWorkbookURLInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		id, err := mgr.OpenURL(ctx, in.URL)
		if err != nil {
			switch {
			case errors.Is(err, workbooks.ErrURLNotAllowed):
				return mcperr.Wrapf(mcperr.Validation, "%v", err), nil
			case errors.Is(err, workbooks.ErrFetchTooLarge):
				return mcperr.Wrapf(mcperr.FileTooLarge, "%v", err), nil
			case errors.Is(err, context.DeadlineExceeded):
				return mcperr.New(mcperr.FetchFailed, "download timed out"), nil
			default:
				return mcperr.Wrapf(mcperr.FetchFailed, "%v", err), nil
			}
		}
		out := OpenWorkbookOutput{
			WorkbookID:      id,
			MaxPayloadBytes: limits.MaxPayloadBytes,
			PreviewRowLimit: limits.PreviewRowLimit,
		}
		summary := fmt.Sprintf("workbook_id=%s", id)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(openURL)

	// close_workbook
	closeTool := mcp.NewTool(
		"close_workbook",
		mcp.WithDescription("Close a previously opened workbook handle and free its slot"),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithOutputSchema[CloseWorkbookOutput](),
	)
	s.AddTool(closeTool, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in CloseWorkbookInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		if err := mgr.CloseHandle(ctx, in.WorkbookID); err != nil {
			if errors.Is(err, workbooks.ErrHandleNotFound) {
				return mcperr.New(mcperr.InvalidHandle, ""), nil
			}
			return mcperr.Wrapf(mcperr.Internal, "close: %v", err), nil
		}
		out := CloseWorkbookOutput{Closed: true}
		res := mcp.NewToolResultStructured(out, "closed")
		res.Content = []mcp.Content{mcp.NewTextContent("closed")}
		return res, nil
	}))
	reg.Register(closeTool)

	// list_structure
	listStructure := mcp.NewTool(
		"list_structure",
		mcp.WithDescription("Return workbook structure: sheet names, dimensions, and visibility (no cell data)"),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithOutputSchema[ListStructureOutput](),
	)
	s.AddTool(listStructure, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ListStructureInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		var metas []workbooks.SheetMeta
		err := mgr.WithRead(in.WorkbookID, func(f *excelize.File, _ int64) error {
			var rerr error
			metas, rerr = workbooks.ListSheets(f)
			return rerr
		})
		if err != nil {
			if errors.Is(err, workbooks.ErrHandleNotFound) {
				return mcperr.New(mcperr.InvalidHandle, ""), nil
			}
			return mcperr.Wrapf(mcperr.DiscoveryFailed, "%v", err), nil
		}
		out := ListStructureOutput{WorkbookID: in.WorkbookID, SheetCount: len(metas), Sheets: metas}
		summary := fmt.Sprintf("sheets=%d", len(metas))
		lines := []string{summary}
		for _, m := range metas {
			lines = append(lines, fmt.Sprintf("- %s rows=%d cols=%d visible=%v", m.Name, m.Rows, m.Cols, m.Visible))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(listStructure)

	// preview_sheet
	preview := mcp.NewTool(
		"preview_sheet",
		mcp.WithDescription("Return a bounded page of display-formatted rows from a sheet with cursor pagination. The first call names the sheet; subsequent pages pass the cursor. Cursors bind to the workbook write version and expire on edits."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Description("Sheet name to preview (required unless cursor is set)")),
		mcp.WithNumber("rows", mcp.DefaultNumber(float64(limits.PreviewRowLimit)), mcp.Min(1), mcp.Max(maxPreviewRows), mcp.Description("Max rows per page")),
		mcp.WithString("cursor", mcp.Description("Opaque cursor from a previous page")),
		mcp.WithOutputSchema[PreviewSheetOutput](),
	)
	s.AddTool(preview, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in PreviewSheetInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}

		sheet := strings.TrimSpace(in.Sheet)
		offset := 0
		pageSize := in.Rows
		if pageSize <= 0 {
			pageSize = limits.PreviewRowLimit
		}
		if pageSize > maxPreviewRows {
			pageSize = maxPreviewRows
		}

		var cur *pagination.Cursor
		if strings.TrimSpace(in.Cursor) != "" {
			c, err := pagination.DecodeCursor(in.Cursor)
			if err != nil {
				return mcperr.Wrapf(mcperr.CursorInvalid, "%v", err), nil
			}
			if c.Wid != in.WorkbookID {
				return mcperr.New(mcperr.CursorInvalid, "cursor belongs to a different workbook"), nil
			}
			cur = c
			sheet = c.S
			offset = c.Off
			pageSize = c.Ps
		}

		var tbl *tabular.Table
		var ver int64
		err := mgr.WithRead(in.WorkbookID, func(f *excelize.File, v int64) error {
			ver = v
			t, rerr := workbooks.SheetTable(f, sheet)
			if rerr != nil {
				return rerr
			}
			tbl = t
			return nil
		})
		if err != nil {
			if errors.Is(err, workbooks.ErrHandleNotFound) {
				return mcperr.New(mcperr.InvalidHandle, ""), nil
			}
			if mcperr.IsInvalidSheet(err) {
				return mcperr.New(mcperr.InvalidSheet, ""), nil
			}
			return mcperr.Wrapf(mcperr.PreviewFailed, "%v", err), nil
		}
		if cur != nil && cur.Wbv != ver {
			return mcperr.New(mcperr.CursorInvalid, "workbook changed since cursor was issued"), nil
		}
		if cells := tbl.Rows() * tbl.Cols(); cells > limits.MaxCellsPerOp {
			return mcperr.Wrapf(mcperr.LimitExceeded, "sheet has %d cells (max %d per operation)", cells, limits.MaxCellsPerOp), nil
		}

		total := tbl.Rows()
		start := offset
		if start > total {
			start = total
		}
		end := start + pageSize
		if end > total {
			end = total
		}

		header := make([]string, len(tbl.Columns))
		for i := range tbl.Columns {
			header[i] = tbl.Columns[i].Name
		}
		rows := make([][]string, 0, end-start)
		for r := start; r < end; r++ {
			row := make([]string, len(tbl.Columns))
			for ci := range tbl.Columns {
				row[ci] = tbl.Columns[ci].Values[r].Display()
			}
			rows = append(rows, row)
		}

		out := PreviewSheetOutput{
			WorkbookID: in.WorkbookID,
			Sheet:      sheet,
			Header:     header,
			Rows:       rows,
			Meta: PageMeta{
				Total:     total,
				Returned:  len(rows),
				Truncated: end < total,
			},
		}
		if out.Meta.Truncated {
			tok, cerr := pagination.EncodeCursor(pagination.Cursor{
				V:   1,
				Wid: in.WorkbookID,
				S:   sheet,
				Off: pagination.NextOffset(start, len(rows)),
				Ps:  pageSize,
				Wbv: ver,
				Iat: time.Now().Unix(),
			})
			if cerr != nil {
				return mcperr.Wrapf(mcperr.CursorBuildFailed, "%v", cerr), nil
			}
			out.Meta.NextCursor = tok
		}

		if b, merr := json.Marshal(out); merr == nil && len(b) > limits.MaxPayloadBytes {
			return mcperr.Wrapf(mcperr.PayloadTooLarge, "page is %d bytes (max %d); reduce rows", len(b), limits.MaxPayloadBytes), nil
		}

		summary := fmt.Sprintf("rows=%d/%d truncated=%v", out.Meta.Returned, out.Meta.Total, out.Meta.Truncated)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(preview)
}

// openErrResult maps manager/security failures from path opens onto catalog
// codes.
func openErrResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, security.ErrNotFound):
		return mcperr.New(mcperr.NotFound, "workbook file not found")
	case errors.Is(err, security.ErrUnsupportedExtension), errors.Is(err, workbooks.ErrUnsupportedFormat):
		return mcperr.New(mcperr.UnsupportedFormat, "")
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.New(mcperr.PermissionDenied, "")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return mcperr.New(mcperr.BusyResource, "open workbook capacity reached")
	default:
		return mcperr.Wrapf(mcperr.OpenFailed, "%v", err)
	}
}
