package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/xuri/excelize/v2"

	"github.com/loopvinyl/tco2eq-v3/internal/export"
	"github.com/loopvinyl/tco2eq-v3/internal/insights"
	"github.com/loopvinyl/tco2eq-v3/internal/runtime"
	"github.com/loopvinyl/tco2eq-v3/internal/security"
	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
	"github.com/loopvinyl/tco2eq-v3/pkg/mcperr"
	"github.com/loopvinyl/tco2eq-v3/pkg/validation"
)

// ExportGuard validates CSV export destinations against the filesystem
// allow-list. Satisfied by security.Manager.
type ExportGuard interface {
	ValidateExportPath(path string) (string, error)
}

// Analyzer executes table profiling and insight tools over managed
// workbooks. Cache entries are keyed by table fingerprint; the analysis
// itself never consults the cache.
type Analyzer struct {
	Limits runtime.Limits
	Mgr    *workbooks.Manager
	Cache  *insights.ProfileCache
}

// --- Input / Output Schemas ---

// SheetScopeInput names one sheet of an open workbook.
type SheetScopeInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
	Sheet      string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Refresh    bool   `json:"refresh,omitempty" jsonschema_description:"Invalidate the cached profile for this table before computing"`
}

// ProfileSheetOutput carries the table profile and cache identity.
type ProfileSheetOutput struct {
	WorkbookID  string                `json:"workbook_id"`
	Sheet       string                `json:"sheet"`
	Fingerprint string                `json:"fingerprint"`
	Cached      bool                  `json:"cached"`
	Profile     insights.TableProfile `json:"profile"`
}

// SheetInsightsInput extends the sheet scope with the strict null mode.
type SheetInsightsInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
	Sheet      string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Strict     bool   `json:"strict,omitempty" jsonschema_description:"Count columns above 50% missing instead of flagging above 30%"`
	Refresh    bool   `json:"refresh,omitempty" jsonschema_description:"Invalidate the cached profile for this table before computing"`
}

// SheetInsightsOutput carries the ordered insight list.
type SheetInsightsOutput struct {
	WorkbookID  string             `json:"workbook_id"`
	Sheet       string             `json:"sheet"`
	Fingerprint string             `json:"fingerprint"`
	Cached      bool               `json:"cached"`
	Strict      bool               `json:"strict"`
	Insights    []insights.Insight `json:"insights"`
}

// DescribeColumnsOutput carries descriptive statistics per numeric column.
type DescribeColumnsOutput struct {
	WorkbookID string                    `json:"workbook_id"`
	Sheet      string                    `json:"sheet"`
	Columns    []insights.NumericSummary `json:"columns"`
}

// MissingValuesOutput carries null diagnostics, worst column first.
type MissingValuesOutput struct {
	WorkbookID string                   `json:"workbook_id"`
	Sheet      string                   `json:"sheet"`
	Rows       int                      `json:"rows"`
	Complete   bool                     `json:"complete"`
	Columns    []insights.MissingColumn `json:"columns"`
}

// ColumnValuesInput names one column for value-distribution analysis.
type ColumnValuesInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
	Sheet      string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Column     string `json:"column" validate:"required" jsonschema_description:"Column name"`
	TopN       int    `json:"top_n,omitempty" validate:"omitempty,min=1,max=50" jsonschema_description:"Distinct values to report (default from config)"`
}

// ColumnValuesOutput carries the distribution with HHI concentration.
type ColumnValuesOutput struct {
	WorkbookID   string                     `json:"workbook_id"`
	Sheet        string                     `json:"sheet"`
	Distribution insights.ValueDistribution `json:"distribution"`
}

// WorkbookSummaryInput identifies the workbook to roll up.
type WorkbookSummaryInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
}

// SheetSummary is one sheet's row in the workbook roll-up.
type SheetSummary struct {
	Sheet       string  `json:"sheet"`
	Rows        int     `json:"rows"`
	Cols        int     `json:"cols"`
	NumericCols int     `json:"numeric_cols"`
	FillRate    float64 `json:"fill_rate"`
	Headline    string  `json:"headline,omitempty"`
	Skipped     bool    `json:"skipped,omitempty"`
}

// WorkbookSummaryOutput rolls up every sheet.
type WorkbookSummaryOutput struct {
	WorkbookID string         `json:"workbook_id"`
	SheetCount int            `json:"sheet_count"`
	TotalRows  int            `json:"total_rows"`
	Sheets     []SheetSummary `json:"sheets"`
}

// ExportSheetCSVInput names the sheet and destination directory.
type ExportSheetCSVInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
	Sheet      string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Dir        string `json:"dir" validate:"required" jsonschema_description:"Destination directory inside the allow-list"`
}

// ExportSheetCSVOutput reports the written file.
type ExportSheetCSVOutput struct {
	WorkbookID string `json:"workbook_id"`
	Sheet      string `json:"sheet"`
	Path       string `json:"path"`
	Rows       int    `json:"rows"`
	Bytes      int64  `json:"bytes"`
}

// RenderReportInput selects the sheet and output format.
type RenderReportInput struct {
	WorkbookID string `json:"workbook_id" validate:"required" jsonschema_description:"Workbook handle ID"`
	Sheet      string `json:"sheet" validate:"required,sheetname" jsonschema_description:"Sheet name"`
	Format     string `json:"format,omitempty" validate:"omitempty,oneof=text markdown md" jsonschema_description:"Report format: text or markdown"`
	Strict     bool   `json:"strict,omitempty" jsonschema_description:"Strict null mode for the insights section"`
}

// RenderReportOutput carries the rendered report.
type RenderReportOutput struct {
	WorkbookID string `json:"workbook_id"`
	Sheet      string `json:"sheet"`
	Format     string `json:"format"`
	Report     string `json:"report"`
}

// RegisterAnalysisTools wires the profiling, insight, and export tool suite.
func RegisterAnalysisTools(s *server.MCPServer, reg *Registry, limits runtime.Limits, mgr *workbooks.Manager, cache *insights.ProfileCache, exports ExportGuard) {
	a := &Analyzer{Limits: limits, Mgr: mgr, Cache: cache}

	// profile_sheet
	ps := mcp.NewTool(
		"profile_sheet",
		mcp.WithDescription("Profile one sheet as a typed table: per-column kind (numeric, categorical, other), non-null counts, null rates, and variance/max for numeric columns, plus table fill rate. Results are cached by content fingerprint; pass refresh=true to recompute. Errors include INVALID_HANDLE, INVALID_SHEET, LIMIT_EXCEEDED, and ANALYSIS_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet name")),
		mcp.WithBoolean("refresh", mcp.DefaultBool(false), mcp.Description("Invalidate the cached profile first")),
		mcp.WithOutputSchema[ProfileSheetOutput](),
	)
	s.AddTool(ps, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in SheetScopeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		tbl, _, errRes := a.loadTable(in.WorkbookID, in.Sheet)
		if errRes != nil {
			return errRes, nil
		}
		p, fp, cached, errRes := a.profileFor(tbl, in.Refresh)
		if errRes != nil {
			return errRes, nil
		}

		out := ProfileSheetOutput{
			WorkbookID:  in.WorkbookID,
			Sheet:       in.Sheet,
			Fingerprint: fp,
			Cached:      cached,
			Profile:     *p,
		}
		summary := fmt.Sprintf("rows=%d cols=%d numeric=%d fill=%.2f%% cached=%v", p.Rows, p.Cols, p.NumericCols, p.FillRate, cached)
		lines := []string{summary}
		maxLines := len(p.Columns)
		if maxLines > 8 {
			maxLines = 8
		}
		for i := 0; i < maxLines; i++ {
			c := p.Columns[i]
			lines = append(lines, fmt.Sprintf("- %q kind=%s non_null=%d null_rate=%.2f", c.Name, c.Kind, c.NonNull, c.NullRate))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(ps)

	// sheet_insights
	si := mcp.NewTool(
		"sheet_insights",
		mcp.WithDescription("Generate ordered insights for one sheet: highest-variability numeric column with its maximum, a missing-values warning when any column exceeds 30% nulls (strict mode counts columns above 50% instead), and a fallback note when nothing else fires. The list is never empty. Errors include INVALID_HANDLE, INVALID_SHEET, LIMIT_EXCEEDED, and ANALYSIS_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet name")),
		mcp.WithBoolean("strict", mcp.DefaultBool(false), mcp.Description("Strict null mode (50% threshold, counted)")),
		mcp.WithBoolean("refresh", mcp.DefaultBool(false), mcp.Description("Invalidate the cached profile first")),
		mcp.WithOutputSchema[SheetInsightsOutput](),
	)
	s.AddTool(si, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in SheetInsightsInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		tbl, _, errRes := a.loadTable(in.WorkbookID, in.Sheet)
		if errRes != nil {
			return errRes, nil
		}
		p, fp, _, errRes := a.profileFor(tbl, in.Refresh)
		if errRes != nil {
			return errRes, nil
		}
		list, hit, errRes := a.insightsFor(tbl, p, fp, in.Strict)
		if errRes != nil {
			return errRes, nil
		}

		out := SheetInsightsOutput{
			WorkbookID:  in.WorkbookID,
			Sheet:       in.Sheet,
			Fingerprint: fp,
			Cached:      hit,
			Strict:      in.Strict,
			Insights:    list,
		}
		summary := fmt.Sprintf("insights=%d strict=%v", len(list), in.Strict)
		lines := []string{summary}
		for _, ins := range list {
			lines = append(lines, fmt.Sprintf("- [%s] %s", ins.Kind, ins.Message))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(si)

	// describe_columns
	dc := mcp.NewTool(
		"describe_columns",
		mcp.WithDescription("Descriptive statistics for every numeric column: count, mean, std, min, quartiles, median, max. Non-numeric and all-null columns are skipped. Errors include INVALID_HANDLE, INVALID_SHEET, LIMIT_EXCEEDED, and ANALYSIS_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet name")),
		mcp.WithBoolean("refresh", mcp.DefaultBool(false), mcp.Description("Invalidate the cached profile first")),
		mcp.WithOutputSchema[DescribeColumnsOutput](),
	)
	s.AddTool(dc, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in SheetScopeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		tbl, _, errRes := a.loadTable(in.WorkbookID, in.Sheet)
		if errRes != nil {
			return errRes, nil
		}
		p, _, _, errRes := a.profileFor(tbl, in.Refresh)
		if errRes != nil {
			return errRes, nil
		}
		cols, err := insights.Describe(tbl, p)
		if err != nil {
			return analysisErrResult(err), nil
		}

		out := DescribeColumnsOutput{WorkbookID: in.WorkbookID, Sheet: in.Sheet, Columns: cols}
		summary := fmt.Sprintf("numeric_columns=%d", len(cols))
		lines := []string{summary}
		for _, c := range cols {
			lines = append(lines, fmt.Sprintf("- %q count=%d mean=%.4g min=%.4g median=%.4g max=%.4g", c.Column, c.Count, c.Mean, c.Min, c.Median, c.Max))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(dc)

	// missing_values
	mv := mcp.NewTool(
		"missing_values",
		mcp.WithDescription("Per-column null diagnostics sorted worst-first. Only columns with at least one null appear; an empty list means the table is fully populated. Errors include INVALID_HANDLE, INVALID_SHEET, LIMIT_EXCEEDED, and ANALYSIS_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet name")),
		mcp.WithBoolean("refresh", mcp.DefaultBool(false), mcp.Description("Invalidate the cached profile first")),
		mcp.WithOutputSchema[MissingValuesOutput](),
	)
	s.AddTool(mv, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in SheetScopeInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		tbl, _, errRes := a.loadTable(in.WorkbookID, in.Sheet)
		if errRes != nil {
			return errRes, nil
		}
		p, _, _, errRes := a.profileFor(tbl, in.Refresh)
		if errRes != nil {
			return errRes, nil
		}
		cols, err := insights.MissingReport(p)
		if err != nil {
			return analysisErrResult(err), nil
		}

		out := MissingValuesOutput{
			WorkbookID: in.WorkbookID,
			Sheet:      in.Sheet,
			Rows:       p.Rows,
			Complete:   len(cols) == 0,
			Columns:    cols,
		}
		summary := fmt.Sprintf("columns_with_nulls=%d rows=%d", len(cols), p.Rows)
		lines := []string{summary}
		if len(cols) == 0 {
			lines = append(lines, "all columns fully populated")
		}
		for _, c := range cols {
			lines = append(lines, fmt.Sprintf("- %q nulls=%d (%.1f%%)", c.Column, c.Nulls, c.Pct))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(mv)

	// column_values
	cv := mcp.NewTool(
		"column_values",
		mcp.WithDescription("Top-N distinct values of one column with counts, shares, and Herfindahl-Hirschman Index (HHI) concentration banding. Nulls are excluded from counts; ties break on value text for determinism. Errors include INVALID_HANDLE, INVALID_SHEET, NOT_FOUND (column), LIMIT_EXCEEDED, and ANALYSIS_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet name")),
		mcp.WithString("column", mcp.Required(), mcp.Description("Column name")),
		mcp.WithNumber("top_n", mcp.DefaultNumber(float64(limits.TopValues)), mcp.Min(1), mcp.Max(50), mcp.Description("Distinct values to report")),
		mcp.WithOutputSchema[ColumnValuesOutput](),
	)
	s.AddTool(cv, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ColumnValuesInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		tbl, _, errRes := a.loadTable(in.WorkbookID, in.Sheet)
		if errRes != nil {
			return errRes, nil
		}
		topN := in.TopN
		if topN <= 0 {
			topN = limits.TopValues
		}
		dist, err := insights.TopValues(tbl, in.Column, topN)
		if err != nil {
			if errors.Is(err, insights.ErrColumnNotFound) {
				return mcperr.Wrapf(mcperr.NotFound, "column %q not found in sheet %q", in.Column, in.Sheet), nil
			}
			return analysisErrResult(err), nil
		}

		out := ColumnValuesOutput{WorkbookID: in.WorkbookID, Sheet: in.Sheet, Distribution: *dist}
		summary := fmt.Sprintf("distinct=%d non_null=%d HHI=%.3f band=%s", dist.Distinct, dist.NonNull, dist.HHI, dist.Band)
		lines := []string{summary}
		for _, vc := range dist.Top {
			lines = append(lines, fmt.Sprintf("- %q count=%d share=%.3f", vc.Value, vc.Count, vc.Share))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(cv)

	// workbook_summary
	ws := mcp.NewTool(
		"workbook_summary",
		mcp.WithDescription("Roll up every sheet: rows, columns, numeric column count, fill rate, and the leading insight per sheet. Sheets over the per-operation cell cap are marked skipped rather than failing the whole summary. Errors include INVALID_HANDLE and ANALYSIS_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithOutputSchema[WorkbookSummaryOutput](),
	)
	s.AddTool(ws, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in WorkbookSummaryInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		var wb *tabular.Workbook
		err := a.Mgr.WithRead(in.WorkbookID, func(f *excelize.File, _ int64) error {
			var rerr error
			wb, rerr = workbooks.Tables(f)
			return rerr
		})
		if err != nil {
			if errors.Is(err, workbooks.ErrHandleNotFound) {
				return mcperr.New(mcperr.InvalidHandle, ""), nil
			}
			return analysisErrResult(err), nil
		}

		out := WorkbookSummaryOutput{WorkbookID: in.WorkbookID, SheetCount: wb.Len()}
		for _, name := range wb.Names() {
			tbl, _ := wb.Table(name)
			if cells := tbl.Rows() * tbl.Cols(); cells > a.Limits.MaxCellsPerOp {
				out.Sheets = append(out.Sheets, SheetSummary{Sheet: name, Rows: tbl.Rows(), Cols: tbl.Cols(), Skipped: true})
				continue
			}
			p, fp, _, errRes := a.profileFor(tbl, false)
			if errRes != nil {
				return errRes, nil
			}
			list, _, errRes := a.insightsFor(tbl, p, fp, false)
			if errRes != nil {
				return errRes, nil
			}
			sum := SheetSummary{
				Sheet:       name,
				Rows:        p.Rows,
				Cols:        p.Cols,
				NumericCols: p.NumericCols,
				FillRate:    p.FillRate,
			}
			if len(list) > 0 {
				sum.Headline = list[0].Message
			}
			out.TotalRows += p.Rows
			out.Sheets = append(out.Sheets, sum)
		}

		summary := fmt.Sprintf("sheets=%d total_rows=%d", out.SheetCount, out.TotalRows)
		lines := []string{summary}
		for _, sh := range out.Sheets {
			if sh.Skipped {
				lines = append(lines, fmt.Sprintf("- %s rows=%d cols=%d (skipped: over cell cap)", sh.Sheet, sh.Rows, sh.Cols))
				continue
			}
			lines = append(lines, fmt.Sprintf("- %s rows=%d cols=%d numeric=%d fill=%.2f%%: %s", sh.Sheet, sh.Rows, sh.Cols, sh.NumericCols, sh.FillRate, sh.Headline))
		}
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
		return res, nil
	}))
	reg.Register(ws)

	// export_sheet_csv
	ec := mcp.NewTool(
		"export_sheet_csv",
		mcp.WithDescription("Write one sheet as CSV into an allowlisted directory. The filename is {sheet}_{YYYYMMDD}.csv using the UTC date; numbers render locale-free and nulls as empty cells. Hidden unless TCO2EQ_ENABLE_EXPORTS=true. Errors include INVALID_HANDLE, INVALID_SHEET, PERMISSION_DENIED, and EXPORT_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet name")),
		mcp.WithString("dir", mcp.Required(), mcp.Description("Destination directory inside the allow-list")),
		mcp.WithOutputSchema[ExportSheetCSVOutput](),
	)
	s.AddTool(ec, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in ExportSheetCSVInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		if exports == nil {
			return mcperr.New(mcperr.PermissionDenied, "exports are not configured"), nil
		}
		tbl, _, errRes := a.loadTable(in.WorkbookID, in.Sheet)
		if errRes != nil {
			return errRes, nil
		}

		name := export.DatedFilename(in.Sheet, time.Now())
		dest, err := exports.ValidateExportPath(filepath.Join(in.Dir, name))
		if err != nil {
			return exportErrResult(err), nil
		}
		rows, bytes, err := export.WriteCSV(dest, tbl)
		if err != nil {
			return mcperr.Wrapf(mcperr.ExportFailed, "%v", err), nil
		}

		out := ExportSheetCSVOutput{WorkbookID: in.WorkbookID, Sheet: in.Sheet, Path: dest, Rows: rows, Bytes: bytes}
		summary := fmt.Sprintf("wrote %d rows (%d bytes) to %s", rows, bytes, dest)
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(summary)}
		return res, nil
	}))
	reg.Register(ec)

	// render_report
	rr := mcp.NewTool(
		"render_report",
		mcp.WithDescription("Render a plain-text or markdown report for one sheet: shape summary, per-column profile table, and the ordered insight list. Errors include INVALID_HANDLE, INVALID_SHEET, LIMIT_EXCEEDED, PAYLOAD_TOO_LARGE, and ANALYSIS_FAILED."),
		mcp.WithString("workbook_id", mcp.Required(), mcp.Description("Workbook handle ID")),
		mcp.WithString("sheet", mcp.Required(), mcp.Description("Sheet name")),
		mcp.WithString("format", mcp.DefaultString("text"), mcp.Enum("text", "markdown"), mcp.Description("Report format")),
		mcp.WithBoolean("strict", mcp.DefaultBool(false), mcp.Description("Strict null mode for the insights section")),
		mcp.WithOutputSchema[RenderReportOutput](),
	)
	s.AddTool(rr, mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in RenderReportInput) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		tbl, _, errRes := a.loadTable(in.WorkbookID, in.Sheet)
		if errRes != nil {
			return errRes, nil
		}
		p, fp, _, errRes := a.profileFor(tbl, false)
		if errRes != nil {
			return errRes, nil
		}
		list, _, errRes := a.insightsFor(tbl, p, fp, in.Strict)
		if errRes != nil {
			return errRes, nil
		}

		format := strings.ToLower(strings.TrimSpace(in.Format))
		if format == "" {
			format = "text"
		}
		text, err := export.RenderString(export.Report{Title: in.Sheet, Profile: p, Insights: list}, format)
		if err != nil {
			return mcperr.Wrapf(mcperr.ExportFailed, "render: %v", err), nil
		}
		if len(text) > a.Limits.MaxPayloadBytes {
			return mcperr.Wrapf(mcperr.PayloadTooLarge, "report is %d bytes (max %d)", len(text), a.Limits.MaxPayloadBytes), nil
		}

		out := RenderReportOutput{WorkbookID: in.WorkbookID, Sheet: in.Sheet, Format: format, Report: text}
		summary := fmt.Sprintf("report format=%s bytes=%d", format, len(text))
		res := mcp.NewToolResultStructured(out, summary)
		res.Content = []mcp.Content{mcp.NewTextContent(text)}
		return res, nil
	}))
	reg.Register(rr)
}

// loadTable reads one sheet into a typed table under the handle's read lock
// and enforces the per-operation cell cap.
func (a *Analyzer) loadTable(workbookID, sheet string) (*tabular.Table, int64, *mcp.CallToolResult) {
	var tbl *tabular.Table
	var ver int64
	err := a.Mgr.WithRead(workbookID, func(f *excelize.File, v int64) error {
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
			return nil, 0, mcperr.New(mcperr.InvalidHandle, "")
		}
		if mcperr.IsInvalidSheet(err) {
			return nil, 0, mcperr.New(mcperr.InvalidSheet, "")
		}
		return nil, 0, analysisErrResult(err)
	}
	if cells := tbl.Rows() * tbl.Cols(); cells > a.Limits.MaxCellsPerOp {
		return nil, 0, mcperr.Wrapf(mcperr.LimitExceeded, "sheet has %d cells (max %d per operation)", cells, a.Limits.MaxCellsPerOp)
	}
	return tbl, ver, nil
}

// profileFor returns the cached profile for the table's fingerprint or
// computes and stores one. Refresh drops the entry first.
func (a *Analyzer) profileFor(tbl *tabular.Table, refresh bool) (*insights.TableProfile, string, bool, *mcp.CallToolResult) {
	fp := tbl.Fingerprint()
	if refresh {
		a.Cache.Invalidate(fp)
	}
	if e, ok := a.Cache.Get(fp); ok && e.Profile != nil {
		return e.Profile, fp, true, nil
	}
	p, err := insights.Profile(tbl)
	if err != nil {
		return nil, fp, false, analysisErrResult(err)
	}
	entry := &insights.CacheEntry{Profile: p}
	if old, ok := a.Cache.Get(fp); ok {
		entry.Insights = old.Insights
	}
	a.Cache.Put(fp, entry)
	return p, fp, false, nil
}

// insightsFor returns the canonical insight run from cache when available.
// Strict runs are never cached; they depend on the mode, not the table alone.
func (a *Analyzer) insightsFor(tbl *tabular.Table, p *insights.TableProfile, fp string, strict bool) ([]insights.Insight, bool, *mcp.CallToolResult) {
	if !strict {
		if e, ok := a.Cache.Get(fp); ok && e.Insights != nil {
			return e.Insights, true, nil
		}
	}
	list, err := insights.Insights(tbl, p, insights.Options{StrictNulls: strict})
	if err != nil {
		return nil, false, analysisErrResult(err)
	}
	if !strict {
		entry := &insights.CacheEntry{Profile: p, Insights: list}
		a.Cache.Put(fp, entry)
	}
	return list, false, nil
}

// analysisErrResult maps analysis-path failures onto catalog codes.
func analysisErrResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, tabular.ErrInvalidInput):
		return mcperr.Wrapf(mcperr.InvalidInput, "%v", err)
	case mcperr.IsInvalidSheet(err):
		return mcperr.New(mcperr.InvalidSheet, "")
	default:
		return mcperr.Wrapf(mcperr.AnalysisFailed, "%v", err)
	}
}

// exportErrResult maps allow-list failures from export destinations onto
// catalog codes.
func exportErrResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.New(mcperr.PermissionDenied, "")
	case errors.Is(err, security.ErrUnsupportedExtension):
		return mcperr.New(mcperr.UnsupportedFormat, "export destinations must end in .csv")
	case errors.Is(err, security.ErrNotFound):
		return mcperr.New(mcperr.NotFound, "destination directory not found")
	default:
		return mcperr.Wrapf(mcperr.ExportFailed, "%v", err)
	}
}
