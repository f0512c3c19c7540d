package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"alfred/internal/activity"
	"alfred/internal/models"

	"github.com/xuri/excelize/v2"
)

// SegmentsExportHeader 导出表头
var SegmentsExportHeader = []string{
	"Activity",
	"Started At",
	"Ended At",
	"Duration (h)",
}

const segmentsSheet = "Activity"

// GenerateSegmentsExport 生成活动片段 Excel 文件
// 打开的片段 Ended At 为空，时长计算到 now
func GenerateSegmentsExport(segments []models.ActivitySegment, now time.Time, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()

	index, err := f.NewSheet(segmentsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range SegmentsExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(segmentsSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(segmentsSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}
	if err := f.SetColWidth(segmentsSheet, "A", "D", 22); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, seg := range segments {
		row := i + 2
		ended := ""
		if seg.EndedAt != nil {
			ended = seg.EndedAt.In(loc).Format("2006-01-02 15:04:05")
		}
		values := []any{
			activity.Label(seg.Kind),
			seg.StartedAt.In(loc).Format("2006-01-02 15:04:05"),
			ended,
			roundHours(seg.Duration(now).Hours()),
		}
		for col, v := range values {
			if err := setCellValue(f, segmentsSheet, col+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	if err := f.SetPanes(segmentsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func roundHours(h float64) float64 {
	return float64(int64(h*100+0.5)) / 100
}
