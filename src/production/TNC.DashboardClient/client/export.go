package client

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

const readingsSheet = "Readings"

// ReadingsExportHeader is the header row of the exported workbook
var ReadingsExportHeader = []string{
	"ID",
	"Device ID",
	"Timestamp (UTC)",
	"Level %",
	"Flow L/min",
	"TDS ppm",
	"Water Temp C",
	"Humidity %",
	"Pump",
	"Valve",
	"Alerts",
}

var readingsColumnWidths = []float64{38, 15, 22, 10, 12, 10, 14, 12, 8, 10, 30}

// ExportReadings renders readings into an .xlsx workbook
func ExportReadings(readings []tncmodels.Reading) ([]byte, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

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

	for col, header := range ReadingsExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(readingsSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(readingsSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(readingsSheet, name, name, readingsColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range readings {
		row := []interface{}{
			r.ID,
			r.DeviceID,
			r.Ts.UTC().Format(time.DateTime),
			cellFloat(r.LevelPct),
			cellFloat(r.FlowLpm),
			cellFloat(r.TdsPpm),
			cellFloat(r.WaterTempC),
			cellFloat(r.HumidityPct),
			cellString(r.Pump),
			cellString(r.Valve),
			strings.Join(r.Alerts, ","),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(readingsSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(readingsSheet, &excelize.Panes{
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

// empty cells for absent values
func cellFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func cellString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
