package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"buildmart/internal"
)

func ExportReviewRowsToXLSX(rows []internal.ReviewExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"line_no", "source", "raw_line", "raw_name", "normalized_name", "quantity", "unit", "category",
		"confidence", "product_id", "product_name", "supplier_name", "available_suppliers", "is_available",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.LineNo)
		set(2, row.Source)
		set(3, row.RawLine)
		set(4, row.RawName)
		set(5, row.NormalizedName)
		set(6, row.Quantity)
		set(7, row.Unit)
		set(8, row.Category)
		set(9, row.Confidence)
		set(10, derefInt64(row.ProductID))
		set(11, derefString(row.ProductName))
		set(12, derefString(row.SupplierName))
		set(13, row.AvailableSuppliers)
		set(14, row.IsAvailable)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt64(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}
