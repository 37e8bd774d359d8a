package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"buildmart/internal"
	"buildmart/internal/util"
)

var (
	descriptionAliases = []string{"description", "item", "name", "product", "material", "particular", "work", "detail", "specification"}
	quantityAliases    = []string{"quantity", "qty", "amount", "nos", "count", "no."}
	unitAliases        = []string{"unit", "uom", "measure"}
	rateAliases        = []string{"rate", "price", "cost"}

	// A cell like "10", "12.5" or "10 pcs" must never be mistaken for a
	// description.
	numberUnitToken = regexp.MustCompile(`(?i)^\d+(?:[.,]\d+)?\s*[a-z]{0,5}\.?$`)
	pdfColumnSplit  = regexp.MustCompile(`\t|\s{2,}`)
)

// Extract turns an uploaded BOQ file into raw line items. The extractor
// favors over-inclusion: a row it cannot name gets an "Item N" placeholder
// instead of being dropped, and garbage rows surface downstream as
// low-confidence normalizations.
func Extract(data []byte, format internal.SourceFormat) ([]internal.RawLineItem, error) {
	var items []internal.RawLineItem
	var err error

	switch format {
	case internal.SourceCSV:
		items, err = parseCSV(data)
	case internal.SourceXLSX:
		items, err = parseXLSX(data)
	case internal.SourcePDF:
		items, err = parsePDF(data)
	case internal.SourceHTMLTable:
		items = parseHTMLTable(string(data))
	case internal.SourceText:
		items = parseTextLines(string(data), internal.SourceText)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		if format == internal.SourcePDF {
			return nil, fmt.Errorf("%w: no tabular structure detected, resubmit as CSV or XLSX", ErrEmptyFile)
		}
		return nil, ErrEmptyFile
	}

	for i := range items {
		items[i].LineNo = i + 1
	}
	return items, nil
}

func parseCSV(data []byte) ([]internal.RawLineItem, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyFile, err)
	}
	return rowsToItems(records, internal.SourceCSV), nil
}

func parseXLSX(data []byte) ([]internal.RawLineItem, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyFile, err)
	}
	defer f.Close()

	var out []internal.RawLineItem
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		out = append(out, rowsToItems(rows, internal.SourceXLSX)...)
	}
	return out, nil
}

// rowsToItems drives the header-alias column discovery shared by the CSV
// and XLSX paths. The header row is searched within the first three rows;
// sheets without one fall back to per-row cell screening.
func rowsToItems(rows [][]string, source internal.SourceFormat) []internal.RawLineItem {
	descIdx, qtyIdx, unitIdx, rateIdx := -1, -1, -1, -1
	headerRow := -1

	for i, row := range rows {
		if i >= 3 {
			break
		}
		cells := normalizeCells(row)
		d := findHeaderIndex(cells, descriptionAliases)
		q := findHeaderIndex(cells, quantityAliases)
		if d >= 0 || q >= 0 {
			descIdx, qtyIdx = d, q
			unitIdx = findHeaderIndex(cells, unitAliases)
			rateIdx = findHeaderIndex(cells, rateAliases)
			headerRow = i
			break
		}
	}

	out := []internal.RawLineItem{}
	for i, row := range rows {
		if i == headerRow {
			continue
		}
		cells := normalizeCells(row)
		if allEmpty(cells) {
			continue
		}

		item := cellsToItem(cells, descIdx, qtyIdx, unitIdx, rateIdx, source, len(out))
		out = append(out, item)
	}
	return out
}

func cellsToItem(cells []string, descIdx, qtyIdx, unitIdx, rateIdx int, source internal.SourceFormat, index int) internal.RawLineItem {
	description := pickCell(cells, descIdx, -1)
	if description == "" || numberUnitToken.MatchString(description) {
		description = firstDescriptiveCell(cells, qtyIdx, unitIdx, rateIdx)
	}
	if description == "" {
		description = fmt.Sprintf("Item %d", index+1)
	}

	quantity := 0.0
	if qtyCell := pickCell(cells, qtyIdx, -1); qtyCell != "" {
		if parsed := util.ParseQty(qtyCell); parsed.Qty != nil {
			quantity = *parsed.Qty
		}
	}
	unit := ""
	if unitCell := pickCell(cells, unitIdx, -1); unitCell != "" {
		unit = util.NormalizeUnit(unitCell)
	}
	if quantity <= 0 || unit == "" {
		parsed := util.ParseQty(strings.Join(cells, " "))
		if quantity <= 0 && parsed.Qty != nil && qtyIdx < 0 {
			quantity = *parsed.Qty
		}
		if unit == "" && parsed.Unit != nil {
			unit = *parsed.Unit
		}
	}
	if quantity <= 0 {
		quantity = 1
	}

	return internal.RawLineItem{
		Description: description,
		Quantity:    quantity,
		Unit:        unit,
		Source:      source,
		RawLine:     strings.Join(trimEmptyTail(cells), " | "),
	}
}

// firstDescriptiveCell picks the first cell that is not purely numeric, not
// a bare number+unit token, and not sitting in a column already claimed for
// quantity, unit, or rate.
func firstDescriptiveCell(cells []string, claimed ...int) string {
	claimedSet := map[int]struct{}{}
	for _, idx := range claimed {
		if idx >= 0 {
			claimedSet[idx] = struct{}{}
		}
	}
	for i, c := range cells {
		if _, taken := claimedSet[i]; taken {
			continue
		}
		c = strings.TrimSpace(c)
		if c == "" || numberUnitToken.MatchString(c) {
			continue
		}
		return c
	}
	return ""
}

func parsePDF(data []byte) ([]internal.RawLineItem, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyFile, err)
	}

	out := []internal.RawLineItem{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			item, ok := pdfLineToItem(line)
			if !ok {
				continue
			}
			out = append(out, item)
		}
	}
	return out, nil
}

// pdfLineToItem treats runs of two or more spaces (or tabs) as column
// boundaries. A line only qualifies as an item when it carries a numeric
// token somewhere.
func pdfLineToItem(line string) (internal.RawLineItem, bool) {
	compact := strings.TrimSpace(line)
	if compact == "" {
		return internal.RawLineItem{}, false
	}
	if !regexp.MustCompile(`\d`).MatchString(compact) {
		return internal.RawLineItem{}, false
	}

	columns := pdfColumnSplit.Split(compact, -1)
	cells := normalizeCells(columns)

	description := firstDescriptiveCell(cells)
	if description == "" {
		return internal.RawLineItem{}, false
	}

	parsed := util.ParseQty(compact)
	quantity := 1.0
	if parsed.Qty != nil && *parsed.Qty > 0 {
		quantity = *parsed.Qty
	}
	unit := ""
	if parsed.Unit != nil {
		unit = *parsed.Unit
	}

	return internal.RawLineItem{
		Description: description,
		Quantity:    quantity,
		Unit:        unit,
		Source:      internal.SourcePDF,
		RawLine:     normalizeSpaces(compact),
	}, true
}

func parseHTMLTable(html string) []internal.RawLineItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.RawLineItem{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		var grid [][]string
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			grid = append(grid, cells)
		})
		out = append(out, rowsToItems(grid, internal.SourceHTMLTable)...)
	})
	return out
}

func parseTextLines(text string, source internal.SourceFormat) []internal.RawLineItem {
	out := []internal.RawLineItem{}
	for _, line := range splitLines(text) {
		compact := normalizeSpaces(line)
		if compact == "" {
			continue
		}
		hasLetters := regexp.MustCompile(`[A-Za-z]`).MatchString(compact)
		parsed := util.ParseQty(compact)
		if !hasLetters || (parsed.Qty == nil && len(compact) < 8) {
			continue
		}

		description := compact
		if parsed.QtyRaw != nil {
			if idx := strings.LastIndex(description, *parsed.QtyRaw); idx >= 0 {
				description = description[:idx] + " " + description[idx+len(*parsed.QtyRaw):]
			}
		}
		description = normalizeSpaces(description)
		if description == "" {
			description = compact
		}

		quantity := 1.0
		if parsed.Qty != nil && *parsed.Qty > 0 {
			quantity = *parsed.Qty
		}
		unit := ""
		if parsed.Unit != nil {
			unit = *parsed.Unit
		}

		out = append(out, internal.RawLineItem{
			Description: description,
			Quantity:    quantity,
			Unit:        unit,
			Source:      source,
			RawLine:     compact,
		})
	}
	return out
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(input, " "))
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		for _, probe := range probes {
			if strings.Contains(lower, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimEmptyTail(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}
