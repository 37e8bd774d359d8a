package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"buildmart/internal"
)

// ExtractItemsFromEmailRaw pulls BOQ line items out of a raw MIME message:
// plain-text body lines, HTML body tables, and CSV/XLSX/PDF attachments.
func ExtractItemsFromEmailRaw(raw []byte) ([]internal.RawLineItem, string, string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", nil, err
	}

	items := make([]internal.RawLineItem, 0)
	if env.Text != "" {
		items = append(items, parseTextLines(env.Text, internal.SourceText)...)
	}
	if env.HTML != "" {
		items = append(items, parseHTMLTable(env.HTML)...)
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)

		format, ok := attachmentFormat(filename)
		if !ok {
			continue
		}
		extra, err := Extract(att.Content, format)
		if err != nil {
			continue
		}
		items = append(items, extra...)
	}

	items = dedupeItems(items)
	for i := range items {
		items[i].LineNo = i + 1
	}

	return items, env.GetHeader("Subject"), env.Text, attachmentNames, nil
}

func attachmentFormat(filename string) (internal.SourceFormat, bool) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return internal.SourceCSV, true
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return internal.SourceXLSX, true
	case strings.HasSuffix(lower, ".pdf"):
		return internal.SourcePDF, true
	default:
		return "", false
	}
}

func dedupeItems(items []internal.RawLineItem) []internal.RawLineItem {
	seen := map[string]struct{}{}
	out := make([]internal.RawLineItem, 0, len(items))
	for _, item := range items {
		key := fmt.Sprintf("%s|%s|%g", item.Source, item.RawLine, item.Quantity)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
