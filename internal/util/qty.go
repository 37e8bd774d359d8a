package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	unitPattern   = regexp.MustCompile(`(?i)\b(pcs|pc|nos|no\.?|each|ea|bags?|kg|kgs|tonnes?|tons?|mt|mtrs?|meters?|metres?|m2|sqm|sq\.?\s?ft|sqft|m3|cum|cft|ltrs?|litres?|l|rolls?|sheets?|coils?|boxes|box|sets?|bundles?|ft|in|mm|m)\b`)
	numberPattern = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)`)
	qtyWithUnit   = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(pcs|pc|nos|no\.?|each|ea|bags?|kg|kgs|tonnes?|tons?|mt|mtrs?|meters?|metres?|m2|sqm|sqft|m3|cum|cft|ltrs?|litres?|rolls?|sheets?|coils?|boxes|box|sets?|bundles?)\b`)
)

type ParsedQty struct {
	Qty    *float64
	Unit   *string
	QtyRaw *string
}

// ParseQty pulls a quantity and unit out of a free-text line. The last
// number+unit pair wins; otherwise the last bare number. Dimension tokens
// like "12mm" are skipped by requiring a non-numeric boundary.
func ParseQty(input string) ParsedQty {
	line := strings.ReplaceAll(input, " ", " ")

	qtyRaw := ""
	qtyToken := ""

	if wm := qtyWithUnit.FindAllStringSubmatch(line, -1); len(wm) > 0 {
		last := wm[len(wm)-1]
		qtyRaw = strings.TrimSpace(last[1] + " " + last[2])
		qtyToken = strings.TrimSpace(last[1])
	} else if nm := numberPattern.FindAllStringSubmatch(line, -1); len(nm) > 0 {
		last := nm[len(nm)-1]
		qtyRaw = strings.TrimSpace(last[1])
		qtyToken = qtyRaw
	}

	var qtyPtr *float64
	if qtyToken != "" {
		norm := normalizeNumericToken(qtyToken)
		if parsed, err := strconv.ParseFloat(norm, 64); err == nil {
			qtyPtr = FloatPtr(parsed)
		}
	}

	var unitPtr *string
	if um := unitPattern.FindStringSubmatch(line); len(um) > 1 {
		u := NormalizeUnit(um[1])
		unitPtr = &u
	}

	var qtyRawPtr *string
	if qtyRaw != "" {
		qtyRawPtr = &qtyRaw
	}

	return ParsedQty{Qty: qtyPtr, Unit: unitPtr, QtyRaw: qtyRawPtr}
}

func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	switch u {
	case "pcs", "pc", "nos", "no", "each", "ea":
		return "pcs"
	case "bag", "bags":
		return "bags"
	case "kg", "kgs":
		return "kg"
	case "ton", "tons", "tonne", "tonnes", "mt":
		return "ton"
	case "m", "mtr", "mtrs", "meter", "meters", "metre", "metres":
		return "m"
	case "m2", "sqm":
		return "sqm"
	case "sqft", "sq ft", "sq.ft":
		return "sqft"
	case "m3", "cum":
		return "cum"
	case "ltr", "ltrs", "litre", "litres", "l":
		return "ltr"
	case "roll", "rolls":
		return "rolls"
	case "sheet", "sheets":
		return "sheets"
	case "coil", "coils":
		return "coils"
	case "box", "boxes":
		return "box"
	case "set", "sets":
		return "sets"
	case "bundle", "bundles":
		return "bundles"
	default:
		return u
	}
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`).MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`).MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
