package util

import (
	"regexp"
	"strings"
)

var (
	reNonWord = regexp.MustCompile(`[^a-z0-9x\-/.\s]`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// NormalizeName lowers and strips a free-text description down to the
// characters that matter for catalog matching. Dimension separators are
// folded to "x" so "12×2.5" and "12*2.5" compare equal.
func NormalizeName(input string) string {
	s := strings.ToLower(input)
	repl := strings.NewReplacer("×", "x", "*", "x", "″", "in", "”", "in", "'", " ", "\"", " ")
	s = repl.Replace(s)
	s = reNonWord.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanDescription is the no-match fallback: collapse whitespace and strip
// anything that is not a word character, keeping the original casing words.
func CleanDescription(input string) string {
	s := regexp.MustCompile(`[^\w\s\-/.]`).ReplaceAllString(input, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func Tokenize(input string) []string {
	parts := strings.Split(NormalizeName(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// SignificantWords keeps the tokens worth an individual catalog query.
func SignificantWords(input string) []string {
	out := make([]string, 0, 4)
	for _, t := range Tokenize(input) {
		if len(t) > 2 && !isNumeric(t) {
			out = append(out, t)
		}
	}
	return out
}

// NameVariants returns the name plus naive singular and plural forms, so
// "cement bags" also searches as "cement bag" and vice versa.
func NameVariants(name string) []string {
	norm := NormalizeName(name)
	seen := map[string]struct{}{norm: {}}
	out := []string{norm}

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	words := strings.Split(norm, " ")
	singular := make([]string, len(words))
	plural := make([]string, len(words))
	for i, w := range words {
		singular[i] = singularize(w)
		plural[i] = pluralize(w)
	}
	add(strings.Join(singular, " "))
	add(strings.Join(plural, " "))
	return out
}

func singularize(word string) string {
	switch {
	case len(word) > 3 && strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case len(word) > 3 && strings.HasSuffix(word, "es") && !strings.HasSuffix(word, "ses"):
		return word[:len(word)-2]
	case len(word) > 2 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1]
	}
	return word
}

func pluralize(word string) string {
	if len(word) < 3 || isNumeric(word) || strings.HasSuffix(word, "s") {
		return word
	}
	if strings.HasSuffix(word, "y") && len(word) > 3 {
		return word[:len(word)-1] + "ies"
	}
	return word + "s"
}

func isNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return false
		}
	}
	return true
}

// MatchConfidence scores how well a raw item name matches a catalog product
// name. Tiered on purpose so the boundaries are testable: exact equality is
// 1.0, containment lands in 0.85..0.95, and word overlap fills the bands
// below that down to a 0.30 floor.
func MatchConfidence(itemName, productName string) float64 {
	a := NormalizeName(itemName)
	b := NormalizeName(productName)
	if a == "" || b == "" {
		return 0.30
	}
	if a == b {
		return 1.0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		coverage := float64(shorter) / float64(longer)
		return 0.85 + 0.10*coverage
	}

	itemTokens := Tokenize(a)
	if len(itemTokens) == 0 {
		return 0.30
	}
	productSet := map[string]struct{}{}
	for _, t := range Tokenize(b) {
		productSet[t] = struct{}{}
	}
	matched := 0
	for _, t := range itemTokens {
		if _, ok := productSet[t]; ok {
			matched++
		}
	}

	ratio := float64(matched) / float64(len(itemTokens))
	switch {
	case ratio >= 1.0:
		return 0.90
	case ratio >= 0.7:
		return 0.75 + (ratio-0.7)/0.3*0.10
	case ratio >= 0.5:
		return 0.60 + (ratio-0.5)/0.2*0.15
	case ratio >= 0.3:
		return 0.45 + (ratio-0.3)/0.2*0.15
	default:
		return 0.30 + ratio/0.3*0.15
	}
}
