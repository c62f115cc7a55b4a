package reconcile

import (
	"strings"
	"unicode"

	"github.com/theirongolddev/restock/internal/model"
)

// Strategy is one ranked way of matching a receipt line to inventory.
type Strategy int

const (
	ExactSameCategory Strategy = iota
	ExactAnyCategory
	FuzzySameCategory
)

// DefaultStrategies is the precedence order used by NewReconciler.
var DefaultStrategies = []Strategy{ExactSameCategory, ExactAnyCategory, FuzzySameCategory}

func (s Strategy) String() string {
	switch s {
	case ExactSameCategory:
		return "exact_same_category"
	case ExactAnyCategory:
		return "exact_any_category"
	case FuzzySameCategory:
		return "fuzzy_same_category"
	default:
		return "unknown"
	}
}

// Candidates returns the inventory entries the strategy considers a match for line.
// It never picks between several candidates; the caller falls through instead.
func (s Strategy) Candidates(line model.ReceiptItem, pool []model.InventoryItem, fuzzyThreshold float64) []model.InventoryItem {
	var out []model.InventoryItem
	switch s {
	case ExactSameCategory:
		if strings.TrimSpace(line.Category) == "" {
			return nil
		}
		for _, it := range pool {
			if sameName(it.Name, line.Name) && sameCategory(it.Category, line.Category) {
				out = append(out, it)
			}
		}
	case ExactAnyCategory:
		for _, it := range pool {
			if sameName(it.Name, line.Name) {
				out = append(out, it)
			}
		}
	case FuzzySameCategory:
		want := Normalize(line.Name)
		for _, it := range pool {
			if strings.TrimSpace(line.Category) != "" && !sameCategory(it.Category, line.Category) {
				continue
			}
			if Distance(want, Normalize(it.Name)) <= fuzzyThreshold {
				out = append(out, it)
			}
		}
	}
	return out
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func sameCategory(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Normalize lowercases a product name, drops punctuation and size tokens
// such as "1l" or "500g", and collapses whitespace.
func Normalize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '.':
			return r
		default:
			return ' '
		}
	}, name)

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		tok = strings.Trim(tok, ".")
		if tok == "" || isSizeToken(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return strings.Join(tokens, " ")
}

func isSizeToken(tok string) bool {
	if !unicode.IsDigit(rune(tok[0])) {
		return false
	}
	i := 0
	for i < len(tok) && (unicode.IsDigit(rune(tok[i])) || tok[i] == '.') {
		i++
	}
	switch tok[i:] {
	case "", "x", "l", "ml", "cl", "g", "kg", "mg", "oz", "lb", "lbs", "ct", "pk", "pack":
		return true
	}
	return false
}

// Distance is a normalized dissimilarity in [0,1] between two normalized
// names: the smaller of token-set Jaccard distance and edit distance over
// the longer name's length.
func Distance(a, b string) float64 {
	if a == "" || b == "" {
		return 1
	}
	if a == b {
		return 0
	}
	jaccard := 1 - tokenOverlap(a, b)

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	edit := float64(levenshtein(ra, rb)) / float64(longest)

	if edit < jaccard {
		return edit
	}
	return jaccard
}

func tokenOverlap(a, b string) float64 {
	set := make(map[string]bool)
	for _, t := range strings.Fields(a) {
		set[t] = true
	}
	union := len(set)
	shared := 0
	seen := make(map[string]bool)
	for _, t := range strings.Fields(b) {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
