package smoke

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// printer keeps the first write error so harness code can print freely
// and check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, args...)
}

// formatFloat renders floats the way python's repr does for the common
// cases: shortest round-trip digits, "nan" and "inf".
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".en") {
		s += ".0"
	}
	return s
}

// formatValue renders an option value as a python literal.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return "'" + x + "'"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []float64:
		return formatFloats(x)
	}
	return fmt.Sprint(v)
}

func formatFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = formatFloat(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDict renders m as a python dict literal with sorted keys.
func formatDict(m map[string]interface{}) string {
	keys := sortedKeys(m)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = "'" + k + "': " + formatValue(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// writeOptions prints the options block framed by <prefix>_OPTIONS_START
// and <prefix>_OPTIONS_END, one line per parameter in key order.
func writeOptions(p *printer, prefix string, params map[string]interface{}) {
	keys := sortedKeys(params)
	p.println(prefix + "_OPTIONS_START")
	for _, k := range keys {
		p.printf("%s_OPTION ('%s', %s)\n", prefix, k, formatValue(params[k]))
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = "'" + k + "'"
	}
	p.printf("%s_OPTIONS [%s]\n", prefix, strings.Join(quoted, ", "))
	p.println(prefix + "_OPTIONS_END")
}

// Array layout of numpy's default print options.
const (
	arrayLineWidth = 75
	arrayThreshold = 1000
	arrayEdgeItems = 3
	arrayPrecision = 8
)

// formatIntArray renders integral values the way numpy prints an int array.
func formatIntArray(xs []float64) string {
	words := make([]string, len(xs))
	width := 0
	for i, x := range xs {
		words[i] = strconv.FormatInt(int64(x), 10)
		width = max(width, len(words[i]))
	}
	for i, w := range words {
		words[i] = strings.Repeat(" ", width-len(w)) + w
	}
	return wrapArray(summarize(words), "[", " ") + "]"
}

// formatArray renders a float vector the way numpy prints a 1-d array.
func formatArray(xs []float64) string {
	return wrapArray(summarize(floatWords(xs)), "[", " ") + "]"
}

// formatMatrix renders m row by row the way numpy prints a 2-d array. All
// entries share one width.
func formatMatrix(rows [][]float64) string {
	var flat []float64
	for _, r := range rows {
		flat = append(flat, r...)
	}
	words := floatWords(flat)

	lines := make([]string, len(rows))
	off := 0
	for i, r := range rows {
		prefix := " ["
		if i == 0 {
			prefix = "[["
		}
		lines[i] = wrapArray(words[off:off+len(r)], prefix, "  ") + "]"
		off += len(r)
	}
	return strings.Join(lines, "\n") + "]"
}

func summarize(words []string) []string {
	if len(words) <= arrayThreshold {
		return words
	}
	out := append([]string(nil), words[:arrayEdgeItems]...)
	out = append(out, "...")
	return append(out, words[len(words)-arrayEdgeItems:]...)
}

// wrapArray joins words with single spaces, starting continuation lines with
// indent once a line would pass the width. The closing bracket counts
// against the last word.
func wrapArray(words []string, open, indent string) string {
	var b strings.Builder
	line := open
	for i, w := range words {
		limit := arrayLineWidth
		if i == len(words)-1 {
			limit--
		}
		if len(line)+len(w) > limit && len(line) > len(indent) {
			b.WriteString(strings.TrimRight(line, " "))
			b.WriteString("\n")
			line = indent
		}
		line += w
		if i < len(words)-1 {
			line += " "
		}
	}
	b.WriteString(line)
	return b.String()
}

// floatWords formats xs with numpy's maxprec mode: at most arrayPrecision
// fraction digits, the fraction padded to the longest one and every word
// padded to the widest. Large dynamic ranges switch to exponent notation.
func floatWords(xs []float64) []string {
	if useExponent(xs) {
		return exponentWords(xs)
	}
	ints := make([]string, len(xs))
	fracs := make([]string, len(xs))
	intWidth, fracWidth := 0, 0
	for i, x := range xs {
		switch {
		case math.IsNaN(x):
			ints[i] = "nan"
		case math.IsInf(x, 1):
			ints[i] = "inf"
		case math.IsInf(x, -1):
			ints[i] = "-inf"
		default:
			s := strings.TrimRight(strconv.FormatFloat(x, 'f', arrayPrecision, 64), "0")
			ip, fp, _ := strings.Cut(s, ".")
			ints[i], fracs[i] = ip+".", fp
		}
		intWidth = max(intWidth, len(ints[i]))
		fracWidth = max(fracWidth, len(fracs[i]))
	}
	words := make([]string, len(xs))
	for i := range xs {
		w := strings.Repeat(" ", intWidth-len(ints[i])) + ints[i]
		words[i] = w + fracs[i] + strings.Repeat(" ", fracWidth-len(fracs[i]))
	}
	return words
}

func useExponent(xs []float64) bool {
	lo, hi := math.Inf(1), 0.0
	for _, x := range xs {
		a := math.Abs(x)
		if a == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			continue
		}
		lo, hi = math.Min(lo, a), math.Max(hi, a)
	}
	if hi == 0 {
		return false
	}
	return hi >= 1e8 || lo < 1e-4 || hi/lo > 1e3
}

func exponentWords(xs []float64) []string {
	digits := 0
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		s := strconv.FormatFloat(x, 'e', arrayPrecision, 64)
		mant, _, _ := strings.Cut(s, "e")
		_, frac, _ := strings.Cut(mant, ".")
		digits = max(digits, len(strings.TrimRight(frac, "0")))
	}
	words := make([]string, len(xs))
	width := 0
	for i, x := range xs {
		switch {
		case math.IsNaN(x) || math.IsInf(x, 0):
			words[i] = formatFloat(x)
		case digits == 0:
			words[i] = strings.Replace(strconv.FormatFloat(x, 'e', 0, 64), "e", ".e", 1)
		default:
			words[i] = strconv.FormatFloat(x, 'e', digits, 64)
		}
		width = max(width, len(words[i]))
	}
	for i, w := range words {
		words[i] = strings.Repeat(" ", width-len(w)) + w
	}
	return words
}
