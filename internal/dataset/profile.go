package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// headSampleRows caps how many rows the profile quotes verbatim. The column
// list and statistics always cover every column.
const headSampleRows = 10

// Profile renders a deterministic textual summary of the Table: shape,
// column names and kinds, a head sample, and per-column statistics. The same
// Table always yields byte-identical output.
func (t *Table) Profile() string {
	var b strings.Builder

	b.WriteString("Dataset overview:\n")
	fmt.Fprintf(&b, "- Shape: %d rows, %d columns\n", len(t.rows), len(t.cols))
	b.WriteString("- Columns: ")
	for i, c := range t.cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", c.Name, c.Kind)
	}
	b.WriteString("\n")

	sample := t.head(headSampleRows)
	fmt.Fprintf(&b, "\nHead (first %d rows):\n", len(sample))
	for i, c := range t.cols {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(c.Name)
	}
	b.WriteString("\n")
	for _, row := range sample {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}

	b.WriteString("\nColumn statistics:\n")
	for i, c := range t.cols {
		if c.Kind == KindNumeric {
			b.WriteString(numericStats(c.Name, t.columnValues(i)))
		} else {
			b.WriteString(textStats(c.Name, t.columnValues(i)))
		}
	}

	return b.String()
}

func (t *Table) columnValues(idx int) []string {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out
}

func numericStats(name string, cells []string) string {
	var vals []float64
	for _, v := range cells {
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		vals = append(vals, f)
	}
	if len(vals) == 0 {
		return fmt.Sprintf("- %s: numeric, count=0\n", name)
	}

	min, max, sum := vals[0], vals[0], 0.0
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(vals))

	std := 0.0
	if len(vals) > 1 {
		var ss float64
		for _, v := range vals {
			d := v - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(len(vals)-1))
	}

	return fmt.Sprintf("- %s: numeric, count=%d, min=%s, max=%s, mean=%s, std=%s\n",
		name, len(vals), formatFloat(min), formatFloat(max), formatFloat(mean), formatFloat(std))
}

func textStats(name string, cells []string) string {
	counts := make(map[string]int)
	nonEmpty := 0
	for _, v := range cells {
		if v == "" {
			continue
		}
		nonEmpty++
		counts[v]++
	}
	if nonEmpty == 0 {
		return fmt.Sprintf("- %s: text, count=0\n", name)
	}

	// Deterministic top value: highest count, ties broken lexicographically.
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	return fmt.Sprintf("- %s: text, count=%d, unique=%d, top=%q\n",
		name, nonEmpty, len(counts), keys[0])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
