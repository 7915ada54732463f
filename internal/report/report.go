// =============================================================================
// CFDI XML to XLSX - Currency-Grouped Report Builder
// =============================================================================
//
// This module turns a list of FinancialDocument into a sheet-shaped Report:
// a header row, one data row per document and a block of total rows, every
// cell carrying a value and a logical style tag. It knows nothing about XLSX;
// the sheet writer maps style tags to concrete styles.
//
// PIPELINE:
//   1. Sort      : by currency, then numeric folio (non-numeric folios last,
//                  stable within their currency group)
//   2. Extract   : run every column extractor once per document
//   3. Visibility: hide columns without a single value
//   4. Aggregate : one running sum per (total currency, summable column),
//                  accumulated while the data cells are built
//   5. Totals    : one reserved row per total currency after the data block
//
// TOTALS LAYOUT:
//   With N data rows the header sits on sheet row 1, data on rows 2..N+1, a
//   blank gap follows and the total row for currency i is sheet row N+3+i.
//   The "Total <CUR>" label goes in the column left of the first visible
//   summable column. A currency without documents keeps its row blank.
//
// =============================================================================

package report

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// OUTPUT STRUCTURE
// =============================================================================

// Style is a logical cell style; the sheet writer resolves it.
type Style int

const (
	// StyleNone marks a cell that is written without any style.
	StyleNone Style = iota
	StyleHeader
	StyleText
	StyleTextCenter
	StyleNumber
	StyleCurrency
	StyleTotalLabel
	StyleTotal
)

// Cell is a value plus its style. A nil Value is an empty (but styled) cell.
type Cell struct {
	Value any
	Style Style
}

// TotalRow holds the totals of one currency.
type TotalRow struct {
	Currency string

	// SheetRow is the 1-based sheet row the totals are written to.
	SheetRow int

	// Present is false when no document carried this currency; Cells are
	// then all zero.
	Present bool

	Cells []Cell
}

// Report is a fully laid out sheet.
type Report struct {
	// Columns are the visible columns, in schema order.
	Columns []Column

	Header []Cell

	// Documents are the input documents in row order.
	Documents []*types.FinancialDocument

	// Rows holds one slice of len(Columns) cells per document.
	Rows [][]Cell

	Totals []TotalRow

	// Unaggregated counts rows per currency that is not a total currency.
	Unaggregated map[string]int
}

// =============================================================================
// OPTIONS
// =============================================================================

// DefaultCurrencies is the order of the total rows.
var DefaultCurrencies = []string{"EUR", "MXN", "USD", "COP"}

// Options tunes the totals block.
type Options struct {
	// Currencies is the ordered list of currencies that get a total row.
	// Empty means DefaultCurrencies.
	Currencies []string

	// DiscoverCurrencies appends every other currency found in the data,
	// alphabetically, after Currencies.
	DiscoverCurrencies bool
}

// DefaultOptions returns Options with the default total currencies.
func DefaultOptions() Options {
	return Options{Currencies: slices.Clone(DefaultCurrencies)}
}

func (o Options) totalCurrencies(docs []*types.FinancialDocument) []string {
	base := o.Currencies
	if len(base) == 0 {
		base = DefaultCurrencies
	}

	seen := map[string]bool{}
	var out []string
	for _, c := range base {
		c = normalizeCurrency(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}

	if o.DiscoverCurrencies {
		var extra []string
		for _, d := range docs {
			c := normalizeCurrency(d.Currency)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			extra = append(extra, c)
		}
		sort.Strings(extra)
		out = append(out, extra...)
	}
	return out
}

func normalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// =============================================================================
// BUILD
// =============================================================================

// Build lays out the report.
//
// PARAMETERS:
//   - docs: the documents to report; nil entries are skipped and the slice
//     itself is not reordered.
//   - columns: the schema, usually DefaultColumns().
//   - opts: totals configuration.
//
// RETURNS:
//   - The laid out Report. Build never fails; an extractor that panics
//     yields an empty cell.
func Build(docs []*types.FinancialDocument, columns []Column, opts Options) *Report {
	rows := sortDocuments(docs)

	// STEP 1: extract every value once
	values := make([][]any, len(rows))
	for i, d := range rows {
		values[i] = make([]any, len(columns))
		for j, col := range columns {
			values[i][j] = extract(col, d)
		}
	}

	// STEP 2: visibility over all rows
	var visible []int
	for j := range columns {
		for i := range rows {
			if values[i][j] != nil {
				visible = append(visible, j)
				break
			}
		}
	}

	rep := &Report{
		Columns:      make([]Column, len(visible)),
		Header:       make([]Cell, len(visible)),
		Documents:    rows,
		Rows:         make([][]Cell, len(rows)),
		Unaggregated: map[string]int{},
	}
	firstSummable := -1
	for vj, j := range visible {
		rep.Columns[vj] = columns[j]
		rep.Header[vj] = Cell{Value: columns[j].Title, Style: StyleHeader}
		if columns[j].Summable && firstSummable < 0 {
			firstSummable = vj
		}
	}

	// STEP 3: data cells and running sums in one pass
	currencies := opts.totalCurrencies(rows)
	slot := make(map[string]int, len(currencies))
	for k, c := range currencies {
		slot[c] = k
	}
	sums := make([][]decimal.Decimal, len(currencies))
	summed := make([][]bool, len(currencies))
	present := make([]bool, len(currencies))
	for k := range currencies {
		sums[k] = make([]decimal.Decimal, len(visible))
		summed[k] = make([]bool, len(visible))
	}

	for i, d := range rows {
		k, aggregated := slot[normalizeCurrency(d.Currency)]
		if aggregated {
			present[k] = true
		} else {
			rep.Unaggregated[normalizeCurrency(d.Currency)]++
		}

		row := make([]Cell, len(visible))
		for vj, j := range visible {
			col := columns[j]
			cell, num, ok := makeCell(col, values[i][j])
			row[vj] = cell
			if col.Summable && ok && aggregated {
				sums[k][vj] = sums[k][vj].Add(decimal.NewFromFloat(num))
				summed[k][vj] = true
			}
		}
		rep.Rows[i] = row
	}

	// STEP 4: total rows
	if firstSummable < 0 {
		return rep
	}
	for k, c := range currencies {
		tr := TotalRow{
			Currency: c,
			SheetRow: len(rows) + 3 + k,
			Present:  present[k],
			Cells:    make([]Cell, len(visible)),
		}
		if present[k] {
			if firstSummable > 0 {
				tr.Cells[firstSummable-1] = Cell{Value: "Total " + c, Style: StyleTotalLabel}
			}
			for vj := range visible {
				if summed[k][vj] {
					tr.Cells[vj] = Cell{Value: sums[k][vj].InexactFloat64(), Style: StyleTotal}
				}
			}
		}
		rep.Totals = append(rep.Totals, tr)
	}

	return rep
}

// makeCell types a raw value for its column. It returns the numeric value
// and true when the cell holds a number.
func makeCell(col Column, raw any) (Cell, float64, bool) {
	if raw == nil {
		return Cell{Style: dataStyle(col, false)}, 0, false
	}
	if col.Kind == KindNumber {
		if f, ok := Coerce(raw); ok {
			return Cell{Value: f, Style: dataStyle(col, true)}, f, true
		}
		// Keep the raw text rather than dropping the value.
		return Cell{Value: toString(raw), Style: StyleText}, 0, false
	}
	return Cell{Value: toString(raw), Style: dataStyle(col, false)}, 0, false
}

func dataStyle(col Column, numeric bool) Style {
	switch col.Display {
	case DisplayCurrency:
		return StyleCurrency
	case DisplayCenter:
		if numeric {
			return StyleNumber
		}
		return StyleTextCenter
	default:
		return StyleText
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func extract(col Column, d *types.FinancialDocument) (v any) {
	if col.Value == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	return col.Value(d)
}

// =============================================================================
// ORDERING
// =============================================================================

func sortDocuments(docs []*types.FinancialDocument) []*types.FinancialDocument {
	out := make([]*types.FinancialDocument, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}

	slices.SortStableFunc(out, func(a, b *types.FinancialDocument) int {
		if c := strings.Compare(normalizeCurrency(a.Currency), normalizeCurrency(b.Currency)); c != 0 {
			return c
		}
		fa, okA := ParseFolio(a.Folio)
		fb, okB := ParseFolio(b.Folio)
		switch {
		case okA && okB:
			return cmp.Compare(fa, fb)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
	return out
}
