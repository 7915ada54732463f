// =============================================================================
// CFDI XML to XLSX - Report Column Schema
// =============================================================================
//
// The report layout is a fixed, ordered list of columns. Each column declares:
//   - Title    : header text (Spanish, as accountants expect it)
//   - Kind     : how the extracted value is typed in the sheet (number/string)
//   - Display  : alignment and number format of the data cells
//   - Width    : a width class resolved by the sheet writer
//   - Value    : the extractor, returning nil when the document has no value
//   - Summable : whether the column feeds the per-currency totals
//
// A column whose extractor returns nil for every row is hidden.
//
// =============================================================================

package report

import (
	"slices"
	"strings"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
)

// Kind is the value type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumber
)

// Display is the presentation of a column's data cells.
type Display int

const (
	DisplayLeft Display = iota
	DisplayCenter
	DisplayCurrency
)

// Width is a column width class.
type Width string

const (
	WidthSmall    Width = "s"
	WidthMedium   Width = "m"
	WidthLarge    Width = "l"
	WidthCurrency Width = "$"
)

// Extractor reads one value from a document. Returning nil means "no value".
type Extractor func(d *types.FinancialDocument) any

// Column is one entry of the report schema.
type Column struct {
	Title    string
	Kind     Kind
	Display  Display
	Width    Width
	Value    Extractor
	Summable bool
}

// DateLayout is the cell format for dates (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// DefaultColumns returns the report schema. A new slice is returned on every
// call so callers may reorder or filter it freely.
func DefaultColumns() []Column {
	return []Column{
		text("Tipo", WidthSmall, DisplayCenter, func(d *types.FinancialDocument) any { return str(d.TypeCode) }),
		text("Serie", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any { return str(d.Series) }),
		number("Folio", WidthSmall, func(d *types.FinancialDocument) any { return str(d.Folio) }),
		text("Folio fiscal", WidthLarge, DisplayLeft, func(d *types.FinancialDocument) any { return str(d.UUID) }),
		text("Fecha", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any { return date(d.IssuedAt.IsZero(), d.IssuedAt.Format(DateLayout)) }),
		number("Lugar de exp.", WidthMedium, func(d *types.FinancialDocument) any { return str(d.IssuePlace) }),
		text("RFC Receptor", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any { return str(d.Receiver.TaxID) }),
		text("Nombre Receptor", WidthLarge, DisplayLeft, func(d *types.FinancialDocument) any { return str(d.Receiver.Name) }),
		text("Forma de pago", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any { return str(d.PaymentForm) }),
		text("Método de pago", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any { return str(d.PaymentMethod) }),
		text("Moneda", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any { return str(d.Currency) }),

		money("SubTotal", true, func(d *types.FinancialDocument) any { return d.SubTotal }),
		money("IEPS", true, func(d *types.FinancialDocument) any { return nonZero(d.TaxTotal(types.TaxExcise, false)) }),
		money("IVA", true, func(d *types.FinancialDocument) any { return nonZero(d.TaxTotal(types.TaxVAT, false)) }),
		money("ISH", true, localDetail(false, types.LocalTaxLodging)),
		money("Trasl. locales", true, func(d *types.FinancialDocument) any {
			if d.LocalTaxes == nil {
				return nil
			}
			return d.LocalTaxes.Transferred
		}),
		money("ISR Ret.", true, func(d *types.FinancialDocument) any { return nonZero(d.TaxTotal(types.TaxIncome, true)) }),
		money("IVA Ret.", true, func(d *types.FinancialDocument) any { return nonZero(d.TaxTotal(types.TaxVAT, true)) }),
		money("Imp. Cedular", true, localDetail(true, types.LocalTaxCedular)),
		money("Imp. RTP", true, localDetail(true, types.LocalTaxPayroll)),
		money("Imp. al Millar", true, localDetail(true, types.LocalTaxPerMillar)),
		money("Ret. locales", true, func(d *types.FinancialDocument) any {
			if d.LocalTaxes == nil {
				return nil
			}
			return d.LocalTaxes.Withheld
		}),
		money("Deducciones", true, payroll(func(p *types.PayrollTotals) float64 { return p.Deductions.OtherDeductions })),
		money("Retenciones", true, payroll(func(p *types.PayrollTotals) float64 { return p.Deductions.TaxWithheld })),
		money("Neto pagado", true, payroll(func(p *types.PayrollTotals) float64 { return p.NetPay })),
		money("Total", true, func(d *types.FinancialDocument) any { return d.Total }),
		money("Saldo", true, balance),

		text("Tipo de relación", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any { return str(d.RelationType) }),
		text("Folio fiscal rel.", WidthLarge, DisplayLeft, func(d *types.FinancialDocument) any {
			return str(strings.Join(slices.Concat(d.RelatedUUIDs, d.OtherRelatedUUIDs), ", "))
		}),

		text("Sustituido por", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any {
			if d.SupersededBy == nil {
				return nil
			}
			return label(d.SupersededBy.FolioLabel, d.SupersededBy.UUID)
		}),
		text("Fecha sustitución", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any {
			if d.SupersededBy == nil {
				return nil
			}
			return date(d.SupersededBy.Date.IsZero(), d.SupersededBy.Date.Format(DateLayout))
		}),
		text("Sustituye a", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any {
			if d.Supersedes == nil {
				return nil
			}
			return label(d.Supersedes.FolioLabel, d.Supersedes.UUID)
		}),
		money("Total sustituido", false, func(d *types.FinancialDocument) any {
			if d.Supersedes == nil {
				return nil
			}
			return d.Supersedes.Amount
		}),
		text("Fecha sustituida", WidthMedium, DisplayCenter, func(d *types.FinancialDocument) any {
			if d.Supersedes == nil {
				return nil
			}
			return date(d.Supersedes.Date.IsZero(), d.Supersedes.Date.Format(DateLayout))
		}),
	}
}

// =============================================================================
// COLUMN CONSTRUCTORS
// =============================================================================

func text(title string, w Width, disp Display, fn Extractor) Column {
	return Column{Title: title, Kind: KindString, Display: disp, Width: w, Value: fn}
}

func number(title string, w Width, fn Extractor) Column {
	return Column{Title: title, Kind: KindNumber, Display: DisplayCenter, Width: w, Value: fn}
}

func money(title string, summable bool, fn Extractor) Column {
	return Column{Title: title, Kind: KindNumber, Display: DisplayCurrency, Width: WidthCurrency, Value: fn, Summable: summable}
}

// =============================================================================
// EXTRACTOR HELPERS
// =============================================================================

func str(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func date(zero bool, formatted string) any {
	if zero {
		return nil
	}
	return formatted
}

// nonZero mirrors the federal tax columns: a tax that sums to 0 is absent.
func nonZero(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func label(folio, uuid string) any {
	if folio != "" {
		return folio
	}
	return str(uuid)
}

func localDetail(withheld bool, category string) Extractor {
	return func(d *types.FinancialDocument) any {
		if d.LocalTaxes == nil {
			return nil
		}
		m := d.LocalTaxes.TransferredDetail
		if withheld {
			m = d.LocalTaxes.WithheldDetail
		}
		v, ok := m[category]
		if !ok {
			return nil
		}
		return v
	}
}

func payroll(fn func(p *types.PayrollTotals) float64) Extractor {
	return func(d *types.FinancialDocument) any {
		if d.Payroll == nil {
			return nil
		}
		return fn(d.Payroll)
	}
}

// balance is the outstanding amount of a deferred-payment document, 0 once paid.
func balance(d *types.FinancialDocument) any {
	if d.PaymentMethod != types.DeferredPaymentMethod || d.Credit == nil {
		return nil
	}
	if d.Credit.Paid {
		return 0.0
	}
	return d.Credit.Balance
}
