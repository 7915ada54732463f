// =============================================================================
// CFDI XML to XLSX - Shared Types
// =============================================================================
//
// This package contains the canonical financial record shared across modules
// to avoid import cycles. Types defined here are used by:
//   - converter  (produces FinancialDocument from raw CFDI XML)
//   - store      (persists FinancialDocument as JSON plus indexed columns)
//   - resolver   (annotates substitution links)
//   - report     (reads FinancialDocument through column extractors)
//
// =============================================================================

package types

import (
	"strings"
	"time"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// DocumentType is the canonical classification of a CFDI.
type DocumentType string

const (
	DocumentTypeIncome         DocumentType = "income"
	DocumentTypeExpense        DocumentType = "expense"
	DocumentTypePaymentReceipt DocumentType = "payment"
	DocumentTypePayroll        DocumentType = "payroll"
	DocumentTypeOther          DocumentType = "other"
)

// ParseDocumentType maps a SAT TipoDeComprobante code (I, E, P, N, T) to a
// DocumentType. Unknown codes classify as DocumentTypeOther.
func ParseDocumentType(code string) DocumentType {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "I":
		return DocumentTypeIncome
	case "E":
		return DocumentTypeExpense
	case "P":
		return DocumentTypePaymentReceipt
	case "N":
		return DocumentTypePayroll
	default:
		return DocumentTypeOther
	}
}

// StatusStamped is the status of every document that carries a digital stamp.
const StatusStamped = "TIMBRADO"

// SubstitutionRelation is the TipoRelacion code for "substitution of previous CFDI".
const SubstitutionRelation = "04"

// DeferredPaymentMethod is the MetodoPago code for installment/deferred payment.
const DeferredPaymentMethod = "PPD"

// =============================================================================
// FINANCIAL DOCUMENT
// =============================================================================

// FinancialDocument is the canonical record normalized from one CFDI.
type FinancialDocument struct {
	// UUID is the digital stamp identifier (TimbreFiscalDigital@UUID).
	UUID string `json:"uuid"`

	Version           string    `json:"version,omitempty"`
	Status            string    `json:"status"`
	ImportedAt        time.Time `json:"importedAt"`
	CertificateNumber string    `json:"certificateNumber,omitempty"`

	// TypeCode is the raw TipoDeComprobante; Type is its classification.
	TypeCode string       `json:"typeCode"`
	Type     DocumentType `json:"type"`

	IssuedAt      time.Time `json:"issuedAt"`
	Series        string    `json:"series,omitempty"`
	Folio         string    `json:"folio,omitempty"`
	IssuePlace    string    `json:"issuePlace,omitempty"`
	PaymentTerms  string    `json:"paymentTerms,omitempty"`
	PaymentForm   string    `json:"paymentForm,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Currency      string    `json:"currency"`
	ExchangeRate  float64   `json:"exchangeRate"`
	SubTotal      float64   `json:"subTotal"`
	Total         float64   `json:"total"`

	Issuer   Party `json:"issuer"`
	Receiver Party `json:"receiver"`

	LineItems []LineItem `json:"lineItems"`

	Credit     *CreditInfo     `json:"credit,omitempty"`
	Payroll    *PayrollTotals  `json:"payroll,omitempty"`
	LocalTaxes *LocalTaxTotals `json:"localTaxes,omitempty"`

	RelationType string   `json:"relationType,omitempty"`
	RelatedUUIDs []string `json:"relatedUuids,omitempty"`

	// OtherRelatedUUIDs lists the UUIDs of relation blocks whose type differs
	// from RelationType. They are shown in the report but never resolved.
	OtherRelatedUUIDs []string `json:"otherRelatedUuids,omitempty"`

	// SourcePath is the path of the XML file relative to the input root.
	SourcePath string `json:"sourcePath,omitempty"`

	// Substitution annotations, set by the resolver only.
	SupersededBy *SupersededBy `json:"supersededBy,omitempty"`
	Supersedes   *Supersedes   `json:"supersedes,omitempty"`
}

// Party is an issuer or a receiver.
type Party struct {
	Name       string `json:"name"`
	TaxID      string `json:"taxId"`
	TaxRegime  string `json:"taxRegime,omitempty"`
	UsageCode  string `json:"usageCode,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// LineItem is one cfdi:Concepto.
type LineItem struct {
	Quantity    float64 `json:"quantity"`
	UnitValue   float64 `json:"unitValue"`
	ProductCode string  `json:"productCode"`
	Description string  `json:"description"`
	UnitCode    string  `json:"unitCode"`
	Unit        string  `json:"unit,omitempty"`
	Amount      float64 `json:"amount"`
	Taxes       *Taxes  `json:"taxes,omitempty"`
}

// TaxKind names a federal tax.
type TaxKind string

const (
	TaxVAT    TaxKind = "IVA"
	TaxExcise TaxKind = "IEPS"
	TaxIncome TaxKind = "ISR"
)

// TaxAmount is an amount with its rate as a whole-number percentage.
type TaxAmount struct {
	Amount float64 `json:"amount"`
	Rate   float64 `json:"rate"`
}

// Taxes groups transferred and withheld taxes of a line item by kind.
type Taxes struct {
	Transferred map[TaxKind]TaxAmount `json:"transferred,omitempty"`
	Withheld    map[TaxKind]TaxAmount `json:"withheld,omitempty"`
}

// CreditInfo tracks settlement of deferred-payment documents.
type CreditInfo struct {
	Paid     bool      `json:"paid"`
	Payments []Payment `json:"payments"`
	Balance  float64   `json:"balance"`
}

// Payment is a settlement applied to a deferred-payment document.
type Payment struct {
	UUID   string    `json:"uuid"`
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// PayrollTotals holds the derived totals of a nomina12 complement.
type PayrollTotals struct {
	Perceptions   PerceptionTotals `json:"perceptions"`
	Deductions    DeductionTotals  `json:"deductions"`
	OtherPayments float64          `json:"otherPayments"`
	InKind        float64          `json:"inKind"`
	NetPay        float64          `json:"netPay"`
}

// PerceptionTotals buckets payroll perceptions.
type PerceptionTotals struct {
	Salaries  float64 `json:"salaries"`
	Severance float64 `json:"severance"`
	Pension   float64 `json:"pension"`
	Taxed     float64 `json:"taxed"`
	Exempt    float64 `json:"exempt"`
}

// DeductionTotals buckets payroll deductions.
type DeductionTotals struct {
	TaxWithheld     float64 `json:"taxWithheld"`
	OtherDeductions float64 `json:"otherDeductions"`
}

// Local tax categories used as LocalTaxTotals detail keys.
const (
	LocalTaxLodging   = "ISH"
	LocalTaxCedular   = "CEDULAR"
	LocalTaxPayroll   = "RTP"
	LocalTaxPerMillar = "MILLAR"
)

// LocalTaxTotals holds the implocal complement totals, copied verbatim.
// Detail maps keep the per-name amounts (e.g. "ISH", "CEDULAR").
type LocalTaxTotals struct {
	Transferred       float64            `json:"transferred"`
	Withheld          float64            `json:"withheld"`
	TransferredDetail map[string]float64 `json:"transferredDetail,omitempty"`
	WithheldDetail    map[string]float64 `json:"withheldDetail,omitempty"`
}

// SupersededBy points from an original to the document that replaced it.
type SupersededBy struct {
	UUID       string    `json:"uuid"`
	FolioLabel string    `json:"folioLabel"`
	Date       time.Time `json:"date"`
}

// Supersedes points from a substituting document to the original it replaced.
type Supersedes struct {
	UUID       string    `json:"uuid"`
	FolioLabel string    `json:"folioLabel"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount"`
}

// =============================================================================
// METHODS
// =============================================================================

// FolioLabel returns "Series Folio" trimmed, or "" when the document has no folio.
func (d *FinancialDocument) FolioLabel() string {
	if d.Folio == "" {
		return ""
	}
	return strings.TrimSpace(d.Series + " " + d.Folio)
}

// IsSubstitution reports whether d replaces one or more earlier documents.
func (d *FinancialDocument) IsSubstitution() bool {
	return d.RelationType == SubstitutionRelation && len(d.RelatedUUIDs) > 0
}

// TaxTotal sums a tax kind across line items. Withheld selects the withheld
// map instead of the transferred one.
func (d *FinancialDocument) TaxTotal(kind TaxKind, withheld bool) float64 {
	var sum float64
	for _, item := range d.LineItems {
		if item.Taxes == nil {
			continue
		}
		m := item.Taxes.Transferred
		if withheld {
			m = item.Taxes.Withheld
		}
		sum += m[kind].Amount
	}
	return sum
}

// ClearAnnotations removes substitution annotations.
func (d *FinancialDocument) ClearAnnotations() {
	d.SupersededBy = nil
	d.Supersedes = nil
}
