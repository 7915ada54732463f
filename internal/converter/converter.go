// =============================================================================
// CFDI XML to XLSX - Converter Module
// =============================================================================
//
// This module contains the normalization logic. It turns the raw content of
// one XML file into a canonical FinancialDocument, or into a classification
// outcome when the file cannot produce one.
//
// CONVERSION PIPELINE:
//   1. Parse the XML into a Node tree
//   2. Classify the root (Comprobante, Retenciones, unknown)
//   3. Validate the mandatory fields
//   4. Normalize header, parties, line items and relations
//   5. Apply the extension rules (payroll, local taxes, payment receipt)
//   6. Attach the initial credit info for deferred-payment documents
//
// CONCURRENCY:
//   A Converter holds no per-document state; one instance is shared by all
//   workers of the ingestion pool.
//
// =============================================================================

package converter

import (
	"fmt"
	"strings"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/validation"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/xmlparser"
	"github.com/rs/zerolog"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Outcome classifies the result of converting one file.
type Outcome int

const (
	// OutcomeDocument means a FinancialDocument was produced.
	OutcomeDocument Outcome = iota

	// OutcomeRetention is a tax-retention document: counted, not normalized.
	OutcomeRetention

	// OutcomeUnrecognized is well-formed XML of an unknown document type.
	OutcomeUnrecognized

	// OutcomeUnparseable is malformed XML or a Comprobante missing a
	// mandatory field.
	OutcomeUnparseable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDocument:
		return "document"
	case OutcomeRetention:
		return "retention"
	case OutcomeUnrecognized:
		return "unrecognized"
	case OutcomeUnparseable:
		return "unparseable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result represents the outcome of converting a single file.
type Result struct {
	// Path is the source file, relative to the input root.
	Path string

	Outcome Outcome

	// Document is set only for OutcomeDocument.
	Document *types.FinancialDocument

	// Err explains OutcomeUnrecognized and OutcomeUnparseable.
	Err error
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter normalizes raw CFDI content.
type Converter struct {
	log       zerolog.Logger
	validator *validation.Validator

	// now stamps ImportedAt; location applies to zone-less Fecha values.
	now      func() time.Time
	location *time.Location
}

// New creates a Converter with the default validation rules.
func New(log zerolog.Logger) *Converter {
	return &Converter{
		log:       log,
		validator: validation.NewValidator(),
		now:       time.Now,
		location:  time.Local,
	}
}

// SetClock overrides the import timestamp source.
func (c *Converter) SetClock(now func() time.Time) {
	c.now = now
}

// SetLocation sets the zone used for CFDI dates without offset.
func (c *Converter) SetLocation(loc *time.Location) {
	if loc != nil {
		c.location = loc
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Convert normalizes one file. It never panics: unexpected failures while
// walking a document are reported as OutcomeUnparseable.
//
// PARAMETERS:
//   - data: raw file content.
//   - path: the file path relative to the input root (stored on the document).
//
// RETURNS:
//   - A Result with the outcome and, for OutcomeDocument, the document.
func (c *Converter) Convert(data []byte, path string) (result Result) {
	result = Result{Path: path}

	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Path:    path,
				Outcome: OutcomeUnparseable,
				Err:     newProcessingError("normalize", path, fmt.Errorf("%w: %v", ErrMalformedXML, r)),
			}
		}
	}()

	// =========================================================================
	// STEP 1: PARSE
	// =========================================================================

	root, err := xmlparser.Parse(data)
	if err != nil {
		result.Outcome = OutcomeUnparseable
		result.Err = newProcessingError("parse", path, fmt.Errorf("%w: %v", ErrMalformedXML, err))
		return result
	}

	// =========================================================================
	// STEP 2: CLASSIFY
	// =========================================================================

	switch root.Kind() {
	case xmlparser.RootRetenciones:
		result.Outcome = OutcomeRetention
		return result
	case xmlparser.RootUnknown:
		result.Outcome = OutcomeUnrecognized
		result.Err = newProcessingError("classify", path, fmt.Errorf("%w: root element %q", ErrUnrecognizedDocument, root.Name()))
		return result
	}

	// =========================================================================
	// STEP 3: VALIDATE MANDATORY FIELDS
	// =========================================================================

	check := c.validator.ValidateComprobante(root)
	if !check.IsValid {
		result.Outcome = OutcomeUnparseable
		result.Err = newProcessingError("validate", path,
			fmt.Errorf("%w: %s", ErrMissingRequiredField, validation.FormatErrors(check.Fatal())))
		return result
	}
	if check.WarningCount > 0 {
		c.log.Debug().Str("file", path).Int("warnings", check.WarningCount).
			Msg(validation.FormatErrors(check.Errors))
	}

	// =========================================================================
	// STEP 4-6: NORMALIZE
	// =========================================================================

	result.Document = c.normalize(root, path)
	result.Outcome = OutcomeDocument
	return result
}

// normalize builds the canonical document from a validated Comprobante.
func (c *Converter) normalize(root *xmlparser.Node, path string) *types.FinancialDocument {
	attr := func(name string) xmlparser.Value { return root.Attr(name) }

	doc := &types.FinancialDocument{
		UUID:              validation.NormalizeUUID(validation.StampUUID(root).String()),
		Version:           attr("Version").Or(attr("version").String()),
		Status:            types.StatusStamped,
		ImportedAt:        c.now(),
		CertificateNumber: attr("NoCertificado").String(),
		TypeCode:          strings.ToUpper(attr("TipoDeComprobante").String()),
		Series:            strings.TrimSpace(attr("Serie").String()),
		Folio:             strings.TrimSpace(attr("Folio").String()),
		IssuePlace:        attr("LugarExpedicion").String(),
		PaymentTerms:      attr("CondicionesDePago").String(),
		PaymentForm:       attr("FormaPago").String(),
		PaymentMethod:     strings.ToUpper(attr("MetodoPago").String()),
		Currency:          strings.ToUpper(attr("Moneda").String()),
		ExchangeRate:      attr("TipoCambio").Float(),
		SubTotal:          attr("SubTotal").Float(),
		Total:             attr("Total").Float(),
		SourcePath:        path,
		LineItems:         []types.LineItem{},
	}
	doc.Type = types.ParseDocumentType(doc.TypeCode)

	if issued, ok := validation.ParseDate(attr("Fecha").String(), c.location); ok {
		doc.IssuedAt = issued
	}

	emisor := root.Child("Emisor")
	doc.Issuer = types.Party{
		Name:       emisor.Attr("Nombre").String(),
		TaxID:      strings.ToUpper(emisor.Attr("Rfc").String()),
		TaxRegime:  emisor.Attr("RegimenFiscal").String(),
		PostalCode: doc.IssuePlace,
	}

	receptor := root.Child("Receptor")
	doc.Receiver = types.Party{
		Name:       receptor.Attr("Nombre").String(),
		TaxID:      strings.ToUpper(receptor.Attr("Rfc").String()),
		UsageCode:  receptor.Attr("UsoCFDI").String(),
		TaxRegime:  receptor.Attr("RegimenFiscalReceptor").String(),
		PostalCode: receptor.Attr("DomicilioFiscalReceptor").String(),
	}

	for _, concepto := range root.All("Conceptos", "Concepto") {
		doc.LineItems = append(doc.LineItems, lineItem(concepto))
	}

	doc.RelationType, doc.RelatedUUIDs, doc.OtherRelatedUUIDs = relations(root)

	complements := root.ChildrenNamed("Complemento")

	if nomina := findComplement(complements, "Nomina"); nomina != nil {
		applyPayroll(doc, nomina)
	}
	if local := findComplement(complements, "ImpuestosLocales"); local != nil {
		applyLocalTaxes(doc, local)
	}
	if pagos := findComplement(complements, "Pagos"); pagos != nil {
		applyPaymentReceipt(doc, pagos)
	}

	if doc.PaymentMethod == types.DeferredPaymentMethod {
		doc.Credit = &types.CreditInfo{
			Paid:     false,
			Payments: []types.Payment{},
			Balance:  doc.Total,
		}
	}

	return doc
}

// findComplement returns the first extension block with the given local name
// across every Complemento element.
func findComplement(complements []*xmlparser.Node, name string) *xmlparser.Node {
	for _, comp := range complements {
		if n := comp.Child(name); n != nil {
			return n
		}
	}
	return nil
}
