// =============================================================================
// CFDI XML to XLSX - Validation Engine
// =============================================================================
//
// This module checks a parsed Comprobante before normalization. Each rule
// states explicitly whether a field is required (its absence rejects the
// document) or merely checked for format (its violation is a warning).
//
// REQUIRED FIELDS:
//   - TimbreFiscalDigital@UUID (digital stamp identifier)
//   - Emisor and Emisor@Rfc
//   - Receptor and Receptor@Rfc
//
// ERROR HANDLING:
//   - Errors are collected, not returned one by one
//   - Warnings never reject a document
//
// =============================================================================

package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/xmlparser"
	"github.com/google/uuid"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is SeverityError (rejects the document) or SeverityWarning.
	Severity string

	// Field is the logical name of the field, e.g. "Emisor.Rfc".
	Field string

	// Value is the raw value that failed validation.
	Value string

	// Rule is the violated rule ("required", "format").
	Rule string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(e.Severity), e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (value: '%s')", strings.ToUpper(e.Severity), e.Field, e.Message, e.Value)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors (warnings allowed).
	IsValid bool

	// Errors contains every finding, including warnings.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int
}

func (r *ValidationResult) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
	} else {
		r.WarningCount++
	}
}

// Fatal returns only the findings with SeverityError.
func (r *ValidationResult) Fatal() []*ValidationError {
	var out []*ValidationError
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// RULES
// =============================================================================

// Lookup extracts the value a rule checks.
type Lookup func(root *xmlparser.Node) xmlparser.Value

// FromPath builds a Lookup over a fixed path relative to the root.
func FromPath(p xmlparser.Path) Lookup {
	return func(root *xmlparser.Node) xmlparser.Value { return root.Get(p) }
}

// Rule is one field check.
type Rule struct {
	Field    string
	Lookup   Lookup
	Required bool

	// Format, when set, returns a non-empty message for an invalid value.
	Format func(value string) string
}

// StampUUID finds TimbreFiscalDigital@UUID in any Complemento block.
func StampUUID(root *xmlparser.Node) xmlparser.Value {
	for _, tfd := range root.All("Complemento", "TimbreFiscalDigital") {
		if v := tfd.Attr("UUID"); v.NonEmpty() {
			return v
		}
	}
	return xmlparser.Value{}
}

// DefaultRules returns the rules applied to every Comprobante.
func DefaultRules() []Rule {
	return []Rule{
		{Field: "TimbreFiscalDigital.UUID", Lookup: StampUUID, Required: true, Format: validateUUID},
		{Field: "Emisor.Rfc", Lookup: FromPath(xmlparser.At("Emisor").Attr("Rfc")), Required: true, Format: validateRFC},
		{Field: "Receptor.Rfc", Lookup: FromPath(xmlparser.At("Receptor").Attr("Rfc")), Required: true, Format: validateRFC},
		{Field: "Fecha", Lookup: FromPath(xmlparser.At().Attr("Fecha")), Format: validateDate},
		{Field: "Moneda", Lookup: FromPath(xmlparser.At().Attr("Moneda")), Format: validateCurrency},
		{Field: "TipoDeComprobante", Lookup: FromPath(xmlparser.At().Attr("TipoDeComprobante")), Format: validateDocumentType},
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator applies a rule set to parsed documents.
type Validator struct {
	rules []Rule
}

// NewValidator creates a Validator with DefaultRules.
func NewValidator() *Validator {
	return NewValidatorWithRules(DefaultRules())
}

// NewValidatorWithRules creates a Validator with a custom rule set.
func NewValidatorWithRules(rules []Rule) *Validator {
	return &Validator{rules: rules}
}

// ValidateComprobante checks the root of a Comprobante document.
//
// PARAMETERS:
//   - root: the parsed Comprobante element.
//
// RETURNS:
//   - A ValidationResult; IsValid is false when any required field is missing.
func (v *Validator) ValidateComprobante(root *xmlparser.Node) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if root.Child("Emisor") == nil {
		result.add(&ValidationError{Severity: SeverityError, Field: "Emisor", Rule: "required", Message: "issuer element is missing"})
	}
	if root.Child("Receptor") == nil {
		result.add(&ValidationError{Severity: SeverityError, Field: "Receptor", Rule: "required", Message: "receiver element is missing"})
	}

	for _, rule := range v.rules {
		val := rule.Lookup(root)
		if !val.NonEmpty() {
			if rule.Required {
				result.add(&ValidationError{
					Severity: SeverityError,
					Field:    rule.Field,
					Rule:     "required",
					Message:  "required field is missing",
				})
			}
			continue
		}
		if rule.Format == nil {
			continue
		}
		if msg := rule.Format(strings.TrimSpace(val.String())); msg != "" {
			result.add(&ValidationError{
				Severity: SeverityWarning,
				Field:    rule.Field,
				Value:    val.String(),
				Rule:     "format",
				Message:  msg,
			})
		}
	}

	return result
}

// =============================================================================
// FORMAT VALIDATORS
// =============================================================================

var (
	rfcPattern      = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

func validateUUID(value string) string {
	if _, err := uuid.Parse(value); err != nil {
		return "not a valid UUID"
	}
	return ""
}

func validateRFC(value string) string {
	if !rfcPattern.MatchString(strings.ToUpper(value)) {
		return "not a valid RFC"
	}
	return ""
}

func validateDate(value string) string {
	if _, ok := ParseDate(value, time.UTC); !ok {
		return "not a valid date"
	}
	return ""
}

func validateCurrency(value string) string {
	if !currencyPattern.MatchString(value) {
		return "not an ISO 4217 currency code"
	}
	return ""
}

func validateDocumentType(value string) string {
	switch strings.ToUpper(value) {
	case "I", "E", "P", "N", "T":
		return ""
	}
	return "unknown TipoDeComprobante"
}

// =============================================================================
// NORMALIZATION HELPERS
// =============================================================================

// NormalizeUUID returns the canonical upper-case form of a stamp UUID. Values
// that do not parse as UUIDs are trimmed and upper-cased as they are.
func NormalizeUUID(value string) string {
	value = strings.TrimSpace(value)
	if id, err := uuid.Parse(value); err == nil {
		return strings.ToUpper(id.String())
	}
	return strings.ToUpper(value)
}

var dateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses a CFDI Fecha. Dates without a zone are read in loc.
func ParseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatErrors renders findings as a single semicolon-separated line.
func FormatErrors(errors []*ValidationError) string {
	var sb strings.Builder
	for i, e := range errors {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.Error())
	}
	return sb.String()
}
