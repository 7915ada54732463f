// =============================================================================
// CFDI XML to XLSX - Transformation Rules
// =============================================================================
//
// This file holds the field-level rules the converter applies to a
// Comprobante: tax classification on line items, substitution relations and
// the three extension blocks that change the declared totals.
//
// Every numeric read goes through xmlparser.Value.Float, so a missing or
// ill-typed attribute contributes 0.
//
// =============================================================================

package converter

import (
	"math"
	"strings"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/validation"
	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/xmlparser"
)

// =============================================================================
// SAT CATALOG CODES
// =============================================================================

// vatTaxCode is c_Impuesto 002 (IVA).
const vatTaxCode = "002"

// withheldTaxDeduction is c_TipoDeduccion 002 (ISR).
const withheldTaxDeduction = "002"

var (
	severancePerceptions = map[string]bool{"022": true, "023": true, "025": true}
	pensionPerceptions   = map[string]bool{"039": true, "044": true}
)

// =============================================================================
// LINE ITEMS
// =============================================================================

func lineItem(concepto *xmlparser.Node) types.LineItem {
	item := types.LineItem{
		Quantity:    concepto.Attr("Cantidad").Float(),
		UnitValue:   concepto.Attr("ValorUnitario").Float(),
		ProductCode: concepto.Attr("ClaveProdServ").String(),
		Description: concepto.Attr("Descripcion").String(),
		UnitCode:    concepto.Attr("ClaveUnidad").String(),
		Unit:        concepto.Attr("Unidad").String(),
		Amount:      concepto.Attr("Importe").Float(),
	}

	impuestos := concepto.Child("Impuestos")
	if impuestos == nil {
		return item
	}

	taxes := &types.Taxes{
		Transferred: map[types.TaxKind]types.TaxAmount{},
		Withheld:    map[types.TaxKind]types.TaxAmount{},
	}

	for _, t := range impuestos.All("Traslados", "Traslado") {
		kind := types.TaxExcise
		if t.Attr("Impuesto").String() == vatTaxCode {
			kind = types.TaxVAT
		}
		addTax(taxes.Transferred, kind, t)
	}

	for _, r := range impuestos.All("Retenciones", "Retencion") {
		kind := types.TaxIncome
		if r.Attr("Impuesto").String() == vatTaxCode {
			kind = types.TaxVAT
		}
		addTax(taxes.Withheld, kind, r)
	}

	item.Taxes = taxes
	return item
}

// addTax accumulates repeated entries of the same kind; the rate of the last
// entry is kept.
func addTax(m map[types.TaxKind]types.TaxAmount, kind types.TaxKind, n *xmlparser.Node) {
	cur := m[kind]
	cur.Amount += n.Attr("Importe").Float()
	cur.Rate = percent(n.Attr("TasaOCuota").Float())
	m[kind] = cur
}

// percent converts a SAT fraction (0.160000) to a whole-number percentage.
func percent(fraction float64) float64 {
	return math.Round(fraction*100*1e6) / 1e6
}

// =============================================================================
// RELATIONS
// =============================================================================

// relations reads every CfdiRelacionados block. When a substitution block is
// present it wins; otherwise the first block's relation type is used. UUIDs of
// the selected type come first, the rest in others; both are normalized and
// deduplicated in document order.
func relations(root *xmlparser.Node) (relType string, uuids, others []string) {
	blocks := root.ChildrenNamed("CfdiRelacionados")
	if len(blocks) == 0 {
		return "", nil, nil
	}

	relType = blocks[0].Attr("TipoRelacion").String()
	for _, b := range blocks {
		if b.Attr("TipoRelacion").String() == types.SubstitutionRelation {
			relType = types.SubstitutionRelation
			break
		}
	}

	seen := map[string]bool{}
	for _, b := range blocks {
		selected := b.Attr("TipoRelacion").String() == relType
		for _, rel := range b.ChildrenNamed("CfdiRelacionado") {
			v := rel.Attr("UUID")
			if !v.NonEmpty() {
				continue
			}
			id := validation.NormalizeUUID(v.String())
			if seen[id] {
				continue
			}
			seen[id] = true
			if selected {
				uuids = append(uuids, id)
			} else {
				others = append(others, id)
			}
		}
	}
	return relType, uuids, others
}

// =============================================================================
// PAYROLL (nomina12)
// =============================================================================

// applyPayroll replaces SubTotal and Total with the totals derived from the
// perception, deduction and other-payment lists:
//
//	SubTotal = exempt + taxed + otherPayments
//	Total    = SubTotal - taxWithheld - otherDeductions
//	NetPay   = Total - inKind
func applyPayroll(doc *types.FinancialDocument, nomina *xmlparser.Node) {
	totals := &types.PayrollTotals{}

	for _, p := range nomina.All("Percepciones", "Percepcion") {
		taxed := p.Attr("ImporteGravado").Float()
		exempt := p.Attr("ImporteExento").Float()
		amount := taxed + exempt

		totals.Perceptions.Taxed += taxed
		totals.Perceptions.Exempt += exempt

		code := p.Attr("TipoPercepcion").String()
		switch {
		case severancePerceptions[code]:
			totals.Perceptions.Severance += amount
		case pensionPerceptions[code]:
			totals.Perceptions.Pension += amount
		default:
			totals.Perceptions.Salaries += amount
		}

		if inKind(p) {
			totals.InKind += amount
		}
	}

	for _, d := range nomina.All("Deducciones", "Deduccion") {
		amount := d.Attr("Importe").Float()
		if d.Attr("TipoDeduccion").String() == withheldTaxDeduction {
			totals.Deductions.TaxWithheld += amount
		} else {
			totals.Deductions.OtherDeductions += amount
		}
	}

	for _, o := range nomina.All("OtrosPagos", "OtroPago") {
		totals.OtherPayments += o.Attr("Importe").Float()
	}

	subTotal := totals.Perceptions.Exempt + totals.Perceptions.Taxed + totals.OtherPayments
	total := subTotal - totals.Deductions.TaxWithheld - totals.Deductions.OtherDeductions
	totals.NetPay = total - totals.InKind

	doc.SubTotal = subTotal
	doc.Total = total
	doc.Payroll = totals
}

func inKind(p *xmlparser.Node) bool {
	v := p.Attr("especie")
	if !v.NonEmpty() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v.String())) {
	case "0", "false", "no":
		return false
	}
	return true
}

// =============================================================================
// LOCAL TAXES (implocal)
// =============================================================================

// applyLocalTaxes copies the declared totals verbatim and keeps the per-name
// amounts for the report columns.
func applyLocalTaxes(doc *types.FinancialDocument, local *xmlparser.Node) {
	totals := &types.LocalTaxTotals{
		Transferred:       local.Attr("TotaldeTraslados").Float(),
		Withheld:          local.Attr("TotaldeRetenciones").Float(),
		TransferredDetail: map[string]float64{},
		WithheldDetail:    map[string]float64{},
	}

	for _, t := range local.ChildrenNamed("TrasladosLocales") {
		totals.TransferredDetail[localTaxCategory(t.Attr("ImpLocTrasladado").String())] += t.Attr("Importe").Float()
	}
	for _, r := range local.ChildrenNamed("RetencionesLocales") {
		totals.WithheldDetail[localTaxCategory(r.Attr("ImpLocRetenido").String())] += r.Attr("Importe").Float()
	}

	doc.LocalTaxes = totals
}

// localTaxCategory maps the free-text local tax name to a known category.
// Unknown names are kept upper-cased.
func localTaxCategory(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case strings.Contains(n, "ISH"), strings.Contains(n, "HOSPEDAJE"):
		return types.LocalTaxLodging
	case strings.Contains(n, "CEDULAR"):
		return types.LocalTaxCedular
	case strings.Contains(n, "RTP"), strings.Contains(n, "REMUNERACI"), strings.Contains(n, "NOMINA"), strings.Contains(n, "NÓMINA"):
		return types.LocalTaxPayroll
	case strings.Contains(n, "MILLAR"):
		return types.LocalTaxPerMillar
	default:
		return n
	}
}

// =============================================================================
// PAYMENT RECEIPT (pago10 / pago20)
// =============================================================================

// applyPaymentReceipt overrides Currency and Total from the first Pago: the
// currency of its first DoctoRelacionado and the declared payment amount.
func applyPaymentReceipt(doc *types.FinancialDocument, pagos *xmlparser.Node) {
	pago := pagos.Child("Pago")
	if pago == nil {
		return
	}

	currency := pago.Get(xmlparser.At("DoctoRelacionado").Attr("MonedaDR"))
	if !currency.NonEmpty() {
		currency = pago.Attr("MonedaP")
	}
	if currency.NonEmpty() {
		doc.Currency = strings.ToUpper(strings.TrimSpace(currency.String()))
	}
	doc.Total = pago.Attr("Monto").Float()
}
