package converter

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestConverter() *Converter {
	c := New(zerolog.Nop())
	c.SetClock(func() time.Time { return fixedNow })
	c.SetLocation(time.UTC)
	return c
}

func convertFixture(t *testing.T, name string) Result {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return newTestConverter().Convert(data, name)
}

func TestConvertIncomeDocument(t *testing.T) {
	res := convertFixture(t, "income_ppd.xml")
	require.Equal(t, OutcomeDocument, res.Outcome, "err: %v", res.Err)
	doc := res.Document

	t.Run("header", func(t *testing.T) {
		assert.Equal(t, "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE", doc.UUID)
		assert.Equal(t, "4.0", doc.Version)
		assert.Equal(t, types.StatusStamped, doc.Status)
		assert.Equal(t, fixedNow, doc.ImportedAt)
		assert.Equal(t, types.DocumentTypeIncome, doc.Type)
		assert.Equal(t, "I", doc.TypeCode)
		assert.Equal(t, time.Date(2024, 2, 10, 9, 15, 0, 0, time.UTC), doc.IssuedAt)
		assert.Equal(t, "A 101", doc.FolioLabel())
		assert.Equal(t, "MXN", doc.Currency)
		assert.Equal(t, 1.0, doc.ExchangeRate)
		assert.Equal(t, 1000.0, doc.SubTotal)
		assert.Equal(t, 1150.0, doc.Total)
		assert.Equal(t, "30 dias", doc.PaymentTerms)
		assert.Equal(t, "income_ppd.xml", doc.SourcePath)
	})

	t.Run("parties", func(t *testing.T) {
		assert.Equal(t, types.Party{Name: "EMISOR DEMO", TaxID: "AAA010101AAA", TaxRegime: "601", PostalCode: "06600"}, doc.Issuer)
		assert.Equal(t, "BBB010101BBB", doc.Receiver.TaxID)
		assert.Equal(t, "G03", doc.Receiver.UsageCode)
		assert.Equal(t, "64000", doc.Receiver.PostalCode)
		assert.Equal(t, "612", doc.Receiver.TaxRegime)
	})

	t.Run("line item taxes", func(t *testing.T) {
		require.Len(t, doc.LineItems, 2)
		taxes := doc.LineItems[0].Taxes
		require.NotNil(t, taxes)

		assert.Equal(t, types.TaxAmount{Amount: 160, Rate: 16}, taxes.Transferred[types.TaxVAT])
		assert.Equal(t, types.TaxAmount{Amount: 80, Rate: 8}, taxes.Transferred[types.TaxExcise])
		assert.Equal(t, types.TaxAmount{Amount: 100, Rate: 10}, taxes.Withheld[types.TaxIncome])
		assert.Equal(t, types.TaxAmount{Amount: 106.67, Rate: 10.6667}, taxes.Withheld[types.TaxVAT])

		assert.Equal(t, 160.0, doc.TaxTotal(types.TaxVAT, false))
		assert.Equal(t, 106.67, doc.TaxTotal(types.TaxVAT, true))
	})

	t.Run("malformed numbers coerce to zero", func(t *testing.T) {
		item := doc.LineItems[1]
		assert.Zero(t, item.Quantity)
		assert.Zero(t, item.UnitValue)
		assert.Zero(t, item.Amount)
		assert.Nil(t, item.Taxes)
	})

	t.Run("relations are deduplicated", func(t *testing.T) {
		assert.Equal(t, types.SubstitutionRelation, doc.RelationType)
		assert.Equal(t, []string{"11111111-2222-3333-4444-555555555555"}, doc.RelatedUUIDs)
		assert.True(t, doc.IsSubstitution())
	})

	t.Run("local taxes copied verbatim", func(t *testing.T) {
		require.NotNil(t, doc.LocalTaxes)
		assert.Equal(t, 30.0, doc.LocalTaxes.Transferred)
		assert.Equal(t, 20.0, doc.LocalTaxes.Withheld)
		assert.Equal(t, 30.0, doc.LocalTaxes.TransferredDetail[types.LocalTaxLodging])
		assert.Equal(t, 20.0, doc.LocalTaxes.WithheldDetail[types.LocalTaxCedular])
	})

	t.Run("deferred payment gets credit info", func(t *testing.T) {
		require.NotNil(t, doc.Credit)
		assert.False(t, doc.Credit.Paid)
		assert.Empty(t, doc.Credit.Payments)
		assert.Equal(t, doc.Total, doc.Credit.Balance)
	})
}

func TestConvertPayroll(t *testing.T) {
	res := convertFixture(t, "payroll.xml")
	require.Equal(t, OutcomeDocument, res.Outcome, "err: %v", res.Err)
	doc := res.Document
	require.NotNil(t, doc.Payroll)
	p := doc.Payroll

	assert.Equal(t, types.DocumentTypePayroll, doc.Type)
	assert.Equal(t, 8500.0, p.Perceptions.Taxed)
	assert.Equal(t, 1000.0, p.Perceptions.Exempt)
	assert.Equal(t, 8200.0, p.Perceptions.Salaries)
	assert.Equal(t, 1000.0, p.Perceptions.Severance)
	assert.Equal(t, 300.0, p.Perceptions.Pension)
	assert.Equal(t, 200.0, p.InKind)
	assert.Equal(t, 1200.0, p.Deductions.TaxWithheld)
	assert.Equal(t, 300.0, p.Deductions.OtherDeductions)
	assert.Equal(t, 100.0, p.OtherPayments)

	assert.Equal(t, p.Perceptions.Exempt+p.Perceptions.Taxed+p.OtherPayments, doc.SubTotal)
	assert.Equal(t, doc.SubTotal-p.Deductions.TaxWithheld-p.Deductions.OtherDeductions, doc.Total)
	assert.Equal(t, doc.Total-p.InKind, p.NetPay)
	assert.Equal(t, 9600.0, doc.SubTotal)
	assert.Equal(t, 8100.0, doc.Total)
	assert.Equal(t, 7900.0, p.NetPay)
	assert.Nil(t, doc.Credit)
}

func TestPayrollTotalsForAnyListLength(t *testing.T) {
	c := newTestConverter()

	for n := 0; n <= 4; n++ {
		var perceptions, deductions string
		for i := 0; i < n; i++ {
			perceptions += `<Percepcion TipoPercepcion="001" ImporteGravado="100.5" ImporteExento="10"/>`
			deductions += `<Deduccion TipoDeduccion="002" Importe="7.25"/><Deduccion TipoDeduccion="006" Importe="1"/>`
		}
		doc := `<Comprobante TipoDeComprobante="N"><Emisor Rfc="AAA010101AAA"/><Receptor Rfc="XAXX010101000"/>
			<Complemento><Nomina><Percepciones>` + perceptions + `</Percepciones><Deducciones>` + deductions +
			`</Deducciones></Nomina><TimbreFiscalDigital UUID="u-1"/></Complemento></Comprobante>`

		res := c.Convert([]byte(doc), "n.xml")
		require.Equal(t, OutcomeDocument, res.Outcome)
		d := res.Document
		p := d.Payroll

		assert.InDelta(t, p.Perceptions.Exempt+p.Perceptions.Taxed+p.OtherPayments, d.SubTotal, 1e-9)
		assert.InDelta(t, d.SubTotal-p.Deductions.TaxWithheld-p.Deductions.OtherDeductions, d.Total, 1e-9)
		assert.InDelta(t, d.Total-p.InKind, p.NetPay, 1e-9)
	}
}

func TestConvertPaymentReceipts(t *testing.T) {
	tests := []struct {
		file     string
		currency string
		total    float64
	}{
		{"payment20.xml", "USD", 580},
		{"payment10.xml", "MXN", 1234.5},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			res := convertFixture(t, tt.file)
			require.Equal(t, OutcomeDocument, res.Outcome, "err: %v", res.Err)
			assert.Equal(t, types.DocumentTypePaymentReceipt, res.Document.Type)
			assert.Equal(t, tt.currency, res.Document.Currency)
			assert.Equal(t, tt.total, res.Document.Total)
		})
	}
}

func TestConvertOutcomes(t *testing.T) {
	c := newTestConverter()

	t.Run("retention is counted only", func(t *testing.T) {
		res := convertFixture(t, "retention.xml")
		assert.Equal(t, OutcomeRetention, res.Outcome)
		assert.Nil(t, res.Document)
		assert.NoError(t, res.Err)
	})

	t.Run("unknown root", func(t *testing.T) {
		res := c.Convert([]byte(`<Factura Total="1"/>`), "f.xml")
		assert.Equal(t, OutcomeUnrecognized, res.Outcome)
		assert.True(t, errors.Is(res.Err, ErrUnrecognizedDocument))
	})

	t.Run("malformed xml", func(t *testing.T) {
		res := c.Convert([]byte(`<Comprobante><Emisor>`), "bad.xml")
		assert.Equal(t, OutcomeUnparseable, res.Outcome)
		assert.True(t, errors.Is(res.Err, ErrMalformedXML))

		var perr *ProcessingError
		require.True(t, errors.As(res.Err, &perr))
		assert.Equal(t, "parse", perr.Op)
		assert.Equal(t, "bad.xml", perr.Path)
	})

	t.Run("missing stamp uuid", func(t *testing.T) {
		res := c.Convert([]byte(`<Comprobante><Emisor Rfc="AAA010101AAA"/><Receptor Rfc="XAXX010101000"/></Comprobante>`), "m.xml")
		assert.Equal(t, OutcomeUnparseable, res.Outcome)
		assert.True(t, errors.Is(res.Err, ErrMissingRequiredField))
		assert.Nil(t, res.Document)
	})

	t.Run("missing receiver", func(t *testing.T) {
		res := c.Convert([]byte(`<Comprobante><Emisor Rfc="AAA010101AAA"/><Complemento><TimbreFiscalDigital UUID="x"/></Complemento></Comprobante>`), "r.xml")
		assert.Equal(t, OutcomeUnparseable, res.Outcome)
		assert.True(t, errors.Is(res.Err, ErrMissingRequiredField))
	})
}

func TestConvertTotalsAlwaysFinite(t *testing.T) {
	c := newTestConverter()
	inputs := []string{
		`SubTotal="" Total=""`,
		`SubTotal="NaN" Total="Inf"`,
		`SubTotal="1,000.00" Total="$5"`,
		``,
	}

	for _, attrs := range inputs {
		doc := `<Comprobante ` + attrs + `><Emisor Rfc="AAA010101AAA"/><Receptor Rfc="XAXX010101000"/>
			<Complemento><TimbreFiscalDigital UUID="u-2"/></Complemento></Comprobante>`
		res := c.Convert([]byte(doc), "t.xml")
		require.Equal(t, OutcomeDocument, res.Outcome)
		assert.False(t, math.IsNaN(res.Document.SubTotal) || math.IsInf(res.Document.SubTotal, 0))
		assert.False(t, math.IsNaN(res.Document.Total) || math.IsInf(res.Document.Total, 0))
		assert.Zero(t, res.Document.Total)
	}
}

func TestRelations(t *testing.T) {
	c := newTestConverter()

	t.Run("non substitution relation keeps its type", func(t *testing.T) {
		doc := `<Comprobante><Emisor Rfc="AAA010101AAA"/><Receptor Rfc="XAXX010101000"/>
			<CfdiRelacionados TipoRelacion="07"><CfdiRelacionado UUID="a"/></CfdiRelacionados>
			<Complemento><TimbreFiscalDigital UUID="u-3"/></Complemento></Comprobante>`
		res := c.Convert([]byte(doc), "r.xml")
		require.Equal(t, OutcomeDocument, res.Outcome)
		assert.Equal(t, "07", res.Document.RelationType)
		assert.Equal(t, []string{"A"}, res.Document.RelatedUUIDs)
		assert.Empty(t, res.Document.OtherRelatedUUIDs)
		assert.False(t, res.Document.IsSubstitution())
	})

	t.Run("substitution block wins over others", func(t *testing.T) {
		doc := `<Comprobante><Emisor Rfc="AAA010101AAA"/><Receptor Rfc="XAXX010101000"/>
			<CfdiRelacionados TipoRelacion="01"><CfdiRelacionado UUID="a"/></CfdiRelacionados>
			<CfdiRelacionados TipoRelacion="04"><CfdiRelacionado UUID="b"/><CfdiRelacionado UUID="c"/></CfdiRelacionados>
			<Complemento><TimbreFiscalDigital UUID="u-4"/></Complemento></Comprobante>`
		res := c.Convert([]byte(doc), "r.xml")
		require.Equal(t, OutcomeDocument, res.Outcome)
		assert.Equal(t, "04", res.Document.RelationType)
		assert.Equal(t, []string{"B", "C"}, res.Document.RelatedUUIDs)
		assert.Equal(t, []string{"A"}, res.Document.OtherRelatedUUIDs)
	})

	t.Run("uuid repeated across blocks is listed once", func(t *testing.T) {
		doc := `<Comprobante><Emisor Rfc="AAA010101AAA"/><Receptor Rfc="XAXX010101000"/>
			<CfdiRelacionados TipoRelacion="04"><CfdiRelacionado UUID="b"/></CfdiRelacionados>
			<CfdiRelacionados TipoRelacion="07"><CfdiRelacionado UUID="B"/><CfdiRelacionado UUID="d"/></CfdiRelacionados>
			<Complemento><TimbreFiscalDigital UUID="u-5"/></Complemento></Comprobante>`
		res := c.Convert([]byte(doc), "r.xml")
		require.Equal(t, OutcomeDocument, res.Outcome)
		assert.Equal(t, []string{"B"}, res.Document.RelatedUUIDs)
		assert.Equal(t, []string{"D"}, res.Document.OtherRelatedUUIDs)
	})
}

func TestLocalTaxCategory(t *testing.T) {
	assert.Equal(t, types.LocalTaxLodging, localTaxCategory("Impuesto sobre Hospedaje"))
	assert.Equal(t, types.LocalTaxCedular, localTaxCategory("cedular"))
	assert.Equal(t, types.LocalTaxPayroll, localTaxCategory("Impuesto sobre Remuneraciones al Trabajo Personal"))
	assert.Equal(t, types.LocalTaxPerMillar, localTaxCategory("5 al millar"))
	assert.Equal(t, "OTRO", localTaxCategory(" otro "))
}

func TestRepeatedTaxKindIsSummed(t *testing.T) {
	doc := `<Comprobante><Emisor Rfc="AAA010101AAA"/><Receptor Rfc="XAXX010101000"/>
		<Conceptos><Concepto Importe="100">
			<Impuestos>
				<Traslados>
					<Traslado Impuesto="002" Importe="8" TasaOCuota="0.080000"/>
					<Traslado Impuesto="002" Importe="16" TasaOCuota="0.160000"/>
					<Traslado Impuesto="003" Importe="3" TasaOCuota="0.030000"/>
				</Traslados>
			</Impuestos>
		</Concepto></Conceptos>
		<Complemento><TimbreFiscalDigital UUID="u-6"/></Complemento></Comprobante>`

	res := newTestConverter().Convert([]byte(doc), "t.xml")
	require.Equal(t, OutcomeDocument, res.Outcome)
	require.Len(t, res.Document.LineItems, 1)

	taxes := res.Document.LineItems[0].Taxes
	require.NotNil(t, taxes)
	assert.Equal(t, types.TaxAmount{Amount: 24, Rate: 16}, taxes.Transferred[types.TaxVAT], "amounts add up, last rate kept")
	assert.Equal(t, types.TaxAmount{Amount: 3, Rate: 3}, taxes.Transferred[types.TaxExcise])
}
