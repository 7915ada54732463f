package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
	json "github.com/goccy/go-json"
)

// OrderBy is a whitelisted ORDER BY clause for document queries.
type OrderBy string

const (
	// OrderCurrencyFolio is the export order.
	OrderCurrencyFolio OrderBy = "moneda ASC, folio ASC, id ASC"

	// OrderDate orders by issue date.
	OrderDate OrderBy = "fecha ASC, id ASC"

	// OrderInsertion orders by insertion id.
	OrderInsertion OrderBy = "id ASC"
)

func (o OrderBy) clause() (string, error) {
	switch o {
	case "":
		return string(OrderCurrencyFolio), nil
	case OrderCurrencyFolio, OrderDate, OrderInsertion:
		return string(o), nil
	}
	return "", fmt.Errorf("unsupported order %q", string(o))
}

// uuidQueryChunk keeps IN (...) lists below SQLite's bound-parameter limit.
const uuidQueryChunk = 500

// Filter selects documents for export. Zero fields are ignored.
type Filter struct {
	// DateFrom and DateTo bound the issue date, both inclusive.
	DateFrom *time.Time
	DateTo   *time.Time

	// DocumentType is a TipoDeComprobante code (I, E, P, N, T).
	DocumentType  string
	ReceiverTaxID string
	Currency      string
}

// IsEmpty reports whether no filter field is set.
func (f Filter) IsEmpty() bool {
	return f.DateFrom == nil && f.DateTo == nil && f.DocumentType == "" &&
		f.ReceiverTaxID == "" && f.Currency == ""
}

const insertDocument = `
	INSERT OR IGNORE INTO cfdis (
		uuid, ruta_archivo, tipo_comprobante, serie, folio, fecha,
		lugar_expedicion, forma_pago, metodo_pago, moneda, tipo_cambio,
		subtotal, total, rfc_emisor, nombre_emisor, regimen_fiscal_emisor,
		rfc_receptor, nombre_receptor, uso_cfdi, regimen_fiscal_receptor,
		cp_receptor, no_certificado, tipo_relacion, uuid_relacion,
		total_traslados_locales, total_retenciones_locales, neto_pagar,
		status, fecha_importacion, datos_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertBatch inserts docs in one transaction. Documents whose UUID is
// already stored are skipped silently. Any failure rolls back the whole batch.
//
// RETURNS:
//   - The number of rows actually inserted.
func (s *Store) InsertBatch(ctx context.Context, docs []*types.FinancialDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertDocument)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, doc := range docs {
			args, err := documentArgs(doc)
			if err != nil {
				return err
			}
			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				return fmt.Errorf("failed to insert %s: %w", doc.UUID, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}

	s.log.Debug().Int("batch", len(docs)).Int("inserted", inserted).Msg("Inserted document batch")
	return inserted, nil
}

func documentArgs(doc *types.FinancialDocument) ([]any, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", doc.UUID, err)
	}

	var localTransferred, localWithheld sql.NullFloat64
	if doc.LocalTaxes != nil {
		localTransferred = sql.NullFloat64{Float64: doc.LocalTaxes.Transferred, Valid: true}
		localWithheld = sql.NullFloat64{Float64: doc.LocalTaxes.Withheld, Valid: true}
	}

	var netPay sql.NullFloat64
	if doc.Payroll != nil {
		netPay = sql.NullFloat64{Float64: doc.Payroll.NetPay, Valid: true}
	}

	var issued sql.NullInt64
	if !doc.IssuedAt.IsZero() {
		issued = sql.NullInt64{Int64: doc.IssuedAt.UnixMilli(), Valid: true}
	}

	return []any{
		doc.UUID,
		nullString(doc.SourcePath),
		doc.TypeCode,
		nullString(doc.Series),
		nullString(doc.Folio),
		issued,
		nullString(doc.IssuePlace),
		nullString(doc.PaymentForm),
		nullString(doc.PaymentMethod),
		doc.Currency,
		doc.ExchangeRate,
		doc.SubTotal,
		doc.Total,
		doc.Issuer.TaxID,
		doc.Issuer.Name,
		nullString(doc.Issuer.TaxRegime),
		doc.Receiver.TaxID,
		doc.Receiver.Name,
		nullString(doc.Receiver.UsageCode),
		nullString(doc.Receiver.TaxRegime),
		nullString(doc.Receiver.PostalCode),
		nullString(doc.CertificateNumber),
		nullString(doc.RelationType),
		nullString(strings.Join(doc.RelatedUUIDs, ",")),
		localTransferred,
		localWithheld,
		netPay,
		doc.Status,
		doc.ImportedAt.UnixMilli(),
		string(payload),
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// =============================================================================
// QUERIES
// =============================================================================

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cfdis`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// QueryAll returns every stored document.
func (s *Store) QueryAll(ctx context.Context, order OrderBy) ([]*types.FinancialDocument, error) {
	clause, err := order.clause()
	if err != nil {
		return nil, err
	}
	return s.queryDocuments(ctx, "query all", `SELECT datos_json FROM cfdis ORDER BY `+clause)
}

// QueryChunk returns one page of documents.
func (s *Store) QueryChunk(ctx context.Context, limit, offset int, order OrderBy) ([]*types.FinancialDocument, error) {
	clause, err := order.clause()
	if err != nil {
		return nil, err
	}
	return s.queryDocuments(ctx, "query chunk",
		`SELECT datos_json FROM cfdis ORDER BY `+clause+` LIMIT ? OFFSET ?`, limit, offset)
}

// QueryWithFilters returns the documents matching f in export order.
func (s *Store) QueryWithFilters(ctx context.Context, f Filter) ([]*types.FinancialDocument, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT datos_json FROM cfdis WHERE 1=1`)

	if f.DateFrom != nil {
		sb.WriteString(` AND fecha >= ?`)
		args = append(args, f.DateFrom.UnixMilli())
	}
	if f.DateTo != nil {
		sb.WriteString(` AND fecha <= ?`)
		args = append(args, f.DateTo.UnixMilli())
	}
	if f.DocumentType != "" {
		sb.WriteString(` AND tipo_comprobante = ?`)
		args = append(args, strings.ToUpper(f.DocumentType))
	}
	if f.ReceiverTaxID != "" {
		sb.WriteString(` AND rfc_receptor = ?`)
		args = append(args, strings.ToUpper(f.ReceiverTaxID))
	}
	if f.Currency != "" {
		sb.WriteString(` AND moneda = ?`)
		args = append(args, strings.ToUpper(f.Currency))
	}
	sb.WriteString(` ORDER BY ` + string(OrderCurrencyFolio))

	return s.queryDocuments(ctx, "query with filters", sb.String(), args...)
}

// QueryByUUIDs returns the stored documents among uuids. Unknown identifiers
// are simply absent from the result.
func (s *Store) QueryByUUIDs(ctx context.Context, uuids []string) ([]*types.FinancialDocument, error) {
	var out []*types.FinancialDocument
	for start := 0; start < len(uuids); start += uuidQueryChunk {
		end := min(start+uuidQueryChunk, len(uuids))
		chunk := uuids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, u := range chunk {
			args[i] = u
		}

		docs, err := s.queryDocuments(ctx, "query by uuids",
			`SELECT datos_json FROM cfdis WHERE uuid IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// QueryWithRelations returns every document that references other documents.
func (s *Store) QueryWithRelations(ctx context.Context) ([]*types.FinancialDocument, error) {
	return s.queryDocuments(ctx, "query with relations", `
		SELECT datos_json FROM cfdis
		WHERE uuid_relacion IS NOT NULL AND uuid_relacion != ''
		ORDER BY `+string(OrderCurrencyFolio))
}

func (s *Store) queryDocuments(ctx context.Context, op, query string, args ...any) ([]*types.FinancialDocument, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var docs []*types.FinancialDocument
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		doc := &types.FinancialDocument{}
		if err := json.Unmarshal([]byte(payload), doc); err != nil {
			return nil, fmt.Errorf("%s: failed to decode document: %w", op, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}
