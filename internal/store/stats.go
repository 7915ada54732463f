package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Stats summarizes the stored corpus.
type Stats struct {
	Total     int
	Issuers   int
	Receivers int

	// FirstIssued and LastIssued are nil for an empty store.
	FirstIssued *time.Time
	LastIssued  *time.Time

	TotalMXN float64
	TotalUSD float64

	Income   int
	Expense  int
	Payments int
	Payroll  int
}

// Stats computes corpus statistics in a single query.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var (
		st          Stats
		first, last sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT rfc_emisor),
			COUNT(DISTINCT rfc_receptor),
			MIN(fecha),
			MAX(fecha),
			COALESCE(SUM(CASE WHEN moneda = 'MXN' THEN total ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN moneda = 'USD' THEN total ELSE 0 END), 0),
			COUNT(CASE WHEN tipo_comprobante = 'I' THEN 1 END),
			COUNT(CASE WHEN tipo_comprobante = 'E' THEN 1 END),
			COUNT(CASE WHEN tipo_comprobante = 'P' THEN 1 END),
			COUNT(CASE WHEN tipo_comprobante = 'N' THEN 1 END)
		FROM cfdis`).
		Scan(&st.Total, &st.Issuers, &st.Receivers, &first, &last,
			&st.TotalMXN, &st.TotalUSD, &st.Income, &st.Expense, &st.Payments, &st.Payroll)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	if first.Valid {
		t := time.UnixMilli(first.Int64)
		st.FirstIssued = &t
	}
	if last.Valid {
		t := time.UnixMilli(last.Int64)
		st.LastIssued = &t
	}
	return &st, nil
}
