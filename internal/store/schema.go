// Package store provides SQLite persistence for normalized CFDI documents and
// the ingestion run log.
package store

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Normalized documents
-- datos_json holds the full FinancialDocument; the other columns are for filtering
CREATE TABLE IF NOT EXISTS cfdis (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    ruta_archivo TEXT,
    tipo_comprobante TEXT,
    serie TEXT,
    folio TEXT,
    fecha INTEGER,                     -- unix milliseconds
    lugar_expedicion TEXT,
    forma_pago TEXT,
    metodo_pago TEXT,
    moneda TEXT,
    tipo_cambio REAL,
    subtotal REAL,
    total REAL,
    rfc_emisor TEXT,
    nombre_emisor TEXT,
    regimen_fiscal_emisor TEXT,
    rfc_receptor TEXT,
    nombre_receptor TEXT,
    uso_cfdi TEXT,
    regimen_fiscal_receptor TEXT,
    cp_receptor TEXT,
    no_certificado TEXT,
    tipo_relacion TEXT,
    uuid_relacion TEXT,                -- comma separated
    total_traslados_locales REAL,
    total_retenciones_locales REAL,
    neto_pagar REAL,
    status TEXT,
    fecha_importacion INTEGER,
    datos_json TEXT NOT NULL,
    created_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_uuid ON cfdis(uuid);
CREATE INDEX IF NOT EXISTS idx_fecha ON cfdis(fecha);
CREATE INDEX IF NOT EXISTS idx_tipo_comprobante ON cfdis(tipo_comprobante);
CREATE INDEX IF NOT EXISTS idx_rfc_emisor ON cfdis(rfc_emisor);
CREATE INDEX IF NOT EXISTS idx_rfc_receptor ON cfdis(rfc_receptor);
CREATE INDEX IF NOT EXISTS idx_moneda ON cfdis(moneda);
CREATE INDEX IF NOT EXISTS idx_metodo_pago ON cfdis(metodo_pago);

-- Ingestion runs
CREATE TABLE IF NOT EXISTS proceso_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT,
    total_archivos INTEGER,
    archivos_procesados INTEGER,
    archivos_fallidos INTEGER,
    bloque_actual INTEGER,
    fecha_inicio INTEGER,
    fecha_fin INTEGER,
    status TEXT
);
`
