package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Profile selects which schema a connection bootstraps: the companion's
// on-device record store, or the gateway's server-side tables.
type Profile string

const (
	ProfileLocal   Profile = "local"
	ProfileGateway Profile = "gateway"
)

// Open opens a DB and ensures the profile's schema exists.
func Open(ctx context.Context, driver Driver, dsn string, profile Profile) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:provafacil.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
		// Pragmas apply per connection; the DSN is the only place they
		// survive the pool.
		if !strings.Contains(dsn, "foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/provafacil?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver, profile); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver, profile Profile) error {
	var schema string
	switch profile {
	case ProfileLocal:
		schema = schemaLocal
	case ProfileGateway:
		if driver == DriverPostgres {
			schema = schemaGatewayPostgres
		} else {
			schema = schemaGatewaySQLite
		}
	default:
		return fmt.Errorf("unsupported profile: %s", profile)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// The local store is always sqlite: one row per record, keyed by generated
// identifiers, so every mutation is a single-record upsert.
const schemaLocal = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS provas (
  id TEXT PRIMARY KEY,
  nome TEXT NOT NULL,
  gabarito TEXT NOT NULL DEFAULT '',
  remote_id INTEGER,
  data_criacao INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS imagens (
  id TEXT PRIMARY KEY,
  prova_id TEXT NOT NULL REFERENCES provas(id) ON DELETE CASCADE,
  nome_aluno TEXT NOT NULL DEFAULT '',
  nome_prova TEXT NOT NULL DEFAULT '',
  imagem_original TEXT NOT NULL,
  imagem_normalizada TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  acertos INTEGER,
  total_questoes INTEGER,
  nota REAL,
  data_criacao INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  typ TEXT NOT NULL,                        -- e.g., CorrecaoConcluida
  key TEXT NOT NULL,                        -- natural key: imagem id
  data TEXT NOT NULL,                       -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaGatewaySQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS usuarios (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  matricula TEXT NOT NULL UNIQUE,
  nome TEXT NOT NULL DEFAULT '',
  senha_hash TEXT NOT NULL DEFAULT '',
  data_criacao INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS provas (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  usuario_id INTEGER NOT NULL REFERENCES usuarios(id),
  nome TEXT NOT NULL,
  gabarito TEXT,
  data_criacao INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS imagens_provas (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  prova_id INTEGER NOT NULL REFERENCES provas(id) ON DELETE CASCADE,
  usuario_id INTEGER NOT NULL REFERENCES usuarios(id),
  nome_aluno TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  acertos INTEGER NOT NULL,
  total_questoes INTEGER NOT NULL,
  nota REAL NOT NULL,
  data_criacao INTEGER NOT NULL
);
`

const schemaGatewayPostgres = `
CREATE TABLE IF NOT EXISTS usuarios (
  id BIGSERIAL PRIMARY KEY,
  matricula TEXT NOT NULL UNIQUE,
  nome TEXT NOT NULL DEFAULT '',
  senha_hash TEXT NOT NULL DEFAULT '',
  data_criacao BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS provas (
  id BIGSERIAL PRIMARY KEY,
  usuario_id BIGINT NOT NULL REFERENCES usuarios(id),
  nome TEXT NOT NULL,
  gabarito TEXT,
  data_criacao BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS imagens_provas (
  id BIGSERIAL PRIMARY KEY,
  prova_id BIGINT NOT NULL REFERENCES provas(id) ON DELETE CASCADE,
  usuario_id BIGINT NOT NULL REFERENCES usuarios(id),
  nome_aluno TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  acertos INTEGER NOT NULL,
  total_questoes INTEGER NOT NULL,
  nota DOUBLE PRECISION NOT NULL,
  data_criacao BIGINT NOT NULL
);
`
