package prova

import (
	"context"
	"database/sql"
	"time"
)

// Evento is one row of the append-only transition log.
type Evento struct {
	Offset   int64
	Tipo     string
	Chave    string
	DataJSON string
	CriadoEm int64
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, tipo, chave, dataJSON string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		tipo, chave, dataJSON, time.Now().Unix())
	return err
}

// Eventos returns the log for one record, oldest first.
func (r *EventRepo) Eventos(ctx context.Context, chave string) ([]Evento, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY seq`, chave)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Evento
	for rows.Next() {
		var e Evento
		if err := rows.Scan(&e.Offset, &e.Tipo, &e.Chave, &e.DataJSON, &e.CriadoEm); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
