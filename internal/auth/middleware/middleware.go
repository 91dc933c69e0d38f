// Package auth resolves the matricula request header against the usuarios
// table. This is a lookup stub, not an authentication protocol.
package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
)

type Usuario struct {
	ID        int64  `json:"id"`
	Matricula string `json:"matricula"`
	Nome      string `json:"nome"`
}

// Matricula rejects requests without a resolvable matricula header and puts
// the usuario row in the request context.
func Matricula(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := r.Header.Get("matricula")
			if m == "" {
				unauthorized(w, "Matrícula não fornecida")
				return
			}
			var u Usuario
			err := db.QueryRowContext(r.Context(),
				`SELECT id, matricula, nome FROM usuarios WHERE matricula=$1`, m).
				Scan(&u.ID, &u.Matricula, &u.Nome)
			if errors.Is(err, sql.ErrNoRows) {
				unauthorized(w, "Usuário não encontrado")
				return
			}
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Erro interno do servidor"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUsuario(r.Context(), u)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
