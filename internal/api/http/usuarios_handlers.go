package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// POST /api/usuarios  {matricula, nome, senha?}
// Provisions the row the matricula middleware resolves against. Senha is
// stored hashed for a future login surface; nothing verifies it today.
func CriarUsuarioHandler(db *sql.DB, driver string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Matricula string `json:"matricula"`
			Nome      string `json:"nome"`
			Senha     string `json:"senha"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErro(w, http.StatusBadRequest, "JSON inválido", err.Error())
			return
		}
		req.Matricula = strings.TrimSpace(req.Matricula)
		if req.Matricula == "" {
			respondErro(w, http.StatusBadRequest, "Matrícula é obrigatória", "")
			return
		}
		var existente int64
		err := db.QueryRowContext(r.Context(),
			`SELECT id FROM usuarios WHERE matricula=$1`, req.Matricula).Scan(&existente)
		if err == nil {
			respondErro(w, http.StatusConflict, "Matrícula já cadastrada", "")
			return
		}
		if err != sql.ErrNoRows {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		var hash string
		if req.Senha != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(req.Senha), bcrypt.DefaultCost)
			if err != nil {
				respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
				return
			}
			hash = string(h)
		}
		id, err := inserirUsuario(r.Context(), db, driver, req.Matricula, req.Nome, hash)
		if err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"id":        id,
			"matricula": req.Matricula,
			"nome":      req.Nome,
		})
	}
}

func inserirUsuario(ctx context.Context, db *sql.DB, driver, matricula, nome, senhaHash string) (int64, error) {
	agora := time.Now().Unix()
	if driver == "postgres" {
		var id int64
		err := db.QueryRowContext(ctx,
			`INSERT INTO usuarios (matricula, nome, senha_hash, data_criacao) VALUES ($1,$2,$3,$4) RETURNING id`,
			matricula, nome, senhaHash, agora).Scan(&id)
		return id, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO usuarios (matricula, nome, senha_hash, data_criacao) VALUES ($1,$2,$3,$4)`,
		matricula, nome, senhaHash, agora)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
