// Package http holds the gateway's handlers. Every /api/provas route runs
// behind the matricula middleware and is scoped to the resolved usuario.
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/provafacil/provafacil/internal/auth/middleware"
	"github.com/provafacil/provafacil/internal/prova"
)

type provaDTO struct {
	ID          int64    `json:"id"`
	UsuarioID   int64    `json:"usuario_id,omitempty"`
	Nome        string   `json:"nome"`
	Gabarito    []string `json:"gabarito,omitempty"`
	DataCriacao string   `json:"data_criacao,omitempty"`
}

type provaReq struct {
	Nome     string   `json:"nome"`
	Gabarito []string `json:"gabarito"`
}

// POST /api/provas/criar-prova  {nome, gabarito?}
func CriarProvaHandler(db *sql.DB, driver string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := auth.UsuarioFrom(r.Context())
		var req provaReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErro(w, http.StatusBadRequest, "JSON inválido", err.Error())
			return
		}
		req.Nome = strings.TrimSpace(req.Nome)
		if req.Nome == "" {
			respondErro(w, http.StatusBadRequest, "Nome da prova é obrigatório", "")
			return
		}
		if len(req.Gabarito) > 0 {
			if err := prova.ValidarGabarito(req.Gabarito); err != nil {
				respondErro(w, http.StatusBadRequest, "Gabarito inválido", err.Error())
				return
			}
		}
		agora := time.Now().Unix()
		id, err := inserirProva(r.Context(), db, driver, u.ID, req.Nome, req.Gabarito, agora)
		if err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"message": "Prova criada com sucesso",
			"prova": provaDTO{
				ID:          id,
				UsuarioID:   u.ID,
				Nome:        req.Nome,
				Gabarito:    req.Gabarito,
				DataCriacao: time.Unix(agora, 0).UTC().Format(time.RFC3339),
			},
		})
	}
}

// PUT /api/provas/atualizar-gabarito/{provaId}  {nome, gabarito}
func AtualizarGabaritoHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := auth.UsuarioFrom(r.Context())
		provaID, ok := paramProvaID(w, r)
		if !ok {
			return
		}
		var req provaReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErro(w, http.StatusBadRequest, "JSON inválido", err.Error())
			return
		}
		req.Nome = strings.TrimSpace(req.Nome)
		if req.Nome == "" {
			respondErro(w, http.StatusBadRequest, "Nome da prova é obrigatório", "")
			return
		}
		if len(req.Gabarito) == 0 {
			respondErro(w, http.StatusBadRequest, "Gabarito é obrigatório e deve ser um array", "")
			return
		}
		if err := prova.ValidarGabarito(req.Gabarito); err != nil {
			respondErro(w, http.StatusBadRequest, "Gabarito inválido", err.Error())
			return
		}
		if !provaDoUsuario(w, r.Context(), db, provaID, u.ID) {
			return
		}
		gj, _ := json.Marshal(req.Gabarito)
		if _, err := db.ExecContext(r.Context(),
			`UPDATE provas SET nome=$1, gabarito=$2 WHERE id=$3 AND usuario_id=$4`,
			req.Nome, string(gj), provaID, u.ID); err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "Gabarito atualizado com sucesso",
			"prova":   provaDTO{ID: provaID, Nome: req.Nome, Gabarito: req.Gabarito},
		})
	}
}

// DELETE /api/provas/deletar-prova/{provaId}
func DeletarProvaHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := auth.UsuarioFrom(r.Context())
		provaID, ok := paramProvaID(w, r)
		if !ok {
			return
		}
		if !provaDoUsuario(w, r.Context(), db, provaID, u.ID) {
			return
		}
		if _, err := db.ExecContext(r.Context(),
			`DELETE FROM provas WHERE id=$1 AND usuario_id=$2`, provaID, u.ID); err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "Prova deletada com sucesso",
			"provaId": provaID,
		})
	}
}

type resultadoReq struct {
	NomeAluno string  `json:"nomeAluno"`
	Acertos   int     `json:"acertos"`
	Total     int     `json:"total"`
	Nota      float64 `json:"nota"`
}

// POST /api/provas/salvar-resultados  {provaId, resultados[]}
// Replaces every prior result for the prova, in one transaction.
func SalvarResultadosHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := auth.UsuarioFrom(r.Context())
		var req struct {
			ProvaID    int64          `json:"provaId"`
			Resultados []resultadoReq `json:"resultados"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondErro(w, http.StatusBadRequest, "JSON inválido", err.Error())
			return
		}
		if !provaDoUsuario(w, r.Context(), db, req.ProvaID, u.ID) {
			return
		}
		tx, err := db.BeginTx(r.Context(), nil)
		if err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(r.Context(),
			`DELETE FROM imagens_provas WHERE prova_id=$1 AND usuario_id=$2`, req.ProvaID, u.ID); err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		agora := time.Now().Unix()
		for _, res := range req.Resultados {
			if _, err := tx.ExecContext(r.Context(),
				`INSERT INTO imagens_provas
				 (prova_id, usuario_id, nome_aluno, status, acertos, total_questoes, nota, data_criacao)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				req.ProvaID, u.ID, res.NomeAluno, string(prova.StatusCorrigido),
				res.Acertos, res.Total, res.Nota, agora); err != nil {
				respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
				return
			}
		}
		if err := tx.Commit(); err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"message":          "Resultados salvos com sucesso",
			"quantidadeSalvos": len(req.Resultados),
		})
	}
}

// GET /api/provas/ultimo-salvamento/{provaId}
func UltimoSalvamentoHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := auth.UsuarioFrom(r.Context())
		provaID, ok := paramProvaID(w, r)
		if !ok {
			return
		}
		if !provaDoUsuario(w, r.Context(), db, provaID, u.ID) {
			return
		}
		var ts int64
		err := db.QueryRowContext(r.Context(),
			`SELECT data_criacao FROM imagens_provas WHERE prova_id=$1 AND usuario_id=$2
			 ORDER BY data_criacao DESC LIMIT 1`, provaID, u.ID).Scan(&ts)
		if err == sql.ErrNoRows {
			respondJSON(w, http.StatusOK, map[string]any{"ultimoSalvamento": nil})
			return
		}
		if err != nil {
			respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"ultimoSalvamento": time.Unix(ts, 0).UTC().Format(time.RFC3339),
		})
	}
}

func paramProvaID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "provaId"), 10, 64)
	if err != nil {
		respondErro(w, http.StatusBadRequest, "provaId inválido", "")
		return 0, false
	}
	return id, true
}

// provaDoUsuario enforces ownership; writes the 404 itself.
func provaDoUsuario(w http.ResponseWriter, ctx context.Context, db *sql.DB, provaID, usuarioID int64) bool {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM provas WHERE id=$1 AND usuario_id=$2`, provaID, usuarioID).Scan(&id)
	if err == sql.ErrNoRows {
		respondErro(w, http.StatusNotFound, "Prova não encontrada", "")
		return false
	}
	if err != nil {
		respondErro(w, http.StatusInternalServerError, "Erro interno do servidor", err.Error())
		return false
	}
	return true
}

func inserirProva(ctx context.Context, db *sql.DB, driver string, usuarioID int64, nome string, gabarito []string, agora int64) (int64, error) {
	var gj any
	if len(gabarito) > 0 {
		buf, err := json.Marshal(gabarito)
		if err != nil {
			return 0, err
		}
		gj = string(buf)
	}
	if driver == "postgres" {
		var id int64
		err := db.QueryRowContext(ctx,
			`INSERT INTO provas (usuario_id, nome, gabarito, data_criacao) VALUES ($1,$2,$3,$4) RETURNING id`,
			usuarioID, nome, gj, agora).Scan(&id)
		return id, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO provas (usuario_id, nome, gabarito, data_criacao) VALUES ($1,$2,$3,$4)`,
		usuarioID, nome, gj, agora)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
