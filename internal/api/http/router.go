package http

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	auth "github.com/provafacil/provafacil/internal/auth/middleware"
)

// MountProvas wires the /api/provas surface behind the matricula middleware.
func MountProvas(r chi.Router, db *sql.DB, driver string) {
	r.Route("/api/provas", func(pr chi.Router) {
		pr.Use(auth.Matricula(db))
		pr.Post("/criar-prova", CriarProvaHandler(db, driver))
		pr.Put("/atualizar-gabarito/{provaId}", AtualizarGabaritoHandler(db))
		pr.Delete("/deletar-prova/{provaId}", DeletarProvaHandler(db))
		pr.Post("/salvar-resultados", SalvarResultadosHandler(db))
		pr.Get("/ultimo-salvamento/{provaId}", UltimoSalvamentoHandler(db))
	})
}
