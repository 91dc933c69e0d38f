// provactl drives the grading companion pipeline from the command line:
// import a captured photo, crop it to the alignment frame, normalize it,
// submit it for grading, and mirror results to the gateway.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/provafacil/provafacil/internal/config"
	"github.com/provafacil/provafacil/internal/db"
	"github.com/provafacil/provafacil/internal/prova"
)

type app struct {
	cfg     config.Config
	dbh     *sql.DB
	store   *prova.SQLStore
	eventos *prova.EventRepo
}

func (a *app) abrir(ctx context.Context) error {
	a.cfg = config.FromEnv()
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(octx, db.DriverSQLite, "file:"+a.cfg.LocalDBPath+"?_pragma=busy_timeout(5000)", db.ProfileLocal)
	if err != nil {
		return err
	}
	a.dbh = dbh
	a.store = prova.NewSQLStore(dbh)
	a.eventos = prova.NewEventRepo(dbh)
	return nil
}

func (a *app) fechar() {
	if a.dbh != nil {
		a.dbh.Close()
	}
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "provactl",
		Short:         "Companheiro de correção de provas",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.abrir(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.fechar()
		},
	}
	root.AddCommand(
		cmdProva(a),
		cmdGabarito(a),
		cmdCapturar(a),
		cmdCorrigir(a),
		cmdImagens(a),
		cmdSincronizar(a),
		cmdLimpar(a),
	)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
