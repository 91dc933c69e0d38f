package prova

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) PutProva(ctx context.Context, p Prova) error {
	gj, err := json.Marshal(p.Gabarito)
	if err != nil {
		return err
	}
	if p.DataCriacao == 0 {
		p.DataCriacao = time.Now().Unix()
	}
	var remoteID any
	if p.RemoteID != 0 {
		remoteID = p.RemoteID
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO provas (id,nome,gabarito,remote_id,data_criacao)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET nome=EXCLUDED.nome, gabarito=EXCLUDED.gabarito, remote_id=EXCLUDED.remote_id`,
		p.ID, p.Nome, string(gj), remoteID, p.DataCriacao)
	return err
}

func (s *SQLStore) GetProva(ctx context.Context, id string) (Prova, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,nome,gabarito,remote_id,data_criacao FROM provas WHERE id=$1`, id)
	return scanProva(row)
}

func (s *SQLStore) ListProvas(ctx context.Context) ([]Prova, error) {
	return s.listProvas(ctx, `SELECT id,nome,gabarito,remote_id,data_criacao FROM provas ORDER BY data_criacao`)
}

func (s *SQLStore) ListProvasComGabarito(ctx context.Context) ([]Prova, error) {
	return s.listProvas(ctx, `SELECT id,nome,gabarito,remote_id,data_criacao FROM provas
		WHERE gabarito <> '' AND gabarito <> '[]' AND gabarito <> 'null' ORDER BY data_criacao`)
}

func (s *SQLStore) listProvas(ctx context.Context, query string) ([]Prova, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Prova
	for rows.Next() {
		p, err := scanProva(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProva(row rowScanner) (Prova, error) {
	var p Prova
	var gj string
	var remoteID sql.NullInt64
	if err := row.Scan(&p.ID, &p.Nome, &gj, &remoteID, &p.DataCriacao); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prova{}, ErrProvaNaoEncontrada
		}
		return Prova{}, err
	}
	if gj != "" {
		if err := json.Unmarshal([]byte(gj), &p.Gabarito); err != nil {
			return Prova{}, err
		}
	}
	p.RemoteID = remoteID.Int64
	return p, nil
}

// ApagarProva cascades to the prova's captured images.
func (s *SQLStore) ApagarProva(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM provas WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProvaNaoEncontrada
	}
	return nil
}

func (s *SQLStore) PutImagem(ctx context.Context, img ImagemCapturada) error {
	if img.Status == "" {
		img.Status = StatusPendente
	}
	if img.DataCriacao == 0 {
		img.DataCriacao = time.Now().Unix()
	}
	var acertos, total any
	var nota any
	if img.Resultado != nil {
		acertos, total, nota = img.Resultado.Acertos, img.Resultado.TotalQuestoes, img.Resultado.Nota
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO imagens
		(id,prova_id,nome_aluno,nome_prova,imagem_original,imagem_normalizada,status,acertos,total_questoes,nota,data_criacao)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET nome_aluno=EXCLUDED.nome_aluno,
			imagem_original=EXCLUDED.imagem_original, imagem_normalizada=EXCLUDED.imagem_normalizada,
			status=EXCLUDED.status, acertos=EXCLUDED.acertos,
			total_questoes=EXCLUDED.total_questoes, nota=EXCLUDED.nota`,
		img.ID, img.ProvaID, img.NomeAluno, img.NomeProva, img.ImagemOriginal, img.ImagemNormalizada,
		string(img.Status), acertos, total, nota, img.DataCriacao)
	return err
}

func (s *SQLStore) GetImagem(ctx context.Context, id string) (ImagemCapturada, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,prova_id,nome_aluno,nome_prova,imagem_original,imagem_normalizada,
		status,acertos,total_questoes,nota,data_criacao FROM imagens WHERE id=$1`, id)
	return scanImagem(row)
}

func (s *SQLStore) ListImagens(ctx context.Context, provaID string) ([]ImagemCapturada, error) {
	query := `SELECT id,prova_id,nome_aluno,nome_prova,imagem_original,imagem_normalizada,
		status,acertos,total_questoes,nota,data_criacao FROM imagens`
	var args []any
	if provaID != "" {
		query += ` WHERE prova_id=$1`
		args = append(args, provaID)
	}
	query += ` ORDER BY data_criacao`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImagemCapturada
	for rows.Next() {
		img, err := scanImagem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func scanImagem(row rowScanner) (ImagemCapturada, error) {
	var img ImagemCapturada
	var status string
	var acertos, total sql.NullInt64
	var nota sql.NullFloat64
	if err := row.Scan(&img.ID, &img.ProvaID, &img.NomeAluno, &img.NomeProva, &img.ImagemOriginal,
		&img.ImagemNormalizada, &status, &acertos, &total, &nota, &img.DataCriacao); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ImagemCapturada{}, ErrImagemNaoEncontrada
		}
		return ImagemCapturada{}, err
	}
	img.Status = Status(status)
	if acertos.Valid {
		img.Resultado = &Resultado{
			Acertos:       int(acertos.Int64),
			TotalQuestoes: int(total.Int64),
			Nota:          nota.Float64,
		}
	}
	return img, nil
}

// AtualizarStatus is a single-row update: the transition and its resultado
// land together, and a corrigido row never loses its resultado.
func (s *SQLStore) AtualizarStatus(ctx context.Context, id string, status Status, resultado *Resultado) error {
	var res sql.Result
	var err error
	if resultado != nil {
		res, err = s.db.ExecContext(ctx, `UPDATE imagens SET status=$1, acertos=$2, total_questoes=$3, nota=$4 WHERE id=$5`,
			string(status), resultado.Acertos, resultado.TotalQuestoes, resultado.Nota, id)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE imagens SET status=$1 WHERE id=$2`, string(status), id)
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrImagemNaoEncontrada
	}
	return nil
}

func (s *SQLStore) ApagarImagens(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM imagens`)
	return err
}
