package prova

import (
	"context"
	"errors"
)

var (
	ErrProvaNaoEncontrada  = errors.New("prova não encontrada")
	ErrImagemNaoEncontrada = errors.New("imagem não encontrada")
)

// Store is the companion's local record store. Every mutation touches a
// single keyed row; there is no whole-collection rewrite.
type Store interface {
	PutProva(ctx context.Context, p Prova) error
	GetProva(ctx context.Context, id string) (Prova, error)
	ListProvas(ctx context.Context) ([]Prova, error)
	// ListProvasComGabarito filters to provas ready for capture.
	ListProvasComGabarito(ctx context.Context) ([]Prova, error)
	ApagarProva(ctx context.Context, id string) error

	PutImagem(ctx context.Context, img ImagemCapturada) error
	GetImagem(ctx context.Context, id string) (ImagemCapturada, error)
	ListImagens(ctx context.Context, provaID string) ([]ImagemCapturada, error)
	AtualizarStatus(ctx context.Context, id string, status Status, resultado *Resultado) error
	ApagarImagens(ctx context.Context) error
}
