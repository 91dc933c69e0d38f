// Package correcao owns the lifecycle of captured submissions:
// pendente → em_analise → corrigido, with a compensating rollback to
// pendente on every failure branch.
package correcao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/provafacil/provafacil/internal/grading"
	"github.com/provafacil/provafacil/internal/prova"
)

var (
	// ErrEmAnalise: a grading attempt for this submission is already in
	// flight (or a previous run left it em_analise).
	ErrEmAnalise = errors.New("correção já em andamento para esta imagem")
	// ErrSemGabarito: the owning prova has no answer key attached.
	ErrSemGabarito = errors.New("prova não possui gabarito")
)

// Grader is the upload-client surface the tracker needs.
type Grader interface {
	Corrigir(ctx context.Context, caminhoImagem, gabarito string, progresso grading.ProgressFunc) (grading.Resultado, error)
}

// EventLog records transitions; nil disables logging.
type EventLog interface {
	Append(ctx context.Context, tipo, chave, dataJSON string) error
}

type Clock func() time.Time

type Tracker struct {
	store   prova.Store
	grader  Grader
	eventos EventLog
	now     Clock

	mu    sync.Mutex
	emVoo map[string]struct{}
}

func New(store prova.Store, grader Grader, eventos EventLog, now Clock) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:   store,
		grader:  grader,
		eventos: eventos,
		now:     now,
		emVoo:   map[string]struct{}{},
	}
}

// Corrigir runs one grading attempt for the submission. The em_analise
// transition is persisted before the upload starts; any failure after that
// point persists the rollback to pendente before the error is returned.
// At most one attempt per submission is in flight at a time.
func (t *Tracker) Corrigir(ctx context.Context, imagemID string, progresso grading.ProgressFunc) (prova.ImagemCapturada, error) {
	if !t.reservar(imagemID) {
		return prova.ImagemCapturada{}, ErrEmAnalise
	}
	defer t.liberar(imagemID)

	img, err := t.store.GetImagem(ctx, imagemID)
	if err != nil {
		return prova.ImagemCapturada{}, err
	}
	switch img.Status {
	case prova.StatusCorrigido:
		// Terminal; nothing to do.
		return img, nil
	case prova.StatusEmAnalise:
		return prova.ImagemCapturada{}, ErrEmAnalise
	}

	// Optimistic transition, persisted before anything slow happens.
	if err := t.transicao(ctx, &img, prova.StatusEmAnalise, nil, "CorrecaoIniciada"); err != nil {
		return prova.ImagemCapturada{}, err
	}

	p, err := t.store.GetProva(ctx, img.ProvaID)
	if err != nil {
		t.reverter(ctx, &img)
		return prova.ImagemCapturada{}, err
	}
	if !p.TemGabarito() {
		t.reverter(ctx, &img)
		return prova.ImagemCapturada{}, ErrSemGabarito
	}

	res, err := t.grader.Corrigir(ctx, img.Caminho(), p.GabaritoConcatenado(), progresso)
	if err != nil {
		t.reverter(ctx, &img)
		return prova.ImagemCapturada{}, err
	}

	r := prova.NovoResultado(res.Acertos, res.TotalQuestoes)
	if err := t.transicao(ctx, &img, prova.StatusCorrigido, &r, "CorrecaoConcluida"); err != nil {
		return prova.ImagemCapturada{}, err
	}
	return img, nil
}

func (t *Tracker) reservar(imagemID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.emVoo[imagemID]; ok {
		return false
	}
	t.emVoo[imagemID] = struct{}{}
	return true
}

func (t *Tracker) liberar(imagemID string) {
	t.mu.Lock()
	delete(t.emVoo, imagemID)
	t.mu.Unlock()
}

func (t *Tracker) transicao(ctx context.Context, img *prova.ImagemCapturada, status prova.Status, r *prova.Resultado, tipo string) error {
	if err := t.store.AtualizarStatus(ctx, img.ID, status, r); err != nil {
		return fmt.Errorf("persistir transição %s: %w", status, err)
	}
	img.Status = status
	if r != nil {
		img.Resultado = r
	}
	t.registrar(ctx, tipo, img, r)
	return nil
}

// reverter is the compensating em_analise → pendente transition. It is
// best-effort: the triggering failure is what the caller sees.
func (t *Tracker) reverter(ctx context.Context, img *prova.ImagemCapturada) {
	if err := t.store.AtualizarStatus(ctx, img.ID, prova.StatusPendente, nil); err != nil {
		// In-memory and persisted state now disagree; nothing more to do
		// here beyond logging the event.
		t.registrar(ctx, "CorrecaoReversaoFalhou", img, nil)
		return
	}
	img.Status = prova.StatusPendente
	t.registrar(ctx, "CorrecaoRevertida", img, nil)
}

func (t *Tracker) registrar(ctx context.Context, tipo string, img *prova.ImagemCapturada, r *prova.Resultado) {
	if t.eventos == nil {
		return
	}
	payload := map[string]any{
		"imagem_id": img.ID,
		"prova_id":  img.ProvaID,
		"status":    img.Status,
		"em":        t.now().Unix(),
	}
	if r != nil {
		payload["resultado"] = r
	}
	data, _ := json.Marshal(payload)
	_ = t.eventos.Append(ctx, tipo, img.ID, string(data))
}
