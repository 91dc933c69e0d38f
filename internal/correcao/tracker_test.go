package correcao_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/provafacil/provafacil/internal/correcao"
	"github.com/provafacil/provafacil/internal/grading"
	"github.com/provafacil/provafacil/internal/prova"
)

// fakeStore is an in-memory prova.Store that records every status
// transition in order.
type fakeStore struct {
	mu         sync.Mutex
	provas     map[string]prova.Prova
	imagens    map[string]prova.ImagemCapturada
	transicoes []prova.Status
	falhaEm    prova.Status // AtualizarStatus fails when moving to this status
}

func novoFakeStore() *fakeStore {
	return &fakeStore{
		provas:  map[string]prova.Prova{},
		imagens: map[string]prova.ImagemCapturada{},
	}
}

func (s *fakeStore) PutProva(_ context.Context, p prova.Prova) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provas[p.ID] = p
	return nil
}

func (s *fakeStore) GetProva(_ context.Context, id string) (prova.Prova, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.provas[id]
	if !ok {
		return prova.Prova{}, prova.ErrProvaNaoEncontrada
	}
	return p, nil
}

func (s *fakeStore) ListProvas(context.Context) ([]prova.Prova, error)            { return nil, nil }
func (s *fakeStore) ListProvasComGabarito(context.Context) ([]prova.Prova, error) { return nil, nil }

func (s *fakeStore) ApagarProva(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.provas, id)
	return nil
}

func (s *fakeStore) PutImagem(_ context.Context, img prova.ImagemCapturada) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imagens[img.ID] = img
	return nil
}

func (s *fakeStore) GetImagem(_ context.Context, id string) (prova.ImagemCapturada, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.imagens[id]
	if !ok {
		return prova.ImagemCapturada{}, prova.ErrImagemNaoEncontrada
	}
	return img, nil
}

func (s *fakeStore) ListImagens(context.Context, string) ([]prova.ImagemCapturada, error) {
	return nil, nil
}

func (s *fakeStore) AtualizarStatus(_ context.Context, id string, status prova.Status, r *prova.Resultado) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.falhaEm != "" && status == s.falhaEm {
		return errors.New("disco cheio")
	}
	img, ok := s.imagens[id]
	if !ok {
		return prova.ErrImagemNaoEncontrada
	}
	img.Status = status
	img.Resultado = r
	s.imagens[id] = img
	s.transicoes = append(s.transicoes, status)
	return nil
}

func (s *fakeStore) ApagarImagens(context.Context) error { return nil }

func (s *fakeStore) imagem(t *testing.T, id string) prova.ImagemCapturada {
	t.Helper()
	img, err := s.GetImagem(context.Background(), id)
	if err != nil {
		t.Fatalf("imagem %s: %v", id, err)
	}
	return img
}

// fakeGrader returns a canned result or error. With travar set it blocks
// until destravar is closed, signalling iniciado first.
type fakeGrader struct {
	res grading.Resultado
	err error

	travar    bool
	iniciado  chan struct{}
	destravar chan struct{}

	mu       sync.Mutex
	chamadas int
}

func (g *fakeGrader) Corrigir(_ context.Context, _, _ string, _ grading.ProgressFunc) (grading.Resultado, error) {
	g.mu.Lock()
	g.chamadas++
	g.mu.Unlock()
	if g.travar {
		close(g.iniciado)
		<-g.destravar
	}
	return g.res, g.err
}

func (g *fakeGrader) vezes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chamadas
}

type fakeEventos struct {
	mu    sync.Mutex
	tipos []string
}

func (e *fakeEventos) Append(_ context.Context, tipo, _, _ string) error {
	e.mu.Lock()
	e.tipos = append(e.tipos, tipo)
	e.mu.Unlock()
	return nil
}

func semear(store *fakeStore, comGabarito bool) {
	p := prova.Prova{ID: "p1", Nome: "Prova"}
	if comGabarito {
		p.Gabarito = strings.Split("ABCDEABCDE", "")
	}
	store.provas[p.ID] = p
	store.imagens["i1"] = prova.ImagemCapturada{
		ID:             "i1",
		ProvaID:        "p1",
		ImagemOriginal: "/tmp/foto.jpg",
		Status:         prova.StatusPendente,
	}
}

func TestCorrigirSucesso(t *testing.T) {
	store := novoFakeStore()
	semear(store, true)
	grader := &fakeGrader{res: grading.Resultado{Acertos: 7, TotalQuestoes: 10}}
	eventos := &fakeEventos{}
	tracker := correcao.New(store, grader, eventos, func() time.Time { return time.Unix(1700000000, 0) })

	img, err := tracker.Corrigir(context.Background(), "i1", nil)
	if err != nil {
		t.Fatalf("corrigir: %v", err)
	}
	if img.Status != prova.StatusCorrigido {
		t.Fatalf("status = %s", img.Status)
	}
	if img.Resultado == nil || img.Resultado.Nota != 7.0 {
		t.Fatalf("resultado = %+v", img.Resultado)
	}

	want := []prova.Status{prova.StatusEmAnalise, prova.StatusCorrigido}
	if len(store.transicoes) != 2 || store.transicoes[0] != want[0] || store.transicoes[1] != want[1] {
		t.Fatalf("transições = %v", store.transicoes)
	}
	if len(eventos.tipos) != 2 || eventos.tipos[0] != "CorrecaoIniciada" || eventos.tipos[1] != "CorrecaoConcluida" {
		t.Fatalf("eventos = %v", eventos.tipos)
	}
}

func TestCorrigirFalhaReverte(t *testing.T) {
	store := novoFakeStore()
	semear(store, true)
	grader := &fakeGrader{err: &grading.ErroHTTP{Status: 500, StatusText: "500 Internal Server Error"}}
	eventos := &fakeEventos{}
	tracker := correcao.New(store, grader, eventos, nil)

	_, err := tracker.Corrigir(context.Background(), "i1", nil)
	var httpErr *grading.ErroHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("want *ErroHTTP, got %v", err)
	}

	img := store.imagem(t, "i1")
	if img.Status != prova.StatusPendente {
		t.Fatalf("status after failure = %s", img.Status)
	}
	if img.Resultado != nil {
		t.Fatalf("resultado persisted on failure: %+v", img.Resultado)
	}
	want := []prova.Status{prova.StatusEmAnalise, prova.StatusPendente}
	if len(store.transicoes) != 2 || store.transicoes[0] != want[0] || store.transicoes[1] != want[1] {
		t.Fatalf("transições = %v", store.transicoes)
	}
	if eventos.tipos[len(eventos.tipos)-1] != "CorrecaoRevertida" {
		t.Fatalf("eventos = %v", eventos.tipos)
	}
}

func TestCorrigirSemGabarito(t *testing.T) {
	store := novoFakeStore()
	semear(store, false)
	grader := &fakeGrader{}
	tracker := correcao.New(store, grader, nil, nil)

	_, err := tracker.Corrigir(context.Background(), "i1", nil)
	if !errors.Is(err, correcao.ErrSemGabarito) {
		t.Fatalf("want ErrSemGabarito, got %v", err)
	}
	if grader.vezes() != 0 {
		t.Fatal("grader called without an answer key")
	}
	if img := store.imagem(t, "i1"); img.Status != prova.StatusPendente {
		t.Fatalf("status = %s", img.Status)
	}
}

func TestCorrigirProvaAusente(t *testing.T) {
	store := novoFakeStore()
	semear(store, true)
	delete(store.provas, "p1")
	tracker := correcao.New(store, &fakeGrader{}, nil, nil)

	_, err := tracker.Corrigir(context.Background(), "i1", nil)
	if !errors.Is(err, prova.ErrProvaNaoEncontrada) {
		t.Fatalf("want ErrProvaNaoEncontrada, got %v", err)
	}
	if img := store.imagem(t, "i1"); img.Status != prova.StatusPendente {
		t.Fatalf("status = %s", img.Status)
	}
}

func TestCorrigirIdempotenteAposTerminal(t *testing.T) {
	store := novoFakeStore()
	semear(store, true)
	r := prova.NovoResultado(9, 10)
	img := store.imagens["i1"]
	img.Status = prova.StatusCorrigido
	img.Resultado = &r
	store.imagens["i1"] = img

	grader := &fakeGrader{}
	tracker := correcao.New(store, grader, nil, nil)

	got, err := tracker.Corrigir(context.Background(), "i1", nil)
	if err != nil {
		t.Fatalf("corrigir: %v", err)
	}
	if got.Resultado == nil || got.Resultado.Nota != 9.0 {
		t.Fatalf("resultado = %+v", got.Resultado)
	}
	if grader.vezes() != 0 {
		t.Fatal("terminal submission re-graded")
	}
	if len(store.transicoes) != 0 {
		t.Fatalf("transições = %v", store.transicoes)
	}
}

func TestCorrigirEmAnalisePersistido(t *testing.T) {
	store := novoFakeStore()
	semear(store, true)
	img := store.imagens["i1"]
	img.Status = prova.StatusEmAnalise
	store.imagens["i1"] = img

	tracker := correcao.New(store, &fakeGrader{}, nil, nil)
	if _, err := tracker.Corrigir(context.Background(), "i1", nil); !errors.Is(err, correcao.ErrEmAnalise) {
		t.Fatalf("want ErrEmAnalise, got %v", err)
	}
}

func TestCorrigirTravaEmVoo(t *testing.T) {
	store := novoFakeStore()
	semear(store, true)
	grader := &fakeGrader{
		res:       grading.Resultado{Acertos: 10, TotalQuestoes: 10},
		travar:    true,
		iniciado:  make(chan struct{}),
		destravar: make(chan struct{}),
	}
	tracker := correcao.New(store, grader, nil, nil)

	feito := make(chan error, 1)
	go func() {
		_, err := tracker.Corrigir(context.Background(), "i1", nil)
		feito <- err
	}()
	<-grader.iniciado

	// Same submission, while the first attempt is mid-upload.
	if _, err := tracker.Corrigir(context.Background(), "i1", nil); !errors.Is(err, correcao.ErrEmAnalise) {
		t.Fatalf("want ErrEmAnalise, got %v", err)
	}

	close(grader.destravar)
	if err := <-feito; err != nil {
		t.Fatalf("first attempt failed: %v", err)
	}
	if img := store.imagem(t, "i1"); img.Status != prova.StatusCorrigido {
		t.Fatalf("status = %s", img.Status)
	}
	if grader.vezes() != 1 {
		t.Fatalf("grader called %d times", grader.vezes())
	}
}

func TestCorrigirFalhaAoPersistirConclusao(t *testing.T) {
	store := novoFakeStore()
	semear(store, true)
	store.falhaEm = prova.StatusCorrigido
	grader := &fakeGrader{res: grading.Resultado{Acertos: 7, TotalQuestoes: 10}}
	tracker := correcao.New(store, grader, nil, nil)

	if _, err := tracker.Corrigir(context.Background(), "i1", nil); err == nil {
		t.Fatal("expected persistence error")
	}
}
