package grading_test

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/provafacil/provafacil/internal/grading"
)

func imagemDeTeste(t *testing.T) string {
	t.Helper()
	caminho := filepath.Join(t.TempDir(), "PROVA-OCR-1.jpg")
	f, err := os.Create(caminho)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, 20, 20)), nil); err != nil {
		t.Fatal(err)
	}
	return caminho
}

func TestCorrigir(t *testing.T) {
	var gotGabarito, gotFilename, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotGabarito = r.FormValue("gabarito")
		if _, fh, err := r.FormFile("imagem"); err == nil {
			gotFilename = fh.Filename
			gotContentType = fh.Header.Get("Content-Type")
		} else {
			t.Errorf("campo imagem: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"acertos":7,"total_questoes":10,"respostas_detectadas":["A","B","C","D","E","A","B","C","D","E"]}`))
	}))
	defer srv.Close()

	c := grading.NewClient(srv.URL)
	res, err := c.Corrigir(context.Background(), imagemDeTeste(t), "ABCDEABCDE", nil)
	if err != nil {
		t.Fatalf("corrigir: %v", err)
	}
	if res.Acertos != 7 || res.TotalQuestoes != 10 {
		t.Fatalf("resultado = %+v", res)
	}
	if res.Incompleto() {
		t.Fatal("10 answers for 10 questions flagged incomplete")
	}
	if gotGabarito != "ABCDEABCDE" {
		t.Fatalf("gabarito enviado = %q", gotGabarito)
	}
	if gotFilename != grading.UploadFilename {
		t.Fatalf("filename = %q, want %q", gotFilename, grading.UploadFilename)
	}
	if gotContentType != "image/jpeg" {
		t.Fatalf("content-type da parte = %q", gotContentType)
	}
}

func TestCorrigirProgresso(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"acertos":5,"total_questoes":10}`))
	}))
	defer srv.Close()

	var chamadas []int64
	var total int64
	c := grading.NewClient(srv.URL)
	_, err := c.Corrigir(context.Background(), imagemDeTeste(t), "AAAAA", func(enviados, tot int64) {
		chamadas = append(chamadas, enviados)
		total = tot
	})
	if err != nil {
		t.Fatalf("corrigir: %v", err)
	}
	if len(chamadas) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(chamadas); i++ {
		if chamadas[i] < chamadas[i-1] {
			t.Fatalf("progresso regrediu: %v", chamadas)
		}
	}
	if ultimo := chamadas[len(chamadas)-1]; ultimo != total {
		t.Fatalf("último progresso %d != total %d", ultimo, total)
	}
}

func TestCorrigirErroHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gabarito ausente", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := grading.NewClient(srv.URL)
	_, err := c.Corrigir(context.Background(), imagemDeTeste(t), "", nil)
	var httpErr *grading.ErroHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("want *ErroHTTP, got %T: %v", err, err)
	}
	if httpErr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", httpErr.Status)
	}
	if httpErr.Corpo == "" {
		t.Fatal("corpo not captured")
	}
}

func TestCorrigirErroParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy error</html>"))
	}))
	defer srv.Close()

	c := grading.NewClient(srv.URL)
	_, err := c.Corrigir(context.Background(), imagemDeTeste(t), "AAAAA", nil)
	var parseErr *grading.ErroParse
	if !errors.As(err, &parseErr) {
		t.Fatalf("want *ErroParse, got %T: %v", err, err)
	}
	if parseErr.Corpo != "<html>proxy error</html>" {
		t.Fatalf("corpo = %q", parseErr.Corpo)
	}
}

func TestCorrigirErroRede(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := grading.NewClient(srv.URL)
	_, err := c.Corrigir(context.Background(), imagemDeTeste(t), "AAAAA", nil)
	var redeErr *grading.ErroRede
	if !errors.As(err, &redeErr) {
		t.Fatalf("want *ErroRede, got %T: %v", err, err)
	}
}

func TestCorrigirImagemInexistente(t *testing.T) {
	c := grading.NewClient("http://localhost:0")
	if _, err := c.Corrigir(context.Background(), "/nao/existe.jpg", "AAAAA", nil); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestIncompleto(t *testing.T) {
	r := grading.Resultado{Acertos: 3, TotalQuestoes: 10, RespostasDetectadas: []string{"A", "B", "C"}}
	if !r.Incompleto() {
		t.Fatal("3 of 10 detected should be incomplete")
	}
	// Services that omit the field are never flagged.
	r = grading.Resultado{Acertos: 3, TotalQuestoes: 10}
	if r.Incompleto() {
		t.Fatal("absent respostas_detectadas flagged incomplete")
	}
}
