// Package grading talks to the external OCR/grading service. The service's
// scoring is opaque; only the request/response contract lives here.
package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
)

// UploadFilename is the standardized name the grading service expects for
// the image part.
const UploadFilename = "PROVA-OCR.jpg"

// Resultado is the grading service's response body.
type Resultado struct {
	Acertos             int      `json:"acertos"`
	TotalQuestoes       int      `json:"total_questoes"`
	RespostasDetectadas []string `json:"respostas_detectadas,omitempty"`
}

// Incompleto reports whether the service detected fewer answers than the
// exam has questions, so callers can warn about image quality.
func (r Resultado) Incompleto() bool {
	return r.RespostasDetectadas != nil && len(r.RespostasDetectadas) < r.TotalQuestoes
}

// ErroRede: the request never produced a response.
type ErroRede struct{ Causa error }

func (e *ErroRede) Error() string { return fmt.Sprintf("falha de rede: %v", e.Causa) }
func (e *ErroRede) Unwrap() error { return e.Causa }

// ErroHTTP: a non-200 response, with status and raw body.
type ErroHTTP struct {
	Status     int
	StatusText string
	Corpo      string
}

func (e *ErroHTTP) Error() string { return fmt.Sprintf("erro %d: %s", e.Status, e.StatusText) }

// ErroParse: a 200 whose body is not the expected JSON; carries the raw body.
type ErroParse struct {
	Corpo string
	Causa error
}

func (e *ErroParse) Error() string { return fmt.Sprintf("resposta inválida: %v", e.Causa) }
func (e *ErroParse) Unwrap() error { return e.Causa }

// ProgressFunc observes upload progress. Calls are non-decreasing in
// enviados and stop strictly before Corrigir returns.
type ProgressFunc func(enviados, total int64)

// Client submits normalized images for grading. No request timeout is set;
// cancellation is the caller's context.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTP: &http.Client{}}
}

// Corrigir uploads the image and the concatenated answer-key letters as a
// multipart form and parses the JSON result. Exactly one terminal outcome
// is produced per call: a Resultado, or one of *ErroRede, *ErroHTTP,
// *ErroParse.
func (c *Client) Corrigir(ctx context.Context, caminhoImagem, gabarito string, progresso ProgressFunc) (Resultado, error) {
	corpo, contentType, err := montarCorpo(caminhoImagem, gabarito)
	if err != nil {
		return Resultado{}, err
	}
	total := int64(corpo.Len())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &leitorProgresso{
		r:     corpo,
		total: total,
		fn:    progresso,
	})
	if err != nil {
		return Resultado{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = total

	res, err := c.HTTP.Do(req)
	if err != nil {
		return Resultado{}, &ErroRede{Causa: err}
	}
	defer res.Body.Close()
	bruto, err := io.ReadAll(res.Body)
	if err != nil {
		return Resultado{}, &ErroRede{Causa: err}
	}
	if res.StatusCode != http.StatusOK {
		return Resultado{}, &ErroHTTP{Status: res.StatusCode, StatusText: res.Status, Corpo: string(bruto)}
	}
	var out Resultado
	if err := json.Unmarshal(bruto, &out); err != nil {
		return Resultado{}, &ErroParse{Corpo: string(bruto), Causa: err}
	}
	return out, nil
}

func montarCorpo(caminhoImagem, gabarito string) (*bytes.Buffer, string, error) {
	f, err := os.Open(caminhoImagem)
	if err != nil {
		return nil, "", fmt.Errorf("abrir imagem: %w", err)
	}
	defer f.Close()

	var corpo bytes.Buffer
	mw := multipart.NewWriter(&corpo)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imagem"; filename=%q`, UploadFilename))
	h.Set("Content-Type", "image/jpeg")
	parte, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(parte, f); err != nil {
		return nil, "", fmt.Errorf("ler imagem: %w", err)
	}
	if err := mw.WriteField("gabarito", gabarito); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &corpo, mw.FormDataContentType(), nil
}

// leitorProgresso reports bytes consumed by the transport. The transport
// only reads while the request is in flight, so no callback can fire after
// the terminal outcome.
type leitorProgresso struct {
	r        io.Reader
	enviados int64
	total    int64
	fn       ProgressFunc
}

func (l *leitorProgresso) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 {
		l.enviados += int64(n)
		if l.fn != nil {
			l.fn(l.enviados, l.total)
		}
	}
	return n, err
}
