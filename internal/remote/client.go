// Package remote is the companion's client for the CRUD gateway. Writes to
// the gateway are best-effort mirrors of local state: a failure here never
// rolls anything back on-device.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Timeout applies to every gateway call.
const Timeout = 10 * time.Second

// APIError is the gateway's {error, details?} envelope plus the HTTP status.
type APIError struct {
	Status   int    `json:"-"`
	Mensagem string `json:"error"`
	Details  string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("gateway %d: %s (%s)", e.Status, e.Mensagem, e.Details)
	}
	return fmt.Sprintf("gateway %d: %s", e.Status, e.Mensagem)
}

// Prova is the gateway's view of an exam, keyed numerically.
type Prova struct {
	ID          int64    `json:"id"`
	Nome        string   `json:"nome"`
	Gabarito    []string `json:"gabarito,omitempty"`
	DataCriacao string   `json:"data_criacao,omitempty"`
}

// ResultadoAluno is one row of a salvar-resultados push.
type ResultadoAluno struct {
	NomeAluno string  `json:"nomeAluno"`
	Acertos   int     `json:"acertos"`
	Total     int     `json:"total"`
	Nota      float64 `json:"nota"`
}

type Client struct {
	BaseURL   string
	Matricula string
	HTTP      *http.Client
}

func New(baseURL, matricula string) *Client {
	return &Client{
		BaseURL:   baseURL,
		Matricula: matricula,
		HTTP:      &http.Client{Timeout: Timeout},
	}
}

func (c *Client) CriarProva(ctx context.Context, nome string, gabarito []string) (Prova, error) {
	var out struct {
		Prova Prova `json:"prova"`
	}
	err := c.do(ctx, http.MethodPost, "/api/provas/criar-prova",
		map[string]any{"nome": nome, "gabarito": gabarito}, &out)
	return out.Prova, err
}

func (c *Client) AtualizarGabarito(ctx context.Context, provaID int64, nome string, gabarito []string) (Prova, error) {
	var out struct {
		Prova Prova `json:"prova"`
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/provas/atualizar-gabarito/%d", provaID),
		map[string]any{"nome": nome, "gabarito": gabarito}, &out)
	return out.Prova, err
}

func (c *Client) DeletarProva(ctx context.Context, provaID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/provas/deletar-prova/%d", provaID), nil, nil)
}

// SalvarResultados replaces every prior result for the prova on the server.
func (c *Client) SalvarResultados(ctx context.Context, provaID int64, resultados []ResultadoAluno) (int, error) {
	var out struct {
		QuantidadeSalvos int `json:"quantidadeSalvos"`
	}
	err := c.do(ctx, http.MethodPost, "/api/provas/salvar-resultados",
		map[string]any{"provaId": provaID, "resultados": resultados}, &out)
	return out.QuantidadeSalvos, err
}

// UltimoSalvamento returns nil when the prova has no saved results yet.
func (c *Client) UltimoSalvamento(ctx context.Context, provaID int64) (*time.Time, error) {
	var out struct {
		UltimoSalvamento *string `json:"ultimoSalvamento"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/provas/ultimo-salvamento/%d", provaID), nil, &out); err != nil {
		return nil, err
	}
	if out.UltimoSalvamento == nil {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, *out.UltimoSalvamento)
	if err != nil {
		return nil, fmt.Errorf("ultimoSalvamento inválido: %w", err)
	}
	return &ts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("matricula", c.Matricula)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		apiErr := &APIError{Status: res.StatusCode, Mensagem: res.Status}
		_ = json.NewDecoder(res.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
