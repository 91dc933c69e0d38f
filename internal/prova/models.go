package prova

import (
	"fmt"
	"strings"
)

// Status is the lifecycle of a captured submission. Corrigido is terminal
// and always carries a Resultado.
type Status string

const (
	StatusPendente  Status = "pendente"
	StatusEmAnalise Status = "em_analise"
	StatusCorrigido Status = "corrigido"
)

func (s Status) Valido() bool {
	switch s {
	case StatusPendente, StatusEmAnalise, StatusCorrigido:
		return true
	}
	return false
}

// GabaritoTamanhoPadrao is the answer-key length a new prova starts with.
const GabaritoTamanhoPadrao = 10

// GabaritoAlfabeto is the set of accepted answer letters.
const GabaritoAlfabeto = "ABCDE"

// ValidarGabarito checks every letter against the fixed alphabet.
func ValidarGabarito(gabarito []string) error {
	if len(gabarito) == 0 {
		return fmt.Errorf("gabarito vazio")
	}
	for i, g := range gabarito {
		if len(g) != 1 || !strings.Contains(GabaritoAlfabeto, g) {
			return fmt.Errorf("questão %d: resposta %q fora do alfabeto %s", i+1, g, GabaritoAlfabeto)
		}
	}
	return nil
}

type Prova struct {
	ID       string   `json:"id"`
	Nome     string   `json:"nome"`
	Gabarito []string `json:"gabarito,omitempty"`
	// RemoteID is the gateway's numeric key once the prova has been pushed.
	RemoteID    int64 `json:"remote_id,omitempty"`
	DataCriacao int64 `json:"data_criacao"`
}

func (p Prova) TemGabarito() bool { return len(p.Gabarito) > 0 }

// GabaritoConcatenado is the wire form the grading service expects:
// letters joined with no separator.
func (p Prova) GabaritoConcatenado() string { return strings.Join(p.Gabarito, "") }

type Resultado struct {
	Acertos       int     `json:"acertos"`
	TotalQuestoes int     `json:"total_questoes"`
	Nota          float64 `json:"nota"`
}

// NovoResultado derives the 0-10 grade from the hit count.
func NovoResultado(acertos, totalQuestoes int) Resultado {
	r := Resultado{Acertos: acertos, TotalQuestoes: totalQuestoes}
	if totalQuestoes > 0 {
		r.Nota = float64(acertos) / float64(totalQuestoes) * 10
	}
	return r
}

type ImagemCapturada struct {
	ID        string `json:"id"`
	ProvaID   string `json:"prova_id"`
	NomeAluno string `json:"nome_aluno,omitempty"`
	// NomeProva is denormalized so listings don't need a join.
	NomeProva         string     `json:"nome_prova,omitempty"`
	ImagemOriginal    string     `json:"imagem_original"`
	ImagemNormalizada string     `json:"imagem_normalizada,omitempty"`
	Status            Status     `json:"status"`
	Resultado         *Resultado `json:"resultado,omitempty"`
	DataCriacao       int64      `json:"data_criacao"`
}

// Caminho is the image reference to submit: the normalized artifact, or the
// original as a degraded fallback when normalization failed.
func (i ImagemCapturada) Caminho() string {
	if i.ImagemNormalizada != "" {
		return i.ImagemNormalizada
	}
	return i.ImagemOriginal
}
