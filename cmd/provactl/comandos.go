package main

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/provafacil/provafacil/internal/correcao"
	"github.com/provafacil/provafacil/internal/grading"
	"github.com/provafacil/provafacil/internal/imaging"
	"github.com/provafacil/provafacil/internal/prova"
	"github.com/provafacil/provafacil/internal/remote"
)

func cmdProva(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "prova", Short: "Gerencia provas locais"}

	criar := &cobra.Command{
		Use:   "criar <nome>",
		Short: "Cria uma nova prova",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nome := strings.TrimSpace(args[0])
			if nome == "" {
				return fmt.Errorf("o nome da prova não pode estar vazio")
			}
			p := prova.Prova{ID: uuid.NewString(), Nome: nome}
			if err := a.store.PutProva(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Printf("prova criada: %s (%s)\n", p.Nome, p.ID)
			return nil
		},
	}

	var comGabarito bool
	listar := &cobra.Command{
		Use:   "listar",
		Short: "Lista as provas cadastradas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ps  []prova.Prova
				err error
			)
			if comGabarito {
				ps, err = a.store.ListProvasComGabarito(cmd.Context())
			} else {
				ps, err = a.store.ListProvas(cmd.Context())
			}
			if err != nil {
				return err
			}
			for _, p := range ps {
				marca := "sem gabarito"
				if p.TemGabarito() {
					marca = fmt.Sprintf("%d questões", len(p.Gabarito))
				}
				fmt.Printf("%s  %-30s %s\n", p.ID, p.Nome, marca)
			}
			return nil
		},
	}
	listar.Flags().BoolVar(&comGabarito, "com-gabarito", false, "apenas provas prontas para captura")

	renomear := &cobra.Command{
		Use:   "renomear <provaID> <nome>",
		Short: "Renomeia uma prova",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.GetProva(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			nome := strings.TrimSpace(args[1])
			if nome == "" {
				return fmt.Errorf("o nome da prova não pode estar vazio")
			}
			p.Nome = nome
			return a.store.PutProva(cmd.Context(), p)
		},
	}

	apagar := &cobra.Command{
		Use:   "apagar <provaID>",
		Short: "Exclui uma prova e suas imagens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.ApagarProva(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(criar, listar, renomear, apagar)
	return cmd
}

func cmdGabarito(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "gabarito", Short: "Gerencia gabaritos"}
	definir := &cobra.Command{
		Use:   "definir <provaID> <letras>",
		Short: "Define o gabarito da prova (ex.: ABCDEABCDE)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.GetProva(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			letras := strings.Split(strings.ToUpper(strings.TrimSpace(args[1])), "")
			if err := prova.ValidarGabarito(letras); err != nil {
				return err
			}
			p.Gabarito = letras
			if err := a.store.PutProva(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Printf("gabarito de %s definido: %s (%d questões)\n", p.Nome, strings.Join(letras, ""), len(letras))
			return nil
		},
	}
	cmd.AddCommand(definir)
	return cmd
}

func cmdCapturar(a *app) *cobra.Command {
	var (
		aluno    string
		frame    []float64
		viewport float64
	)
	cmd := &cobra.Command{
		Use:   "capturar <provaID> <foto>",
		Short: "Importa uma foto de prova: recorte opcional, normalização e registro pendente",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.store.GetProva(ctx, args[0])
			if err != nil {
				return err
			}
			if !p.TemGabarito() {
				return correcao.ErrSemGabarito
			}
			foto := args[1]

			norm := imaging.NewNormalizer(a.cfg.CacheDir)
			norm.MaxWidth, norm.MaxHeight, norm.Quality = a.cfg.MaxWidth, a.cfg.MaxHeight, a.cfg.JPEGQuality

			var caminhoNorm string
			if len(frame) == 2 {
				// Camera path: crop to the alignment frame first.
				f, err := os.Open(foto)
				if err != nil {
					return err
				}
				img, _, err := image.Decode(f)
				f.Close()
				if err != nil {
					return err
				}
				m := imaging.Moldura{LarguraQuadro: frame[0], AlturaQuadro: frame[1], LarguraTela: viewport}
				caminhoNorm, err = norm.Normalizar(imaging.RecortarComMoldura(img, m))
				if err != nil {
					fmt.Fprintf(os.Stderr, "aviso: normalização falhou (%v); usando a imagem original\n", err)
					caminhoNorm = ""
				}
			} else {
				var err error
				caminhoNorm, err = norm.NormalizarArquivo(foto)
				if err != nil {
					fmt.Fprintf(os.Stderr, "aviso: normalização falhou (%v); usando a imagem original\n", err)
					caminhoNorm = ""
				}
			}

			img := prova.ImagemCapturada{
				ID:                uuid.NewString(),
				ProvaID:           p.ID,
				NomeAluno:         aluno,
				NomeProva:         p.Nome,
				ImagemOriginal:    foto,
				ImagemNormalizada: caminhoNorm,
				Status:            prova.StatusPendente,
			}
			if err := a.store.PutImagem(ctx, img); err != nil {
				return err
			}
			fmt.Printf("imagem capturada: %s (pendente)\n", img.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&aluno, "aluno", "", "nome do aluno")
	cmd.Flags().Float64SliceVar(&frame, "frame", nil, "moldura de alinhamento LxA em unidades de tela (ex.: 300,420)")
	cmd.Flags().Float64Var(&viewport, "viewport", 360, "largura da tela em unidades de tela")
	return cmd
}

func cmdCorrigir(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "corrigir <imagemID>",
		Short: "Envia a imagem para o serviço de correção",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr := correcao.New(a.store, grading.NewClient(a.cfg.GradingURL), a.eventos, nil)
			img, err := tr.Corrigir(cmd.Context(), args[0], func(enviados, total int64) {
				if total > 0 {
					fmt.Printf("\rEnviando... %d%%", enviados*100/total)
				}
			})
			fmt.Println()
			if err != nil {
				return err
			}
			r := img.Resultado
			fmt.Printf("corrigido: nota %.1f (%d/%d acertos)\n", r.Nota, r.Acertos, r.TotalQuestoes)
			return nil
		},
	}
}

func cmdImagens(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "imagens [provaID]",
		Short: "Lista as imagens capturadas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provaID := ""
			if len(args) == 1 {
				provaID = args[0]
			}
			imgs, err := a.store.ListImagens(cmd.Context(), provaID)
			if err != nil {
				return err
			}
			for _, img := range imgs {
				linha := fmt.Sprintf("%s  %-20s %-10s", img.ID, img.NomeProva, img.Status)
				if img.Resultado != nil {
					linha += fmt.Sprintf("  nota %.1f (%d/%d)", img.Resultado.Nota, img.Resultado.Acertos, img.Resultado.TotalQuestoes)
				}
				fmt.Println(linha)
			}
			return nil
		},
	}
}

func cmdSincronizar(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sincronizar <provaID>",
		Short: "Espelha a prova e os resultados corrigidos no gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc := remote.New(a.cfg.GatewayURL, a.cfg.Matricula)
			p, err := a.store.GetProva(ctx, args[0])
			if err != nil {
				return err
			}
			if p.RemoteID == 0 {
				rp, err := rc.CriarProva(ctx, p.Nome, p.Gabarito)
				if err != nil {
					return err
				}
				p.RemoteID = rp.ID
				if err := a.store.PutProva(ctx, p); err != nil {
					return err
				}
			} else if p.TemGabarito() {
				if _, err := rc.AtualizarGabarito(ctx, p.RemoteID, p.Nome, p.Gabarito); err != nil {
					return err
				}
			}

			imgs, err := a.store.ListImagens(ctx, p.ID)
			if err != nil {
				return err
			}
			var rs []remote.ResultadoAluno
			for _, img := range imgs {
				if img.Status != prova.StatusCorrigido || img.Resultado == nil {
					continue
				}
				rs = append(rs, remote.ResultadoAluno{
					NomeAluno: img.NomeAluno,
					Acertos:   img.Resultado.Acertos,
					Total:     img.Resultado.TotalQuestoes,
					Nota:      img.Resultado.Nota,
				})
			}
			if len(rs) > 0 {
				n, err := rc.SalvarResultados(ctx, p.RemoteID, rs)
				if err != nil {
					return err
				}
				fmt.Printf("%d resultado(s) enviados\n", n)
			}
			if ts, err := rc.UltimoSalvamento(ctx, p.RemoteID); err == nil && ts != nil {
				fmt.Printf("último salvamento: %s\n", ts.Local().Format("02/01/2006 15:04"))
			}
			return nil
		},
	}
}

func cmdLimpar(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "limpar",
		Short: "Remove todas as imagens capturadas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.ApagarImagens(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("todas as imagens foram removidas")
			return nil
		},
	}
}
