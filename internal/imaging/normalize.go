// Package imaging prepares captured answer sheets for the grading service:
// crop to the on-screen alignment frame, then re-encode to a canonical
// bounded-resolution JPEG.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder: gallery picks may be PNG
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxWidth  = 1200
	DefaultMaxHeight = 1600
	DefaultQuality   = 90
)

// Normalizer re-encodes arbitrary source images into the canonical form the
// grading service expects. The cache directory is created lazily.
type Normalizer struct {
	CacheDir  string
	MaxWidth  int
	MaxHeight int
	Quality   int
}

func NewNormalizer(cacheDir string) *Normalizer {
	return &Normalizer{
		CacheDir:  cacheDir,
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
	}
}

// NormalizarArquivo decodes srcPath and writes the canonical artifact,
// returning its path. Callers fall back to the original reference when an
// error is returned.
func (n *Normalizer) NormalizarArquivo(srcPath string) (string, error) {
	if suspeita(srcPath) {
		log.Printf("imaging: %s parece captura de tela ou export do WhatsApp; o reconhecimento pode falhar", filepath.Base(srcPath))
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("abrir imagem: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decodificar imagem: %w", err)
	}
	return n.Normalizar(img)
}

// Normalizar scales img to fit within MaxWidth×MaxHeight (never upscaling)
// and writes it as a JPEG named PROVA-OCR-<timestamp>.jpg under CacheDir.
func (n *Normalizer) Normalizar(img image.Image) (string, error) {
	if err := os.MkdirAll(n.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("criar diretório de cache: %w", err)
	}
	img = n.redimensionar(img)

	nome := fmt.Sprintf("PROVA-OCR-%d.jpg", time.Now().UnixMilli())
	destino := filepath.Join(n.CacheDir, nome)
	out, err := os.Create(destino)
	if err != nil {
		return "", fmt.Errorf("criar artefato: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: n.Quality}); err != nil {
		out.Close()
		os.Remove(destino)
		return "", fmt.Errorf("codificar jpeg: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return destino, nil
}

func (n *Normalizer) redimensionar(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= n.MaxWidth && h <= n.MaxHeight {
		return src
	}
	escala := float64(n.MaxWidth) / float64(w)
	if e := float64(n.MaxHeight) / float64(h); e < escala {
		escala = e
	}
	dw := int(float64(w) * escala)
	dh := int(float64(h) * escala)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func suspeita(path string) bool {
	nome := strings.ToLower(filepath.Base(path))
	return strings.Contains(nome, "screenshot") || strings.Contains(nome, "whatsapp")
}
