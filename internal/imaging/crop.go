package imaging

import (
	"image"
	"image/draw"
)

// Moldura is the on-screen alignment guide: a rectangle in screen units,
// positioned relative to a known viewport width.
type Moldura struct {
	LarguraQuadro float64
	AlturaQuadro  float64
	LarguraTela   float64
}

// RectFor maps the guide onto the photo's native resolution, assuming the
// frame is centered on the photo's center. The returned rectangle is always
// contained in [0,fotoW]×[0,fotoH]; degenerate frames still yield a valid
// (possibly tiny) rectangle.
func (m Moldura) RectFor(fotoW, fotoH int) image.Rectangle {
	if m.LarguraQuadro <= 0 || m.LarguraTela <= 0 || fotoW <= 0 || fotoH <= 0 {
		return image.Rectangle{}
	}
	escala := m.LarguraQuadro / m.LarguraTela
	larg := escala * float64(fotoW)
	alt := larg * (m.AlturaQuadro / m.LarguraQuadro)

	w := clamp(int(larg), 0, fotoW)
	h := clamp(int(alt), 0, fotoH)
	x := clamp((fotoW-w)/2, 0, fotoW-w)
	y := clamp((fotoH-h)/2, 0, fotoH-h)
	return image.Rect(x, y, x+w, y+h)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Recortar extracts r from img. Decoded stdlib images all implement
// SubImage; anything else is copied.
func Recortar(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// RecortarComMoldura is the camera-path pipeline step: compute the frame's
// pixel rectangle for this photo and extract it.
func RecortarComMoldura(img image.Image, m Moldura) image.Image {
	b := img.Bounds()
	return Recortar(img, m.RectFor(b.Dx(), b.Dy()).Add(b.Min))
}
