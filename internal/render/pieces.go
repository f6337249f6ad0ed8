package render

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// 45x45 viewBox silhouettes; fill and stroke are substituted per color.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="13" r="6"/>` +
		`<path d="M16 21 L29 21 L32 33 L13 33 Z"/>` +
		`<rect x="10" y="33" width="25" height="6" rx="2"/>`,
	nchess.Rook: `<path d="M11 9 L15 9 L15 13 L20 13 L20 9 L25 9 L25 13 L30 13 L30 9 L34 9 L34 16 L30 19 L30 31 L34 33 L34 39 L11 39 L11 33 L15 31 L15 19 L11 16 Z"/>`,
	nchess.Knight: `<path d="M14 39 L33 39 L33 34 C33 24 31 15 24 10 L22 6 L19 10 L14 15 L10 23 L13 26 L18 23 L21 22 C19 27 15 30 14 34 Z"/>` +
		`<circle cx="20" cy="14" r="1.5"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="7" r="2.5"/>` +
		`<ellipse cx="22.5" cy="19" rx="7" ry="9"/>` +
		`<path d="M17 27 L28 27 L30 33 L15 33 Z"/>` +
		`<rect x="10" y="33" width="25" height="6" rx="2"/>`,
	nchess.Queen: `<path d="M9 14 L14 28 L17 12 L22.5 27 L28 12 L31 28 L36 14 L33 33 L12 33 Z"/>` +
		`<circle cx="9" cy="12" r="2.5"/><circle cx="17" cy="10" r="2.5"/><circle cx="28" cy="10" r="2.5"/><circle cx="36" cy="12" r="2.5"/>` +
		`<rect x="10" y="33" width="25" height="6" rx="2"/>`,
	nchess.King: `<path d="M21 3 L24 3 L24 7 L28 7 L28 10 L24 10 L24 14 L21 14 L21 10 L17 10 L17 7 L21 7 Z"/>` +
		`<path d="M10 20 C10 14 18 13 22.5 18 C27 13 35 14 35 20 C35 26 30 29 30 33 L15 33 C15 29 10 26 10 20 Z"/>` +
		`<rect x="10" y="33" width="25" height="6" rx="2"/>`,
}

// sprites caches rasterized pieces per (piece, size); entries are never evicted.
var sprites sync.Map

type spriteKey struct {
	piece nchess.Piece
	size  int
}

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no shape for piece %v", piece)
	}
	fill, stroke := "#f4f1ea", "#1f1f1f"
	if piece.Color() == nchess.Black {
		fill, stroke = "#262421", "#e8e4da"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&b, `<g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">%s</g></svg>`, fill, stroke, shape)
	return b.Bytes(), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := spriteKey{piece, size}
	if img, ok := sprites.Load(key); ok {
		return img.(image.Image), nil
	}
	img, err := rasterizePiece(piece, size)
	if err != nil {
		return nil, err
	}
	cached, _ := sprites.LoadOrStore(key, img)
	return cached.(image.Image), nil
}

func rasterizePiece(piece nchess.Piece, size int) (*image.RGBA, error) {
	data, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	dasher := rasterx.NewDasher(size, size, rasterx.NewScannerGV(size, size, img, img.Bounds()))
	icon.Draw(dasher, 1.0)
	return img, nil
}
