package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-robot-bridge/internal/storage"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
)

func TestRenderWorkspaceProducesPNG(t *testing.T) {
	var grid storage.Grid
	grid.BlackCapture[0][0] = true
	grid.WhiteQueens[0] = true
	path := []workspace.Square{
		workspace.MustParseSquare("d5"),
		workspace.MustParseSquare("l1"),
		workspace.MustParseSquare("e4"),
		workspace.MustParseSquare("d5"),
	}

	out, err := NewWorkspaceRenderer().RenderWorkspace(context.Background(), nchess.NewGame().Position(), grid, path)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantW := margin*2 + len(columnOrder)*squareSize + gutter*4
	if img.Bounds().Dx() != wantW || img.Bounds().Dy() != margin*2+8*squareSize {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
}

func TestRenderWorkspaceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewWorkspaceRenderer().RenderWorkspace(ctx, nchess.NewGame().Position(), storage.Grid{}, nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestCellsDoNotOverlap(t *testing.T) {
	seen := map[int]workspace.Column{}
	for _, col := range columnOrder {
		x := columnX(col)
		if prev, ok := seen[x]; ok {
			t.Fatalf("%s and %s share x=%d", prev, col, x)
		}
		seen[x] = col
	}
	for i := 1; i < len(columnOrder); i++ {
		if columnX(columnOrder[i]) < columnX(columnOrder[i-1])+squareSize {
			t.Fatalf("column %s overlaps %s", columnOrder[i], columnOrder[i-1])
		}
	}
}

func TestPieceSVGParses(t *testing.T) {
	for _, p := range []nchess.Piece{nchess.WhitePawn, nchess.BlackKnight, nchess.WhiteQueen, nchess.BlackKing, nchess.WhiteRook, nchess.BlackBishop} {
		if _, err := renderPieceImage(p, 32); err != nil {
			t.Fatalf("%v: %v", p, err)
		}
	}
}

func TestPenFillsShapes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	p := pen{img}
	p.disc(image.Point{X: 20, Y: 20}, 8, color.RGBA{R: 255, A: 255})
	if c := img.RGBAAt(20, 20); c.R != 255 || c.A != 255 {
		t.Fatalf("disc centre = %+v", c)
	}
	if c := img.RGBAAt(40, 40); c.A != 0 {
		t.Fatalf("outside disc painted: %+v", c)
	}

	p.arrow(image.Point{X: 10, Y: 70}, image.Point{X: 90, Y: 70}, 40, color.RGBA{B: 255, A: 255})
	if c := img.RGBAAt(50, 70); c.B != 255 {
		t.Fatalf("arrow shaft = %+v", c)
	}
	if c := img.RGBAAt(50, 95); c.A != 0 {
		t.Fatalf("arrow too wide: %+v", c)
	}
}
