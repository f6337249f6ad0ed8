package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-robot-bridge/internal/storage"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
	"golang.org/x/image/font/basicfont"
)

const (
	squareSize = 56
	gutter     = 18 // 보드와 보관 영역 사이 간격
	margin     = 28
)

// columnOrder lays the workspace out as the arm sees it from the white side:
// white queen stock, white bins, board a..h, black bins, black queen stock.
var columnOrder = []workspace.Column{
	workspace.ColK, workspace.ColI, workspace.ColJ,
	workspace.ColA, workspace.ColB, workspace.ColC, workspace.ColD,
	workspace.ColE, workspace.ColF, workspace.ColG, workspace.ColH,
	workspace.ColL, workspace.ColM, workspace.ColN,
}

var (
	backgroundColor = color.RGBA{30, 33, 46, 255}
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	binColor        = color.RGBA{92, 98, 118, 255}
	binAltColor     = color.RGBA{82, 88, 106, 255}
	stockColor      = color.RGBA{70, 104, 128, 255}
	stockAltColor   = color.RGBA{62, 94, 116, 255}
	waypointColor   = color.NRGBA{R: 255, G: 228, B: 120, A: 150}
	arrowColor      = color.NRGBA{R: 148, G: 207, B: 255, A: 190}
	labelColor      = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	stepTextColor   = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	whiteTokenColor = color.NRGBA{R: 244, G: 241, B: 234, A: 230}
	blackTokenColor = color.NRGBA{R: 38, G: 36, B: 33, A: 230}
)

// WorkspaceRenderer draws the board, both capture bins and both queen stocks as one PNG.
type WorkspaceRenderer struct{}

func NewWorkspaceRenderer() *WorkspaceRenderer { return &WorkspaceRenderer{} }

// RenderWorkspace draws pos with storage occupancy from grid. highlight, when present,
// is drawn as numbered waypoints joined by arrows in visiting order.
func (r *WorkspaceRenderer) RenderWorkspace(ctx context.Context, pos *nchess.Position, grid storage.Grid, highlight []workspace.Square) ([]byte, error) {
	if pos == nil {
		return nil, fmt.Errorf("position is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := margin*2 + len(columnOrder)*squareSize + gutter*4
	height := margin*2 + workspace.MaxRow*squareSize
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	for _, col := range columnOrder {
		for row := workspace.MinRow; row <= workspace.MaxRow; row++ {
			sq := workspace.Sq(col, row)
			rect := cellRect(sq)
			imagedraw.Draw(img, rect, image.NewUniform(cellColor(sq)), image.Point{}, imagedraw.Src)
			if err := drawOccupant(img, pos, grid, sq, rect); err != nil {
				return nil, err
			}
		}
	}
	drawPath(img, highlight)
	drawLabels(img)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func columnX(col workspace.Column) int {
	x := margin
	for i, c := range columnOrder {
		if c == col {
			return x + i*squareSize + gutter*gapsBefore(i)
		}
	}
	return -1
}

// gapsBefore counts zone boundaries to the left of column index i.
func gapsBefore(i int) int {
	switch {
	case i >= 11 && i < 13:
		return 3
	case i >= 13:
		return 4
	case i >= 3:
		return 2
	case i >= 1:
		return 1
	}
	return 0
}

func cellRect(sq workspace.Square) image.Rectangle {
	x := columnX(sq.Col)
	y := margin + (workspace.MaxRow-sq.Row)*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func cellCenter(sq workspace.Square) image.Point {
	r := cellRect(sq)
	return image.Point{X: r.Min.X + squareSize/2, Y: r.Min.Y + squareSize/2}
}

func cellColor(sq workspace.Square) color.Color {
	odd := (int(sq.Col)+sq.Row)%2 == 1
	switch sq.Zone() {
	case workspace.ZoneMainBoard:
		if (int(sq.Col-workspace.ColA)+sq.Row)%2 == 1 {
			return darkSquare
		}
		return lightSquare
	case workspace.ZoneWhiteQueenSource, workspace.ZoneBlackQueenSource:
		if odd {
			return stockAltColor
		}
		return stockColor
	}
	if odd {
		return binAltColor
	}
	return binColor
}

func drawOccupant(img *image.RGBA, pos *nchess.Position, grid storage.Grid, sq workspace.Square, rect image.Rectangle) error {
	zone, idx, _ := workspace.ZoneOf(sq.Col)
	row := sq.Row - 1
	switch zone {
	case workspace.ZoneMainBoard:
		piece := pos.Board().Piece(nchess.NewSquare(nchess.File(idx), nchess.Rank(row)))
		if piece == nchess.NoPiece {
			return nil
		}
		return drawPiece(img, piece, rect)
	case workspace.ZoneWhiteCaptureBin:
		if grid.WhiteCapture[row][idx] {
			pen{img}.disc(cellCenter(sq), squareSize/4, whiteTokenColor)
		}
	case workspace.ZoneBlackCaptureBin:
		if grid.BlackCapture[row][idx] {
			pen{img}.disc(cellCenter(sq), squareSize/4, blackTokenColor)
		}
	case workspace.ZoneWhiteQueenSource:
		if !grid.WhiteQueens[row] {
			return drawPiece(img, nchess.WhiteQueen, rect)
		}
	case workspace.ZoneBlackQueenSource:
		if !grid.BlackQueens[row] {
			return drawPiece(img, nchess.BlackQueen, rect)
		}
	}
	return nil
}

func drawPiece(img *image.RGBA, piece nchess.Piece, rect image.Rectangle) error {
	pieceImg, err := renderPieceImage(piece, squareSize)
	if err != nil {
		return err
	}
	imagedraw.Draw(img, rect, pieceImg, image.Point{}, imagedraw.Over)
	return nil
}

func drawPath(img *image.RGBA, path []workspace.Square) {
	if len(path) == 0 {
		return
	}
	for _, sq := range path {
		if columnX(sq.Col) < 0 {
			return
		}
	}
	for _, sq := range path {
		imagedraw.Draw(img, cellRect(sq), image.NewUniform(waypointColor), image.Point{}, imagedraw.Over)
	}
	p := pen{img}
	for i := 1; i < len(path); i++ {
		p.arrow(cellCenter(path[i-1]), cellCenter(path[i]), squareSize, arrowColor)
	}
	for i, sq := range path {
		r := cellRect(sq)
		p.disc(image.Point{X: r.Min.X + 9, Y: r.Min.Y + 9}, 8, waypointColor)
		p.centeredText(basicfont.Face7x13, stepTextColor, strconv.Itoa(i+1), r.Min.X+9, r.Min.Y+14)
	}
}

func drawLabels(img *image.RGBA) {
	p := pen{img}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	bottom := margin + workspace.MaxRow*squareSize
	for _, col := range columnOrder {
		p.centeredText(basicfont.Face7x13, labelColor, col.String(), columnX(col)+squareSize/2, bottom+ascent+4)
	}
	for row := workspace.MinRow; row <= workspace.MaxRow; row++ {
		y := margin + (workspace.MaxRow-row)*squareSize + squareSize/2 + ascent/2
		p.centeredText(basicfont.Face7x13, labelColor, strconv.Itoa(row), margin/2, y)
	}
}
