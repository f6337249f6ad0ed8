package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-robot-bridge/internal/render"
	"github.com/park285/cheese-robot-bridge/internal/storage"
	"github.com/park285/cheese-robot-bridge/internal/workspace"
)

func main() {
	calPath := flag.String("calibration", os.Getenv("ROBOT_CALIBRATION_FILE"), "calibration yaml (defaults when empty)")
	pngPath := flag.String("png", "", "write a workspace image to this path")
	square := flag.String("square", "", "print only this square")
	flag.Parse()

	cal := workspace.DefaultCalibration()
	if *calPath != "" {
		loaded, err := workspace.LoadCalibration(*calPath)
		if err != nil {
			log.Fatalf("calibration error: %v", err)
		}
		cal = loaded
	}
	mapper, err := workspace.NewMapper(cal)
	if err != nil {
		log.Fatalf("mapper error: %v", err)
	}

	if *square != "" {
		c, err := mapper.MapString(*square)
		if err != nil {
			log.Fatalf("%s: %v", *square, err)
		}
		fmt.Println(c.Format())
		return
	}

	if err := printZones(os.Stdout, mapper); err != nil {
		log.Fatalf("map error: %v", err)
	}

	if *pngPath != "" {
		img, err := render.NewWorkspaceRenderer().RenderWorkspace(context.Background(), nchess.NewGame().Position(), storage.Grid{}, nil)
		if err != nil {
			log.Fatalf("render error: %v", err)
		}
		if err := os.WriteFile(*pngPath, img, 0o644); err != nil {
			log.Fatalf("write png: %v", err)
		}
		log.Printf("workspace image written to %s", *pngPath)
	}
}

// printZones lists every square of every zone with its arm coordinate.
func printZones(w io.Writer, mapper *workspace.Mapper) error {
	for _, zone := range workspace.Zones() {
		if _, err := fmt.Fprintf(w, "# %s\n", zone); err != nil {
			return err
		}
		for _, col := range zone.Columns() {
			for row := workspace.MinRow; row <= workspace.MaxRow; row++ {
				sq := workspace.Sq(col, row)
				c, err := mapper.Map(sq)
				if err != nil {
					return fmt.Errorf("%s: %w", sq, err)
				}
				if _, err := fmt.Fprintf(w, "%-3s %s\n", sq, c.Format()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
