package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	vj "github.com/esimov/vjcascade/core"
	"github.com/esimov/vjcascade/inspect"
	"github.com/esimov/vjcascade/utils"
)

const banner = `
┬  ┬ ┬┬┌┐┌┌─┐┌─┐┌─┐┌─┐┌┬┐
└┐┌┘ │││││└─┐├─┘├┤ │   │
 └┘└─┘┴┘└┘└─┘┴  └─┘└─┘ ┴

Cascade inspection.
    Version: %s

`

// Version indicates the current build version.
var Version string

func main() {
	var (
		cascadeFile = flag.String("cf", "", "Cascade binary file")
		renderDir   = flag.String("render", "", "Render every tree into this folder")
		format      = flag.String("format", "svg", "Tree render format: svg|png|jpg|dot")
		leaves      = flag.String("leaves", "", "Write the leaf outputs (trees x leaves) into a .npy file")
		thresholds  = flag.String("thresholds", "", "Write the tree thresholds into a .npy file")
	)

	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, banner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if len(*cascadeFile) == 0 {
		log.Fatal("Usage: vjinspect -cf database/cascade.bin [-render trees/] [-leaves leaves.npy]")
	}

	cascade, err := vj.FromFile(*cascadeFile)
	if err != nil {
		log.Fatalf("Cascade error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}

	log.Printf("tree depth %d, width/height ratio %.3f, %d trees, %d stages",
		cascade.TreeDepth, cascade.WidthHeightRatio, len(cascade.Trees), cascade.StageCount())
	for _, s := range inspect.Summary(cascade) {
		log.Printf("stage %2d: trees %4d-%-4d (%3d), threshold %.4f",
			s.Stage+1, s.FirstTree, s.FirstTree+s.Trees-1, s.Trees, s.Threshold)
	}
	if pending := len(cascade.Trees) - sum(cascade.Stages()); pending > 0 {
		log.Printf("%s", utils.DecorateText(fmt.Sprintf("%d trees of an unfinished stage", pending), utils.StatusMessage))
	}

	if *leaves != "" {
		if err := inspect.WriteNpy(*leaves, inspect.LeafMatrix(cascade)); err != nil {
			log.Fatalf("Dump error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
	}
	if *thresholds != "" {
		if err := inspect.WriteNpy(*thresholds, inspect.ThresholdMatrix(cascade)); err != nil {
			log.Fatalf("Dump error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
	}

	if *renderDir != "" {
		if _, err := inspect.Format(*format); err != nil {
			log.Fatalf("Render error: %v", err)
		}
		if err := os.MkdirAll(*renderDir, 0755); err != nil {
			log.Fatalf("Render error: %v", err)
		}

		spinner := utils.NewSpinner("Rendering trees...", time.Millisecond*100, true)
		spinner.Start()
		files, err := inspect.RenderTrees(cascade, *renderDir, "tree", *format)
		spinner.Stop()
		if err != nil {
			log.Fatalf("Render error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
		log.Printf("%s trees rendered into %s", utils.DecorateText(fmt.Sprint(len(files)), utils.SuccessMessage), *renderDir)
	}
}

func sum(vals []int) int {
	var s int
	for _, v := range vals {
		s += v
	}
	return s
}
