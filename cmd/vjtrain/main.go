package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/esimov/vjcascade/config"
	vj "github.com/esimov/vjcascade/core"
	"github.com/esimov/vjcascade/dataset"
	"github.com/esimov/vjcascade/inspect"
	"github.com/esimov/vjcascade/pool"
	"github.com/esimov/vjcascade/store"
	"github.com/esimov/vjcascade/utils"
	"github.com/sirupsen/logrus"
)

const banner = `
┬  ┬ ┬┌┬┐┬─┐┌─┐┬┌┐┌
└┐┌┘ │ │ ├┬┘├─┤││││
 └┘└─┘ ┴ ┴└─┴ ┴┴┘└┘

Object detection cascade training.
    Version: %s

The database folder holds the images and their YOLO label files
(image name with the .txt extension). Images without labels only
provide negatives. The cascade is read from and written to
<database>/cascade.bin, the hyperparameters to <database>/%s.

`

// CascadeFileName is the name of the cascade file inside the database folder.
const CascadeFileName = "cascade.bin"

// Version indicates the current build version.
var Version string

func main() {
	var (
		dbPath   = flag.String("db", "database/", "Database folder")
		threads  = flag.Int("threads", 0, "Number of worker threads, 0 uses every CPU")
		seed     = flag.Int64("seed", 1, "Seed of the feature, jitter and negative sampling generators")
		logLevel = flag.String("loglevel", "info", "Log level: debug|info|warn|error")
		useS3    = flag.Bool("s3", false, "Pull the training files from and push them to an S3 bucket, configured through the environment")
		report   = flag.String("report", "", "Write the learning curve of this run into a .npy file")
		render   = flag.String("render", "", "Render the trees of the trained cascade as svg files into this folder")
	)

	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, banner, Version, config.FileName)
		flag.PrintDefaults()
	}
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx := context.Background()
	cascadeFile := filepath.Join(*dbPath, CascadeFileName)
	configFile := filepath.Join(*dbPath, config.FileName)

	var remote *store.Store
	if *useS3 {
		if remote, err = store.New(store.ConfigFromEnv()); err != nil {
			log.Fatalf("Remote store error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
		for _, f := range []string{configFile, cascadeFile} {
			found, err := remote.Pull(ctx, filepath.Base(f), f)
			if err != nil {
				log.Fatalf("Remote store error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
			}
			logger.WithFields(logrus.Fields{"file": f, "found": found}).Info("pulled from remote store")
		}
	}

	cfg, created, err := config.LoadOrCreate(*dbPath)
	if err != nil {
		log.Fatalf("Configuration error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
	if created {
		log.Printf("%s was created with the default values, review it and run the training again.",
			utils.DecorateText(configFile, utils.StatusMessage))
		return
	}

	cascade, err := vj.LoadOrCreate(cascadeFile, cfg)
	if err != nil {
		log.Fatalf("Cascade error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}

	log.Println(utils.DecorateText("---- Used config:", utils.StatusMessage))
	log.Println(cfg.String())

	spinner := utils.NewSpinner("Reading the dataset...", time.Millisecond*100, true)
	spinner.Start()

	set, err := dataset.Open(*dbPath, cfg.WidthHeightRatio)
	if err != nil {
		spinner.Stop()
		log.Fatalf("Dataset error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
	spinner.StopMsg = fmt.Sprintf("Reading the dataset... %s\n", utils.DecorateText("finished ✔", utils.SuccessMessage))
	spinner.Stop()
	log.Printf("%d images, %d objects", set.Count(), set.ObjectCount())

	positives, err := dataset.NewPositive(set, dataset.NewJitter(*seed))
	if err != nil {
		log.Fatalf("Dataset error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}
	negatives, err := dataset.NewNegative(set, cfg.WidthHeightRatio, dataset.DefaultMinHeight, *seed)
	if err != nil {
		log.Fatalf("Dataset error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}

	p := pool.New(*threads)
	defer p.Close()

	trainer := vj.NewTrainer(p, *seed)
	trainer.Logger = logger

	save := func(c *vj.Cascade) error {
		if err := c.ToFile(cascadeFile); err != nil {
			return err
		}
		if remote == nil {
			return nil
		}
		for _, f := range []string{configFile, cascadeFile} {
			if err := remote.Push(ctx, filepath.Base(f), f); err != nil {
				return err
			}
		}
		return nil
	}

	start := time.Now()
	reports, err := trainer.Train(cascade, positives, negatives, cfg, save)
	if err != nil {
		log.Fatalf("Training error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
	}

	for _, r := range reports {
		log.Printf("stage %2d: %3d trees, tpr %.4f, fpr %.4f, threshold %.4f",
			r.Stage+1, r.Trees, r.TPR, r.FPR, r.Threshold)
	}

	if *report != "" && len(reports) > 0 {
		if err := inspect.WriteNpy(*report, inspect.LearningCurve(reports)); err != nil {
			log.Fatalf("Report error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
	}
	if *render != "" {
		if err := os.MkdirAll(*render, 0755); err != nil {
			log.Fatalf("Render error: %v", err)
		}
		if _, err := inspect.RenderTrees(cascade, *render, "tree", "svg"); err != nil {
			log.Fatalf("Render error: %s", utils.DecorateText(err.Error(), utils.ErrorMessage))
		}
	}

	log.Printf("\n%s %d stages, %d trees in %s",
		utils.DecorateText("Done!", utils.SuccessMessage),
		cascade.StageCount(), len(cascade.Trees), utils.FormatTime(time.Since(start)))
}
