/*
Package vjcascade trains and runs cascades of boosted binary decision trees whose
internal nodes compare the intensity of two pixels inside an image patch, in the
manner of the Viola-Jones detector and the Pixel Intensity Comparison-based Object
detection paper (https://arxiv.org/pdf/1305.4537.pdf).

A cascade is trained stage by stage with GentleBoost. Each stage keeps adding
trees until the false positive rate on hard mined negatives drops below the
stage target, then stores a rejection threshold found by a scan over the ROC curve.
Trained cascades are stored in a compact little endian binary format.

Detection API example

	cascade, err := vjcascade.FromFile("/path/to/cascade.bin")
	if err != nil {
		log.Fatalf("Error reading the cascade file: %v", err)
	}

	src, err := imaging.Open("/path/to/image", imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("Cannot open the image file: %v", err)
	}

	workers := pool.New(runtime.NumCPU())
	defer workers.Close()

	// Scan the grayscale converted image over every scale and position.
	// The result contains the row, column, scale and the detection score.
	dets, err := vjcascade.DetectObjects(cascade, vjcascade.ImageFromRGB(src), workers)
	if err != nil {
		log.Fatalf("Detection error: %v", err)
	}

	// Merge the overlapping detections by their intersection over union (IoU).
	dets = vjcascade.ClusterDetections(dets, cascade.WidthHeightRatio, 0.2)

Training API example

	trainer := vjcascade.NewTrainer(workers, time.Now().UnixNano())
	cascade := vjcascade.NewCascade(cfg.MaxTreeDepth, cfg.WidthHeightRatio)

	reports, err := trainer.Train(cascade, positives, negatives, cfg, func(c *vjcascade.Cascade) error {
		return c.ToFile("cascade.bin")
	})
*/
package vjcascade
