// Package config holds the training hyperparameters and their text file format.
//
// The configuration lives next to the training images in a file named
// trainConfig.txt made of "key: value" lines:
//
//	widthHeightRatio:   1.000
//	maxTreeDepth:       5
//	maxTreeCount:       64
//	maxFPR:             0.00100
//	minTPRs:            0.980 0.990 0.995 0.995 0.997
//
// Missing keys keep their default value.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// FileName is the name of the configuration file inside the database folder.
const FileName = "trainConfig.txt"

// ErrInvalidValue is returned for a configuration value outside of its valid range.
var ErrInvalidValue = errors.New("unsupported config value")

// TrainConfig contains the hyperparameters used for training.
type TrainConfig struct {
	// WidthHeightRatio is the width to height ratio of the detection window.
	WidthHeightRatio float32
	// MaxTreeDepth is the depth of every tree of the cascade.
	MaxTreeDepth int
	// MaxTreeCount is the maximum number of trees per stage.
	MaxTreeCount int
	// MaxFPR is the false positive rate at which training stops.
	MaxFPR float64
	// MinTPRs is the minimum true positive rate retained by each stage.
	// Its length is the maximum number of stages.
	MinTPRs []float64
}

// Default returns the default training configuration.
func Default() *TrainConfig {
	return &TrainConfig{
		WidthHeightRatio: 1.0,
		MaxTreeDepth:     5,
		MaxTreeCount:     64,
		MaxFPR:           1e-3,
		MinTPRs: []float64{
			0.980, 0.990, 0.995, 0.995, 0.997, 0.997, 0.997,
			0.997, 0.997, 0.997, 0.997, 0.997, 0.997,
		},
	}
}

// Validate checks every value against its valid range.
func (c *TrainConfig) Validate() error {
	if err := validateValue("widthHeightRatio", c.WidthHeightRatio, 0.01, 10); err != nil {
		return err
	}
	if err := validateValue("maxTreeDepth", c.MaxTreeDepth, 1, 16); err != nil {
		return err
	}
	if err := validateValue("maxTreeCount", c.MaxTreeCount, 1, 256); err != nil {
		return err
	}
	if err := validateValue("maxFPR", c.MaxFPR, 0, 1); err != nil {
		return err
	}
	if len(c.MinTPRs) == 0 {
		return errors.Wrap(ErrInvalidValue, "minTPRs: at least one stage is required")
	}
	for _, tpr := range c.MinTPRs {
		if err := validateValue("minTPRs", tpr, 0.01, 1); err != nil {
			return err
		}
	}
	return nil
}

func validateValue[T constraints.Ordered](name string, val, min, max T) error {
	// The negated form also rejects NaN.
	if !(val >= min && val <= max) {
		return errors.Wrapf(ErrInvalidValue, "%s: %v, valid range: [%v, %v]", name, val, min, max)
	}
	return nil
}

// String formats the configuration in its file format.
func (c *TrainConfig) String() string {
	const padding = 20

	tprs := make([]string, len(c.MinTPRs))
	for i, tpr := range c.MinTPRs {
		tprs[i] = strconv.FormatFloat(tpr, 'f', 3, 64)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s%.3f\n", padding, "widthHeightRatio:", c.WidthHeightRatio)
	fmt.Fprintf(&sb, "%-*s%d\n", padding, "maxTreeDepth:", c.MaxTreeDepth)
	fmt.Fprintf(&sb, "%-*s%d\n", padding, "maxTreeCount:", c.MaxTreeCount)
	fmt.Fprintf(&sb, "%-*s%.5f\n", padding, "maxFPR:", c.MaxFPR)
	fmt.Fprintf(&sb, "%-*s%s\n", padding, "minTPRs:", strings.Join(tprs, " "))

	return sb.String()
}

// Parse reads a configuration in the "key: value" format. Keys not present
// keep their default value, unknown keys are ignored.
func Parse(r io.Reader) (*TrainConfig, error) {
	cfg := Default()

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		kv := strings.Split(row, ":")
		if len(kv) != 2 {
			return nil, errors.Errorf("config line %d: expected \"key: value\", got %q", line, row)
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])

		var err error
		switch key {
		case "widthHeightRatio":
			var v float64
			v, err = strconv.ParseFloat(val, 32)
			cfg.WidthHeightRatio = float32(v)
		case "maxTreeDepth":
			cfg.MaxTreeDepth, err = strconv.Atoi(val)
		case "maxTreeCount":
			cfg.MaxTreeCount, err = strconv.Atoi(val)
		case "maxFPR":
			cfg.MaxFPR, err = strconv.ParseFloat(val, 64)
		case "minTPRs":
			cfg.MinTPRs = cfg.MinTPRs[:0]
			for _, field := range strings.Fields(val) {
				var tpr float64
				if tpr, err = strconv.ParseFloat(field, 64); err != nil {
					break
				}
				cfg.MinTPRs = append(cfg.MinTPRs, tpr)
			}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "config line %d: key %s", line, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*TrainConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open config file")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return cfg, nil
}

// Save writes the configuration file at path.
func (c *TrainConfig) Save(path string) error {
	return errors.Wrap(os.WriteFile(path, []byte(c.String()), 0644), "cannot write config file")
}

// LoadOrCreate loads the configuration file of the database folder dbPath. When
// the file does not exist it is created with the default values and created is true.
func LoadOrCreate(dbPath string) (cfg *TrainConfig, created bool, err error) {
	info, err := os.Stat(dbPath)
	if err != nil || !info.IsDir() {
		return nil, false, errors.Errorf("database directory not found: %s", dbPath)
	}

	path := filepath.Join(dbPath, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		if err := cfg.Save(path); err != nil {
			return nil, false, err
		}
		return cfg, true, nil
	}

	cfg, err = Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}
