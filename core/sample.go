package vjcascade

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Infinite is the Count of a source which never runs out of samples.
const Infinite = math.MaxInt32

// Source is an indexable set of grayscale patches.
type Source interface {
	Patch(index int) (ImageParams, error)
	Count() int
}

// SampleHard collects up to pickCount patches of src which the cascade classifies
// as positive, together with their cascade confidences. It gives up when the
// source is exhausted or when, checked every pickCount trials, the rate of
// accepted patches is below minHitRate. The returned hit rate is the accepted
// patch count over the trial count.
func (tr *Trainer) SampleHard(c *Cascade, src Source, pickCount int, minHitRate float64) ([]ImageParams, []float64, float64, error) {
	if pickCount < 1 {
		return nil, nil, 0, nil
	}

	var (
		mu      sync.Mutex
		patches []ImageParams
		confs   []float64
		trials  int
		count   = src.Count()
	)
	hitRate := func() float64 {
		if trials == 0 {
			return 0
		}
		return float64(len(patches)) / float64(trials)
	}
	// done must be called with mu held.
	done := func() bool {
		return trials >= count || len(patches) >= pickCount ||
			(trials > 0 && trials%pickCount == 0 && hitRate() < minHitRate)
	}
	// try classifies the i-th patch and reports whether sampling is done.
	try := func(i int) (bool, error) {
		patch, err := src.Patch(i)
		if err != nil {
			return true, errors.Wrapf(err, "sample %d", i)
		}
		ok, conf := c.ClassifyPatch(patch)

		mu.Lock()
		defer mu.Unlock()

		trials++
		if ok {
			patches = append(patches, patch)
			confs = append(confs, float64(conf))
		}
		return done(), nil
	}

	if tr.Pool == nil {
		for i := 0; !done(); i++ {
			if _, err := try(i); err != nil {
				return nil, nil, 0, err
			}
		}
	} else {
		sliceSize := max(pickCount/tr.Pool.ThreadCount(), 1)

		err := tr.Pool.InfiniteFor(0, sliceSize, func(i int, cancel *atomic.Bool) error {
			mu.Lock()
			stop := i >= count || done()
			mu.Unlock()
			if stop {
				cancel.Store(true)
				return nil
			}

			finished, err := try(i)
			if finished {
				cancel.Store(true)
			}
			return err
		})
		if err != nil {
			return nil, nil, 0, err
		}
	}

	rate := hitRate()
	if len(patches) > pickCount {
		patches, confs = patches[:pickCount], confs[:pickCount]
	}
	return patches, confs, rate, nil
}
