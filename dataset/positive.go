package dataset

import (
	vj "github.com/esimov/vjcascade/core"
	"github.com/pkg/errors"
)

// Positive serves the labeled objects of a dataset as patches.
type Positive struct {
	set   *Labeled
	index []objectRef

	// Jitter, when set, randomly moves and rescales every object before extraction.
	Jitter *Jitter
}

type objectRef struct {
	image  int
	object int
}

// NewPositive indexes every object of the set.
func NewPositive(set *Labeled, jitter *Jitter) (*Positive, error) {
	p := &Positive{set: set, Jitter: jitter}
	for i, objects := range set.Objects {
		for j := range objects {
			p.index = append(p.index, objectRef{image: i, object: j})
		}
	}
	if len(p.index) == 0 {
		return nil, errors.Wrap(ErrEmpty, "no labeled objects")
	}
	return p, nil
}

// Count returns the number of objects.
func (p *Positive) Count() int {
	return len(p.index)
}

// Patch returns the grayscale patch of the i-th object.
func (p *Positive) Patch(i int) (vj.ImageParams, error) {
	if i < 0 || i >= len(p.index) {
		return vj.ImageParams{}, errors.Wrapf(vj.ErrInvalidArgument, "object %d of %d", i, len(p.index))
	}
	ref := p.index[i]

	img, err := p.set.Image(ref.image)
	if err != nil {
		return vj.ImageParams{}, err
	}
	roi := p.set.Objects[ref.image][ref.object]
	if p.Jitter != nil {
		roi = p.Jitter.Apply(roi)
	}

	patch, err := ExtractPatch(img, roi)
	if err != nil {
		return vj.ImageParams{}, errors.Wrapf(err, "object %d of %s", ref.object, p.set.Files[ref.image])
	}
	return patch, nil
}
