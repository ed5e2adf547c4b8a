package vjcascade

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/esimov/vjcascade/config"
	"github.com/pkg/errors"
)

// legacyRowScale is stored in front of the width/height ratio and ignored on read.
const legacyRowScale float32 = 1.0

const headerSize = 16

// Pack encodes the cascade into its binary form:
//
//	float32 1.0 | float32 WidthHeightRatio | int32 TreeDepth | int32 TreeCount
//	per tree: (2^depth-1) x 4 int8 node codes | 2^depth float32 leaves | float32 threshold
//
// All the values are little endian.
func (c *Cascade) Pack() ([]byte, error) {
	if c.TreeDepth < 1 || c.TreeDepth > MaxTreeDepth {
		return nil, errors.Wrapf(ErrInvalidArgument, "tree depth %d", c.TreeDepth)
	}
	nodes, leafs := 1<<c.TreeDepth-1, 1<<c.TreeDepth

	buf := make([]byte, 0, headerSize+len(c.Trees)*(4*nodes+4*leafs+4))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(legacyRowScale))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c.WidthHeightRatio))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(c.TreeDepth)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(len(c.Trees))))

	for i, t := range c.Trees {
		if len(t.Nodes) != nodes || len(t.Leafs) != leafs {
			return nil, errors.Wrapf(ErrInvalidArgument,
				"tree %d has %d nodes and %d leaves, depth %d needs %d and %d",
				i, len(t.Nodes), len(t.Leafs), c.TreeDepth, nodes, leafs)
		}
		for _, n := range t.Nodes {
			buf = append(buf, byte(n.RowA), byte(n.ColA), byte(n.RowB), byte(n.ColB))
		}
		for _, l := range t.Leafs {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(l))
		}
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(t.Threshold))
	}
	return buf, nil
}

// WriteTo writes the packed cascade into w.
func (c *Cascade) WriteTo(w io.Writer) (int64, error) {
	packet, err := c.Pack()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(packet)
	return int64(n), err
}

// Unpack decodes a binary cascade produced by Pack.
func Unpack(packet []byte) (*Cascade, error) {
	if len(packet) < headerSize {
		return nil, errors.Wrapf(ErrCorruptCascade, "header needs %d bytes, got %d", headerSize, len(packet))
	}

	// We skip the legacy row scale stored in the first 4 bytes.
	pos := 4
	ratio := math.Float32frombits(binary.LittleEndian.Uint32(packet[pos:]))
	pos += 4
	treeDepth := int32(binary.LittleEndian.Uint32(packet[pos:]))
	pos += 4
	treeNum := int32(binary.LittleEndian.Uint32(packet[pos:]))
	pos += 4

	if treeDepth < 1 || treeDepth > MaxTreeDepth {
		return nil, errors.Wrapf(ErrCorruptCascade, "tree depth %d", treeDepth)
	}
	if treeNum < 0 {
		return nil, errors.Wrapf(ErrCorruptCascade, "tree count %d", treeNum)
	}

	nodes, leafs := 1<<treeDepth-1, 1<<treeDepth
	treeSize := 4*nodes + 4*leafs + 4
	if want := pos + int(treeNum)*treeSize; len(packet) != want {
		return nil, errors.Wrapf(ErrCorruptCascade,
			"%d trees of depth %d need %d bytes, got %d", treeNum, treeDepth, want, len(packet))
	}

	c := &Cascade{
		TreeDepth:        int(treeDepth),
		WidthHeightRatio: ratio,
		Trees:            make([]Tree, treeNum),
	}
	for i := range c.Trees {
		t := NewTree(int(treeDepth))
		for n := range t.Nodes {
			// Convert unsigned bytecodes to signed ones.
			t.Nodes[n] = Node{
				RowA: int8(packet[pos+0]),
				ColA: int8(packet[pos+1]),
				RowB: int8(packet[pos+2]),
				ColB: int8(packet[pos+3]),
			}
			pos += 4
		}
		for l := range t.Leafs {
			t.Leafs[l] = math.Float32frombits(binary.LittleEndian.Uint32(packet[pos:]))
			pos += 4
		}
		t.Threshold = math.Float32frombits(binary.LittleEndian.Uint32(packet[pos:]))
		pos += 4

		c.Trees[i] = t
	}
	return c, nil
}

// ToFile stores the cascade. The file is replaced atomically, so a failed write
// leaves the previously stored cascade intact.
func (c *Cascade) ToFile(path string) error {
	packet, err := c.Pack()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "cannot create cascade file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(packet); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "cannot write cascade file %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "cannot write cascade file %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "cannot replace cascade file %s", path)
}

// FromFile reads a cascade stored with ToFile.
func FromFile(path string) (*Cascade, error) {
	packet, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read cascade file")
	}
	c, err := Unpack(packet)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot unpack %s", path)
	}
	return c, nil
}

// LoadOrCreate loads the cascade stored at path or creates an empty one when the
// file does not exist yet. The tree depth and aspect ratio of an existing cascade
// take precedence over the ones in cfg, cfg is updated accordingly.
func LoadOrCreate(path string, cfg *config.TrainConfig) (*Cascade, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return NewCascade(cfg.MaxTreeDepth, cfg.WidthHeightRatio), nil
	}

	c, err := FromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.MaxTreeDepth = c.TreeDepth
	cfg.WidthHeightRatio = c.WidthHeightRatio

	return c, nil
}
