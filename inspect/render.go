// Package inspect renders cascade trees with graphviz and dumps cascade and
// training data as numpy arrays for offline analysis.
package inspect

import (
	"fmt"
	"path/filepath"
	"strings"

	vj "github.com/esimov/vjcascade/core"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/pkg/errors"
)

// ErrUnknownFormat is returned for an unsupported render format.
var ErrUnknownFormat = errors.New("unknown render format")

var formats = map[string]graphviz.Format{
	"dot": graphviz.XDOT,
	"png": graphviz.PNG,
	"svg": graphviz.SVG,
	"jpg": graphviz.JPG,
}

// Format returns the graphviz format matching a file extension, with or without the dot.
func Format(ext string) (graphviz.Format, error) {
	f, ok := formats[strings.TrimPrefix(strings.ToLower(ext), ".")]
	if !ok {
		return "", errors.Wrapf(ErrUnknownFormat, "%q", ext)
	}
	return f, nil
}

// DrawTree builds the graph of a tree. Internal nodes show the compared pixel
// offsets, leaves their output. The caller closes both returned values.
func DrawTree(t vj.Tree) (*graphviz.Graphviz, *cgraph.Graph, error) {
	gv := graphviz.New()
	graph, err := gv.Graph()
	if err != nil {
		gv.Close()
		return nil, nil, errors.Wrap(err, "cannot create graph")
	}
	if err := drawNode(graph, t, 0, nil, ""); err != nil {
		graph.Close()
		gv.Close()
		return nil, nil, err
	}
	return gv, graph, nil
}

func drawNode(g *cgraph.Graph, t vj.Tree, idx int, parent *cgraph.Node, branch string) error {
	node, err := g.CreateNode(fmt.Sprint(idx))
	if err != nil {
		return errors.Wrapf(err, "cannot create node %d", idx)
	}
	if parent != nil {
		edge, err := g.CreateEdge("", parent, node)
		if err != nil {
			return errors.Wrapf(err, "cannot link node %d", idx)
		}
		edge.SetLabel(branch)
	}

	if idx >= len(t.Nodes) {
		label := fmt.Sprintf("%.4f", t.Leafs[idx-len(t.Nodes)])
		node.SetLabel(label)
		node.SetShape(cgraph.BoxShape)
		return nil
	}

	n := t.Nodes[idx]
	label := fmt.Sprintf("(%d,%d) <= (%d,%d)", n.RowA, n.ColA, n.RowB, n.ColB)
	if idx == 0 && t.EndsStage() {
		label += fmt.Sprintf("\\nstage threshold %.4f", t.Threshold)
	}
	node.SetLabel(label)

	if err := drawNode(g, t, 2*idx+1, node, "no"); err != nil {
		return err
	}
	return drawNode(g, t, 2*idx+2, node, "yes")
}

// RenderTree writes the graph of a tree to path in the format given by its extension.
func RenderTree(t vj.Tree, path string) error {
	format, err := Format(filepath.Ext(path))
	if err != nil {
		return err
	}
	gv, graph, err := DrawTree(t)
	if err != nil {
		return err
	}
	defer gv.Close()
	defer graph.Close()

	return errors.Wrapf(gv.RenderFilename(graph, format, path), "cannot render %s", path)
}

// RenderTrees renders every tree of the cascade into dir as <prefix>_<index>.<ext>
// and returns the written file names.
func RenderTrees(c *vj.Cascade, dir, prefix, ext string) ([]string, error) {
	var files []string
	for i, t := range c.Trees {
		path := filepath.Join(dir, fmt.Sprintf("%s_%05d.%s", prefix, i, strings.TrimPrefix(ext, ".")))
		if err := RenderTree(t, path); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}
