// Package reporting plots the similarity distributions of a finished run.
package reporting

import (
	"fmt"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/will-rowe/derep/src/shard"
	"github.com/will-rowe/derep/src/similarity"
)

// Distributions holds the similarity values of every edge in a run
type Distributions struct {
	Jaccard     plotter.Values
	Containment plotter.Values
}

// Len returns the number of edges collected
func (d *Distributions) Len() int {
	return len(d.Jaccard)
}

// Add is a method to record an edge
func (d *Distributions) Add(e similarity.Edge) {
	d.Jaccard = append(d.Jaccard, e.Jaccard)
	d.Containment = append(d.Containment, e.ContainmentIJ)
}

// CollectEdges reads the similarity values from a merged edge file
func CollectEdges(path string) (*Distributions, error) {
	d := &Distributions{}
	err := shard.ReadEdgesFile(path, func(e similarity.Edge) error {
		d.Add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SizeValues converts sketch sizes to plottable values
func SizeValues(sizes []int) plotter.Values {
	values := make(plotter.Values, len(sizes))
	for i, s := range sizes {
		values[i] = float64(s)
	}
	return values
}

// PlotHistogram is a function to save a histogram of the values as an image (format taken from the file extension)
func PlotHistogram(values plotter.Values, bins int, title, xLabel, path string) error {
	if len(values) == 0 {
		return fmt.Errorf("no values to plot for %q", title)
	}
	if bins < 1 {
		return fmt.Errorf("need at least one bin (got %d)", bins)
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "count"
	hist, err := plotter.NewHist(values, bins)
	if err != nil {
		return err
	}
	p.Add(hist)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// FileName returns a file-system safe plot name
func FileName(title string) string {
	replacer := strings.NewReplacer(" ", "-", "/", "-", "|", "-")
	return strings.ToLower(replacer.Replace(title)) + ".png"
}
