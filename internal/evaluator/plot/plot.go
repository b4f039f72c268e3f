// Package plot renders one grouped bar chart per dataset size and scenario.
package plot

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

var seriesNames = [...]string{
	"Blocks Before",
	"Blocks After",
	"Blocks New",
	"Blocks Reused",
	"Reuse Ratio (%)",
}

const (
	barWidth    = vg.Length(7)
	groupMargin = vg.Length(24)
)

// FileName is the chart file written for a category.
func FileName(c reuse.Category, format string) string {
	return fmt.Sprintf("plot%d-%s.%s", c.Materials, c.Scenario, format)
}

// Render writes a chart for every category of tab into dir, creating it if
// needed. The format is one of the extensions supported by gonum: svg, png, pdf.
func Render(tab *reuse.Tabulation, dir, format string) (files []string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating plot directory: %w", err)
	}

	for _, c := range tab.Categories() {
		p, err := categoryChart(tab, c)
		if err != nil {
			return files, err
		}

		groups := vg.Length(len(tab.Filter(c)))
		width := groups*(barWidth*vg.Length(len(seriesNames))+groupMargin) + 2*vg.Inch
		if width < 6*vg.Inch {
			width = 6 * vg.Inch
		}

		fn := filepath.Join(dir, FileName(c, format))
		if err := p.Save(width, 5*vg.Inch, fn); err != nil {
			return files, fmt.Errorf("saving chart '%s': %w", fn, err)
		}
		files = append(files, fn)
	}

	return files, nil
}

func categoryChart(tab *reuse.Tabulation, c reuse.Category) (*plot.Plot, error) {
	p := plot.New()
	if c.Materials > 0 {
		p.Title.Text = fmt.Sprintf("%d materials, %s", c.Materials, c.Scenario)
	} else {
		p.Title.Text = c.Scenario
	}
	p.Y.Label.Text = "Blocks / Percent"
	p.Y.Min = 0

	keys := tab.Filter(c)
	labels := make([]string, len(keys))
	var series [len(seriesNames)]plotter.Values

	for i, k := range keys {
		r, _ := tab.Get(k)
		labels[i] = k.Codec + " " + k.Chunker

		var ratio float64
		if r.Report.RatioApplicable() {
			ratio = r.Report.ReuseRatioPercent
		}

		series[0] = append(series[0], float64(r.Report.TotalBefore))
		series[1] = append(series[1], float64(r.Report.TotalAfter))
		series[2] = append(series[2], float64(r.Report.New))
		series[3] = append(series[3], float64(r.Report.Reused))
		series[4] = append(series[4], ratio)
	}

	for i, vals := range series {
		bars, err := plotter.NewBarChart(vals, barWidth)
		if err != nil {
			return nil, fmt.Errorf("chart for %d/%s: %w", c.Materials, c.Scenario, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(i-len(seriesNames)/2)

		p.Add(bars)
		p.Legend.Add(seriesNames[i], bars)
	}

	p.Legend.Top = true
	p.X.Tick.Label.Rotation = math.Pi / 8
	p.NominalX(labels...)

	return p, nil
}
