package report

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"

	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/pkg/errors"
)

// SVGSize is the drawing area of the dashboard chart in pixels.
type SVGSize struct {
	Width  int
	Height int
}

var DefaultSVGSize = SVGSize{Width: 760, Height: 320}

const svgPad = 40

var svgTemplate = template.Must(template.New("chart").Parse(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 {{.Width}} {{.Height}}" class="chart" role="img" aria-label="{{.Title}}">
<rect x="0" y="0" width="{{.Width}}" height="{{.Height}}" fill="#ffffff"/>
<line x1="{{.Left}}" y1="{{.Bottom}}" x2="{{.Right}}" y2="{{.Bottom}}" stroke="#999"/>
<line x1="{{.Left}}" y1="{{.Top}}" x2="{{.Left}}" y2="{{.Bottom}}" stroke="#999"/>
<text x="4" y="{{.Top}}" font-size="11" dominant-baseline="middle">{{.MaxLabel}}</text>
<text x="4" y="{{.Bottom}}" font-size="11" dominant-baseline="middle">{{.MinLabel}}</text>
<text x="{{.Left}}" y="{{.DateY}}" font-size="11">{{.FirstDate}}</text>
<text x="{{.Right}}" y="{{.DateY}}" font-size="11" text-anchor="end">{{.LastDate}}</text>
{{if .Actual}}<polyline class="actual" fill="none" stroke="#1f77b4" stroke-width="1.5" points="{{.Actual}}"/>{{end}}
{{if .Forecast}}<polyline class="forecast" fill="none" stroke="#ff7f0e" stroke-width="2" points="{{.Forecast}}"/>{{end}}
<text x="{{.Right}}" y="14" font-size="12" text-anchor="end"><tspan fill="#1f77b4">actual</tspan> <tspan fill="#ff7f0e">forecast</tspan></text>
</svg>`))

type svgData struct {
	Title                    string
	Width, Height            int
	Left, Right, Top, Bottom int
	DateY                    int
	MinLabel, MaxLabel       string
	FirstDate, LastDate      string
	Actual, Forecast         string
}

// SVG draws the result as an inline SVG line chart with one polyline per
// series. An empty result yields an empty string.
func SVG(res *forecast.Result, size SVGSize) (template.HTML, error) {
	ext, ok := seriesExtent(pointsOf(res))
	if !ok {
		return "", nil
	}
	if size.Width <= 2*svgPad || size.Height <= 2*svgPad {
		size = DefaultSVGSize
	}

	d := svgData{
		Title:  Title(res.Request),
		Width:  size.Width,
		Height: size.Height,
		Left:   svgPad,
		Right:  size.Width - svgPad/2,
		Top:    svgPad / 2,
		Bottom: size.Height - svgPad,
	}
	d.DateY = d.Bottom + 18
	d.MinLabel = formatValue(ext.min)
	d.MaxLabel = formatValue(ext.max)

	n := len(res.Points)
	d.FirstDate = res.Points[0].Date.Format(config.DateLayout)
	d.LastDate = res.Points[n-1].Date.Format(config.DateLayout)

	plotW := d.Right - d.Left
	plotH := d.Bottom - d.Top
	var actual, predicted []string
	for i, p := range res.Points {
		x := d.Left
		if n > 1 {
			x += i * plotW / (n - 1)
		}
		if plottable(p.Actual) {
			actual = append(actual, point(x, d.Bottom-ext.scale(*p.Actual, plotH)))
		}
		if plottable(p.Forecast) {
			predicted = append(predicted, point(x, d.Bottom-ext.scale(*p.Forecast, plotH)))
		}
	}
	d.Actual = strings.Join(actual, " ")
	d.Forecast = strings.Join(predicted, " ")

	var buf bytes.Buffer
	if err := svgTemplate.Execute(&buf, d); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "Failed to render chart")
	}
	return template.HTML(buf.String()), nil
}

func point(x, y int) string {
	return strconv.Itoa(x) + "," + strconv.Itoa(y)
}
