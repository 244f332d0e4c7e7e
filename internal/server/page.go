package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"flakecast/internal/catalog"
	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/internal/report"
	"flakecast/pkg/errors"
)

//go:embed templates/index.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

type pageData struct {
	Stores      []string
	Items       []string
	Store       string
	Item        string
	Horizon     int
	Bounds      forecast.Bounds
	Ran         bool
	Title       string
	Chart       template.HTML
	Rows        []report.Row
	EmptyState  string
	Error       string
	CSVURL      string
	XLSXURL     string
	Annotations []AnnotationDTO
	Today       string
}

// Page renders the dashboard. The forecast runs only when the form was
// submitted with the run button; changing a selector alone never queries.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bounds := h.Forecasts.Bounds()
	data := pageData{
		Bounds:     bounds,
		Horizon:    bounds.Min,
		EmptyState: report.EmptyState,
		Today:      h.now().Format(config.DateLayout),
	}

	var err error
	if data.Stores, err = h.Catalog.List(r.Context(), catalog.Stores); err != nil {
		h.pageError(&data, err)
	}
	if data.Items, err = h.Catalog.List(r.Context(), catalog.Items); err != nil {
		h.pageError(&data, err)
	}
	data.Store = pick(q.Get("store"), data.Stores)
	data.Item = pick(q.Get("item"), data.Items)
	if v, err := strconv.Atoi(q.Get("horizon")); err == nil {
		data.Horizon = v
	}

	if q.Get("run") != "" && data.Error == "" {
		h.runForPage(r, &data)
	}

	if store, err := strconv.ParseInt(data.Store, 10, 64); err == nil {
		if item, err := strconv.ParseInt(data.Item, 10, 64); err == nil {
			list, err := h.Annotations.ListFor(r.Context(), store, item)
			if err != nil {
				h.pageError(&data, err)
			}
			data.Annotations = toAnnotationDTOs(list)
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.writeError(w, errors.Wrap(err, errors.ErrCodeInternal, "Failed to render page"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) runForPage(r *http.Request, data *pageData) {
	params := url.Values{}
	params.Set("store", data.Store)
	params.Set("item", data.Item)
	params.Set("horizon", strconv.Itoa(data.Horizon))

	req, err := parseRequest(params)
	if err != nil {
		h.pageError(data, err)
		return
	}

	data.Ran = true
	data.Title = report.Title(req)
	res, err := h.Forecasts.Get(r.Context(), req)
	if err != nil {
		data.Ran = false
		h.pageError(data, err)
		return
	}

	data.Rows = report.Positive(res)
	if data.Chart, err = report.SVG(res, report.DefaultSVGSize); err != nil {
		h.pageError(data, err)
	}
	data.CSVURL = "/api/forecast/csv?" + params.Encode()
	data.XLSXURL = "/api/forecast/xlsx?" + params.Encode()
}

func (h *Handler) pageError(data *pageData, err error) {
	h.errs.Handle(err)
	if data.Error == "" {
		data.Error = errors.UserMessage(err)
	}
}

// pick keeps the requested value when it is offered, else the first option.
func pick(want string, options []string) string {
	for _, o := range options {
		if o == want {
			return want
		}
	}
	if len(options) > 0 {
		return options[0]
	}
	return ""
}
