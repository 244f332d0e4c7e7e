package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"flakecast/internal/annotation"
	"flakecast/internal/cache"
	"flakecast/internal/catalog"
	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/internal/report"
	"flakecast/pkg/errors"
)

// Catalog lists selectable values.
type Catalog interface {
	List(ctx context.Context, d catalog.Dimension) ([]string, error)
}

// Forecasts runs forecasts through the result cache.
type Forecasts interface {
	Get(ctx context.Context, req forecast.Request) (*forecast.Result, error)
	Bounds() forecast.Bounds
}

// Annotations is the comment log.
type Annotations interface {
	Append(ctx context.Context, a annotation.Annotation) error
	ListFor(ctx context.Context, store, item int64) ([]annotation.Annotation, error)
}

// Handler holds the dependencies of every endpoint.
type Handler struct {
	Catalog     Catalog
	Forecasts   Forecasts
	Annotations Annotations
	Cache       *cache.ResultCache

	logger *zap.Logger
	errs   *errors.ErrorHandler
	now    func() time.Time
}

// NewHandler wires the handler. A nil logger logs nothing.
func NewHandler(c Catalog, f Forecasts, a Annotations, rc *cache.ResultCache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Catalog:     c,
		Forecasts:   f,
		Annotations: a,
		Cache:       rc,
		logger:      logger,
		errs:        errors.NewErrorHandler(logger),
		now:         time.Now,
	}
}

// Health reports liveness and cache counters. It never touches the warehouse.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Cache: h.Cache.Stats()})
}

// ListCatalog returns the distinct values of one dimension.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	d, err := catalog.ParseDimension(chi.URLParam(r, "dimension"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	values, err := h.Catalog.List(r.Context(), d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CatalogResponse{Dimension: string(d), Values: values})
}

// GetForecast returns the full series for store, item and horizon.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	res, ok := h.forecast(w, r)
	if !ok {
		return
	}
	resp := ForecastResponse{
		Request:  res.Request,
		Points:   toPoints(res.Points),
		Rows:     len(res.Points),
		Positive: len(report.Positive(res)),
		Empty:    res.Empty(),
	}
	if !res.ComputedAt.IsZero() {
		resp.ComputedAt = res.ComputedAt.UTC().Format(time.RFC3339)
	}
	if res.Empty() {
		resp.Message = report.EmptyState
	}
	writeJSON(w, http.StatusOK, resp)
}

// DownloadCSV streams the positive rows as an attachment.
func (h *Handler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := h.forecast(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, res); err != nil {
		h.writeError(w, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", report.Filename(res.Request, "csv"), buf.Bytes())
}

// DownloadXLSX streams the positive rows as a workbook.
func (h *Handler) DownloadXLSX(w http.ResponseWriter, r *http.Request) {
	res, ok := h.forecast(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, res); err != nil {
		h.writeError(w, err)
		return
	}
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		report.Filename(res.Request, "xlsx"), buf.Bytes())
}

// ListAnnotations returns the comment history for store and item.
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	store, err := intParam(q, "store")
	if err != nil {
		h.writeError(w, err)
		return
	}
	item, err := intParam(q, "item")
	if err != nil {
		h.writeError(w, err)
		return
	}
	list, err := h.Annotations.ListFor(r.Context(), store, item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnotationsResponse{Annotations: toAnnotationDTOs(list)})
}

// CreateAnnotation appends a comment and answers with the refreshed history.
// A form post from the dashboard page is redirected back to it instead.
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	fromForm := !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var body AnnotationRequest
	if fromForm {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid form"))
			return
		}
		store, err := intParam(r.PostForm, "store")
		if err != nil {
			h.writeError(w, err)
			return
		}
		item, err := intParam(r.PostForm, "item")
		if err != nil {
			h.writeError(w, err)
			return
		}
		body = AnnotationRequest{
			Date:    r.PostForm.Get("date"),
			Store:   store,
			Item:    item,
			Comment: r.PostForm.Get("comment"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid JSON body"))
		return
	}

	date := h.now()
	if body.Date != "" {
		d, err := config.ParseDate(body.Date)
		if err != nil {
			h.writeError(w, errors.ValidationError("date", body.Date, "must be YYYY-MM-DD"))
			return
		}
		date = d
	}

	a := annotation.New(date, body.Store, body.Item, body.Comment)
	if err := h.Annotations.Append(r.Context(), a); err != nil {
		h.writeError(w, err)
		return
	}

	if fromForm {
		back := url.Values{}
		back.Set("store", strconv.FormatInt(a.Store, 10))
		back.Set("item", strconv.FormatInt(a.Item, 10))
		for _, k := range []string{"horizon", "run"} {
			if v := r.PostForm.Get(k); v != "" {
				back.Set(k, v)
			}
		}
		http.Redirect(w, r, "/?"+back.Encode(), http.StatusSeeOther)
		return
	}

	list, err := h.Annotations.ListFor(r.Context(), a.Store, a.Item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	saved := toAnnotationDTO(a)
	writeJSON(w, http.StatusCreated, AnnotationsResponse{Saved: &saved, Annotations: toAnnotationDTOs(list)})
}

// ClearCache drops one cached forecast when store, item and horizon are
// given, otherwise every cached forecast.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	purged := 0
	if q.Has("store") || q.Has("item") || q.Has("horizon") {
		req, err := parseRequest(q)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if h.Cache.Invalidate(req) {
			purged = 1
		}
	} else {
		purged = h.Cache.Purge()
	}
	h.logger.Info("forecast cache cleared", zap.Int("purged", purged))
	writeJSON(w, http.StatusOK, CacheResponse{Purged: purged, Stats: h.Cache.Stats()})
}

func (h *Handler) forecast(w http.ResponseWriter, r *http.Request) (*forecast.Result, bool) {
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	res, err := h.Forecasts.Get(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return res, true
}

func parseRequest(q url.Values) (forecast.Request, error) {
	store, err := intParam(q, "store")
	if err != nil {
		return forecast.Request{}, err
	}
	item, err := intParam(q, "item")
	if err != nil {
		return forecast.Request{}, err
	}
	// A horizon that does not fit in an int is rejected, never truncated.
	raw, err := requiredParam(q, "horizon")
	if err != nil {
		return forecast.Request{}, err
	}
	horizon, err := strconv.Atoi(raw)
	if err != nil {
		return forecast.Request{}, errors.ValidationError("horizon", raw, "must be a whole number of days")
	}
	return forecast.Request{Store: store, Item: item, Horizon: horizon}, nil
}

func requiredParam(q url.Values, name string) (string, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return "", errors.New(errors.ErrCodeRequiredField, fmt.Sprintf("%s is required", name)).
			WithContext("field", name)
	}
	return raw, nil
}

func intParam(q url.Values, name string) (int64, error) {
	raw, err := requiredParam(q, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.ValidationError(name, raw, "must be a whole number")
	}
	return n, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.errs.Handle(err)
	resp := ErrorResponse{Error: err.Error()}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Code = string(appErr.Code)
		resp.Suggestions = appErr.Suggestions
	}
	writeJSON(w, errors.HTTPStatus(err), resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
