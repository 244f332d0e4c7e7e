package server

import (
	"flakecast/internal/annotation"
	"flakecast/internal/cache"
	"flakecast/internal/config"
	"flakecast/internal/forecast"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Code        string   `json:"code,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type CatalogResponse struct {
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
}

type PointDTO struct {
	Date     string   `json:"date"`
	Actual   *float64 `json:"actual,omitempty"`
	Forecast *float64 `json:"forecast,omitempty"`
}

type ForecastResponse struct {
	Request    forecast.Request `json:"request"`
	Points     []PointDTO       `json:"points"`
	Rows       int              `json:"rows"`
	Positive   int              `json:"positive_rows"`
	ComputedAt string           `json:"computed_at,omitempty"`
	Empty      bool             `json:"empty"`
	Message    string           `json:"message,omitempty"`
}

type AnnotationDTO struct {
	Key     string `json:"key"`
	Date    string `json:"date"`
	Store   int64  `json:"store"`
	Item    int64  `json:"item"`
	Comment string `json:"comment"`
}

// AnnotationRequest is the body of POST /api/annotations. Date defaults to
// today when omitted.
type AnnotationRequest struct {
	Date    string `json:"date"`
	Store   int64  `json:"store"`
	Item    int64  `json:"item"`
	Comment string `json:"comment"`
}

type AnnotationsResponse struct {
	Saved       *AnnotationDTO  `json:"saved,omitempty"`
	Annotations []AnnotationDTO `json:"annotations"`
}

type CacheResponse struct {
	Purged int            `json:"purged"`
	Stats  cache.Snapshot `json:"stats"`
}

type HealthResponse struct {
	Status string         `json:"status"`
	Cache  cache.Snapshot `json:"cache"`
}

func toPoints(points []forecast.SeriesPoint) []PointDTO {
	out := make([]PointDTO, len(points))
	for i, p := range points {
		out[i] = PointDTO{
			Date:     p.Date.Format(config.DateLayout),
			Actual:   p.Actual,
			Forecast: p.Forecast,
		}
	}
	return out
}

func toAnnotationDTO(a annotation.Annotation) AnnotationDTO {
	return AnnotationDTO{
		Key:     a.Key,
		Date:    a.Date.Format(config.DateLayout),
		Store:   a.Store,
		Item:    a.Item,
		Comment: a.Comment,
	}
}

func toAnnotationDTOs(list []annotation.Annotation) []AnnotationDTO {
	out := make([]AnnotationDTO, len(list))
	for i, a := range list {
		out[i] = toAnnotationDTO(a)
	}
	return out
}
