package annotation

import (
	"fmt"
	"strings"
	"time"

	"flakecast/internal/config"
	"flakecast/internal/forecast"
	"flakecast/pkg/errors"
)

// Annotation is a free-text note about one store/item on one day.
type Annotation struct {
	Key     string    `json:"key"`
	Date    time.Time `json:"date"`
	Store   int64     `json:"store"`
	Item    int64     `json:"item"`
	Comment string    `json:"comment"`
}

// Key builds the composite key "{date}_{store}_{item}".
func Key(date time.Time, store, item int64) string {
	return fmt.Sprintf("%s_%d_%d", date.Format(config.DateLayout), store, item)
}

// New builds an annotation with its date normalized and key filled in.
func New(date time.Time, store, item int64, comment string) Annotation {
	date = forecast.NormalizeDate(date)
	return Annotation{
		Key:     Key(date, store, item),
		Date:    date,
		Store:   store,
		Item:    item,
		Comment: comment,
	}
}

// Validate rejects annotations that cannot be stored.
func (a Annotation) Validate() error {
	if strings.TrimSpace(a.Comment) == "" {
		return errors.ValidationError("comment", a.Comment, "comment must not be empty")
	}
	if a.Date.IsZero() {
		return errors.ValidationError("date", a.Date, "date is required")
	}
	return nil
}
