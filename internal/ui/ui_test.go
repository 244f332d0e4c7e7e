package ui

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakecast/pkg/errors"
)

func withoutColor(t *testing.T) {
	t.Helper()
	original := supportsColor
	supportsColor = false
	t.Cleanup(func() { supportsColor = original })
}

func TestColorFunc(t *testing.T) {
	original := supportsColor
	defer func() { supportsColor = original }()

	supportsColor = true
	assert.NotEqual(t, "text", ColorSuccess("text"))
	assert.Contains(t, ColorError("text"), "text")

	supportsColor = false
	for _, fn := range []func(string) string{ColorSuccess, ColorError, ColorWarning, ColorInfo, ColorProgress, ColorBold, ColorDim} {
		assert.Equal(t, "text", fn("text"))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{45 * time.Second, "45.0s"},
		{3*time.Minute + 7*time.Second, "3m7s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatDuration(tt.duration))
	}
}

func TestShowError(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer

	err := errors.New(errors.ErrCodeNoResults, "No data for this selection").
		WithSuggestions("Pick another item")
	ShowError(&buf, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ERROR: No data for this selection\n"))
	assert.Contains(t, out, "Pick another item")
	assert.Contains(t, out, "code FCE4008")
}

func TestShowErrorPlain(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	ShowError(&buf, fmt.Errorf("boom"))
	assert.Equal(t, "ERROR: boom\n", buf.String())
}

func TestShowHeader(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	ShowHeader(&buf, "Forecast")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, len(lines[0]), len(lines[1]))
	assert.Contains(t, lines[1], "Forecast")
}

func TestQuietUIDiscardsOutput(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	u := &UI{Quiet: true, Out: &buf}

	u.Info("hello")
	u.Success("done")
	u.Printf("%d rows\n", 3)
	u.StartProgress("working")
	u.StopProgress(true, "done")
	assert.Empty(t, buf.String())

	u.Error(fmt.Errorf("still shown"))
	assert.Contains(t, buf.String(), "still shown")
}

func TestVerbosePrintf(t *testing.T) {
	var buf bytes.Buffer
	u := &UI{Out: &buf}
	u.VerbosePrintf("hidden")
	assert.Empty(t, buf.String())

	u.Verbose = true
	u.VerbosePrintf("shown")
	assert.Equal(t, "shown", buf.String())
}

func TestSpinnerWithoutAnimation(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Running forecast", false)
	s.Start()
	s.Stop(true, "Forecast ready")
	s.Stop(true, "again")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ok Forecast ready ("))
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSpinnerAnimates(t *testing.T) {
	withoutColor(t)
	var buf syncBuffer
	s := NewSpinner(&buf, "Running forecast", true)
	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop(false, "Forecast failed")

	out := buf.String()
	assert.Contains(t, out, "Running forecast")
	assert.Contains(t, out, "failed Forecast failed")
}

func TestIntValidator(t *testing.T) {
	v := IntValidator(1, 80)
	assert.NoError(t, v("1"))
	assert.NoError(t, v(" 80 "))
	assert.Error(t, v("0"))
	assert.Error(t, v("81"))
	assert.Error(t, v("thirty"))
}

func TestSelectWithoutOptions(t *testing.T) {
	_, err := SurveyPrompter{}.Select("Store", nil)
	assert.ErrorIs(t, err, errors.ErrEmptyResult)
}
