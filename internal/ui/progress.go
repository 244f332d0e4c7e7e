package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Spinner is shown while a warehouse query runs.
type Spinner struct {
	out     io.Writer
	frames  []string
	current int
	message string
	animate bool
	start   time.Time
	stop    chan struct{}
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewSpinner creates a new spinner. When animate is false the spinner prints
// nothing until Stop, which keeps logs and pipes clean.
func NewSpinner(out io.Writer, message string, animate bool) *Spinner {
	return &Spinner{
		out:     out,
		frames:  []string{"|", "/", "-", "\\"},
		message: message,
		animate: animate,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.start = time.Now()
	if !s.animate {
		close(s.done)
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.out, "\r%s %s%s",
					ColorProgress(s.frames[s.current]),
					s.message,
					strings.Repeat(" ", 20),
				)
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and prints the outcome with the elapsed time.
// Calling it more than once is a no-op.
func (s *Spinner) Stop(success bool, message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	if s.animate {
		fmt.Fprint(s.out, "\r\033[K")
	}
	elapsed := ColorDim("(" + formatDuration(time.Since(s.start)) + ")")
	if success {
		fmt.Fprintf(s.out, "%s %s %s\n", ColorSuccess("ok"), message, elapsed)
	} else {
		fmt.Fprintf(s.out, "%s %s %s\n", ColorError("failed"), message, elapsed)
	}
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
