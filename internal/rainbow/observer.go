package rainbow

import (
	"time"

	"github.com/rs/zerolog"
)

// BatchProgress describes one flushed batch.
type BatchProgress struct {
	Batch   int
	Size    int
	Done    int
	Total   int
	Unique  int
	Elapsed time.Duration
}

// Observer receives build progress. Calls come from the goroutine running
// Build, never concurrently.
type Observer interface {
	BatchDone(p BatchProgress)
	BuildDone(r BuildResult)
}

type nopObserver struct{}

func (nopObserver) BatchDone(BatchProgress) {}
func (nopObserver) BuildDone(BuildResult) {}

type multiObserver []Observer

func (m multiObserver) BatchDone(p BatchProgress) {
	for _, o := range m {
		o.BatchDone(p)
	}
}

func (m multiObserver) BuildDone(r BuildResult) {
	for _, o := range m {
		o.BuildDone(r)
	}
}

func MultiObserver(observers ...Observer) Observer {
	return multiObserver(observers)
}

type logObserver struct {
	l zerolog.Logger
}

// NewLogObserver reports progress through l.
func NewLogObserver(l zerolog.Logger) Observer {
	return &logObserver{l: l.With().Str("domain", "builder").Logger()}
}

func (o *logObserver) BatchDone(p BatchProgress) {
	o.l.Info().
		Int("batch", p.Batch).
		Int("size", p.Size).
		Int("done", p.Done).
		Int("total", p.Total).
		Dur("elapsed", p.Elapsed).
		Msg("batch generated")
}

func (o *logObserver) BuildDone(r BuildResult) {
	o.l.Info().
		Int("chains", r.Total).
		Int("unique-endpoints", r.Unique).
		Float64("uniqueness", r.Uniqueness()).
		Dur("elapsed", r.Elapsed).
		Msg("table generated")
}
