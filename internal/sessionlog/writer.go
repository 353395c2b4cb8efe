package sessionlog

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	batchSize     = 50
	flushInterval = 500 * time.Millisecond
)

// Store persists batches of entries.
type Store interface {
	SaveEntries(ctx context.Context, entries []Entry) error
}

// Writer drains a buffered channel into a Store in batches.
type Writer struct {
	store    Store
	in       chan Entry
	interval time.Duration
	log      zerolog.Logger
}

func NewWriter(store Store, buffer int, log zerolog.Logger) *Writer {
	if buffer <= 0 {
		buffer = 1000
	}
	return &Writer{
		store:    store,
		in:       make(chan Entry, buffer),
		interval: flushInterval,
		log:      log,
	}
}

// Sink is the channel journals forward entries to.
func (w *Writer) Sink() chan<- Entry { return w.in }

// Run flushes every batchSize entries or every interval, whichever comes
// first, and performs a final flush when ctx ends.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	batch := make([]Entry, 0, batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := w.store.SaveEntries(ctx, batch); err != nil {
			w.log.Error().Err(err).Int("entries", len(batch)).Msg("save session log batch")
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-w.in:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			for {
				select {
				case e := <-w.in:
					batch = append(batch, e)
				default:
					shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					flush(shutdown)
					cancel()
					return
				}
			}
		}
	}
}
