package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/torre76/smartcrf/crf"
)

// Private constants (alphabetical)

// defaultQueueSize is the buffer between the worker and the consumer.
const defaultQueueSize = 16

// Public types (alphabetical)

// Options configures a Runner.
type Options struct {
	// Range is the acceptable bitrate window.
	Range TargetRange

	// Policy controls rounding, precision and clamping of the CRF.
	Policy crf.Policy

	// Rename enables filesystem changes; false produces a dry run.
	Rename bool

	// TagSkipped renames in-range files with a "skip" tag.
	TagSkipped bool

	// Extensions is the allowlist. Empty selects DefaultExtensions.
	Extensions []string

	// QueueSize is the channel buffer used by Start. Zero selects a default.
	QueueSize int

	// OnListed, when set, receives the number of eligible files once the
	// directory has been listed and before the first file is handled.
	OnListed func(files int)
}

// Prober reads the bitrate of a media file in kbps. Implementations must
// return an error for missing, unreadable or unrecognized files.
type Prober interface {
	BitrateKbps(ctx context.Context, path string) (int64, error)
}

// Runner processes the eligible files of a directory one at a time.
type Runner struct {
	prober     Prober
	classifier *Classifier
	extensions []string
	queueSize  int
	onListed   func(files int)
	logger     *slog.Logger
}

// Public functions (alphabetical)

// NewRunner validates opts and returns a Runner using prober for bitrates.
func NewRunner(prober Prober, opts Options, logger *slog.Logger) (*Runner, error) {
	if prober == nil {
		return nil, errors.New("batch: prober is required")
	}
	if err := opts.Range.Validate(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Runner{
		prober: prober,
		classifier: &Classifier{
			Range:      opts.Range,
			Policy:     opts.Policy,
			Rename:     opts.Rename,
			TagSkipped: opts.TagSkipped,
			Logger:     logger,
		},
		extensions: opts.Extensions,
		queueSize:  queueSize,
		onListed:   opts.OnListed,
		logger:     logger,
	}, nil
}

// Public methods (alphabetical)

// Run lists dir and handles its files in order, passing each Outcome to sink
// as soon as it is produced.
//
// Cancelling ctx stops the run before the next file; the file in progress,
// including its probe, always completes. Run then returns ctx.Err(). A
// directory that cannot be listed is returned as an error before any outcome.
func (r *Runner) Run(ctx context.Context, dir string, sink func(Outcome)) error {
	return r.run(ctx, dir, func(o Outcome) bool {
		sink(o)
		return true
	})
}

// Start runs the batch on a background goroutine and returns the outcome
// stream and a channel that receives the run's final error (nil on success)
// once the outcome channel is closed.
//
// The consumer may stop reading at any time after cancelling ctx. The worker
// then finishes the file in progress and exits with ctx.Err(). An outcome that
// can no longer be handed off is logged at warn level, so a rename that already
// happened still leaves a trace.
func (r *Runner) Start(ctx context.Context, dir string) (<-chan Outcome, <-chan error) {
	outcomes := make(chan Outcome, r.queueSize)
	done := make(chan error, 1)

	go func() {
		defer close(done)
		defer close(outcomes)
		done <- r.run(ctx, dir, func(o Outcome) bool {
			select {
			case outcomes <- o:
				return true
			default:
			}
			select {
			case outcomes <- o:
				return true
			case <-ctx.Done():
				r.logger.Warn("outcome not delivered, consumer stopped",
					"file", o.File.Path, "status", string(o.Status), "message", o.Message)
				return false
			}
		})
	}()

	return outcomes, done
}

// Private methods (alphabetical)

func (r *Runner) process(ctx context.Context, file MediaFile) Outcome {
	kbps, err := r.prober.BitrateKbps(ctx, file.Path)
	if err != nil {
		r.logger.Debug("probe failed", "file", file.Path, "error", err)
		return ProbeFailed(file, err)
	}
	r.logger.Debug("probed bitrate", "file", file.Path, "bitrate_kbps", kbps)
	return r.classifier.Classify(file, BitrateSample{Kbps: kbps})
}

// run drives the loop shared by Run and Start. A sink returning false ends
// the run with ctx.Err().
func (r *Runner) run(ctx context.Context, dir string, sink func(Outcome) bool) error {
	files, err := Scan(dir, r.extensions)
	if err != nil {
		return err
	}
	r.logger.Info("scanning folder", "dir", dir, "files", len(files), "range", r.classifier.Range.String())
	if r.onListed != nil {
		r.onListed(len(files))
	}

	// The probe of the current file is not interrupted by a stop request.
	probeCtx := context.WithoutCancel(ctx)

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			r.logger.Info("stopped before processing remaining files", "remaining", len(files)-i)
			return err
		}
		if !sink(r.process(probeCtx, file)) {
			r.logger.Info("stopped before processing remaining files", "remaining", len(files)-i-1)
			return ctx.Err()
		}
	}
	return nil
}
