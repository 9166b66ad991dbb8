package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Public types (alphabetical)

// ExportOptions selects what Session.Export writes.
type ExportOptions struct {
	// Statuses filters the exported outcomes. Empty exports every outcome.
	Statuses []Status

	// Summary prepends the counters, elapsed time and run ID.
	Summary bool
}

// Session holds the state of one batch run: the ordered outcome log, the
// per-status counters and the lock that keeps a second run off the same
// directory. Create it with NewSession before the run and Close it after.
type Session struct {
	// ID identifies the run in logs and exports.
	ID uuid.UUID

	// Dir is the absolute path of the processed directory.
	Dir string

	// Started is the time the session was created.
	Started time.Time

	mu       sync.Mutex
	outcomes []Outcome
	summary  Summary
	finished time.Time
	lock     *flock.Flock
}

// Summary counts outcomes per status.
type Summary struct {
	Processed int
	Skip      int
	Error     int
	Failed    int
}

// Public functions (alphabetical)

// FormatElapsed renders d as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// NewSession locks dir for a run. lockDir holds the lock file; empty selects
// the OS temp directory. ErrLocked is returned when another session holds
// the same directory.
func NewSession(dir, lockDir string) (*Session, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}
	if lockDir == "" {
		lockDir = os.TempDir()
	}

	lock := flock.New(lockPath(lockDir, absDir))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, absDir)
	}

	return &Session{
		ID:      uuid.New(),
		Dir:     absDir,
		Started: time.Now(),
		lock:    lock,
	}, nil
}

// Public methods (alphabetical)

// Add increments the counter for status.
func (s *Summary) Add(status Status) {
	switch status {
	case StatusProcessed:
		s.Processed++
	case StatusSkip:
		s.Skip++
	case StatusError:
		s.Error++
	case StatusFailed:
		s.Failed++
	}
}

// Close records the end time and releases the directory lock.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.finished.IsZero() {
		s.finished = time.Now()
	}
	s.mu.Unlock()
	return s.lock.Unlock()
}

// Count returns the counter for status.
func (s Summary) Count(status Status) int {
	switch status {
	case StatusProcessed:
		return s.Processed
	case StatusSkip:
		return s.Skip
	case StatusError:
		return s.Error
	case StatusFailed:
		return s.Failed
	}
	return 0
}

// Elapsed returns the run duration, measured up to now while the session is open.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.finished.Sub(s.Started)
}

// Export writes the outcomes matching opts as newline-delimited
// "[STATUS] message" lines in emission order. ErrNothingToExport is returned,
// and nothing is written, when no outcome matches.
func (s *Session) Export(w io.Writer, opts ExportOptions) error {
	lines := s.Outcomes(opts.Statuses...)
	if len(lines) == 0 {
		return ErrNothingToExport
	}

	if opts.Summary {
		if _, err := fmt.Fprintf(w, "==== Summary ====\n%s\nElapsed Time : %s\nRun ID : %s\n\n==== Filtered Log ====\n",
			s.Summary(), FormatElapsed(s.Elapsed()), s.ID); err != nil {
			return err
		}
	}
	for _, o := range lines {
		if _, err := io.WriteString(w, o.String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Outcomes returns a copy of the recorded outcomes in emission order,
// restricted to statuses when any are given.
func (s *Session) Outcomes(statuses ...Status) []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(statuses) == 0 {
		return append([]Outcome(nil), s.outcomes...)
	}
	keep := make(map[Status]bool, len(statuses))
	for _, status := range statuses {
		keep[status] = true
	}
	var filtered []Outcome
	for _, o := range s.outcomes {
		if keep[o.Status] {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// Record appends o to the log and updates the counters. It is safe to call
// from the goroutine draining a Runner while another reads the session.
func (s *Session) Record(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	s.summary.Add(o.Status)
}

// String renders the counters as "Processed : 1 | Skip : 0 | Error : 0 | Failed : 0".
func (s Summary) String() string {
	return fmt.Sprintf("Processed : %d | Skip : %d | Error : %d | Failed : %d",
		s.Processed, s.Skip, s.Error, s.Failed)
}

// Summary returns a snapshot of the counters.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Total returns the number of counted outcomes.
func (s Summary) Total() int {
	return s.Processed + s.Skip + s.Error + s.Failed
}

// Private functions (alphabetical)

// lockPath derives a per-directory lock file name.
func lockPath(lockDir, absDir string) string {
	sum := sha256.Sum256([]byte(absDir))
	return filepath.Join(lockDir, "smartcrf-"+hex.EncodeToString(sum[:8])+".lock")
}
