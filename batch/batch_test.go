package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/torre76/smartcrf/crf"
)

// fakeProber returns canned bitrates keyed by file base name.
type fakeProber struct {
	mu      sync.Mutex
	bitrate map[string]int64
	calls   []string
	onProbe func(name string)
}

func (f *fakeProber) BitrateKbps(_ context.Context, path string) (int64, error) {
	name := filepath.Base(path)
	f.mu.Lock()
	f.calls = append(f.calls, name)
	hook := f.onProbe
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}

	kbps, ok := f.bitrate[name]
	if !ok {
		return 0, errors.New("not a recognized media container")
	}
	return kbps, nil
}

// RunnerTestSuite exercises the classifier and the runner on a real directory.
type RunnerTestSuite struct {
	suite.Suite
	dir    string      // Directory holding the test files
	rng    TargetRange // Range used by most tests, 1800-2200 kbps
	prober *fakeProber // Prober answering for the test files
}

// SetupTest creates a fresh directory for each test.
func (s *RunnerTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	var err error
	s.rng, err = NewTargetRange(1800, 2200, 0)
	s.Require().NoError(err)
	s.prober = &fakeProber{bitrate: map[string]int64{}}
}

// touch creates a file with content equal to its name.
func (s *RunnerTestSuite) touch(name string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(name), 0o644))
	return path
}

func (s *RunnerTestSuite) classifier() *Classifier {
	return &Classifier{Range: s.rng, Policy: crf.DefaultPolicy(), Rename: true}
}

func (s *RunnerTestSuite) runner(opts Options) *Runner {
	if opts.Range == (TargetRange{}) {
		opts.Range = s.rng
	}
	if opts.Policy == (crf.Policy{}) {
		opts.Policy = crf.DefaultPolicy()
	}
	r, err := NewRunner(s.prober, opts, nil)
	s.Require().NoError(err)
	return r
}

func (s *RunnerTestSuite) collect(r *Runner) ([]Outcome, error) {
	var got []Outcome
	err := r.Run(context.Background(), s.dir, func(o Outcome) { got = append(got, o) })
	return got, err
}

// TestClassifyRename verifies the documented 4000 kbps example.
func (s *RunnerTestSuite) TestClassifyRename() {
	src := s.touch("a.mp4")

	out := s.classifier().Classify(NewMediaFile(src), BitrateSample{Kbps: 4000})
	s.Equal(StatusProcessed, out.Status)
	s.True(out.HasCRF)
	s.Equal(26.0, out.CRF)
	s.Equal(filepath.Join(s.dir, "a crf 26.mp4"), out.NewPath)
	s.Contains(out.Message, "Predicted CRF: 26")
	s.NoFileExists(src)
	s.FileExists(out.NewPath)
}

// TestClassifyBoundaries verifies the range is inclusive on both ends.
func (s *RunnerTestSuite) TestClassifyBoundaries() {
	for _, kbps := range []int64{1800, 2000, 2200} {
		src := s.touch("b.mkv")
		out := s.classifier().Classify(NewMediaFile(src), BitrateSample{Kbps: kbps})
		s.Equal(StatusSkip, out.Status, "bitrate %d", kbps)
		s.False(out.HasCRF)
		s.Contains(out.Message, "Already in target range")
		s.FileExists(src)
	}

	src := s.touch("c.mkv")
	out := s.classifier().Classify(NewMediaFile(src), BitrateSample{Kbps: 2201})
	s.Equal(StatusProcessed, out.Status)
}

// TestClassifyCollision verifies an existing destination is never overwritten.
func (s *RunnerTestSuite) TestClassifyCollision() {
	src := s.touch("a.mp4")
	taken := s.touch("a crf 26.mp4")

	out := s.classifier().Classify(NewMediaFile(src), BitrateSample{Kbps: 4000})
	s.Equal(StatusSkip, out.Status)
	s.ErrorIs(out.Err, ErrCollision)
	s.Contains(out.Message, "already exists")
	s.NotContains(out.Message, "target range")

	content, err := os.ReadFile(taken)
	s.Require().NoError(err)
	s.Equal("a crf 26.mp4", string(content))
	content, err = os.ReadFile(src)
	s.Require().NoError(err)
	s.Equal("a.mp4", string(content))
}

// TestClassifyAlreadyTagged verifies a file carrying the same tag is skipped.
func (s *RunnerTestSuite) TestClassifyAlreadyTagged() {
	src := s.touch("a crf 26.mp4")

	out := s.classifier().Classify(NewMediaFile(src), BitrateSample{Kbps: 4000})
	s.Equal(StatusSkip, out.Status)
	s.Contains(out.Message, "Already tagged")
	s.FileExists(src)
}

// TestClassifyRetag verifies an outdated tag is replaced rather than stacked.
func (s *RunnerTestSuite) TestClassifyRetag() {
	src := s.touch("a crf 30.mp4")

	out := s.classifier().Classify(NewMediaFile(src), BitrateSample{Kbps: 4000})
	s.Equal(StatusProcessed, out.Status)
	s.Equal(filepath.Join(s.dir, "a crf 26.mp4"), out.NewPath)
}

// TestClassifyDryRun verifies no file changes when renaming is disabled.
func (s *RunnerTestSuite) TestClassifyDryRun() {
	src := s.touch("a.mp4")
	c := s.classifier()
	c.Rename = false

	out := c.Classify(NewMediaFile(src), BitrateSample{Kbps: 4000})
	s.Equal(StatusProcessed, out.Status)
	s.Contains(out.Message, "Would rename to a crf 26.mp4")
	s.FileExists(src)
	s.NoFileExists(out.NewPath)
}

// TestClassifyTagSkipped verifies in-range files receive the skip tag on request.
func (s *RunnerTestSuite) TestClassifyTagSkipped() {
	src := s.touch("b.mkv")
	c := s.classifier()
	c.TagSkipped = true

	out := c.Classify(NewMediaFile(src), BitrateSample{Kbps: 2000})
	s.Equal(StatusSkip, out.Status)
	s.Equal(filepath.Join(s.dir, "b skip.mkv"), out.NewPath)
	s.FileExists(out.NewPath)
	s.NoFileExists(src)
}

// TestClassifyTagSkippedDryRun verifies the dry run names the skip rename
// without performing it.
func (s *RunnerTestSuite) TestClassifyTagSkippedDryRun() {
	src := s.touch("b.mkv")
	c := s.classifier()
	c.TagSkipped = true
	c.Rename = false

	out := c.Classify(NewMediaFile(src), BitrateSample{Kbps: 2000})
	s.Equal(StatusSkip, out.Status)
	s.Equal("b.mkv | Bitrate: 2000 kbps | Already in target range, would rename to b skip.mkv", out.Message)
	s.Empty(out.NewPath)
	s.FileExists(src)
	s.NoFileExists(filepath.Join(s.dir, "b skip.mkv"))
}

// TestClassifyNotClamped verifies the unclamped policy writes the raw value.
func (s *RunnerTestSuite) TestClassifyNotClamped() {
	src := s.touch("tiny.mp4")
	c := s.classifier()
	c.Policy.Clamp = false

	// 20 + log2(10/2000) * 6 = -25.86
	out := c.Classify(NewMediaFile(src), BitrateSample{Kbps: 10})
	s.Equal(StatusProcessed, out.Status)
	s.Equal(filepath.Join(s.dir, "tiny crf -26.mp4"), out.NewPath)

	c.Policy.Clamp = true
	src = s.touch("tiny2.mp4")
	out = c.Classify(NewMediaFile(src), BitrateSample{Kbps: 10})
	s.Equal(filepath.Join(s.dir, "tiny2 crf 0.mp4"), out.NewPath)
}

// TestClassifyVanishedSource verifies a file removed after listing is an ERROR.
func (s *RunnerTestSuite) TestClassifyVanishedSource() {
	file := NewMediaFile(filepath.Join(s.dir, "gone.mp4"))

	out := s.classifier().Classify(file, BitrateSample{Kbps: 4000})
	s.Equal(StatusError, out.Status)
	var fsErr *FilesystemError
	s.Require().ErrorAs(out.Err, &fsErr)
	s.Equal("stat", fsErr.Op)
	s.Empty(out.NewPath)
}

// TestClassifyPermissionDenied verifies a blocked rename is an ERROR and
// leaves the file in place.
func (s *RunnerTestSuite) TestClassifyPermissionDenied() {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		s.T().Skip("directory permissions are not enforced")
	}
	src := s.touch("a.mp4")
	s.Require().NoError(os.Chmod(s.dir, 0o555))
	defer os.Chmod(s.dir, 0o755)

	out := s.classifier().Classify(NewMediaFile(src), BitrateSample{Kbps: 4000})
	s.Equal(StatusError, out.Status)
	s.ErrorIs(out.Err, os.ErrPermission)
	s.Contains(out.Message, "Failed to rename to a crf 26.mp4")
	s.FileExists(src)
}

// TestRunEndToEnd verifies the three documented examples in one directory.
func (s *RunnerTestSuite) TestRunEndToEnd() {
	s.touch("a.mp4")
	s.touch("b.mkv")
	s.touch("c.avi")
	s.touch("notes.txt")
	s.Require().NoError(os.Mkdir(filepath.Join(s.dir, "nested.mp4"), 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, "nested.mp4", "d.mp4"), nil, 0o644))
	s.prober.bitrate["a.mp4"] = 4000
	s.prober.bitrate["b.mkv"] = 2000
	s.prober.bitrate["d.mp4"] = 9000

	got, err := s.collect(s.runner(Options{Rename: true}))
	s.Require().NoError(err)
	s.Require().Len(got, 3)

	s.Equal(StatusProcessed, got[0].Status)
	s.Equal("a.mp4", got[0].File.Name())
	s.Equal(StatusSkip, got[1].Status)
	s.Equal("b.mkv", got[1].File.Name())
	s.Equal(StatusFailed, got[2].Status)
	s.Equal("c.avi", got[2].File.Name())
	s.Contains(got[2].Message, "Failed to read bitrate")

	s.FileExists(filepath.Join(s.dir, "a crf 26.mp4"))
	s.FileExists(filepath.Join(s.dir, "b.mkv"))
	s.FileExists(filepath.Join(s.dir, "c.avi"))
	s.FileExists(filepath.Join(s.dir, "nested.mp4", "d.mp4"))
	s.Equal([]string{"a.mp4", "b.mkv", "c.avi"}, s.prober.calls)
}

// TestRunRestartable verifies a second run sees the renamed files.
func (s *RunnerTestSuite) TestRunRestartable() {
	s.touch("a.mp4")
	s.prober.bitrate["a.mp4"] = 4000
	s.prober.bitrate["a crf 26.mp4"] = 4000
	r := s.runner(Options{Rename: true})

	got, err := s.collect(r)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(StatusProcessed, got[0].Status)

	got, err = s.collect(r)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(StatusSkip, got[0].Status)
	s.Equal("a crf 26.mp4", got[0].File.Name())
}

// TestRunOrder verifies outcomes follow listing order whatever their status.
func (s *RunnerTestSuite) TestRunOrder() {
	names := []string{"e.ts", "a.MP4", "d.webm", "b.3gp", "c.mpg"}
	for _, name := range names {
		s.touch(name)
	}
	s.prober.bitrate["a.MP4"] = 4000
	s.prober.bitrate["b.3gp"] = 2000
	s.prober.bitrate["e.ts"] = 500

	got, err := s.collect(s.runner(Options{Rename: false}))
	s.Require().NoError(err)

	var order []string
	for _, o := range got {
		order = append(order, o.File.Name())
	}
	s.Equal([]string{"a.MP4", "b.3gp", "c.mpg", "d.webm", "e.ts"}, order)
}

// TestRunStop verifies a cancelled run stops after the current file.
func (s *RunnerTestSuite) TestRunStop() {
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		s.touch(name)
		s.prober.bitrate[name] = 4000
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.prober.onProbe = func(string) { cancel() }

	var got []Outcome
	err := s.runner(Options{Rename: true}).Run(ctx, s.dir, func(o Outcome) { got = append(got, o) })
	s.ErrorIs(err, context.Canceled)
	s.Require().Len(got, 1)
	s.Equal(StatusProcessed, got[0].Status)
	s.FileExists(filepath.Join(s.dir, "a crf 26.mp4"))
	s.FileExists(filepath.Join(s.dir, "b.mp4"))
}

// TestRunMissingDirectory verifies listing failures abort before any outcome.
func (s *RunnerTestSuite) TestRunMissingDirectory() {
	r := s.runner(Options{})
	called := false
	err := r.Run(context.Background(), filepath.Join(s.dir, "missing"), func(Outcome) { called = true })
	s.Error(err)
	s.False(called)
}

// TestStart verifies the channel hand-off delivers every outcome in order.
func (s *RunnerTestSuite) TestStart() {
	for _, name := range []string{"a.mp4", "b.mkv", "c.avi"} {
		s.touch(name)
	}
	s.prober.bitrate["a.mp4"] = 4000
	s.prober.bitrate["b.mkv"] = 2000

	listed := -1
	outcomes, done := s.runner(Options{Rename: true, QueueSize: 1, OnListed: func(n int) { listed = n }}).Start(context.Background(), s.dir)
	var statuses []Status
	for o := range outcomes {
		statuses = append(statuses, o.Status)
	}
	s.NoError(<-done)
	s.Equal(3, listed)
	s.Equal([]Status{StatusProcessed, StatusSkip, StatusFailed}, statuses)
}

// TestStartStopWithoutDraining verifies a consumer can cancel and walk away:
// the worker finishes the file in progress and leaves the rest untouched.
func (s *RunnerTestSuite) TestStartStopWithoutDraining() {
	const total = 10
	for i := range total {
		name := fmt.Sprintf("f%d.mp4", i)
		s.touch(name)
		s.prober.bitrate[name] = 4000
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	outcomes, done := s.runner(Options{Rename: true, QueueSize: 1}).Start(ctx, s.dir)

	first := <-outcomes
	s.Equal(StatusProcessed, first.Status)
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		s.FailNow("worker did not finish after cancel")
	}

	s.prober.mu.Lock()
	probed := len(s.prober.calls)
	s.prober.mu.Unlock()
	s.LessOrEqual(probed, 3)
	for i := range total {
		if i < probed {
			s.FileExists(filepath.Join(s.dir, fmt.Sprintf("f%d crf 26.mp4", i)))
			continue
		}
		s.FileExists(filepath.Join(s.dir, fmt.Sprintf("f%d.mp4", i)))
	}
}

// TestNewRunnerValidation verifies unusable options are rejected.
func (s *RunnerTestSuite) TestNewRunnerValidation() {
	_, err := NewRunner(nil, Options{Range: s.rng, Policy: crf.DefaultPolicy()}, nil)
	s.Error(err)

	_, err = NewRunner(s.prober, Options{Range: TargetRange{MinKbps: 10, MaxKbps: 5, IdealKbps: 7}, Policy: crf.DefaultPolicy()}, nil)
	s.Error(err)

	bad := crf.DefaultPolicy()
	bad.Min, bad.Max = 30, 10
	_, err = NewRunner(s.prober, Options{Range: s.rng, Policy: bad}, nil)
	s.Error(err)
}

// TestRunnerTestSuite runs the runner test suite.
func TestRunnerTestSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func TestNewTargetRange(t *testing.T) {
	r, err := NewTargetRange(1800, 2200, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), r.IdealKbps)

	r, err = NewTargetRange(1500, 1600, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1550), r.IdealKbps)

	r, err = NewTargetRange(1500, 1600, 1580)
	require.NoError(t, err)
	assert.Equal(t, int64(1580), r.IdealKbps)

	r, err = NewTargetRange(2000, 2000, 0)
	require.NoError(t, err)
	assert.True(t, r.Contains(2000))
	assert.False(t, r.Contains(1999))

	_, err = NewTargetRange(2200, 1800, 0)
	assert.Error(t, err)
	_, err = NewTargetRange(-5, 1800, 0)
	assert.Error(t, err)
	_, err = NewTargetRange(0, 0, 0)
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	for _, status := range Statuses {
		got, err := ParseStatus(string(status))
		require.NoError(t, err)
		assert.Equal(t, status, got)
	}
	got, err := ParseStatus(" skip ")
	require.NoError(t, err)
	assert.Equal(t, StatusSkip, got)

	_, err = ParseStatus("info")
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.MKV", "a.mp4", "notes.txt", "movie.Mp4", "noext"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.mp4"), nil, 0o644))

	files, err := Scan(dir, nil)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
		assert.True(t, filepath.IsAbs(f.Path))
	}
	assert.Equal(t, []string{"a.mp4", "b.MKV", "movie.Mp4"}, names)
	assert.Equal(t, "mkv", files[1].Extension)

	files, err = Scan(dir, []string{".MKV"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "b.MKV", files[0].Name())
}
