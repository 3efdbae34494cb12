package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siahsang/portfolio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticRefs struct {
	paths []string
	err   error
}

func (r staticRefs) ReferencedUploads(context.Context) ([]string, error) {
	return r.paths, r.err
}

func makeUpload(t *testing.T, root string) string {
	t.Helper()
	name := uuid.NewString()
	require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, name, "a.png"), []byte("x"), 0o644))
	return name
}

func TestSweepRemovesOnlyOrphans(t *testing.T) {
	root := t.TempDir()
	kept := makeUpload(t, root)
	orphan := makeUpload(t, root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-uuid"), 0o755))

	refs := staticRefs{paths: []string{"/uploads/" + kept + "/a.png", ""}}
	s := NewSweeper(refs, root, time.Hour, testutil.NewLogger())
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	removed, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.DirExists(t, filepath.Join(root, kept))
	assert.NoDirExists(t, filepath.Join(root, orphan))
	assert.DirExists(t, filepath.Join(root, "not-a-uuid"))
}

func TestSweepKeepsFreshUploads(t *testing.T) {
	root := t.TempDir()
	fresh := makeUpload(t, root)

	s := NewSweeper(staticRefs{}, root, time.Hour, testutil.NewLogger())
	removed, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.DirExists(t, filepath.Join(root, fresh))
}

func TestSweepErrors(t *testing.T) {
	boom := errors.New("db down")
	s := NewSweeper(staticRefs{err: boom}, t.TempDir(), 0, testutil.NewLogger())
	_, err := s.Sweep(context.Background())
	assert.ErrorIs(t, err, boom)

	missing := NewSweeper(staticRefs{}, filepath.Join(t.TempDir(), "nope"), 0, testutil.NewLogger())
	removed, err := missing.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

type countingPruner struct{ calls chan time.Duration }

func (p countingPruner) Prune(idle time.Duration) {
	select {
	case p.calls <- idle:
	default:
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(testutil.NewLogger())
	require.NoError(t, s.AddSweep("@daily", NewSweeper(staticRefs{}, t.TempDir(), 0, testutil.NewLogger())))
	assert.Error(t, s.AddSweep("not a schedule", nil))

	pruner := countingPruner{calls: make(chan time.Duration, 1)}
	require.NoError(t, s.AddPrune(time.Second, pruner))

	s.Start()
	select {
	case idle := <-pruner.calls:
		assert.Equal(t, time.Second, idle)
	case <-time.After(3 * time.Second):
		t.Fatal("prune job never ran")
	}
	s.Stop()
}
