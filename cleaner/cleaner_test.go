package cleaner

import (
	"context"
	"errors"
	"testing"

	"imagededup/executor"
	"imagededup/policy"
	"imagededup/types"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizedFs(t *testing.T, sizes map[string]int) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, size := range sizes {
		require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0644))
	}
	return fs
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

func group(members ...string) types.DuplicateGroup {
	return types.DuplicateGroup{Members: members}
}

// scripted answers pairs in order and remembers what it was asked
type scripted struct {
	answers []string
	asked   [][2]string
}

func (s *scripted) Ask(original, duplicate string) (string, error) {
	s.asked = append(s.asked, [2]string{original, duplicate})
	if len(s.asked) > len(s.answers) {
		return "", errors.New("no more answers")
	}
	return s.answers[len(s.asked)-1], nil
}

// failingRemover fails for one path and delegates the rest
type failingRemover struct {
	next Remover
	path string
}

func (f failingRemover) Remove(path string) types.ActionRecord {
	if path == f.path {
		return types.ActionRecord{Path: path, Kind: types.ActionFailed, Err: errors.New("permission denied")}
	}
	return f.next.Remove(path)
}

func paths(records []types.ActionRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Path)
	}
	return out
}

func TestRun_AutomaticKeepLarger(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 200, "/p/B.jpg": 100, "/p/C.jpg": 300})
	s := NewSession(fs, nil, policy.NewAutomatic(fs, true), executor.New(fs, executor.Options{}))

	summary, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg")})
	require.NoError(t, err)

	assert.True(t, exists(t, fs, "/p/A.jpg"))
	assert.False(t, exists(t, fs, "/p/B.jpg"))
	assert.True(t, exists(t, fs, "/p/C.jpg"), "ungrouped image is untouched")

	assert.Equal(t, 1, summary.Groups)
	assert.Equal(t, 2, summary.SimilarImages)
	assert.Equal(t, 1, summary.PairsCompared)
	assert.Equal(t, 1, summary.Count(types.ActionRemoved))
	assert.True(t, s.processed["/p/A.jpg"])
	assert.True(t, s.deleted["/p/B.jpg"])
	assert.False(t, s.deleted["/p/A.jpg"])
}

func TestRun_RemovedAnchorIsReplacedBySurvivor(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 100, "/p/B.jpg": 200, "/p/C.jpg": 50})
	s := NewSession(fs, nil, policy.NewAutomatic(fs, true), executor.New(fs, executor.Options{}))

	summary, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg", "/p/C.jpg")})
	require.NoError(t, err)

	assert.Equal(t, []string{"/p/A.jpg", "/p/C.jpg"}, paths(summary.Actions))
	assert.True(t, exists(t, fs, "/p/B.jpg"), "exactly one survivor")
	assert.False(t, exists(t, fs, "/p/A.jpg"))
	assert.False(t, exists(t, fs, "/p/C.jpg"))
	assert.Equal(t, 2, summary.PairsCompared)
}

func TestRun_Quarantine(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 200, "/p/B.jpg": 100})
	s := NewSession(fs, nil, policy.NewAutomatic(fs, true), executor.New(fs, executor.Options{QuarantineDir: "/trash"}))

	summary, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg")})
	require.NoError(t, err)

	require.Len(t, summary.Actions, 1)
	assert.Equal(t, types.ActionQuarantined, summary.Actions[0].Kind)
	assert.Equal(t, "/trash/B.jpg", summary.Actions[0].Destination)
	assert.True(t, exists(t, fs, "/trash/B.jpg"))
	assert.True(t, exists(t, fs, "/p/A.jpg"))
}

func TestRun_Interactive(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 10, "/p/B.jpg": 10, "/p/C.jpg": 10})
	provider := &scripted{answers: []string{"n", "2"}}
	s := NewSession(fs, nil, policy.NewInteractive(provider), executor.New(fs, executor.Options{}))

	summary, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg", "/p/C.jpg")})
	require.NoError(t, err)

	assert.Equal(t, [][2]string{{"/p/A.jpg", "/p/B.jpg"}, {"/p/A.jpg", "/p/C.jpg"}}, provider.asked)
	assert.Equal(t, 1, summary.KeptPairs)
	assert.Equal(t, []string{"/p/C.jpg"}, paths(summary.Actions))
	assert.True(t, exists(t, fs, "/p/A.jpg"))
	assert.True(t, exists(t, fs, "/p/B.jpg"))
}

func TestRun_ExternallyDeletedFiles(t *testing.T) {
	t.Run("missing duplicate is recorded without asking", func(t *testing.T) {
		fs := sizedFs(t, map[string]int{"/p/A.jpg": 10})
		provider := &scripted{}
		s := NewSession(fs, nil, policy.NewInteractive(provider), executor.New(fs, executor.Options{}))

		summary, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg")})
		require.NoError(t, err)

		assert.Empty(t, provider.asked)
		require.Len(t, summary.Actions, 1)
		assert.Equal(t, types.ActionAlreadyGone, summary.Actions[0].Kind)
		assert.Equal(t, "/p/B.jpg", summary.Actions[0].Path)
		assert.True(t, exists(t, fs, "/p/A.jpg"))
	})

	t.Run("missing anchor hands over to the next member", func(t *testing.T) {
		fs := sizedFs(t, map[string]int{"/p/B.jpg": 10, "/p/C.jpg": 10})
		provider := &scripted{answers: []string{"n"}}
		s := NewSession(fs, nil, policy.NewInteractive(provider), executor.New(fs, executor.Options{}))

		summary, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg", "/p/C.jpg")})
		require.NoError(t, err)

		assert.Equal(t, [][2]string{{"/p/B.jpg", "/p/C.jpg"}}, provider.asked)
		assert.Equal(t, 1, summary.Count(types.ActionAlreadyGone))
		assert.True(t, s.deleted["/p/A.jpg"])
	})
}

func TestRun_NoDoubleDeletion(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 200, "/p/B.jpg": 100, "/p/C.jpg": 50})
	s := NewSession(fs, nil, policy.NewAutomatic(fs, true), executor.New(fs, executor.Options{}))
	groups := []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg"), group("/p/B.jpg", "/p/C.jpg")}

	summary, err := s.Run(context.Background(), groups)
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/B.jpg"}, paths(summary.Actions), "B removed once, C never paired")
	assert.True(t, exists(t, fs, "/p/C.jpg"))

	again, err := s.Run(context.Background(), groups)
	require.NoError(t, err)
	assert.Empty(t, again.Actions, "processed images are not reconsidered")
	assert.Zero(t, again.PairsCompared)
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 200, "/p/B.jpg": 100, "/p/C.jpg": 200, "/p/D.jpg": 100})
	remover := failingRemover{next: executor.New(fs, executor.Options{}), path: "/p/B.jpg"}
	s := NewSession(fs, nil, policy.NewAutomatic(fs, true), remover)

	summary, err := s.Run(context.Background(), []types.DuplicateGroup{
		group("/p/A.jpg", "/p/B.jpg"),
		group("/p/C.jpg", "/p/D.jpg"),
	})
	require.NoError(t, err)

	require.Len(t, summary.Failures(), 1)
	assert.Equal(t, "/p/B.jpg", summary.Failures()[0].Path)
	assert.Equal(t, 1, summary.Count(types.ActionRemoved))
	assert.True(t, exists(t, fs, "/p/B.jpg"))
	assert.False(t, exists(t, fs, "/p/D.jpg"))
	assert.False(t, s.deleted["/p/B.jpg"])
}

func TestRun_DryRun(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 100, "/p/B.jpg": 200, "/p/C.jpg": 50})
	s := NewSession(fs, nil, policy.NewAutomatic(fs, true), executor.New(fs, executor.Options{DryRun: true}))

	summary, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg", "/p/C.jpg")})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Count(types.ActionDryRun))
	assert.Equal(t, []string{"/p/A.jpg", "/p/C.jpg"}, paths(summary.Actions))
	for _, p := range []string{"/p/A.jpg", "/p/B.jpg", "/p/C.jpg"} {
		assert.True(t, exists(t, fs, p))
	}
}

func TestRun_Cancelled(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 200, "/p/B.jpg": 100})
	s := NewSession(fs, nil, policy.NewAutomatic(fs, true), executor.New(fs, executor.Options{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := s.Run(ctx, []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg")})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Actions)
	assert.Equal(t, 1, summary.Groups)
	assert.True(t, exists(t, fs, "/p/B.jpg"))
}

func TestRun_OnPairAndDistance(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 200, "/p/B.jpg": 100})
	index := types.NewFingerprintIndex([]types.IndexEntry{
		{Path: "/p/A.jpg", Fingerprint: types.Fingerprint{Algorithm: "phash64", Bits: []uint64{0}}},
		{Path: "/p/B.jpg", Fingerprint: types.Fingerprint{Algorithm: "phash64", Bits: []uint64{0b111}}},
	})
	s := NewSession(fs, index, policy.NewAutomatic(fs, true), executor.New(fs, executor.Options{}))
	pairs := 0
	s.OnPair = func() { pairs++ }

	_, err := s.Run(context.Background(), []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg")})
	require.NoError(t, err)

	assert.Equal(t, 1, pairs)
	assert.Equal(t, 3, s.distance("/p/A.jpg", "/p/B.jpg"))
	assert.Equal(t, -1, s.distance("/p/A.jpg", "/p/unknown.jpg"))
}

func TestRun_CancelledWhileAsking(t *testing.T) {
	fs := sizedFs(t, map[string]int{"/p/A.jpg": 10, "/p/B.jpg": 10, "/p/C.jpg": 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	asked := 0
	provider := policy.DecisionFunc(func(string, string) (string, error) {
		asked++
		cancel()
		return "", errors.New("Interrupt")
	})
	s := NewSession(fs, nil, policy.NewInteractive(provider), executor.New(fs, executor.Options{}))

	summary, err := s.Run(ctx, []types.DuplicateGroup{group("/p/A.jpg", "/p/B.jpg", "/p/C.jpg")})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, asked, "no further pairs after the interrupt")
	assert.Zero(t, summary.KeptPairs, "an interrupted pair is not a kept pair")
	assert.Empty(t, summary.Actions)
	assert.Equal(t, 1, summary.PairsCompared)
}
