package orchestrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydata276/reviewforge/pkg/models"
	"github.com/comfydata276/reviewforge/pkg/provider"
	"github.com/comfydata276/reviewforge/pkg/store"
)

// fakeStore is an in-memory Store used to exercise job lifecycle and
// progress-accounting logic without a real database.
type fakeStore struct {
	mu sync.Mutex

	games   []models.Game
	results map[int64]*models.AnalysisResult
	nextID  int64

	job models.AnalysisJob

	processedHistory []int
	settings         map[string]string

	unmapped []models.AnalysisResult
	updated  map[int64]string // resultID -> analysed review, for Backfill assertions
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		results:  make(map[int64]*models.AnalysisResult),
		settings: make(map[string]string),
		updated:  make(map[int64]string),
	}
}

func (f *fakeStore) GetSetting(_ context.Context, key string) (string, error) {
	v, ok := f.settings[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) ListGames(_ context.Context) ([]models.Game, error) { return f.games, nil }

func (f *fakeStore) ListMatching(_ context.Context, _ models.ReviewFilter) ([]models.Review, error) {
	return []models.Review{{ReviewID: "r1"}, {ReviewID: "r2"}, {ReviewID: "r3"}}, nil
}

func (f *fakeStore) CreateJob(_ context.Context, name, settingsJSON string) (int64, error) {
	f.job = models.AnalysisJob{ID: 1, Name: name, Status: models.JobPending, SettingsJSON: settingsJSON}
	return 1, nil
}

func (f *fakeStore) StartJob(_ context.Context, jobID int64, totalReviews int) error {
	f.job.Status = models.JobRunning
	f.job.TotalReviews = totalReviews
	return nil
}

func (f *fakeStore) SetProcessed(_ context.Context, jobID int64, completed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if completed > f.job.ProcessedCount {
		f.job.ProcessedCount = completed
	}
	f.processedHistory = append(f.processedHistory, f.job.ProcessedCount)
	return nil
}

func (f *fakeStore) CompleteJob(_ context.Context, jobID int64) error {
	f.job.Status = models.JobCompleted
	return nil
}

func (f *fakeStore) FailJob(_ context.Context, jobID int64, message string) error {
	f.job.Status = models.JobError
	f.job.Error = &message
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, jobID int64) (models.AnalysisJob, error) {
	return f.job, nil
}

func (f *fakeStore) ListJobs(_ context.Context) ([]models.AnalysisJob, error) {
	return []models.AnalysisJob{f.job}, nil
}

func (f *fakeStore) CreateResults(_ context.Context, jobID int64, reviews []models.Review, gameNames map[int64]string, prompt, model, providerName string, effort models.ReasoningEffort) ([]models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AnalysisResult, 0, len(reviews))
	for _, r := range reviews {
		f.nextID++
		res := models.AnalysisResult{
			ID: f.nextID, JobID: jobID, ReviewID: strPtr(r.ReviewID),
			ReviewText: "review text for " + r.ReviewID,
			Prompt:     prompt, Model: model, Provider: providerName, ReasoningEffort: effort,
			Status: models.ResultPending,
		}
		f.results[res.ID] = &res
		out = append(out, res)
	}
	return out, nil
}

func (f *fakeStore) CompleteResult(_ context.Context, resultID int64, rawOutput, analysedReview *string, inputTokens, outputTokens, totalTokens *int, status models.ResultStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[resultID]
	if !ok {
		return fmt.Errorf("unknown result %d", resultID)
	}
	r.AnalysisOutput = rawOutput
	r.AnalysedReview = analysedReview
	r.InputTokens, r.OutputTokens, r.TotalTokens = inputTokens, outputTokens, totalTokens
	r.Status = status
	r.Error = errMsg
	return nil
}

func (f *fakeStore) ListResultsByJob(_ context.Context, jobID int64) ([]models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AnalysisResult
	for _, r := range f.results {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) ListUnmapped(_ context.Context, limit int) ([]models.AnalysisResult, error) {
	if limit > 0 && limit < len(f.unmapped) {
		return f.unmapped[:limit], nil
	}
	return f.unmapped, nil
}

func (f *fakeStore) UpdateMappedFields(_ context.Context, resultID int64, analysedReview *string, inputTokens, outputTokens, totalTokens *int, gameName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if analysedReview != nil {
		f.updated[resultID] = *analysedReview
	}
	return nil
}

func (f *fakeStore) GameNameForReview(_ context.Context, reviewID string) (string, error) {
	return "", store.ErrNotFound
}

func strPtr(s string) *string { return &s }

// fakeProvider returns a canned structured response for every input,
// reporting incremental progress one item at a time.
type fakeProvider struct {
	name string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AnalyzeBatch(_ context.Context, inputs []string, _, _ string, _ models.ReasoningEffort, progress provider.ProgressFunc) ([]provider.Result, error) {
	out := make([]provider.Result, len(inputs))
	for i := range inputs {
		out[i] = provider.Result{Raw: map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "analysed"}}},
		}}
		if progress != nil {
			progress(i+1, len(inputs))
		}
	}
	return out, nil
}

func (p *fakeProvider) AnalyzeSingle(_ context.Context, _, _ string, _ models.ReasoningEffort) provider.Result {
	return provider.Result{Raw: map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "analysed"}}}}}
}

type fakeRegistry struct{ prov provider.Provider }

func (r *fakeRegistry) Get(_ context.Context, _ string) (provider.Provider, error) {
	return r.prov, nil
}

func TestPartition_SplitsIntoSizedBatchesWithLastShortBatch(t *testing.T) {
	results := make([]models.AnalysisResult, 7)
	batches := partition(results, 3)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
}

func TestPartition_EmptyInputYieldsNoBatches(t *testing.T) {
	assert.Nil(t, partition(nil, 5))
}

func TestStartJob_ProcessedCountReachesTotalAndNeverExceedsIt(t *testing.T) {
	fs := newFakeStore()
	o := New(fs, &fakeRegistry{prov: &fakeProvider{name: "openai"}}, t.TempDir())

	jobID, err := o.StartJob(context.Background(), models.StartAnalysisRequest{
		Provider: "openai", Model: "gpt-5", ReviewsPerBatch: 2, BatchesPerRequest: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), jobID)

	// StartJob dispatches on a detached goroutine; wait for it to finish.
	require.Eventually(t, func() bool {
		job, _ := o.GetJob(context.Background(), jobID)
		return job.Status == models.JobCompleted || job.Status == models.JobError
	}, 2*time.Second, time.Millisecond)

	job, err := o.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 3, job.TotalReviews)
	assert.Equal(t, 3, job.ProcessedCount)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i, v := range fs.processedHistory {
		assert.LessOrEqual(t, v, job.TotalReviews, "processed_count must never exceed total_reviews")
		if i > 0 {
			assert.GreaterOrEqual(t, v, fs.processedHistory[i-1], "processed_count must be monotonically non-decreasing")
		}
	}
}

func TestCancelJob_ReturnsFalseForUnknownJob(t *testing.T) {
	o := New(newFakeStore(), &fakeRegistry{}, t.TempDir())
	assert.False(t, o.CancelJob(999))
}

func TestStartJob_SnapshotsActivePromptTextOntoResults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sentiment-v1.txt"), []byte("Classify the review."), 0o644))

	fs := newFakeStore()
	fs.settings[activePromptSettingKey] = "sentiment-v1.txt"
	o := New(fs, &fakeRegistry{prov: &fakeProvider{name: "openai"}}, dir)

	jobID, err := o.StartJob(context.Background(), models.StartAnalysisRequest{
		Provider: "openai", Model: "gpt-5", ReviewsPerBatch: 3,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, _ := o.GetJob(context.Background(), jobID)
		return job.Status == models.JobCompleted
	}, 2*time.Second, time.Millisecond)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, r := range fs.results {
		assert.Equal(t, "Classify the review.", r.Prompt)
	}
}

func TestResolvePrompt_MissingFileYieldsEmptyPrompt(t *testing.T) {
	o := New(newFakeStore(), &fakeRegistry{}, t.TempDir())
	text, err := o.resolvePrompt(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestBackfill_RemapsUnmappedResultsAndSkipsUnparseableOutput(t *testing.T) {
	fs := newFakeStore()
	raw := `{"choices":[{"message":{"content":"remapped text"}}]}`
	fs.unmapped = []models.AnalysisResult{
		{ID: 1, AnalysisOutput: &raw},
		{ID: 2, AnalysisOutput: nil}, // no raw output at all: must be skipped
	}
	unparseable := "not json"
	fs.unmapped = append(fs.unmapped, models.AnalysisResult{ID: 3, AnalysisOutput: &unparseable})

	o := New(fs, &fakeRegistry{}, t.TempDir())
	touched, err := o.Backfill(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)
	assert.Equal(t, "remapped text", fs.updated[1])
	assert.NotContains(t, fs.updated, int64(2))
	assert.NotContains(t, fs.updated, int64(3))
}
