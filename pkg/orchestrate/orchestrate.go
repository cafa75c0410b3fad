// Package orchestrate implements the analysis orchestration engine: job
// lifecycle, work-unit materialization, batch partitioning, and dispatch to
// a pluggable LLM provider.
package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/comfydata276/reviewforge/pkg/mapper"
	"github.com/comfydata276/reviewforge/pkg/models"
	"github.com/comfydata276/reviewforge/pkg/provider"
	"github.com/comfydata276/reviewforge/pkg/store"
)

// Store is the subset of *store.Store the orchestrator depends on.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	ListGames(ctx context.Context) ([]models.Game, error)
	ListMatching(ctx context.Context, f models.ReviewFilter) ([]models.Review, error)
	CreateJob(ctx context.Context, name, settingsJSON string) (int64, error)
	StartJob(ctx context.Context, jobID int64, totalReviews int) error
	SetProcessed(ctx context.Context, jobID int64, completed int) error
	CompleteJob(ctx context.Context, jobID int64) error
	FailJob(ctx context.Context, jobID int64, message string) error
	GetJob(ctx context.Context, jobID int64) (models.AnalysisJob, error)
	ListJobs(ctx context.Context) ([]models.AnalysisJob, error)
	CreateResults(ctx context.Context, jobID int64, reviews []models.Review, gameNames map[int64]string, prompt, model, provider string, effort models.ReasoningEffort) ([]models.AnalysisResult, error)
	CompleteResult(ctx context.Context, resultID int64, rawOutput, analysedReview *string, inputTokens, outputTokens, totalTokens *int, status models.ResultStatus, errMsg *string) error
	ListResultsByJob(ctx context.Context, jobID int64) ([]models.AnalysisResult, error)
	ListUnmapped(ctx context.Context, limit int) ([]models.AnalysisResult, error)
	UpdateMappedFields(ctx context.Context, resultID int64, analysedReview *string, inputTokens, outputTokens, totalTokens *int, gameName string) error
	GameNameForReview(ctx context.Context, reviewID string) (string, error)
}

var _ Store = (*store.Store)(nil)

// ProviderRegistry resolves a provider adapter by name. Satisfied by
// *provider.Registry.
type ProviderRegistry interface {
	Get(ctx context.Context, providerName string) (provider.Provider, error)
}

// activePromptSettingKey is the Setting key holding the currently active
// prompt file name.
const activePromptSettingKey = "prompts:active"

// defaultPromptFile is the prompt used when no name is given and no active
// prompt has been set.
const defaultPromptFile = "prompt.txt"

// Orchestrator runs analysis jobs: materializing work units, partitioning
// them into batches, dispatching each batch to a provider, and persisting
// mapped results. Each running job gets a cancel func registered so it can
// be stopped independently of the others.
type Orchestrator struct {
	store      Store
	providers  ProviderRegistry
	promptsDir string

	mu      sync.RWMutex
	cancels map[int64]context.CancelFunc
}

// New builds an Orchestrator over the given store and provider registry.
// Prompts are plain UTF-8 files under promptsDir, addressed by name.
func New(s Store, providers ProviderRegistry, promptsDir string) *Orchestrator {
	return &Orchestrator{
		store:      s,
		providers:  providers,
		promptsDir: promptsDir,
		cancels:    make(map[int64]context.CancelFunc),
	}
}

func (o *Orchestrator) registerJob(jobID int64, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[jobID] = cancel
}

func (o *Orchestrator) unregisterJob(jobID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, jobID)
}

// CancelJob requests cancellation of a running job. Returns false if the
// job isn't currently tracked (already finished, or never started here).
func (o *Orchestrator) CancelJob(jobID int64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	cancel, ok := o.cancels[jobID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// GetJob and ListJobs pass straight through to the store, kept on
// Orchestrator so callers need only one collaborator for job status.
func (o *Orchestrator) GetJob(ctx context.Context, jobID int64) (models.AnalysisJob, error) {
	return o.store.GetJob(ctx, jobID)
}

func (o *Orchestrator) ListJobs(ctx context.Context) ([]models.AnalysisJob, error) {
	return o.store.ListJobs(ctx)
}

func (o *Orchestrator) ListResults(ctx context.Context, jobID int64) ([]models.AnalysisResult, error) {
	return o.store.ListResultsByJob(ctx, jobID)
}

// StartJob creates the job record and launches processing on a detached
// context, not tied to the HTTP request that started it. It returns as soon
// as the job row exists; materialization and dispatch happen in the
// background worker.
func (o *Orchestrator) StartJob(ctx context.Context, req models.StartAnalysisRequest) (int64, error) {
	settingsJSON, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal job settings: %w", err)
	}

	jobID, err := o.store.CreateJob(ctx, req.Name, string(settingsJSON))
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.registerJob(jobID, cancel)

	go func() {
		defer cancel()
		defer o.unregisterJob(jobID)
		if err := o.runJob(runCtx, jobID, req); err != nil {
			slog.Error("analysis job failed", "job_id", jobID, "error", err)
			if failErr := o.store.FailJob(context.Background(), jobID, err.Error()); failErr != nil {
				slog.Error("failed to record job failure", "job_id", jobID, "error", failErr)
			}
		}
	}()

	return jobID, nil
}

func (o *Orchestrator) runJob(ctx context.Context, jobID int64, req models.StartAnalysisRequest) error {
	promptText, err := o.resolvePrompt(ctx, req.PromptName)
	if err != nil {
		return fmt.Errorf("resolve prompt: %w", err)
	}

	reviews, err := o.store.ListMatching(ctx, req.Filter)
	if err != nil {
		return fmt.Errorf("select reviews: %w", err)
	}

	games, err := o.store.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}
	gameNames := make(map[int64]string, len(games))
	for _, g := range games {
		gameNames[g.AppID] = g.Name
	}

	prov, err := o.providers.Get(ctx, req.Provider)
	if err != nil {
		return fmt.Errorf("resolve provider %q: %w", req.Provider, err)
	}

	results, err := o.store.CreateResults(ctx, jobID, reviews, gameNames, promptText, req.Model, req.Provider, req.ReasoningEffort)
	if err != nil {
		return fmt.Errorf("materialize results: %w", err)
	}

	if err := o.store.StartJob(ctx, jobID, len(results)); err != nil {
		return fmt.Errorf("start job: %w", err)
	}

	reviewsPerBatch := req.ReviewsPerBatch
	if reviewsPerBatch <= 0 {
		reviewsPerBatch = 5
	}
	batchesPerRequest := req.BatchesPerRequest
	if batchesPerRequest <= 0 {
		batchesPerRequest = 1
	}

	batches := partition(results, reviewsPerBatch)
	if err := o.dispatchBatches(ctx, jobID, prov, batches, batchesPerRequest, len(results)); err != nil {
		return err
	}

	return o.store.CompleteJob(ctx, jobID)
}

// resolvePrompt picks the prompt file (explicit request name, else the
// active-prompt setting, else the default) and reads its text. A missing
// file is not an error: the job runs with an empty prompt.
func (o *Orchestrator) resolvePrompt(ctx context.Context, promptName string) (string, error) {
	name := promptName
	if name == "" {
		active, err := o.store.GetSetting(ctx, activePromptSettingKey)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		name = active
	}
	if name == "" {
		name = defaultPromptFile
	}

	text, err := os.ReadFile(filepath.Join(o.promptsDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read prompt %q: %w", name, err)
	}
	return string(text), nil
}

func partition(results []models.AnalysisResult, size int) [][]models.AnalysisResult {
	if len(results) == 0 {
		return nil
	}
	var out [][]models.AnalysisResult
	for i := 0; i < len(results); i += size {
		end := i + size
		if end > len(results) {
			end = len(results)
		}
		out = append(out, results[i:end])
	}
	return out
}

// dispatchBatches fans batches out over a worker pool of size
// batchesPerRequest. Each batch reports its own running completion count;
// job.processed_count is recomputed as the sum of every batch's last-known
// count (its "baseline + completed" contribution), capped at total, so
// concurrent batches never undercount or overcount each other's progress.
func (o *Orchestrator) dispatchBatches(ctx context.Context, jobID int64, prov provider.Provider, batches [][]models.AnalysisResult, batchesPerRequest, total int) error {
	progressByBatch := make([]int, len(batches))
	var mu sync.Mutex

	report := func(batchIdx, n int) {
		mu.Lock()
		progressByBatch[batchIdx] = n
		sum := 0
		for _, v := range progressByBatch {
			sum += v
		}
		if sum > total {
			sum = total
		}
		mu.Unlock()
		if err := o.store.SetProcessed(ctx, jobID, sum); err != nil {
			slog.Warn("failed to record processed count", "job_id", jobID, "error", err)
		}
	}

	sem := make(chan struct{}, batchesPerRequest)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for idx, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		idx, batch := idx, batch
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			bumpProcessed := func(n int) { report(idx, n) }
			if err := o.processBatch(ctx, prov, batch, bumpProcessed); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (o *Orchestrator) processBatch(ctx context.Context, prov provider.Provider, batch []models.AnalysisResult, bumpProcessed func(int)) error {
	if len(batch) == 0 {
		return nil
	}
	inputs := make([]string, len(batch))
	for i, r := range batch {
		inputs[i] = r.ReviewText
	}

	var progressReported bool
	progressCb := func(completed, batchTotal int) {
		progressReported = true
		bumpProcessed(completed)
	}

	results, err := prov.AnalyzeBatch(ctx, inputs, batch[0].Prompt, batch[0].Model, batch[0].ReasoningEffort, progressCb)
	if err != nil {
		return fmt.Errorf("analyze batch: %w", err)
	}

	for i, r := range batch {
		var res provider.Result
		if i < len(results) {
			res = results[i]
		}
		o.persistResult(ctx, r, res)
	}

	if !progressReported {
		bumpProcessed(len(batch))
	}
	return nil
}

func (o *Orchestrator) persistResult(ctx context.Context, r models.AnalysisResult, res provider.Result) {
	if res.Err != nil {
		msg := res.Err.Error()
		status := models.ResultError
		if err := o.store.CompleteResult(ctx, r.ID, nil, nil, nil, nil, nil, status, &msg); err != nil {
			slog.Warn("failed to record result error", "result_id", r.ID, "error", err)
		}
		return
	}

	mapped := mapper.ParseRaw(res.Raw).Walk()
	rawOutput := mapped.AnalysisOutput
	if err := o.store.CompleteResult(ctx, r.ID, &rawOutput, mapped.AnalysedReview, mapped.InputTokens, mapped.OutputTokens, mapped.TotalTokens, models.ResultComplete, nil); err != nil {
		slog.Warn("failed to persist result", "result_id", r.ID, "error", err)
	}
}
