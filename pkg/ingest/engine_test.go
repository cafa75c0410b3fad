package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydata276/reviewforge/pkg/models"
	"github.com/comfydata276/reviewforge/pkg/reviewapi"
)

// fakeStore is an in-memory Store for driving the fetch loop without a
// database. InsertReviews dedupes by review_id the way the real store's
// ON CONFLICT DO NOTHING does.
type fakeStore struct {
	games    []models.Game
	existing map[string]bool
	saved    []models.Review

	savedCursor string
	hasCursor   bool
	lastCursor  string

	maxDate  *time.Time
	matching int
	touched  int
}

func newEngineFakeStore(games ...models.Game) *fakeStore {
	return &fakeStore{games: games, existing: make(map[string]bool)}
}

func (f *fakeStore) ListGames(_ context.Context) ([]models.Game, error) { return f.games, nil }

func (f *fakeStore) TouchGameScraped(_ context.Context, _ int64, _ time.Time, _ string) error {
	f.touched++
	return nil
}

func (f *fakeStore) GetCursor(_ context.Context, _ int64, _ string) (string, bool, error) {
	return f.savedCursor, f.hasCursor, nil
}

func (f *fakeStore) SaveCursor(_ context.Context, _ int64, _, cursor string) error {
	f.lastCursor = cursor
	return nil
}

func (f *fakeStore) MaxReviewDate(_ context.Context, _ int64, _ models.ReviewFilter) (*time.Time, error) {
	return f.maxDate, nil
}

func (f *fakeStore) CountMatching(_ context.Context, _ models.ReviewFilter) (int, error) {
	return f.matching, nil
}

func (f *fakeStore) InsertReviews(_ context.Context, reviews []models.Review) (int, error) {
	saved := 0
	for _, r := range reviews {
		if f.existing[r.ReviewID] {
			continue
		}
		f.existing[r.ReviewID] = true
		f.saved = append(f.saved, r)
		saved++
	}
	return saved, nil
}

func (f *fakeStore) savedIDs() []string {
	ids := make([]string, 0, len(f.saved))
	for _, r := range f.saved {
		ids = append(ids, r.ReviewID)
	}
	return ids
}

// fakeAPI serves scripted pages. With byCursor set, pages are keyed by the
// requested cursor (unknown cursors get an empty page); otherwise pages are
// served in order, then empty pages forever. onCall fires after each fetch.
type fakeAPI struct {
	script   []*reviewapi.ReviewsResponse
	byCursor map[string]*reviewapi.ReviewsResponse

	calls   int
	cursors []string
	onCall  func(call int)
}

func (f *fakeAPI) GetReviews(_ context.Context, _ int64, _ string, cursor string) (*reviewapi.ReviewsResponse, error) {
	f.calls++
	f.cursors = append(f.cursors, cursor)
	defer func() {
		if f.onCall != nil {
			f.onCall(f.calls)
		}
	}()

	if f.byCursor != nil {
		if resp, ok := f.byCursor[cursor]; ok {
			return resp, nil
		}
		return &reviewapi.ReviewsResponse{}, nil
	}
	if f.calls <= len(f.script) {
		return f.script[f.calls-1], nil
	}
	return &reviewapi.ReviewsResponse{}, nil
}

func rawReview(id string, ts int64, playtimeMinutes int) reviewapi.RawReview {
	r := reviewapi.RawReview{
		RecommendationID: id,
		TimestampCreated: ts,
		VotedUp:          true,
		Review:           "review " + id,
		Language:         "english",
	}
	r.Author.PlaytimeForever = playtimeMinutes
	return r
}

func page(cursor string, total int, reviews ...reviewapi.RawReview) *reviewapi.ReviewsResponse {
	resp := &reviewapi.ReviewsResponse{Reviews: reviews, Cursor: cursor}
	resp.QuerySummary.TotalReviews = total
	return resp
}

func fastSettings() Settings {
	s := DefaultSettings()
	s.MaxReviews = 10
	s.RateLimitRPM = 60000
	return s
}

func TestRun_HappyPathTwoPages(t *testing.T) {
	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	api := &fakeAPI{script: []*reviewapi.ReviewsResponse{
		page("c1", 2, rawReview("1", 1_700_000_000, 90)),
		page("c2", 2, rawReview("2", 1_700_000_100, 30)),
	}}
	e := New(st, api)

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: fastSettings()}))

	assert.Equal(t, []string{"1", "2"}, st.savedIDs())
	assert.Equal(t, []string{"*", "c1", "c2"}, api.cursors)

	snap := e.Progress.Snapshot(60000)
	assert.False(t, snap.IsRunning)
	assert.Equal(t, 2, snap.CurrentGameScraped)
	assert.Equal(t, 2, snap.GlobalScraped)
	assert.Equal(t, 3, snap.RequestsMade)

	// playtime_forever minutes / 60, review_date from timestamp_created.
	require.Len(t, st.saved, 2)
	require.NotNil(t, st.saved[0].PlaytimeHours)
	assert.InDelta(t, 1.5, *st.saved[0].PlaytimeHours, 1e-9)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), st.saved[0].ReviewDate)
	assert.Equal(t, models.ReviewPositive, st.saved[0].ReviewType)
}

func TestRun_AppliesFilters(t *testing.T) {
	now := time.Now().UTC()
	endDate := now.Add(-750 * time.Second)

	early := rawReview("11", now.Add(-1000*time.Second).Unix(), 60)
	early.WrittenDuringEA = true
	free := rawReview("12", now.Add(-1000*time.Second).Unix(), 60)
	free.ReceivedForFree = true
	free.Language = "spanish"
	tooRecent := rawReview("13", now.Add(-700*time.Second).Unix(), 60)

	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	api := &fakeAPI{script: []*reviewapi.ReviewsResponse{
		page("c1", 4,
			rawReview("10", now.Add(-1000*time.Second).Unix(), 60),
			early, free, tooRecent,
		),
	}}
	e := New(st, api)

	settings := fastSettings()
	settings.EarlyAccess = models.EarlyAccessExclude
	settings.ReceivedForFree = models.FreeCopyExclude
	settings.EndDate = &endDate

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: settings}))
	assert.Equal(t, []string{"10"}, st.savedIDs())
}

func TestRun_PlaytimeBoundsRoundTrip(t *testing.T) {
	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	api := &fakeAPI{script: []*reviewapi.ReviewsResponse{
		page("c1", 3,
			rawReview("low", 1_700_000_000, 30),   // 0.5h, below min
			rawReview("mid", 1_700_000_001, 120),  // 2h, in window
			rawReview("high", 1_700_000_002, 900), // 15h, above max
		),
	}}
	e := New(st, api)

	minH, maxH := 1.0, 10.0
	settings := fastSettings()
	settings.MinPlaytimeHours = &minH
	settings.MaxPlaytimeHours = &maxH

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: settings}))
	assert.Equal(t, []string{"mid"}, st.savedIDs())
}

func TestRun_CooperativeStopAfterFirstPage(t *testing.T) {
	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	var e *Engine
	api := &fakeAPI{
		script: []*reviewapi.ReviewsResponse{
			page("c1", 5, rawReview("1", 1_700_000_000, 60)),
			page("c2", 5, rawReview("2", 1_700_000_100, 60)),
		},
	}
	api.onCall = func(call int) {
		if call == 1 {
			e.Progress.RequestStop()
		}
	}
	e = New(st, api)

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: fastSettings()}))

	assert.Equal(t, []string{"1"}, st.savedIDs(), "the in-flight page is persisted before stopping")
	assert.Equal(t, 1, api.calls)

	snap := e.Progress.Snapshot(60000)
	assert.False(t, snap.IsRunning)
	assert.True(t, snap.StopRequested)
	assert.True(t, logsContain(snap.Logs, "Stop requested"))
}

func TestRun_EarlyStopsAtThresholdStart(t *testing.T) {
	threshold := time.Unix(1_700_000_500, 0).UTC()

	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	api := &fakeAPI{script: []*reviewapi.ReviewsResponse{
		page("c1", 2,
			rawReview("old1", 1_700_000_000, 60),
			rawReview("old2", 1_700_000_400, 60),
		),
	}}
	e := New(st, api)

	settings := fastSettings()
	settings.StartDate = &threshold

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: settings}))

	assert.Empty(t, st.saved, "a batch whose newest timestamp is at or below the threshold saves nothing")
	assert.Equal(t, 1, api.calls)
	assert.True(t, logsContain(e.Progress.Snapshot(60000).Logs, "No new reviews"))
}

func TestRun_ResumeClearsThresholdWhenBelowCap(t *testing.T) {
	// DB already holds 3 matching reviews, newest at ts=100; the user asked
	// for 5 with no start_date, so the engine must page into older history
	// instead of early-stopping on the resume floor.
	latest := time.Unix(100, 0).UTC()

	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	st.maxDate = &latest
	st.matching = 3

	api := &fakeAPI{script: []*reviewapi.ReviewsResponse{
		page("c1", 5,
			rawReview("older1", 50, 60),
			rawReview("older2", 60, 60),
		),
	}}
	e := New(st, api)

	settings := fastSettings()
	settings.MaxReviews = 5

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: settings}))
	assert.Equal(t, []string{"older1", "older2"}, st.savedIDs())
}

func TestRun_SkipsTitleWhenCapAlreadyMet(t *testing.T) {
	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	st.matching = 10

	api := &fakeAPI{}
	e := New(st, api)

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: fastSettings()}))
	assert.Zero(t, api.calls, "no requests when existing matches already cover max_reviews")
}

func TestRun_DuplicatePagesJumpToSavedCursor(t *testing.T) {
	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	st.savedCursor = "SAVED"
	st.hasCursor = true
	st.existing["d1"] = true
	st.existing["d2"] = true
	st.existing["d3"] = true

	api := &fakeAPI{byCursor: map[string]*reviewapi.ReviewsResponse{
		"*":     page("A", 4, rawReview("d1", 10, 60)),
		"A":     page("B", 4, rawReview("d2", 11, 60)),
		"B":     page("C", 4, rawReview("d3", 12, 60)),
		"SAVED": page("D", 4, rawReview("n1", 13, 60)),
	}}
	e := New(st, api)

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: fastSettings()}))

	assert.Equal(t, []string{"n1"}, st.savedIDs())
	assert.Contains(t, api.cursors, "SAVED", "after three duplicate pages the engine resumes from the saved cursor")
	assert.Equal(t, "D", st.lastCursor, "the cursor is re-saved after the page that yielded new reviews")
}

func TestRun_ValidationRejectsBadPlaytimeWindow(t *testing.T) {
	st := newEngineFakeStore(models.Game{AppID: 1, Name: "Test Game"})
	api := &fakeAPI{}
	e := New(st, api)

	minH, maxH := 10.0, 5.0
	settings := fastSettings()
	settings.MinPlaytimeHours = &minH
	settings.MaxPlaytimeHours = &maxH

	err := e.Run(context.Background(), RunRequest{Global: settings})
	require.Error(t, err)
	assert.Zero(t, api.calls)
	assert.False(t, e.Progress.Snapshot(60000).IsRunning)
}

func TestRun_ValidationRejectsBadOverride(t *testing.T) {
	st := newEngineFakeStore(models.Game{AppID: 7, Name: "Test Game"})
	e := New(st, &fakeAPI{})

	minH, maxH := 10.0, 5.0
	err := e.Run(context.Background(), RunRequest{
		Global:    fastSettings(),
		Overrides: map[int64]Settings{7: {MinPlaytimeHours: &minH, MaxPlaytimeHours: &maxH}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app 7")
}

func TestRun_SecondConcurrentRunFails(t *testing.T) {
	e := New(newEngineFakeStore(), &fakeAPI{})
	require.True(t, e.Progress.begin())
	defer e.Progress.finish()

	err := e.Run(context.Background(), RunRequest{Global: fastSettings()})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRun_TitleFailureDoesNotAbortRemainingTitles(t *testing.T) {
	st := newEngineFakeStore(
		models.Game{AppID: 1, Name: "Broken Game"},
		models.Game{AppID: 2, Name: "Fine Game"},
	)
	api := &brokenFirstTitleAPI{inner: &fakeAPI{script: []*reviewapi.ReviewsResponse{
		page("c1", 1, rawReview("1", 1_700_000_000, 60)),
	}}}
	e := New(st, api)

	require.NoError(t, e.Run(context.Background(), RunRequest{Global: fastSettings()}))
	assert.Equal(t, []string{"1"}, st.savedIDs())
	assert.True(t, logsContain(e.Progress.Snapshot(60000).Logs, "scrape failed"))
}

// brokenFirstTitleAPI fails every request for app 1 and delegates the rest.
type brokenFirstTitleAPI struct {
	inner *fakeAPI
}

func (b *brokenFirstTitleAPI) GetReviews(ctx context.Context, appID int64, language, cursor string) (*reviewapi.ReviewsResponse, error) {
	if appID == 1 {
		return nil, assert.AnError
	}
	return b.inner.GetReviews(ctx, appID, language, cursor)
}

func logsContain(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
