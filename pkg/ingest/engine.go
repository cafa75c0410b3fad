// Package ingest implements the resumable, rate-limited, cursor-paginated
// review scraper: a per-run single-flight guard, a duplicate-page/saved-
// cursor jump heuristic for upstream pagination hiccups, and live
// progress/ETA tracking.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/comfydata276/reviewforge/pkg/models"
	"github.com/comfydata276/reviewforge/pkg/reviewapi"
	"github.com/comfydata276/reviewforge/pkg/store"
)

const duplicatePageLimit = 3

// Store is the subset of *store.Store the engine depends on, named so
// engine tests can substitute a fake.
type Store interface {
	ListGames(ctx context.Context) ([]models.Game, error)
	TouchGameScraped(ctx context.Context, appID int64, at time.Time, cursor string) error
	GetCursor(ctx context.Context, appID int64, paramsHash string) (string, bool, error)
	SaveCursor(ctx context.Context, appID int64, paramsHash, cursor string) error
	MaxReviewDate(ctx context.Context, appID int64, f models.ReviewFilter) (*time.Time, error)
	CountMatching(ctx context.Context, f models.ReviewFilter) (int, error)
	InsertReviews(ctx context.Context, reviews []models.Review) (int, error)
}

var _ Store = (*store.Store)(nil)

// ReviewAPI is the subset of *reviewapi.Client the engine depends on.
type ReviewAPI interface {
	GetReviews(ctx context.Context, appID int64, language, cursor string) (*reviewapi.ReviewsResponse, error)
}

// Engine runs scrape cycles across a catalog of titles. Only one Run may be
// in flight at a time; a second concurrent call returns ErrAlreadyRunning.
type Engine struct {
	store    Store
	api      ReviewAPI
	Progress *Progress
}

// ErrAlreadyRunning is returned by Run when a scrape is already in flight.
var ErrAlreadyRunning = fmt.Errorf("ingest: scraper already running")

// New builds an Engine over the given store and review API client.
func New(s Store, api ReviewAPI) *Engine {
	return &Engine{store: s, api: api, Progress: &Progress{}}
}

// RunRequest is the per-run configuration: a global Settings plus
// per-title overrides keyed by app ID.
type RunRequest struct {
	Global    Settings
	Overrides map[int64]Settings
}

// Run scrapes every active title in the catalog, applying per-title
// overrides over the global settings, until all titles are processed, the
// caller's context is cancelled, or Progress.RequestStop is called.
//
// Validation (max_playtime > min_playtime when both are set) runs for the
// global settings and every override before anything else, so a bad
// payload fails the start call without touching Progress or the catalog.
func (e *Engine) Run(ctx context.Context, req RunRequest) error {
	if err := req.Global.Validate(); err != nil {
		return fmt.Errorf("global settings: %w", err)
	}
	for appID, o := range req.Overrides {
		if err := req.Global.Merge(o).Validate(); err != nil {
			return fmt.Errorf("override for app %d: %w", appID, err)
		}
	}

	if !e.Progress.begin() {
		return ErrAlreadyRunning
	}
	defer e.Progress.finish()
	e.Progress.Log("Starting scraper")

	games, err := e.store.ListGames(ctx)
	if err != nil {
		e.Progress.Log(fmt.Sprintf("failed to list games: %v", err))
		return fmt.Errorf("list games: %w", err)
	}

	e.Progress.setGlobalTotal(len(games) * req.Global.MaxReviews)

	for _, g := range games {
		if e.Progress.stopped() {
			break
		}
		settings := req.Global.Merge(req.Overrides[g.AppID])
		if err := e.scrapeGame(ctx, g, settings); err != nil {
			e.Progress.Log(fmt.Sprintf("scrape failed for %s (%d): %v", g.Name, g.AppID, err))
			continue
		}
		if ctx.Err() != nil {
			break
		}
	}

	e.Progress.Log("Scraper finished")
	return nil
}

func (e *Engine) scrapeGame(ctx context.Context, game models.Game, settings Settings) error {
	e.Progress.startGame(CurrentGame{AppID: game.AppID, Name: game.Name}, settings.MaxReviews)
	e.Progress.Log(fmt.Sprintf("Starting scrape for %s (%d)", game.Name, game.AppID))

	paramsHash := ParamsHash(settings)
	savedCursor, hasSavedCursor, err := e.store.GetCursor(ctx, game.AppID, paramsHash)
	if err != nil {
		return fmt.Errorf("load saved cursor: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(float64(settings.RateLimitRPM)/60.0), 1)

	latest, err := e.store.MaxReviewDate(ctx, game.AppID, models.ReviewFilter{})
	if err != nil {
		return fmt.Errorf("max review date: %w", err)
	}

	configuredStart := settings.StartDate
	thresholdStart := configuredStart
	if latest != nil && (thresholdStart == nil || latest.After(*thresholdStart)) {
		thresholdStart = latest
	}

	existingCount, err := e.store.CountMatching(ctx, settings.ToFilter(game.AppID))
	if err != nil {
		return fmt.Errorf("count existing reviews: %w", err)
	}

	e.Progress.Log(fmt.Sprintf(
		"Resume check for %s: existing_matches=%d, requested_max=%d",
		game.Name, existingCount, settings.MaxReviews,
	))

	remainingNeeded := settings.MaxReviews - existingCount
	if settings.CompleteScraping {
		remainingNeeded = int(^uint(0) >> 1) // unbounded cap
	} else if remainingNeeded <= 0 {
		e.Progress.addScraped(existingCount)
		e.Progress.Log(fmt.Sprintf("No new reviews for '%s' are available. All reviews that meet the configuration settings have been gathered.", game.Name))
		return nil
	}

	// If the user left start_date unset and the DB already has some
	// matching rows but fewer than requested, allow paging into older
	// history by dropping the resume threshold.
	if configuredStart == nil && existingCount > 0 {
		thresholdStart = nil
	}

	cursor := "*"
	savedCount := 0
	noNewFound := false
	consecutiveNoSavePages := 0
	usedSavedCursor := false

	for {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		start := time.Now()
		resp, err := e.api.GetReviews(ctx, game.AppID, settings.Language, cursor)
		e.Progress.recordRequest(time.Since(start))
		if err != nil {
			return fmt.Errorf("fetch page (cursor=%s): %w", cursor, err)
		}

		if e.Progress.Snapshot(settings.RateLimitRPM).CurrentGameTotal == 0 {
			qTotal := resp.QuerySummary.TotalReviews
			if qTotal == 0 {
				qTotal = resp.QuerySummary.NumReviews
			}
			total := qTotal
			if !settings.CompleteScraping && (total == 0 || total > settings.MaxReviews) {
				total = settings.MaxReviews
			}
			e.Progress.setCurrentGameTotal(total)
		}

		if len(resp.Reviews) > 0 {
			var batchMaxTS int64
			for _, r := range resp.Reviews {
				if r.TimestampCreated > batchMaxTS {
					batchMaxTS = r.TimestampCreated
				}
			}
			batchMaxDT := time.Unix(batchMaxTS, 0).UTC()
			if thresholdStart != nil && !batchMaxDT.After(*thresholdStart) {
				e.Progress.Log(fmt.Sprintf("No new reviews for '%s' are available. All reviews that meet the configuration settings have been gathered.", game.Name))
				noNewFound = true
				break
			}
		}

		savedThisBatch, err := e.saveReviews(ctx, game.AppID, resp.Reviews, settings, thresholdStart, remainingNeeded)
		if err != nil {
			return fmt.Errorf("save reviews: %w", err)
		}
		savedCount += savedThisBatch
		e.Progress.addScraped(savedThisBatch)
		remainingNeeded -= savedThisBatch

		if savedThisBatch == 0 {
			consecutiveNoSavePages++
		} else {
			consecutiveNoSavePages = 0
			if resp.Cursor != "" {
				if err := e.store.SaveCursor(ctx, game.AppID, paramsHash, resp.Cursor); err != nil {
					return fmt.Errorf("save cursor: %w", err)
				}
			}
		}

		jumped := false
		if consecutiveNoSavePages >= duplicatePageLimit && hasSavedCursor && !usedSavedCursor && cursor != savedCursor {
			e.Progress.Log(fmt.Sprintf("Detected %d duplicate pages; jumping to saved cursor for %s.", consecutiveNoSavePages, game.Name))
			cursor = savedCursor
			consecutiveNoSavePages = 0
			usedSavedCursor = true
			jumped = true
		}

		snap := e.Progress.Snapshot(settings.RateLimitRPM)
		e.Progress.Log(fmt.Sprintf("Fetched %d reviews (saved %d) (%d/%d total)",
			len(resp.Reviews), savedThisBatch, snap.CurrentGameScraped, snap.CurrentGameTotal))

		if e.Progress.stopped() {
			e.Progress.Log("Stop requested, stopping scrape after current request")
			break
		}
		if len(resp.Reviews) == 0 || remainingNeeded <= 0 {
			break
		}

		if !jumped && resp.Cursor != "" {
			cursor = resp.Cursor
		}
	}

	if err := e.store.TouchGameScraped(ctx, game.AppID, time.Now().UTC(), cursor); err != nil {
		return fmt.Errorf("touch game scraped: %w", err)
	}

	if noNewFound {
		e.Progress.Log(fmt.Sprintf("Finished: skipped scraping for %s (no new reviews). Saved %d new reviews in this run.", game.Name, savedCount))
	} else {
		e.Progress.Log(fmt.Sprintf("Scrape complete for %s (saved %d new reviews)", game.Name, savedCount))
	}
	return nil
}

func (e *Engine) saveReviews(ctx context.Context, appID int64, raw []reviewapi.RawReview, settings Settings, thresholdStart *time.Time, maxToSave int) (int, error) {
	candidates := make([]models.Review, 0, len(raw))
	now := time.Now().UTC()

	for _, r := range raw {
		if len(candidates) >= maxToSave {
			break
		}
		if r.RecommendationID == "" || r.TimestampCreated == 0 {
			continue
		}
		reviewDate := time.Unix(r.TimestampCreated, 0).UTC()
		if thresholdStart != nil && reviewDate.Before(*thresholdStart) {
			continue
		}
		if settings.EndDate != nil && reviewDate.After(*settings.EndDate) {
			continue
		}

		earlyAccess := r.WrittenDuringEA
		receivedForFree := r.ReceivedForFree
		if settings.EarlyAccess == models.EarlyAccessExclude && earlyAccess {
			continue
		}
		if settings.EarlyAccess == models.EarlyAccessOnly && !earlyAccess {
			continue
		}
		if settings.ReceivedForFree == models.FreeCopyExclude && receivedForFree {
			continue
		}
		if settings.ReceivedForFree == models.FreeCopyOnly && !receivedForFree {
			continue
		}

		language := r.Language
		if language == "" {
			language = settings.Language
		}
		language = strings.ToLower(language)
		if settings.Language != "" && language != strings.ToLower(settings.Language) {
			continue
		}

		playtimeHours := float64(r.Author.PlaytimeForever) / 60.0
		if settings.MinPlaytimeHours != nil && playtimeHours < *settings.MinPlaytimeHours {
			continue
		}
		if settings.MaxPlaytimeHours != nil && playtimeHours > *settings.MaxPlaytimeHours {
			continue
		}

		reviewType := models.ReviewNegative
		if r.VotedUp {
			reviewType = models.ReviewPositive
		}

		var playtimeLastTwo *float64
		if r.Author.PlaytimeLastTwoWeeks > 0 {
			v := float64(r.Author.PlaytimeLastTwoWeeks) / 60.0
			playtimeLastTwo = &v
		}
		var lastPlayed *time.Time
		if r.Author.LastPlayed > 0 {
			t := time.Unix(r.Author.LastPlayed, 0).UTC()
			lastPlayed = &t
		}
		var timestampUpdated *time.Time
		if r.TimestampUpdated > 0 {
			t := time.Unix(r.TimestampUpdated, 0).UTC()
			timestampUpdated = &t
		}

		candidates = append(candidates, models.Review{
			ReviewID:         r.RecommendationID,
			AppID:            appID,
			ReviewText:       r.Review,
			ReviewDate:       reviewDate,
			PlaytimeHours:    &playtimeHours,
			ReviewType:       reviewType,
			Language:         language,
			EarlyAccess:      earlyAccess,
			ReceivedForFree:  receivedForFree,
			VotesHelpful:     r.VotesHelpful,
			WeightedVote:     parseWeightedVote(r.WeightedVoteScore),
			CommentCount:     r.CommentCount,
			SteamPurchase:    r.SteamPurchase,
			NumGamesOwned:    r.Author.NumGamesOwned,
			NumReviews:       r.Author.NumReviews,
			PlaytimeLastTwo:  playtimeLastTwo,
			LastPlayed:       lastPlayed,
			TimestampUpdated: timestampUpdated,
			ScrapedAt:        now,
		})
	}

	if len(candidates) == 0 {
		return 0, nil
	}
	return e.store.InsertReviews(ctx, candidates)
}

// parseWeightedVote parses the upstream's string-encoded weighted vote
// score, defaulting to 0 for anything unparseable (e.g. "" or "nan").
func parseWeightedVote(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
