package models

import "time"

// Review is a single user recommendation record tied to a Game. ReviewID is
// the upstream identifier and is globally unique; inserting it twice is a
// no-op (see store.Store.InsertReviews).
type Review struct {
	ReviewID         string
	AppID            int64
	ReviewText       string
	ReviewDate       time.Time // naive UTC, derived from timestamp_created
	PlaytimeHours    *float64  // playtime_forever minutes / 60
	ReviewType       ReviewType
	Language         string // lower-cased
	EarlyAccess      bool
	ReceivedForFree  bool
	VotesHelpful     int
	WeightedVote     float64
	CommentCount     int
	SteamPurchase    bool
	NumGamesOwned    int
	NumReviews       int
	PlaytimeLastTwo  *float64
	LastPlayed       *time.Time
	TimestampUpdated *time.Time
	ScrapedAt        time.Time
}

// ScrapeCursor namespaces an opaque pagination token by (AppID, ParamsHash).
// ParamsHash is a stable hash over the filter parameters that affect
// traversal order (language, date window, early-access/free-copy modes).
type ScrapeCursor struct {
	ID         int64
	AppID      int64
	ParamsHash string
	Cursor     *string
	UpdatedAt  time.Time
}

// ReviewFilter is the shared predicate grammar used by the ingestion loop's
// apply-filters step, the orchestrator's review selection, and the preview
// endpoint. Zero values mean "no constraint" for that field.
type ReviewFilter struct {
	AppID            *int64
	Language         string
	StartDate        *time.Time
	EndDate          *time.Time // expands to end-of-day by the caller
	EarlyAccess      EarlyAccessMode
	ReceivedForFree  FreeCopyMode
	ReviewType       ReviewType
	MinPlaytimeHours *float64
	MaxPlaytimeHours *float64
}
