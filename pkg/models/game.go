// Package models defines the persisted domain types shared by the
// ingestion engine, the analysis orchestrator, and the store.
package models

import "time"

// Game is a single title tracked by the catalog. One row per AppID.
type Game struct {
	AppID             int64
	Name              string
	AddedAt           time.Time
	LastScrapedAt     *time.Time
	LastScrapedCursor *string
}

// EarlyAccessMode selects how a fetch loop treats early-access reviews.
type EarlyAccessMode string

const (
	EarlyAccessInclude EarlyAccessMode = "include"
	EarlyAccessExclude EarlyAccessMode = "exclude"
	EarlyAccessOnly    EarlyAccessMode = "only"
)

// FreeCopyMode selects how a fetch loop treats reviews from free copies.
type FreeCopyMode string

const (
	FreeCopyInclude FreeCopyMode = "include"
	FreeCopyExclude FreeCopyMode = "exclude"
	FreeCopyOnly    FreeCopyMode = "only"
)

// ReviewType is the upstream recommendation polarity.
type ReviewType string

const (
	ReviewPositive ReviewType = "positive"
	ReviewNegative ReviewType = "negative"
)
