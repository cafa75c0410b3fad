package ingest

import (
	"sync"
	"time"
)

const logRingCap = 100

// CurrentGame identifies the title a run is presently scraping.
type CurrentGame struct {
	AppID int64
	Name  string
}

// Snapshot is an immutable copy of Progress state for callers that just
// want to read it (e.g. a status HTTP handler).
type Snapshot struct {
	IsRunning          bool
	CurrentGame        *CurrentGame
	CurrentGameScraped int
	CurrentGameTotal   int
	CurrentGameTarget  int
	GlobalScraped      int
	GlobalTotal        int
	AvgRequestSeconds  float64
	TheoreticalRPS     float64
	ObservedRPS        float64
	ExpectedRPS        float64
	RequestsMade       int
	StartTime          time.Time
	StartGlobalScraped int
	RateLimitRPM       int
	Logs               []string
	StopRequested      bool
}

// ETASeconds estimates remaining time for the run using the snapshot's
// expected-throughput figure, 0 when the denominator or remaining count is
// non-positive.
func (s Snapshot) ETASeconds() float64 {
	if s.ExpectedRPS <= 0 || s.GlobalTotal <= 0 {
		return 0
	}
	remaining := s.GlobalTotal - s.GlobalScraped
	if remaining <= 0 {
		return 0
	}
	return float64(remaining) / s.ExpectedRPS
}

// Progress tracks a run's live state: what's being scraped, running
// counters, a capped log ring, and the data an ETA estimate is built from.
type Progress struct {
	mu sync.Mutex

	isRunning          bool
	currentGame        *CurrentGame
	currentGameScraped int
	currentGameTotal   int
	currentGameTarget  int
	globalScraped      int
	globalTotal        int
	avgRequestSeconds  float64
	requestsMade       int
	startTime          time.Time
	startGlobalScraped int
	logs               []string
	stopRequested      bool
}

// Log appends a timestamped message, trimming the ring to its last
// logRingCap entries.
func (p *Progress) Log(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, time.Now().UTC().Format(time.RFC3339)+" "+message)
	if len(p.logs) > logRingCap {
		p.logs = p.logs[len(p.logs)-logRingCap:]
	}
}

func (p *Progress) recordRequest(elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestsMade++
	secs := elapsed.Seconds()
	if p.avgRequestSeconds <= 0 {
		p.avgRequestSeconds = secs
		return
	}
	p.avgRequestSeconds = (p.avgRequestSeconds*float64(p.requestsMade-1) + secs) / float64(p.requestsMade)
}

func (p *Progress) startGame(g CurrentGame, target int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentGame = &g
	p.currentGameScraped = 0
	p.currentGameTotal = 0
	p.currentGameTarget = target
}

func (p *Progress) setCurrentGameTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globalTotal -= p.currentGameTarget
	p.currentGameTotal = total
	p.globalTotal += total
}

func (p *Progress) addScraped(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentGameScraped += n
	p.globalScraped += n
}

func (p *Progress) setGlobalTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.globalTotal = n
}

func (p *Progress) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return false
	}
	p.isRunning = true
	p.currentGame = nil
	p.currentGameScraped = 0
	p.currentGameTotal = 0
	p.currentGameTarget = 0
	p.globalScraped = 0
	p.globalTotal = 0
	p.avgRequestSeconds = 0
	p.requestsMade = 0
	p.startTime = time.Now().UTC()
	p.startGlobalScraped = 0
	p.logs = nil
	p.stopRequested = false
	return true
}

func (p *Progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isRunning = false
	p.currentGame = nil
}

// RequestStop asks a running scrape to stop after finishing its current
// request. A no-op when nothing is running.
func (p *Progress) RequestStop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		p.stopRequested = true
	}
}

func (p *Progress) stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopRequested
}

// Snapshot returns a read-only copy, including the expected-throughput
// figure a caller uses to compute ETA: theoretical_rps = rpm*100/60 (100
// reviews per page); observed_rps = reviews gained since the run started
// divided by elapsed wall time; expected_rps is the lesser of the two,
// falling back to 90% of theoretical when nothing has been observed yet.
func (p *Progress) Snapshot(rateLimitRPM int) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	theoreticalRPS := float64(rateLimitRPM) * 100.0 / 60.0

	var observedRPS float64
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		observedRPS = float64(p.globalScraped-p.startGlobalScraped) / elapsed
	}

	expectedRPS := observedRPS
	if observedRPS <= 0 {
		expectedRPS = 0.9 * theoreticalRPS
	}
	if theoreticalRPS > 0 && theoreticalRPS < expectedRPS {
		expectedRPS = theoreticalRPS
	}

	logs := make([]string, len(p.logs))
	copy(logs, p.logs)

	return Snapshot{
		IsRunning:          p.isRunning,
		CurrentGame:        p.currentGame,
		CurrentGameScraped: p.currentGameScraped,
		CurrentGameTotal:   p.currentGameTotal,
		CurrentGameTarget:  p.currentGameTarget,
		GlobalScraped:      p.globalScraped,
		GlobalTotal:        p.globalTotal,
		AvgRequestSeconds:  p.avgRequestSeconds,
		TheoreticalRPS:     theoreticalRPS,
		ObservedRPS:        observedRPS,
		ExpectedRPS:        expectedRPS,
		RequestsMade:       p.requestsMade,
		StartTime:          p.startTime,
		StartGlobalScraped: p.startGlobalScraped,
		RateLimitRPM:       rateLimitRPM,
		Logs:               logs,
		StopRequested:      p.stopRequested,
	}
}
