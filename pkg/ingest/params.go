package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

const isoLayout = "2006-01-02T15:04:05"

// ParamsHash fingerprints the traversal-affecting portion of a Settings
// value so a saved cursor can be namespaced per app+params. Fields that
// don't change which pages come back (caps, rate limits, playtime bounds)
// are deliberately left out.
func ParamsHash(s Settings) string {
	key := map[string]any{
		"language":          s.Language,
		"start_date":        isoOrNil(s.StartDate),
		"end_date":          isoOrNil(s.EndDate),
		"early_access":      s.EarlyAccess,
		"received_for_free": s.ReceivedForFree,
	}
	// encoding/json sorts map keys, so the fingerprint is stable.
	b, err := json.Marshal(key)
	if err != nil {
		b = []byte("{}")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func isoOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(isoLayout)
}
