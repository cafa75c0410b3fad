package store_test

import (
	"fmt"
	"time"
)

func timeNowUTC() time.Time { return time.Now().UTC() }

func randomReviewID(appID int64, i int) string {
	return fmt.Sprintf("rev-%d-%d-%d", appID, i, time.Now().UnixNano())
}
