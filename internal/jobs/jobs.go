package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PostedDaysRefresher recomputes the days-posted counters of all listings
type PostedDaysRefresher interface {
	RefreshPostedDays(ctx context.Context) (int64, error)
}

// Start schedules the daily posted-days refresh and returns the running
// scheduler; callers stop it on shutdown
func Start(refresher PostedDaysRefresher, log *logrus.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		updated, err := refresher.RefreshPostedDays(ctx)
		if err != nil {
			log.Errorf("Posted-days refresh failed: %v", err)
			return
		}
		log.Infof("Posted-days refresh updated %d listings", updated)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
