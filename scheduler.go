package main

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// StartDigestScheduler runs the digest on a standard 5-field cron
// expression (minute hour day-of-month month day-of-week), evaluated
// in the configured timezone. Examples: "0 9 * * *" (daily 9am),
// "0 9 * * 1-5" (weekdays 9am).
func StartDigestScheduler(cfg Config) {
	schedule := strings.TrimSpace(cfg.DigestSchedule)
	if schedule == "" {
		log.Println("Digest scheduler disabled (digest_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid digest_schedule '%s': %v, scheduler disabled", schedule, err)
		return
	}

	log.Printf("Digest scheduled (cron: %s, tz: %s)", schedule, cfg.Timezone)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, err := RunDigest(cfg, false)
			if err != nil {
				log.Printf("Scheduled digest error: %v", err)
				continue
			}
			log.Printf("Scheduled digest complete card=%s warnings=%d", result.CardID, len(result.Warnings))
		}
	}()
}
