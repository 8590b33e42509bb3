// Package schedule runs the job at a cron cadence evaluated in a configured
// timezone.
package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Next returns the next execution after from, with the cron expression
// evaluated in loc.
func Next(spec string, loc *time.Location, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid cron expression %q", spec)
	}
	return sched.Next(from.In(loc)), nil
}

// Run executes job at the cadence of spec until the context is cancelled.
// A trigger that fires while the previous run is still going is skipped, so
// runs never overlap.
func Run(ctx context.Context, spec string, loc *time.Location, job func()) error {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger()))),
	)
	id, err := c.AddFunc(spec, job)
	if err != nil {
		return errors.Wrapf(err, "invalid cron expression %q", spec)
	}

	c.Start()
	log.Infof("next job execution %s", c.Entry(id).Next)

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
