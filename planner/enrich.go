package planner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/nomadplan/geocode"
	"github.com/c360studio/nomadplan/intent"
	"github.com/c360studio/nomadplan/weather"
)

// enrich looks up the destination forecast and the route endpoints
// concurrently. Lookups that fail or are not configured are left empty.
func (o *Orchestrator) enrich(ctx context.Context, in intent.Intent) (weather.Forecast, Route) {
	if o.forecaster == nil && o.locator == nil {
		return nil, Route{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.enrichTimeout)
	defer cancel()

	var (
		wx    weather.Forecast
		route Route
		g     errgroup.Group
	)

	if o.forecaster != nil && in.To != nil {
		to := *in.To
		g.Go(func() error {
			f, err := o.forecaster.Forecast(ctx, to, in.DayCount())
			if err != nil {
				o.logger.Warn("Forecast lookup failed", "session", o.sessionID, "place", to, "error", err)
				return nil
			}
			wx = f
			return nil
		})
	}

	if o.locator != nil {
		g.Go(func() error {
			route.From = o.locate(ctx, in.From)
			return nil
		})
		g.Go(func() error {
			route.To = o.locate(ctx, in.To)
			return nil
		})
	}

	_ = g.Wait()
	return wx, route
}

func (o *Orchestrator) locate(ctx context.Context, place *string) *geocode.Point {
	if place == nil {
		return nil
	}
	p, err := o.locator.Lookup(ctx, *place)
	if err != nil {
		o.logger.Warn("Route lookup failed", "session", o.sessionID, "place", *place, "error", err)
		return nil
	}
	return &p
}
