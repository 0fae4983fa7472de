// Package watch repeatedly queries a fixed set of servers and records the
// results to the history database.
package watch

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/woozymasta/craftping/internal/config"
	"github.com/woozymasta/craftping/internal/geoip"
	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/ping"
	"github.com/woozymasta/craftping/internal/storage"
)

// Runner drives repeated query rounds over a fixed set of targets.
type Runner struct {
	cfg     *config.Config
	store   *storage.Repository // nil disables history
	geo     *geoip.Provider     // nil disables country lookup
	targets []string
}

// New prepares a runner for the servers given on the command line.
func New(cfg *config.Config, store *storage.Repository, geo *geoip.Provider) *Runner {
	return &Runner{cfg: cfg, store: store, geo: geo, targets: cfg.Args.Servers}
}

// Run queries every target once per interval until ctx is canceled. The
// limiter paces rounds; a round that takes longer than the interval simply
// delays the next one.
func (r *Runner) Run(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(r.cfg.Watch.Interval), 1)

	log.Info().
		Int("targets", len(r.targets)).
		Dur("interval", r.cfg.Watch.Interval).
		Msg("Watching servers")

	for {
		if err := limiter.Wait(ctx); err != nil {
			log.Info().Msg("Watch stopped")
			return
		}
		r.round(ctx)
	}
}

// round fans the targets out over a small worker pool and waits for all of
// them to finish.
func (r *Runner) round(ctx context.Context) {
	workers := r.cfg.Watch.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string, len(r.targets))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				r.query(ctx, target)
			}
		}()
	}

	for _, target := range r.targets {
		jobs <- target
	}
	close(jobs)

	wg.Wait()
}

func (r *Runner) query(ctx context.Context, target string) {
	logCtx := log.With().Str("target", target).Logger()

	host, port, err := ping.Resolve(ctx, target, !r.cfg.Query.NoSRV)
	if err != nil {
		logCtx.Error().Err(err).Msg("Bad target address")
		return
	}

	sess := ping.New(host, port, ping.Options{
		Timeout: r.cfg.Query.Timeout,
		Debug:   r.cfg.Query.Debug,
	})

	res, err := sess.Run()
	if err != nil {
		logCtx.Warn().Err(err).Msg("Query failed")
		return
	}

	event := logCtx.Info().
		Int("online", res.Status.PlayersOnline).
		Int("max", res.Status.PlayersMax).
		Str("version", res.Status.VersionName)
	if res.HasLatency {
		event = event.Dur("latency", res.Latency)
	}
	event.Msg("Server online")

	if r.store == nil {
		return
	}

	country := ""
	if r.geo != nil {
		country = r.geo.CountryCode(host)
	}

	rec := models.NewRecord(target, net.JoinHostPort(host, strconv.Itoa(int(port))), res, country)

	if prev, err := r.store.LastIconHash(target); err == nil && prev != nil &&
		rec.IconHash != nil && *prev != *rec.IconHash {
		logCtx.Info().Msg("Server icon changed")
	}

	if err := r.store.InsertRecord(rec); err != nil {
		logCtx.Error().Err(err).Msg("Failed to store result")
	}
}
