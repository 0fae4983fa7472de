// main is the entry point of the craftping tool. It queries Minecraft
// compatible servers over the server list ping protocol and prints, stores
// or continuously watches their status.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/config"
	"github.com/woozymasta/craftping/internal/geoip"
	"github.com/woozymasta/craftping/internal/logger"
	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/ping"
	"github.com/woozymasta/craftping/internal/status"
	"github.com/woozymasta/craftping/internal/storage"
	"github.com/woozymasta/craftping/internal/watch"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Parse()
	logger.Setup(cfg.Logger, cfg.Query.Debug)

	// History database
	var store *storage.Repository
	if cfg.Storage.Path != "" {
		var err error
		store, err = storage.New(cfg.Storage.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize history database")
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing database")
			}
		}()
	}

	// GeoIP is an enrichment, never a reason to fail the query
	var geo *geoip.Provider
	if cfg.GeoIP.Path != "" {
		var err error
		geo, err = geoip.Open(cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
			geo = nil
		} else {
			defer func() {
				if err := geo.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	if cfg.Storage.History > 0 {
		return printHistory(cfg, store)
	}

	if cfg.Watch.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watch.New(cfg, store, geo).Run(ctx)
		return 0
	}

	code := 0
	for _, target := range cfg.Args.Servers {
		if err := queryServer(cfg, store, geo, target); err != nil {
			var cerr *ping.ConnectError
			if errors.As(err, &cerr) {
				fmt.Fprintf(os.Stderr, "Could not connect to server: %s\n", cerr)
			} else {
				fmt.Fprintf(os.Stderr, "Query failed: %s\n", err)
			}
			code = 1
		}
	}

	return code
}

// queryServer runs one full exchange against target and prints the result.
func queryServer(cfg *config.Config, store *storage.Repository, geo *geoip.Provider, target string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Query.Timeout)
	defer cancel()

	host, port, err := ping.Resolve(ctx, target, !cfg.Query.NoSRV)
	if err != nil {
		return err
	}

	sess := ping.New(host, port, ping.Options{
		Timeout: cfg.Query.Timeout,
		Debug:   cfg.Query.Debug,
	})

	res, err := sess.Run()
	if err != nil {
		return err
	}

	country := ""
	if geo != nil {
		country = geo.CountryCode(host)
	}

	printStatus(res, country, cfg.Query.Debug)

	if cfg.Query.SaveIcon {
		saveIcon(res.Status, host, cfg.Query.Force)
	}

	if store != nil {
		rec := models.NewRecord(target, net.JoinHostPort(host, strconv.Itoa(int(port))), res, country)
		if err := store.InsertRecord(rec); err != nil {
			log.Error().Err(err).Msg("Failed to store result")
		}
	}

	return nil
}

func printStatus(res *ping.Result, country string, debug bool) {
	st := res.Status

	fmt.Println(st.Description)
	fmt.Println("--------------------------------")
	if res.HasLatency {
		fmt.Printf("Latency: %.1f ms\n", float64(res.Latency.Microseconds())/1000)
	} else {
		fmt.Println("Latency: n/a")
	}
	fmt.Printf("Players: %d/%d\n", st.PlayersOnline, st.PlayersMax)
	if len(st.Sample) > 0 {
		fmt.Printf("Online:  %s\n", strings.Join(st.Sample, ", "))
	}
	fmt.Printf("Version: %s\n", st.VersionName)
	if country != "" {
		fmt.Printf("Country: %s\n", country)
	}
	if debug {
		fmt.Printf("Version ID: %d\n", st.VersionProtocol)
	}
}

func saveIcon(st *status.Status, host string, force bool) {
	if st.Icon == "" {
		log.Warn().Msg("Server has no icon to save")
		return
	}

	path := host + ".png"
	if err := st.SaveIcon(path, force); err != nil {
		log.Error().Err(err).Msg("Failed to save icon")
		return
	}

	fmt.Printf("Server icon written to %s\n", path)
}

// printHistory lists the stored results for each target and exits.
func printHistory(cfg *config.Config, store *storage.Repository) int {
	code := 0

	for _, target := range cfg.Args.Servers {
		records, err := store.Recent(target, cfg.Storage.History)
		if err != nil {
			log.Error().Err(err).Str("target", target).Msg("Failed to read history")
			code = 1
			continue
		}
		if len(records) == 0 {
			fmt.Printf("%s: no stored results\n", target)
			continue
		}

		fmt.Println(target)
		for _, rec := range records {
			latency := "n/a"
			if rec.LatencyMS != nil {
				latency = fmt.Sprintf("%.1f ms", *rec.LatencyMS)
			}
			fmt.Printf("  %s  %d/%d  %-10s %s\n",
				rec.Timestamp.Format(time.RFC3339), rec.Online, rec.Max, latency, rec.VersionName)
		}
	}

	return code
}
