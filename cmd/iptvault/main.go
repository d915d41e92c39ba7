// Command iptvault: IPTV catalog daemon. Syncs playlists (Xtream
// accounts and plain M3U) into a local SQLite catalog with EPG.
//
//	run        Daemon: seed playlists, refresh on an interval, serve /healthz and /metrics. For systemd.
//	refresh    One-shot catalog sync (all active playlists, or -playlist id), then EPG
//	purge-epg  Remove guide programs older than the retention window
//	playlists  List configured playlists with their row counts
//	check      Probe playlist sources (auth for Xtream, GET for M3U) and report reachability
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iptvault/iptvault/internal/catalog"
	"github.com/iptvault/iptvault/internal/config"
	"github.com/iptvault/iptvault/internal/health"
	"github.com/iptvault/iptvault/internal/httpclient"
	"github.com/iptvault/iptvault/internal/ingest"
	"github.com/iptvault/iptvault/internal/metrics"
	"github.com/iptvault/iptvault/internal/store"
)

func main() {
	_ = config.LoadEnvFile(".env")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runAddr := runCmd.String("addr", "", "Listen address for /healthz and /metrics (default: IPTVAULT_LISTEN)")
	runInterval := runCmd.Duration("interval", 0, "Refresh interval (default: IPTVAULT_REFRESH_INTERVAL)")

	refreshCmd := flag.NewFlagSet("refresh", flag.ExitOnError)
	refreshPlaylist := refreshCmd.String("playlist", "", "Playlist id (default: all active)")
	refreshSkipEPG := refreshCmd.Bool("skip-epg", false, "Skip the EPG refresh after the catalog sync")

	purgeCmd := flag.NewFlagSet("purge-epg", flag.ExitOnError)
	purgeRetention := purgeCmd.Duration("retention", 0, "Keep programs that ended within this window (default: IPTVAULT_EPG_RETENTION)")

	playlistsCmd := flag.NewFlagSet("playlists", flag.ExitOnError)

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkPlaylist := checkCmd.String("playlist", "", "Playlist id (default: all active)")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|refresh|purge-epg|playlists|check> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  run        Daemon: periodic refresh + /healthz + /metrics (for systemd)\n")
		fmt.Fprintf(os.Stderr, "  refresh    One-shot catalog sync, then EPG\n")
		fmt.Fprintf(os.Stderr, "  purge-epg  Remove expired guide programs\n")
		fmt.Fprintf(os.Stderr, "  playlists  List playlists with row counts\n")
		fmt.Fprintf(os.Stderr, "  check      Probe playlist sources\n")
		os.Exit(1)
	}

	cfg := config.Load()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Printf("Open database %s: %v", cfg.DBPath, err)
		os.Exit(1)
	}
	defer st.Close()

	if err := seedPlaylists(st, cfg.PlaylistsFile); err != nil {
		log.Printf("Seed playlists: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.WithTimeout(cfg.HTTPTimeout)
	syncer := ingest.NewSyncer(st, metrics.New(prometheus.DefaultRegisterer))
	syncer.HTTP = httpClient

	switch os.Args[1] {
	case "run":
		_ = runCmd.Parse(os.Args[2:])
		addr := *runAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		interval := *runInterval
		if interval == 0 {
			interval = cfg.RefreshInterval
		}
		if err := runDaemon(ctx, st, syncer, cfg, addr, interval); err != nil {
			log.Printf("Run: %v", err)
			os.Exit(1)
		}

	case "refresh":
		_ = refreshCmd.Parse(os.Args[2:])
		playlists, err := selectPlaylists(st, *refreshPlaylist)
		if err != nil {
			log.Printf("Refresh: %v", err)
			os.Exit(1)
		}
		if failed := refreshAll(ctx, syncer, playlists, !*refreshSkipEPG); failed > 0 {
			os.Exit(1)
		}

	case "purge-epg":
		_ = purgeCmd.Parse(os.Args[2:])
		retention := *purgeRetention
		if retention == 0 {
			retention = cfg.EPGRetention
		}
		n, err := syncer.PurgeEPG(retention)
		if err != nil {
			log.Printf("Purge EPG: %v", err)
			os.Exit(1)
		}
		log.Printf("Purged %d programs older than %s", n, retention)

	case "playlists":
		_ = playlistsCmd.Parse(os.Args[2:])
		playlists, err := st.Playlists()
		if err != nil {
			log.Printf("List playlists: %v", err)
			os.Exit(1)
		}
		for _, pl := range playlists {
			state := "active"
			if !pl.IsActive {
				state = "inactive"
			}
			fmt.Printf("%-20s %-12s %-8s channels=%d movies=%d series=%d updated=%s\n",
				pl.ID, pl.Type, state, pl.ChannelCount, pl.MovieCount, pl.SeriesCount,
				formatUpdated(pl.LastUpdated))
		}

	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		playlists, err := selectPlaylists(st, *checkPlaylist)
		if err != nil {
			log.Printf("Check: %v", err)
			os.Exit(1)
		}
		failed := 0
		for _, pl := range playlists {
			cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := health.CheckPlaylist(cctx, pl, httpClient)
			cancel()
			if err != nil {
				log.Printf("Check %s: %v", pl.ID, err)
				failed++
				continue
			}
			log.Printf("Check %s: OK", pl.ID)
		}
		if failed > 0 {
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}

// seedPlaylists inserts playlists from the YAML seed file. Existing
// rows are left alone so runtime edits (active flag, counts) survive a
// restart.
func seedPlaylists(st *store.Store, path string) error {
	if path == "" {
		return nil
	}
	seeds, err := config.LoadPlaylists(path)
	if err != nil {
		return err
	}
	for _, pl := range seeds {
		_, err := st.Playlist(pl.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := st.UpsertPlaylist(pl); err != nil {
			return err
		}
		log.Printf("[SEED] added playlist %s (%s)", pl.ID, pl.Type)
	}
	return nil
}

func selectPlaylists(st *store.Store, id string) ([]catalog.Playlist, error) {
	if id != "" {
		pl, err := st.Playlist(id)
		if err != nil {
			return nil, fmt.Errorf("playlist %q: %w", id, err)
		}
		return []catalog.Playlist{pl}, nil
	}
	return st.ActivePlaylists()
}

// refreshAll syncs every playlist in order and returns how many failed
// outright. Partial refreshes count as success; their report says what
// was lost.
func refreshAll(ctx context.Context, syncer *ingest.Syncer, playlists []catalog.Playlist, withEPG bool) int {
	failed := 0
	for _, pl := range playlists {
		if ctx.Err() != nil {
			return failed
		}
		if _, err := syncer.RefreshPlaylist(ctx, pl); err != nil {
			log.Printf("Refresh %s: %v", pl.ID, err)
			failed++
			continue
		}
		if withEPG {
			if err := syncer.RefreshEPG(ctx, pl); err != nil {
				log.Printf("Refresh EPG %s: %v", pl.ID, err)
			}
		}
	}
	return failed
}

// runDaemon refreshes on an interval and serves health + metrics until
// the context is canceled.
func runDaemon(ctx context.Context, st *store.Store, syncer *ingest.Syncer, cfg *config.Config, addr string, interval time.Duration) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("[HTTP] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HTTP] %v", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	cycle := func() {
		playlists, err := st.ActivePlaylists()
		if err != nil {
			log.Printf("Load playlists: %v", err)
			return
		}
		refreshAll(ctx, syncer, playlists, true)
		if _, err := syncer.PurgeEPG(cfg.EPGRetention); err != nil {
			log.Printf("Purge EPG: %v", err)
		}
	}

	cycle()
	if interval <= 0 {
		log.Printf("Refresh loop disabled (interval %s); serving health/metrics only", interval)
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("Shutting down")
			return nil
		case <-ticker.C:
			cycle()
		}
	}
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
