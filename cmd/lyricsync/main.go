// The lyricsync command plays word-synchronized lyric highlighting in a
// terminal, serves it over HTTP, or exports timing maps.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/agleyzer/lyricsync/internal/cluster"
	"github.com/agleyzer/lyricsync/internal/config"
	"github.com/agleyzer/lyricsync/internal/highlight"
	"github.com/agleyzer/lyricsync/internal/index"
	"github.com/agleyzer/lyricsync/internal/lyrics"
	"github.com/agleyzer/lyricsync/internal/parser"
	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/server"
	"github.com/agleyzer/lyricsync/internal/session"
	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/agleyzer/lyricsync/internal/transport"
	"github.com/agleyzer/lyricsync/internal/tui"
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

const (
	version = "1.0.0"
)

// options are the resolved command-line settings.
type options struct {
	cfg *config.Config

	set          string
	duration     string
	durationFrom string
	timingSource string

	serve     bool
	export    bool
	clipboard bool
}

func main() {
	var (
		configPath   = flag.String("config", "", "Path to a YAML config file (default lyricsync.yaml when present)")
		envFile      = flag.String("env-file", "", "Path to a .env file (default .env when present)")
		set          = flag.String("set", "", "Lyric set to play")
		bref         = flag.Bool("bref", false, "Use the alternate \"bref\" lyric set (supply it through lyrics_files)")
		duration     = flag.String("duration", "", "Track duration in seconds or m:ss (clamped to 30-200s)")
		durationFrom = flag.String("duration-from", "", "Take the track duration from an HLS playlist URL")
		timingSource = flag.String("timing", "", "Load a timing map from a file or URL instead of generating one")
		serve        = flag.Bool("serve", false, "Serve the timing and player API over HTTP")
		port         = flag.Int("port", 0, "HTTP server port (default 8080)")
		export       = flag.Bool("export", false, "Print the timing map as JSON and exit")
		toClipboard  = flag.Bool("clipboard", false, "With --export, also copy the timing map to the clipboard")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion  = flag.Bool("version", false, "Show version and exit")
		raftID       = flag.String("raft-id", "", "Cluster node id (default random)")
		raftBind     = flag.String("raft-bind", "", "Cluster bind address host:port; enables clustering")
		raftPeers    = flag.String("raft-peers", "", "Comma-separated cluster peer addresses, including this node")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lyricsync - synchronized lyric highlighting v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --duration 1:45\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --export --duration 90 --clipboard\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --serve --port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --duration-from https://example.com/anthem/playlist.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --serve --raft-bind 127.0.0.1:7000 --raft-peers 127.0.0.1:7000,127.0.0.1:7001\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("lyricsync v%s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *port != 0 {
		cfg.Port = *port
	}
	if *raftID != "" {
		cfg.Cluster.RaftID = *raftID
	}
	if *raftBind != "" {
		cfg.Cluster.Bind = *raftBind
	}
	if *raftPeers != "" {
		cfg.Cluster.Peers = splitPeers(*raftPeers)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		fmt.Fprintf(os.Stderr, "Error: port must be between 1 and 65535\n")
		os.Exit(1)
	}

	opts := options{
		cfg:          cfg,
		set:          pickSet(*set, *bref, cfg.DefaultSet),
		duration:     *duration,
		durationFrom: *durationFrom,
		timingSource: *timingSource,
		serve:        *serve,
		export:       *export,
		clipboard:    *toClipboard,
	}

	interactive := !opts.serve && !opts.export && term.IsTerminal(int(os.Stdout.Fd()))

	// the terminal UI owns stdout
	var logOutput io.Writer = os.Stdout
	if interactive {
		logOutput = io.Discard
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	logger.Info("lyricsync starting", "version", version)

	if err := run(opts, interactive, logger); err != nil {
		if interactive {
			fmt.Fprintln(os.Stderr, tui.BulletStyle.Render("└")+tui.ErrorStyle.Render("Error: "+err.Error()))
		}
		logger.Error("application error", "error", err)
		os.Exit(1)
	}

	logger.Info("lyricsync stopped")
}

func run(opts options, interactive bool, logger *slog.Logger) error {
	cfg := opts.cfg

	library, err := lyrics.Load(cfg.LyricsFiles...)
	if err != nil {
		return fmt.Errorf("failed to load lyrics: %w", err)
	}

	duration, err := resolveDuration(opts.duration, opts.durationFrom, cfg.DefaultDuration, logger)
	if err != nil {
		return err
	}

	clusterCfg := cluster.Config{
		RaftID:   cfg.Cluster.RaftID,
		BindAddr: cfg.Cluster.Bind,
		Peers:    cfg.Cluster.Peers,
		LogLevel: cfg.Cluster.LogLevel,
	}
	clustered := clusterCfg.Enabled()

	var tm *timing.Map
	if opts.timingSource != "" {
		if clustered {
			return fmt.Errorf("--timing cannot be combined with clustering; nodes replicate lyric sets")
		}
		tm, err = loadTiming(opts.timingSource)
	} else {
		tm, err = library.Timing(opts.set, timing.ClampDuration(duration))
	}
	if err != nil {
		return fmt.Errorf("failed to prepare timing map: %w", err)
	}

	if opts.export {
		return exportTiming(os.Stdout, tm, opts.clipboard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal", "signal", sig)
		cancel()
	}()

	// the terminal UI drives the engine from its frame loop
	tick := cfg.TickInterval
	if interactive {
		tick = 0
	} else if tick <= 0 {
		tick = player.DefaultTickInterval
	}

	recorder := tui.NewRecorder()
	finished := newFinishWatcher()
	observer := player.Observers(player.NewLogObserver(logger), finished)
	if interactive {
		observer = recorder
	}

	engine := player.New(observer, player.Options{
		TickInterval: tick,
		Logger:       logger,
	})
	sess := session.New(engine, library, logger)

	var ctrl server.Controller = sess
	if clustered {
		follower := cluster.NewEngineFollower(sess, nil, logger)
		manager, err := cluster.NewManager(clusterCfg, follower, logger)
		if err != nil {
			return fmt.Errorf("failed to create cluster: %w", err)
		}
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start cluster: %w", err)
		}
		defer manager.Shutdown()

		waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
		err = manager.WaitForLeader(waitCtx)
		waitCancel()
		if err != nil {
			return fmt.Errorf("no cluster leader elected: %w", err)
		}

		clusterCtrl := cluster.NewController(manager, sess, nil)
		ctrl = clusterCtrl

		// a fresh cluster gets its first timeline from whichever node leads
		if manager.IsLeader() && !manager.GetState().Prepared {
			if err := clusterCtrl.Prepare(opts.set, tm.Duration); err != nil {
				return fmt.Errorf("failed to prepare cluster timeline: %w", err)
			}
		}
		logger.Info("cluster ready", "leader", manager.LeaderAddr(), "is_leader", manager.IsLeader())
	} else if err := sess.PrepareMap(tm); err != nil {
		return fmt.Errorf("failed to prepare engine: %w", err)
	}
	defer engine.Stop()

	switch {
	case opts.serve:
		srv := server.New(library, ctrl, cfg.DefaultSet, cfg.Port, logger)
		logger.Info("lyricsync API ready",
			"timing", fmt.Sprintf("http://localhost:%d/api/timing", cfg.Port),
			"player", fmt.Sprintf("http://localhost:%d/api/player", cfg.Port),
			"health", fmt.Sprintf("http://localhost:%d/health", cfg.Port),
		)
		return srv.Start(ctx)

	case interactive:
		model := tui.New(titleFor(library, tm), ctrl, engine, recorder, cfg.FrameInterval)
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal UI: %w", err)
		}
		return nil

	default:
		// followers wait for the leader to start playback
		if err := ctrl.Play(); err != nil && !errors.Is(err, cluster.ErrNotLeader) {
			return fmt.Errorf("failed to start playback: %w", err)
		}
		select {
		case <-finished.Done():
			logger.Info("playback complete", "duration", tm.Duration)
		case <-ctx.Done():
		}
		return nil
	}
}

// resolveDuration picks the track length: an HLS playlist wins over an
// explicit value, which wins over the configured default.
func resolveDuration(explicit, playlistURL string, fallback float64, logger *slog.Logger) (float64, error) {
	if playlistURL != "" {
		logger.Info("measuring playlist", "url", playlistURL)
		d, err := parser.PlaylistDuration(playlistURL)
		if err != nil {
			return 0, fmt.Errorf("failed to measure playlist: %w", err)
		}
		logger.Info("playlist measured", "duration", d)
		return d, nil
	}

	if explicit != "" {
		d, err := timing.ParseClock(explicit)
		if err != nil {
			return 0, fmt.Errorf("invalid --duration: %w", err)
		}
		return d, nil
	}

	return fallback, nil
}

func loadTiming(source string) (*timing.Map, error) {
	if isURL(source) {
		return parser.FetchTimingMap(source)
	}
	return parser.LoadTimingMap(source)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func exportTiming(w io.Writer, tm *timing.Map, toClipboard bool) error {
	data, err := json.MarshalIndent(tm, "", "  ")
	if err != nil {
		return fmt.Errorf("encode timing map: %w", err)
	}

	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return err
	}

	if toClipboard {
		if err := clipboard.WriteAll(string(data)); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	}
	return nil
}

func pickSet(set string, bref bool, fallback string) string {
	switch {
	case bref:
		return lyrics.BrefSet
	case set != "":
		return set
	default:
		return fallback
	}
}

func titleFor(library *lyrics.Library, tm *timing.Map) string {
	if tm.Set != "" {
		if s, err := library.Get(tm.Set); err == nil && s.Title != "" {
			return s.Title
		}
	}
	return "lyricsync"
}

func splitPeers(s string) []string {
	var peers []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

// finishWatcher closes Done once playback reaches the end.
type finishWatcher struct {
	once sync.Once
	done chan struct{}
}

func newFinishWatcher() *finishWatcher {
	return &finishWatcher{done: make(chan struct{})}
}

func (f *finishWatcher) OnHighlight(*index.Index, highlight.Projection) {}

func (f *finishWatcher) OnProgress(p player.Progress) {
	if p.State == transport.Finished {
		f.once.Do(func() { close(f.done) })
	}
}

func (f *finishWatcher) Done() <-chan struct{} {
	return f.done
}
