package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agleyzer/lyricsync/internal/lyrics"
	"github.com/agleyzer/lyricsync/internal/player"
	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/agleyzer/lyricsync/internal/transport"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestResolveDuration(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		fallback float64
		want     float64
		wantErr  bool
	}{
		{name: "fallback when unset", fallback: 120.5, want: 120.5},
		{name: "plain seconds", explicit: "95.5", fallback: 120.5, want: 95.5},
		{name: "clock form", explicit: "1:45", fallback: 120.5, want: 105},
		{name: "unclamped above range", explicit: "4:00", fallback: 120.5, want: 240},
		{name: "garbage", explicit: "soon", fallback: 120.5, wantErr: true},
		{name: "bad seconds", explicit: "1:75", fallback: 120.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDuration(tt.explicit, "", tt.fallback, createTestLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("resolveDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveDuration_Playlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(`#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
a.ts
#EXTINF:10.0,
b.ts
#EXTINF:4.5,
c.ts
#EXT-X-ENDLIST
`))
	}))
	defer server.Close()

	// the playlist wins over an explicit duration
	got, err := resolveDuration("60", server.URL, 120.5, createTestLogger())
	if err != nil {
		t.Fatalf("resolveDuration() error = %v", err)
	}
	if math.Abs(got-24.5) > 1e-9 {
		t.Errorf("resolveDuration() = %v, want 24.5", got)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer down.Close()

	if _, err := resolveDuration("", down.URL, 120.5, createTestLogger()); err == nil {
		t.Error("expected error for unreachable playlist")
	}
}

func TestPickSet(t *testing.T) {
	tests := []struct {
		name     string
		set      string
		bref     bool
		fallback string
		want     string
	}{
		{"fallback", "", false, lyrics.DefaultSet, lyrics.DefaultSet},
		{"explicit set", "custom", false, lyrics.DefaultSet, "custom"},
		{"bref wins", "custom", true, lyrics.DefaultSet, lyrics.BrefSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickSet(tt.set, tt.bref, tt.fallback); got != tt.want {
				t.Errorf("pickSet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitPeers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"127.0.0.1:7000", []string{"127.0.0.1:7000"}},
		{" 127.0.0.1:7000 , ,127.0.0.1:7001,", []string{"127.0.0.1:7000", "127.0.0.1:7001"}},
	}

	for _, tt := range tests {
		got := splitPeers(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitPeers(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitPeers(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestIsURL(t *testing.T) {
	tests := map[string]bool{
		"http://example.com/map.json":  true,
		"https://example.com/map.json": true,
		"map.json":                     false,
		"/tmp/https.json":              false,
	}

	for in, want := range tests {
		if got := isURL(in); got != want {
			t.Errorf("isURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoadTiming(t *testing.T) {
	const doc = `{"duration": 3, "lines": [{"words": [{"word": "hi", "startTime": 0, "endTime": 3}]}]}`

	path := filepath.Join(t.TempDir(), "map.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write map: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	}))
	defer server.Close()

	for _, source := range []string{path, server.URL} {
		tm, err := loadTiming(source)
		if err != nil {
			t.Fatalf("loadTiming(%q) error = %v", source, err)
		}
		if tm.Duration != 3 || tm.WordCount() != 1 {
			t.Errorf("loadTiming(%q) = duration %v, %d words", source, tm.Duration, tm.WordCount())
		}
	}

	if _, err := loadTiming(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExportTiming(t *testing.T) {
	lib, err := lyrics.Load()
	if err != nil {
		t.Fatalf("failed to load lyrics: %v", err)
	}
	tm, err := lib.Timing(lyrics.DefaultSet, 90)
	if err != nil {
		t.Fatalf("Timing() error = %v", err)
	}

	var buf bytes.Buffer
	if err := exportTiming(&buf, tm, false); err != nil {
		t.Fatalf("exportTiming() error = %v", err)
	}

	var got timing.Map
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("exported JSON does not decode: %v", err)
	}
	if got.Duration != 90 || got.WordCount() != tm.WordCount() {
		t.Errorf("exported duration %v with %d words, want 90 with %d", got.Duration, got.WordCount(), tm.WordCount())
	}
}

func TestTitleFor(t *testing.T) {
	lib, err := lyrics.Load()
	if err != nil {
		t.Fatalf("failed to load lyrics: %v", err)
	}

	set, err := lib.Get(lyrics.DefaultSet)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got := titleFor(lib, &timing.Map{Set: lyrics.DefaultSet}); got != set.Title {
		t.Errorf("titleFor(default) = %q, want %q", got, set.Title)
	}
	if got := titleFor(lib, &timing.Map{}); got != "lyricsync" {
		t.Errorf("titleFor(unnamed) = %q, want lyricsync", got)
	}
}

func TestFinishWatcher(t *testing.T) {
	w := newFinishWatcher()

	w.OnProgress(player.Progress{State: transport.Playing})
	select {
	case <-w.Done():
		t.Fatal("Done closed before playback finished")
	default:
	}

	w.OnProgress(player.Progress{State: transport.Finished})
	w.OnProgress(player.Progress{State: transport.Finished})

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after playback finished")
	}
}
