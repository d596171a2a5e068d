// Package parser loads timing maps and derives timeline durations from
// external sources.
package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/grafov/m3u8"
)

const fetchTimeout = 30 * time.Second

// DecodeTimingMap reads a timing map from JSON and validates it.
// Decoding and validation failures wrap timing.ErrMalformed.
func DecodeTimingMap(r io.Reader) (*timing.Map, error) {
	var tm timing.Map
	if err := json.NewDecoder(r).Decode(&tm); err != nil {
		return nil, fmt.Errorf("%w: %v", timing.ErrMalformed, err)
	}

	if err := tm.Validate(); err != nil {
		return nil, err
	}

	return &tm, nil
}

// LoadTimingMap reads a timing map from a local file.
func LoadTimingMap(path string) (*timing.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timing map: %w", err)
	}
	defer f.Close()

	tm, err := DecodeTimingMap(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return tm, nil
}

// FetchTimingMap downloads a timing map, e.g. from another instance's
// /api/timing endpoint.
func FetchTimingMap(mapURL string) (*timing.Map, error) {
	body, err := FetchContent(mapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timing map: %w", err)
	}
	defer body.Close()

	return DecodeTimingMap(body)
}

// PlaylistDuration returns the total duration in seconds of an HLS media
// playlist. For a master playlist the first variant is measured.
func PlaylistDuration(playlistURL string) (float64, error) {
	playlist, listType, err := fetchPlaylist(playlistURL)
	if err != nil {
		return 0, err
	}

	if listType == m3u8.MASTER {
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok {
			return 0, fmt.Errorf("unexpected playlist type")
		}

		var first *m3u8.Variant
		for _, v := range master.Variants {
			if v != nil {
				first = v
				break
			}
		}
		if first == nil {
			return 0, fmt.Errorf("master playlist contains no variants")
		}

		variantURL, err := resolveURL(playlistURL, first.URI)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve variant URL: %w", err)
		}

		playlist, listType, err = fetchPlaylist(variantURL)
		if err != nil {
			return 0, err
		}
		if listType != m3u8.MEDIA {
			return 0, fmt.Errorf("expected media playlist, got master playlist")
		}
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return 0, fmt.Errorf("unexpected playlist type")
	}

	total := 0.0
	count := 0
	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		total += seg.Duration
		count++
	}

	if count == 0 {
		return 0, fmt.Errorf("playlist contains no segments")
	}

	return total, nil
}

func fetchPlaylist(playlistURL string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := FetchContent(playlistURL)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer body.Close()

	playlist, listType, err := m3u8.DecodeFrom(body, true)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse playlist: %w", err)
	}
	return playlist, listType, nil
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("invalid relative URL: %w", err)
	}

	return base.ResolveReference(rel).String(), nil
}

// FetchContent fetches content from a URL. The caller closes the body.
func FetchContent(url string) (io.ReadCloser, error) {
	client := &http.Client{
		Timeout: fetchTimeout,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return resp.Body, nil
}
