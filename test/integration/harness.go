// Package integration provides integration testing utilities for lyricsync.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/agleyzer/lyricsync/internal/player"
)

// TestHarness runs a lyricsync binary and talks to its HTTP API.
type TestHarness struct {
	t      *testing.T
	cmd    *exec.Cmd
	port   int
	cancel context.CancelFunc
	client *http.Client
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	return &TestHarness{
		t:      t,
		port:   findAvailablePort(t),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Start launches lyricsync in serve mode with extra flags and waits for
// /health to answer.
func (h *TestHarness) Start(args ...string) {
	h.t.Helper()

	binary := findLyricsyncBinary(h.t)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	argv := append([]string{"--serve", "--port", strconv.Itoa(h.port)}, args...)
	h.cmd = exec.CommandContext(ctx, binary, argv...)
	h.cmd.Stdout = os.Stdout
	h.cmd.Stderr = os.Stderr

	if err := h.cmd.Start(); err != nil {
		h.t.Fatalf("failed to start lyricsync: %v", err)
	}

	waitForServer(h.t, h.URL("/health"), 10*time.Second)
}

// URL returns the absolute URL of path on the running instance.
func (h *TestHarness) URL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", h.port, path)
}

// Get fetches path and returns the status code and body.
func (h *TestHarness) Get(path string) (int, []byte) {
	h.t.Helper()
	return h.do(http.MethodGet, path)
}

// Post sends an empty POST to path and returns the status code and body.
func (h *TestHarness) Post(path string) (int, []byte) {
	h.t.Helper()
	return h.do(http.MethodPost, path)
}

func (h *TestHarness) do(method, path string) (int, []byte) {
	h.t.Helper()
	return request(h.t, h.client, method, h.URL(path))
}

// Progress fetches the player status.
func (h *TestHarness) Progress() player.Progress {
	h.t.Helper()
	code, body := h.Get("/api/player")
	if code != http.StatusOK {
		h.t.Fatalf("player status returned %d: %s", code, body)
	}
	return decodeProgress(h.t, body)
}

// WaitForCondition polls condition until it holds or timeout passes.
func (h *TestHarness) WaitForCondition(condition func() bool, timeout time.Duration, description string) {
	h.t.Helper()
	waitFor(h.t, condition, timeout, description)
}

// Cleanup stops the running instance.
func (h *TestHarness) Cleanup() {
	h.t.Helper()
	stopProcess(h.cmd, h.cancel)
}

func request(t *testing.T, client *http.Client, method, url string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, body
}

func decodeProgress(t *testing.T, body []byte) player.Progress {
	t.Helper()
	var p player.Progress
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("failed to decode progress %q: %v", body, err)
	}
	return p
}

func stopProcess(cmd *exec.Cmd, cancel context.CancelFunc) {
	if cancel != nil {
		cancel()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
		cmd.Wait()
	}
}

// findLyricsyncBinary locates a built lyricsync binary, skipping the test
// when there is none.
func findLyricsyncBinary(t *testing.T) string {
	t.Helper()

	candidates := []string{
		"../../lyricsync",           // From test/integration
		"./lyricsync",               // From project root
		"../lyricsync",              // From test directory
		"./cmd/lyricsync/lyricsync", // Built in place
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, _ := filepath.Abs(path)
			t.Logf("Found lyricsync binary at: %s", absPath)
			return absPath
		}
	}

	t.Skip("lyricsync binary not found. Run 'go build -o lyricsync ./cmd/lyricsync' first")
	return ""
}

// waitForServer waits for a server to become available.
func waitForServer(t *testing.T, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server at %s did not become available within %v", url, timeout)
}

func waitFor(t *testing.T, condition func() bool, timeout time.Duration, description string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatalf("timed out after %v waiting for %s", timeout, description)
}

// findAvailablePort finds an available TCP port.
func findAvailablePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
