// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jllopis/dci/pkg/journal"
)

// lockedBuffer lets a test read output while the session is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type sessionRun struct {
	t      *testing.T
	in     *io.PipeWriter
	stdout *lockedBuffer
	stderr *lockedBuffer
	done   chan int
}

func startSession(t *testing.T, args ...string) *sessionRun {
	t.Helper()
	inR, inW := io.Pipe()
	s := &sessionRun{t: t, in: inW, stdout: &lockedBuffer{}, stderr: &lockedBuffer{}, done: make(chan int, 1)}
	go func() {
		s.done <- run(context.Background(), args, inR, s.stdout, s.stderr)
		_ = inR.Close()
	}()
	return s
}

// send returns once the session has read the input, so the runtime is up.
func (s *sessionRun) send(input string) {
	s.t.Helper()
	if _, err := io.WriteString(s.in, input); err != nil {
		s.t.Fatalf("write session input: %v", err)
	}
}

func (s *sessionRun) wait() int {
	s.t.Helper()
	_ = s.in.Close()
	select {
	case code := <-s.done:
		return code
	case <-time.After(5 * time.Second):
		s.t.Fatal("session did not finish")
		return -1
	}
}

func decodeEvents(t *testing.T, out string) []sessionEvent {
	t.Helper()
	var events []sessionEvent
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var ev sessionEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode event %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func writeSessionConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestRunSessionAppliesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dci.yaml")
	writeSessionConfig(t, path, "example:\n  fee_rate: 0.1\n")

	s := startSession(t, "--json", "--config", path, "--set", "log.level=warn",
		"session", "--poll", "0", "--from", "1000", "--to", "0")
	s.send("transfer 100\n")

	writeSessionConfig(t, path, "example:\n  fee_rate: 0.25\ndispatch:\n  cache: false\njournal:\n  driver: none\n")
	s.send("reload\ntransfer 200\nreload\nquit\ntransfer 1\n")
	if code := s.wait(); code != exitOK {
		t.Fatalf("session exit %d: %s", code, s.stderr.String())
	}

	events := decodeEvents(t, s.stdout.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %+v", events)
	}
	first, reload, second, again := events[0], events[1], events[2], events[3]
	if first.Status != journal.StatusOK || first.Sink.Balance != 90 || !first.Cache {
		t.Errorf("first transfer %+v", first)
	}
	if reload.Command != "reload" || reload.Status != statusApplied || reload.Sink.FeeRate != 0.25 || reload.Cache {
		t.Errorf("reload %+v", reload)
	}
	if strings.Join(reload.Changed, ",") != "dispatch,journal (restart required),example" {
		t.Errorf("changed = %v", reload.Changed)
	}
	if second.Source.Balance != 700 || second.Sink.Balance != 240 {
		t.Errorf("second transfer should use the new fee: %+v", second)
	}
	if again.Status != statusUnchanged {
		t.Errorf("reload of an unchanged file %+v", again)
	}
	// The --set layer survives the reload.
	if strings.Contains(s.stderr.String(), "session config applied") {
		t.Errorf("info logs should stay filtered at warn: %s", s.stderr.String())
	}
	if !strings.Contains(s.stderr.String(), "restart") {
		t.Errorf("expected a restart warning, got %s", s.stderr.String())
	}
}

func TestRunSessionPollsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dci.yaml")
	writeSessionConfig(t, path, "example:\n  fee_rate: 0.1\n")

	s := startSession(t, "--json", "--config", path, "session", "--poll", "10ms", "--to", "0")
	s.send("balances\n")
	writeSessionConfig(t, path, "example:\n  fee_rate: 0.75\n")

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(s.stdout.String(), `"command":"reload"`) {
		if time.Now().After(deadline) {
			t.Fatalf("reload never applied, output %q", s.stdout.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.send("transfer 100\n")
	if code := s.wait(); code != exitOK {
		t.Fatalf("session exit %d: %s", code, s.stderr.String())
	}

	events := decodeEvents(t, s.stdout.String())
	last := events[len(events)-1]
	if last.Command != "transfer 100" || last.Sink.Balance != 25 || last.Sink.FeeRate != 0.75 {
		t.Errorf("transfer after reload %+v", last)
	}
}

func TestRunSessionCommands(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"",
		"balances",
		"transfer",
		"transfer lots",
		"transfer 5000",
		"reload",
		"dance",
		"transfer 100",
	}, "\n")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"session", "--sink", "plain"}, strings.NewReader(input), &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("session exit %d: %s", code, stderr.String())
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	want := []string{
		"1 balances ok source=1000 sink=500",
		`2 transfer failed source=1000 sink=500 fee_rate=0 cache=true code="INVALID_INPUT"`,
		`3 transfer lots failed`,
		`4 transfer 5000 failed source=1000 sink=500 fee_rate=0 cache=true code="DOMAIN:Insufficient Funds"`,
		`5 reload failed`,
		`6 dance failed`,
		"7 transfer 100 ok source=900 sink=600",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got:\n%s", len(want), stdout.String())
	}
	for i, prefix := range want {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i+1, lines[i], prefix)
		}
	}

	code, _, errOut := runCLI(t, "session", "--poll", "-1s")
	if code != exitUsage {
		t.Errorf("negative poll: exit %d %s", code, errOut)
	}
}
