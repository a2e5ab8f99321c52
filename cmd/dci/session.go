// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/dci/examples/bank"
	"github.com/jllopis/dci/pkg/config"
	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/journal"
	"github.com/jllopis/dci/pkg/telemetry"
)

// Session event statuses besides journal.StatusOK and journal.StatusFailed.
const (
	statusApplied   = "applied"
	statusUnchanged = "unchanged"
)

// liveSections are the config sections a session applies without a restart.
var liveSections = map[string]bool{"log": true, "dispatch": true, "example": true}

type sessionEvent struct {
	Seq     int         `json:"seq" yaml:"seq"`
	Command string      `json:"command" yaml:"command"`
	Status  string      `json:"status" yaml:"status"`
	Code    string      `json:"code,omitempty" yaml:"code,omitempty"`
	Error   string      `json:"error,omitempty" yaml:"error,omitempty"`
	Changed []string    `json:"changed,omitempty" yaml:"changed,omitempty"`
	Source  accountView `json:"source" yaml:"source"`
	Sink    accountView `json:"sink" yaml:"sink"`
	Cache   bool        `json:"cache" yaml:"cache"`
}

// session keeps two accounts alive and runs commands read from stdin
// against them. Config reloads are applied on the command loop, between
// interactions.
type session struct {
	app     *app
	out     *printer
	tc      *bank.TransferContext
	source  balanced
	sink    balanced
	watcher *config.Watcher
	seq     int

	pending atomic.Pointer[config.Config]
	changed chan struct{}
}

func runSession(ctx context.Context, a *app, out *printer, in io.Reader, configPath string,
	load func() (*config.Config, error), args []string) error {
	fs := newFlagSet("session")
	from := fs.Float64("from", 1000, "Initial source balance")
	to := fs.Float64("to", 500, "Initial sink balance")
	sourceKind := fs.String("source", "plain", "Source account kind (plain|fee)")
	sinkKind := fs.String("sink", "fee", "Sink account kind (plain|fee)")
	poll := fs.Duration("poll", time.Second, "Config poll interval, 0 reloads only on the reload command")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *poll < 0 {
		return NewInvalidArgumentError("poll", "must not be negative")
	}

	source, err := newAccount(a, *sourceKind, *from)
	if err != nil {
		return err
	}
	sink, err := newAccount(a, *sinkKind, *to)
	if err != nil {
		return err
	}
	s := &session{
		app:     a,
		out:     out,
		tc:      bank.NewTransferContext(a.runner),
		source:  source,
		sink:    sink,
		changed: make(chan struct{}, 1),
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(loopCtx)

	if configPath != "" {
		opts := []config.WatcherOption{
			config.WithLoader(load),
			config.WithWatchLogger(telemetry.Component(a.logger, "config")),
		}
		if *poll > 0 {
			opts = append(opts, config.WithPollInterval(*poll))
		}
		s.watcher, err = config.NewWatcher(configPath, opts...)
		if err != nil {
			return err
		}
		s.watcher.OnChange(func(_, next *config.Config) {
			s.pending.Store(next)
			select {
			case s.changed <- struct{}{}:
			default:
			}
		})
		if *poll > 0 {
			g.Go(func() error { return s.watcher.Run(gctx) })
		}
	}

	lines := make(chan string)
	go scanLines(loopCtx, in, lines)

	err = s.loop(loopCtx, lines)
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// scanLines feeds lines until EOF or ctx is done, then closes lines.
func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) loop(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.changed:
			if err := s.apply(); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := s.exec(ctx, line)
			if err != nil || quit {
				return err
			}
		}
	}
}

// exec runs one command. Command failures are reported as events; only
// output errors end the session.
func (s *session) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "balances":
		return false, s.emit(s.event(line, journal.StatusOK, nil))
	case "transfer":
		if len(fields) != 2 {
			return false, s.emit(s.event(line, journal.StatusFailed,
				errors.New(errors.CodeInvalidInput, "usage: transfer <amount>", nil)))
		}
		amount, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return false, s.emit(s.event(line, journal.StatusFailed,
				errors.Newf(errors.CodeInvalidInput, "invalid amount %q", fields[1])))
		}
		status := journal.StatusOK
		err = s.tc.Execute(ctx, s.source, s.sink, amount)
		if err != nil {
			status = journal.StatusFailed
		}
		return false, s.emit(s.event(line, status, err))
	case "reload":
		if s.watcher == nil {
			return false, s.emit(s.event(line, journal.StatusFailed,
				errors.New(errors.CodeInvalidInput, "no --config file to reload", nil)))
		}
		if !s.watcher.Poll() {
			return false, s.emit(s.event(line, statusUnchanged, nil))
		}
		return false, s.apply()
	default:
		return false, s.emit(s.event(line, journal.StatusFailed,
			errors.Newf(errors.CodeInvalidInput, "unknown session command %q", fields[0])))
	}
}

// apply moves the runtime to the newest reloaded configuration.
func (s *session) apply() error {
	next := s.pending.Swap(nil)
	if next == nil {
		return nil
	}
	a := s.app
	changed := config.Diff(a.cfg, next)

	a.level.Set(telemetry.ParseLevel(next.Log.Level))
	a.dispatcher.SetCache(next.Dispatch.Cache)
	for _, acct := range []balanced{s.source, s.sink} {
		if fee, ok := acct.(*bank.FeeAccount); ok {
			fee.SetFeeRate(next.Example.FeeRate)
		}
	}

	var restart []string
	for i, section := range changed {
		if !liveSections[section] {
			restart = append(restart, section)
			changed[i] += " (restart required)"
		}
	}
	if len(restart) > 0 {
		a.logger.Warn("config sections changed that only apply on restart",
			slog.String("sections", strings.Join(restart, ",")))
	}
	a.logger.Info("session config applied",
		slog.Float64("fee_rate", next.Example.FeeRate),
		slog.Bool("cache", next.Dispatch.Cache),
		slog.String("log_level", next.Log.Level))
	a.cfg = next

	ev := s.event("reload", statusApplied, nil)
	ev.Changed = changed
	return s.emit(ev)
}

func (s *session) event(command, status string, err error) sessionEvent {
	s.seq++
	ev := sessionEvent{
		Seq:     s.seq,
		Command: strings.TrimSpace(command),
		Status:  status,
		Source:  viewOf(s.source),
		Sink:    viewOf(s.sink),
		Cache:   s.app.dispatcher.CacheEnabled(),
	}
	if err != nil {
		ev.Code = errors.CodeOf(err)
		ev.Error = err.Error()
	}
	return ev
}

// emit writes one event: a JSON line, a YAML document or a text line.
func (s *session) emit(ev sessionEvent) error {
	w := s.out.w
	switch s.out.format {
	case formatJSON:
		return json.NewEncoder(w).Encode(ev)
	case formatYAML:
		if _, err := io.WriteString(w, "---\n"); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ev); err != nil {
			return err
		}
		return enc.Close()
	}

	line := fmt.Sprintf("%d %s %s source=%s sink=%s fee_rate=%s cache=%t",
		ev.Seq, ev.Command, ev.Status,
		formatAmount(ev.Source.Balance), formatAmount(ev.Sink.Balance),
		formatAmount(feeRateOf(ev)), ev.Cache)
	if ev.Code != "" {
		line += " code=" + strconv.Quote(ev.Code)
	}
	if len(ev.Changed) > 0 {
		line += " changed=" + strconv.Quote(strings.Join(ev.Changed, ","))
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func feeRateOf(ev sessionEvent) float64 {
	if ev.Sink.Kind == "fee" {
		return ev.Sink.FeeRate
	}
	return ev.Source.FeeRate
}
