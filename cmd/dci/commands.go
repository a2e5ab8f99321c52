// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jllopis/dci/examples/bank"
	"github.com/jllopis/dci/pkg/data"
	"github.com/jllopis/dci/pkg/errors"
	"github.com/jllopis/dci/pkg/journal"
	"github.com/jllopis/dci/pkg/role"
)

type accountView struct {
	ID      string  `json:"id" yaml:"id"`
	Kind    string  `json:"kind" yaml:"kind"`
	Balance float64 `json:"balance" yaml:"balance"`
	FeeRate float64 `json:"fee_rate,omitempty" yaml:"fee_rate,omitempty"`
}

type transferStep struct {
	Attempt int    `json:"attempt" yaml:"attempt"`
	Status  string `json:"status" yaml:"status"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

type transferResult struct {
	Amount float64        `json:"amount" yaml:"amount"`
	Source accountView    `json:"source" yaml:"source"`
	Sink   accountView    `json:"sink" yaml:"sink"`
	Steps  []transferStep `json:"steps" yaml:"steps"`
}

type balanced interface {
	data.Participant
	Balance() float64
}

func runTransfer(ctx context.Context, a *app, out *printer, args []string) error {
	fs := newFlagSet("transfer")
	from := fs.Float64("from", 1000, "Initial source balance")
	to := fs.Float64("to", 500, "Initial sink balance")
	amount := fs.Float64("amount", 500, "Amount to transfer")
	sourceKind := fs.String("source", "plain", "Source account kind (plain|fee)")
	sinkKind := fs.String("sink", "fee", "Sink account kind (plain|fee)")
	repeat := fs.Int("repeat", 1, "Number of transfers to run")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *repeat < 1 {
		return NewInvalidArgumentError("repeat", "must be at least 1")
	}

	source, err := newAccount(a, *sourceKind, *from)
	if err != nil {
		return err
	}
	sink, err := newAccount(a, *sinkKind, *to)
	if err != nil {
		return err
	}

	tc := bank.NewTransferContext(a.runner)
	result := transferResult{Amount: *amount}
	var runErr error
	for i := 1; i <= *repeat; i++ {
		step := transferStep{Attempt: i, Status: journal.StatusOK}
		if err := tc.Execute(ctx, source, sink, *amount); err != nil {
			step.Status = journal.StatusFailed
			step.Code = errors.CodeOf(err)
			step.Error = err.Error()
			runErr = err
		}
		result.Steps = append(result.Steps, step)
		if runErr != nil {
			break
		}
	}
	result.Source = viewOf(source)
	result.Sink = viewOf(sink)

	if done, err := out.structured(result); done || err != nil {
		if err != nil {
			return err
		}
		return runErr
	}
	w := out.table()
	writeRow(w, "ACCOUNT", "KIND", "BALANCE", "FEE_RATE")
	for _, view := range []accountView{result.Source, result.Sink} {
		writeRow(w, view.ID, view.Kind, formatAmount(view.Balance), formatAmount(view.FeeRate))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func newAccount(a *app, kind string, balance float64) (balanced, error) {
	switch kind {
	case "plain":
		return bank.NewAccount(a.dispatcher, balance), nil
	case "fee":
		return bank.NewFeeAccount(a.dispatcher, balance, a.cfg.Example.FeeRate), nil
	default:
		return nil, NewInvalidArgumentError("kind", fmt.Sprintf("unknown account kind %q (want plain or fee)", kind))
	}
}

func viewOf(acct balanced) accountView {
	view := accountView{ID: acct.ID(), Kind: "plain", Balance: acct.Balance()}
	if fee, ok := acct.(*bank.FeeAccount); ok {
		view.Kind = "fee"
		view.FeeRate = fee.FeeRate()
	}
	return view
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type capabilityView struct {
	Name     string   `json:"name" yaml:"name"`
	Provider string   `json:"provider" yaml:"provider"`
	Methods  []string `json:"methods" yaml:"methods"`
	Issue    string   `json:"issue,omitempty" yaml:"issue,omitempty"`
}

func runDescribe(a *app, out *printer, args []string) error {
	if err := parseFlags(newFlagSet("describe"), args); err != nil {
		return err
	}

	caps := []*role.Capability{bank.MoneySource, bank.MoneySink}
	for _, c := range a.registry.Capabilities() {
		if c != bank.MoneySource && c != bank.MoneySink {
			caps = append(caps, c)
		}
	}
	issues := map[string]string{}
	for _, issue := range a.registry.Validate(caps...) {
		issues[issue.Capability] = issue.String()
	}

	views := make([]capabilityView, 0, len(caps))
	for _, c := range caps {
		view := capabilityView{Name: c.Name(), Methods: []string{}, Issue: issues[c.Name()]}
		if p, ok := a.registry.ProviderFor(c); ok {
			view.Provider = p.Name()
		}
		for _, sig := range c.Methods() {
			view.Methods = append(view.Methods, sig.String())
		}
		views = append(views, view)
	}

	if done, err := out.structured(views); done || err != nil {
		return err
	}
	w := out.table()
	writeRow(w, "CAPABILITY", "PROVIDER", "METHODS", "ISSUE")
	for _, view := range views {
		writeRow(w, view.Name, view.Provider, strings.Join(view.Methods, ", "), view.Issue)
	}
	return w.Flush()
}

func runJournal(ctx context.Context, a *app, out *printer, args []string) error {
	fs := newFlagSet("journal")
	useCase := fs.String("usecase", "", "Use case filter")
	status := fs.String("status", "", "Status filter (ok|failed)")
	interactionID := fs.String("interaction", "", "Interaction ID filter")
	limit := fs.Int("limit", 50, "Maximum number of entries")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if a.store == nil {
		return NewInvalidArgumentError("journal", "journal is disabled (journal.driver=none)")
	}
	if *status != "" && *status != journal.StatusOK && *status != journal.StatusFailed {
		return NewInvalidArgumentError("status", fmt.Sprintf("unknown status %q", *status))
	}

	entries, err := a.store.List(ctx, journal.Filter{
		UseCase:       *useCase,
		InteractionID: *interactionID,
		Status:        *status,
		Limit:         *limit,
	})
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	processOnly := a.cfg.Journal.Driver == "memory"

	if done, err := out.structured(entries); done || err != nil {
		if processOnly {
			a.logger.Warn(memoryJournalNote)
		}
		return err
	}
	w := out.table()
	writeRow(w, "INTERACTION", "USECASE", "STATUS", "STARTED", "ELAPSED", "ERROR")
	for _, e := range entries {
		writeRow(w, e.InteractionID, e.UseCase, e.Status,
			e.StartedAt.UTC().Format(time.RFC3339),
			e.FinishedAt.Sub(e.StartedAt).String(),
			truncateMessage(e.Error, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if processOnly {
		_, err = fmt.Fprintln(out.w, "\nnote: "+memoryJournalNote)
	}
	return err
}

const memoryJournalNote = "the memory journal only holds interactions of the current process; " +
	"set journal.driver=sqlite and journal.dsn to keep entries across runs"
