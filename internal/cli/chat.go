// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/repochat/internal/commands"
	"github.com/jeranaias/repochat/internal/config"
	"github.com/jeranaias/repochat/internal/orchestrator"
	"github.com/jeranaias/repochat/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// chatInput provides line editing, input history and tab completion of
// command verbs.
type chatInput struct {
	line        *liner.State
	historyFile string
	logger      *zap.Logger
}

func newChatInput(completer *commands.Completer, logger *zap.Logger) *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completer.Lines)

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "chat_history")
	}

	in := &chatInput{line: line, historyFile: historyFile, logger: logger}
	in.loadHistory()
	return in
}

func (c *chatInput) loadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// readLine prompts for one line and records it in the history.
func (c *chatInput) readLine(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// close saves the history and restores the terminal.
// SECURITY: History is written with 0600 permissions.
func (c *chatInput) close() {
	if c.historyFile != "" {
		saveInputHistory(c.historyFile, c.line.WriteHistory, c.logger)
	}
	_ = c.line.Close()
}

// saveInputHistory writes the history produced by write to path. Failures
// are logged and otherwise ignored.
func saveInputHistory(path string, write func(io.Writer) (int, error), logger *zap.Logger) {
	var buf bytes.Buffer
	if _, err := write(&buf); err != nil {
		logger.Warn("failed to collect input history", zap.Error(err))
		return
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		logger.Warn("failed to save input history", zap.String("path", path), zap.Error(err))
	}
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

type chatOptions struct {
	metricsAddr string
	plain       bool
	fresh       bool
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	copts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session (default)",
		Long: `Start an interactive chat session bound to the configured repository.

Type /help at the prompt for the command list. Ctrl+C cancels the
current request; Ctrl+D, "exit" or /quit ends the session.

Examples:
  repochat chat
  repochat chat --plain
  repochat chat --metrics-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, copts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&copts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&copts.plain, "plain", false, "print replies without markdown rendering")
	cmd.Flags().BoolVar(&copts.fresh, "fresh", false, "start without loading saved history")
	return cmd
}

func runChat(ctx context.Context, opts *globalOptions, copts *chatOptions, out io.Writer) error {
	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	if copts.metricsAddr != "" {
		stop := serveMetrics(copts.metricsAddr, a.registry, a.logger)
		defer stop()
	}

	if !copts.fresh {
		if err := a.orch.LoadHistory(ctx); err != nil {
			return err
		}
	}

	r := newRenderer(a.cfg.Conversation.RenderMarkdown && !copts.plain, GetTerminalWidth())
	printWelcome(out, a, r)

	input := newChatInput(commands.NewCompleter(commands.NewRegistry(), a.orch.Prefix()), a.logger)
	defer input.close()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	prompt := "repochat> "
	if a.repoName != "" {
		prompt = a.repoName + "> "
	}

	for {
		line, err := input.readLine(prompt)
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin end the session.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				printSummary(out, a)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isExit(line, a.orch.Prefix()) {
			printSummary(out, a)
			return nil
		}

		turn, err := runTurn(ctx, a.orch, line, interrupts)
		if err != nil {
			if errors.Is(err, orchestrator.ErrClosed) {
				return err
			}
			DisplayError(out, err)
			continue
		}
		r.turn(out, turn)
	}
}

// runTurn sends one line, cancelling it on an interrupt.
func runTurn(parent context.Context, o *orchestrator.Orchestrator, line string, interrupts <-chan os.Signal) (orchestrator.Turn, error) {
	// Drop interrupts left over from before this turn.
	for len(interrupts) > 0 {
		<-interrupts
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			cancel()
		case <-done:
		}
	}()

	return o.SendMessage(ctx, line)
}

// isExit reports whether line ends the session.
func isExit(line, prefix string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", prefix + "exit", prefix + "quit", prefix + "q":
		return true
	}
	return false
}

// =============================================================================
// BANNERS
// =============================================================================

func printWelcome(w io.Writer, a *app, r *renderer) {
	fmt.Fprintln(w, TitleStyle.Render("repochat "+Version))
	fmt.Fprintln(w, RenderField("Provider:", a.orch.ProviderName()))
	repoName := a.repoName
	if repoName == "" {
		repoName = "not configured"
	}
	fmt.Fprintln(w, RenderField("Repository:", repoName))

	for _, warning := range a.warnings {
		fmt.Fprintf(w, "%s %s\n", RenderStatus("warn"), warning)
	}

	if msgs := a.orch.Messages(); len(msgs) > 0 {
		fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("Restored %d message(s). Most recent:", len(msgs))))
		fmt.Fprintln(w)
		r.transcript(w, msgs, 4)
	}

	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("Type %shelp for commands, Ctrl+D to exit.", a.orch.Prefix())))
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, a *app) {
	state := a.orch.Snapshot()
	fmt.Fprintln(w, RenderSeparator(40))
	fmt.Fprintln(w, RenderField("Messages:", fmt.Sprint(len(state.Messages))))
	if n := len(state.Pending); n > 0 {
		fmt.Fprintln(w, RenderField("Pending:", fmt.Sprintf("%d operation(s) not committed", n)))
	}
}

// =============================================================================
// METRICS
// =============================================================================

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
