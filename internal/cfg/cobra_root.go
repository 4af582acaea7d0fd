// Package cfg provides configuration and command-line interface setup for tubefetch.
package cfg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"tubefetch/internal/backend"
	"tubefetch/internal/database"
	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/keys"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/domain/paths"
	"tubefetch/internal/repo"
	"tubefetch/internal/ui"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Deps are the process resources commands may use.
type Deps struct {
	// In answers prompts. Nil means every prompt is declined.
	In io.Reader
	// Interrupts delivers SIGINT. While a job is followed the first cancels it
	// and the second abandons it; otherwise it cancels the running command.
	Interrupts <-chan os.Signal
}

type app struct {
	v    *viper.Viper
	deps Deps
	in   *bufio.Reader

	mu          sync.Mutex
	onInterrupt func() bool
}

// NewRootCmd builds the full command tree.
func NewRootCmd(deps Deps) *cobra.Command {
	a := &app{v: newViper(), deps: deps}
	if deps.In != nil {
		a.in = bufio.NewReader(deps.In)
	}

	rootCmd := &cobra.Command{
		Use:           consts.ProgramName,
		Short:         "tubefetch downloads YouTube videos and shorts through a download backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfigFile(a.v); err != nil {
				return err
			}
			logger.Pl.SetLevel(a.v.GetInt(keys.DebugLevel))
			cmd.SetContext(a.routeInterrupts(cmd.Context()))
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String(keys.BackendURL, consts.DefaultBackendURL, "Base URL of the download backend")
	pf.String(keys.APIPrefix, consts.DefaultAPIPrefix, "Path prefix of the backend's JSON API")
	pf.Duration(keys.HTTPTimeout, consts.HTTPClientTimeout, "Timeout for each backend API request")
	pf.String(keys.ConfigFile, "", "Config file (default ~/.tubefetch/config.toml when present)")
	pf.String(keys.DBFile, "", "Job history database (default ~/.tubefetch/tubefetch.db)")
	pf.Int(keys.DebugLevel, 0, "Debug level (0-5)")
	pf.Bool(keys.NoColor, false, "Disable coloured output")
	bindFlags(a.v, pf,
		keys.BackendURL,
		keys.APIPrefix,
		keys.HTTPTimeout,
		keys.ConfigFile,
		keys.DBFile,
		keys.DebugLevel,
		keys.NoColor,
	)

	rootCmd.AddCommand(
		a.getCmd(),
		a.probeCmd(),
		a.normalizeCmd(),
		a.statusCmd(),
		a.cancelCmd(),
		a.recentCmd(),
		a.historyCmd(),
	)
	return rootCmd
}

// Execute runs the command line against os.Args.
func Execute(ctx context.Context, deps Deps) error {
	return NewRootCmd(deps).ExecuteContext(ctx)
}

// client returns a backend client from the current settings.
func (a *app) client() (*backend.Client, error) {
	return backend.NewClient(
		a.v.GetString(keys.BackendURL),
		backend.WithAPIPrefix(a.v.GetString(keys.APIPrefix)),
		backend.WithTimeout(a.v.GetDuration(keys.HTTPTimeout)),
	)
}

// terminal returns the surface for out. Colour is used only on a TTY.
func (a *app) terminal(out io.Writer, baseURL string) *ui.Terminal {
	opts := []ui.TerminalOption{ui.WithBaseURL(baseURL)}
	if a.v.GetBool(keys.NoColor) || !isTTY(out) {
		opts = append(opts, ui.WithoutColor())
	}
	return ui.NewTerminal(out, opts...)
}

// openHistory opens the job history store.
func (a *app) openHistory() (*repo.HistoryStore, func(), error) {
	dbFile := a.v.GetString(keys.DBFile)
	if dbFile == "" {
		dbFile = paths.DBFilePath
	}
	if dbFile == "" {
		return nil, nil, fmt.Errorf("no history database path configured")
	}

	db, err := database.InitDB(dbFile)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			logger.Pl.E("Failed to close history database: %v", err)
		}
	}
	return repo.GetHistoryStore(db.DB), closeFn, nil
}

// routeInterrupts hands each interrupt to the installed handler. With no
// handler, or one that declines it, the returned context is cancelled.
func (a *app) routeInterrupts(ctx context.Context) context.Context {
	if a.deps.Interrupts == nil {
		return ctx
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.deps.Interrupts:
				a.mu.Lock()
				handler := a.onInterrupt
				a.mu.Unlock()

				if handler != nil && handler() {
					continue
				}
				logger.Pl.W("Interrupted")
				return
			}
		}
	}()
	return ctx
}

// setInterruptHandler installs h. A nil h restores cancelling the command.
func (a *app) setInterruptHandler(h func() bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onInterrupt = h
}

// confirm asks a yes/no question, defaulting to no. It returns ctx.Err()
// if the context ends first.
func (a *app) confirm(ctx context.Context, out io.Writer, question string) (bool, error) {
	if a.in == nil {
		return false, nil
	}
	fmt.Fprintf(out, "%s [y/N]: ", question)

	type answer struct {
		line string
		err  error
	}
	answers := make(chan answer, 1)
	go func() {
		line, err := a.in.ReadString('\n')
		answers <- answer{line, err}
	}()

	var ans answer
	select {
	case ans = <-answers:
	case <-ctx.Done():
		fmt.Fprintln(out)
		return false, ctx.Err()
	}

	if ans.err != nil && ans.line == "" {
		fmt.Fprintln(out)
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(ans.line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
