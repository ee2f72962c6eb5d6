// Package main provides the CLI entrypoint for ruletype.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/ruletype/internal/config"
	"github.com/verte-zerg/ruletype/internal/logs"
	"github.com/verte-zerg/ruletype/internal/loop"
	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/rules"
	"github.com/verte-zerg/ruletype/internal/segment"
	"github.com/verte-zerg/ruletype/internal/session"
	"github.com/verte-zerg/ruletype/internal/stats"
	"github.com/verte-zerg/ruletype/internal/statsui"
	"github.com/verte-zerg/ruletype/internal/store"
	"github.com/verte-zerg/ruletype/internal/tui"
	"github.com/verte-zerg/ruletype/internal/tuning"
	"github.com/verte-zerg/ruletype/internal/typist"
)

const (
	defaultLogLevel      = "info"
	defaultHistoryWindow = 10
)

var (
	runRules     string
	runStartRule int
	runSpeed     float64
	runResume    bool
	runLogLevel  string
	runSeed      int64

	historySince  string
	historyLast   int
	historyRun    string
	historyWindow int
	historyTUI    bool

	tuningExport string
	tuningImport string

	segmentsRules string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ruletype",
		Short:         "Reveal bilingual game rules as if they were being typed",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runRevealCmd,
	}

	rootCmd.Flags().StringVar(&runRules, "rules", config.DefaultRulesPath(), "rule deck (.toml, .yaml, .yml, .tsv, .csv)")
	rootCmd.Flags().IntVar(&runStartRule, "start-rule", 0, "show rules up to this number without animation")
	rootCmd.Flags().Float64Var(&runSpeed, "speed", tuning.Default(tuning.Speed), "reveal speed (1-100)")
	rootCmd.Flags().BoolVar(&runResume, "resume", false, "start after the last rule settled in a previous run")
	rootCmd.Flags().StringVar(&runLogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.Flags().Int64Var(&runSeed, "seed", 0, "seed for reproducible delays and typos")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDecksCmd())
	rootCmd.AddCommand(newSegmentsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newTuningCmd())

	return rootCmd
}

func runRevealCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "rules", &runRules, fileCfg.Reveal.Rules)
	applyIntConfig(cmd, "start-rule", &runStartRule, fileCfg.Reveal.StartRule)
	applyBoolConfig(cmd, "resume", &runResume, fileCfg.Reveal.Resume)
	applyInt64Config(cmd, "seed", &runSeed, fileCfg.Reveal.Seed)
	applyStringConfig(cmd, "log-level", &runLogLevel, fileCfg.Log.Level)

	params, err := loadTuning(cmd, fileCfg)
	if err != nil {
		return err
	}
	if runStartRule < 0 {
		return fmt.Errorf("--start-rule must be >= 0")
	}

	level, err := logs.ParseLevel(runLogLevel)
	if err != nil {
		return err
	}
	logPath := config.DefaultLogPath()
	if fileCfg.Log.Path != nil {
		logPath = *fileCfg.Log.Path
	}
	logger, logCloser, err := logs.New(logs.Options{Path: logPath, Level: level})
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() {
		if cerr := logCloser.Close(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()

	deck, err := rules.Load(runRules)
	if err != nil {
		return deckLoadError(runRules, err)
	}
	segs := segment.Split(deck.Rules)
	if len(segs) == 0 {
		return fmt.Errorf("deck %s has no rule text", runRules)
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	runID := store.NewRunID()
	ctx, cancel := context.WithCancel(logs.WithRun(context.Background(), runID))
	defer cancel()

	startRule := runStartRule
	if runResume && !cmd.Flags().Changed("start-rule") {
		num, ok, err := st.LastSettledRule(ctx)
		if err != nil {
			return fmt.Errorf("failed to load last settled rule: %w", err)
		}
		if ok {
			startRule = num
		}
	}
	logger.InfoContext(ctx, "run start",
		"rules", runRules,
		"rule_count", len(deck.Rules),
		"segments", len(segs),
		"start_rule", startRule,
		"speed", params.Speed(),
	)

	ty := typist.New(params)
	if cmd.Flags().Changed("seed") || fileCfg.Reveal.Seed != nil {
		ty = typist.NewWithSeed(params, runSeed)
	}

	l := loop.New()
	var program *tea.Program
	ctrl := session.New(l, params, ty, segs, session.Options{
		Context: ctx,
		Emit: func(ev model.Event) {
			program.Send(tui.EventMsg{Event: ev})
		},
		Logger:   logger,
		Recorder: st,
		RunID:    runID,
	})
	view := tui.NewModel(tui.Options{
		Engine:   &engine{loop: l, ctrl: ctrl, params: params},
		Game:     deck.Game,
		Speed:    params.Speed(),
		LastRule: segs[len(segs)-1].Num,
	})
	program = tea.NewProgram(view, tea.WithAltScreen(), tea.WithMouseCellMotion())

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- l.Run(ctx)
	}()
	if startRule > 0 {
		l.Post(func() {
			ctrl.DisplayInitial(startRule)
		})
	}

	_, runErr := program.Run()
	cancel()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("event loop failed", "err", err)
	}
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	logger.InfoContext(ctx, "run end")
	return nil
}

// engine forwards view commands onto the loop goroutine.
type engine struct {
	loop   *loop.Loop
	ctrl   *session.Controller
	params *tuning.Params
}

func (e *engine) Advance() {
	e.loop.Post(func() { e.ctrl.Advance() })
}

func (e *engine) Stop() {
	e.loop.Post(e.ctrl.Stop)
}

func (e *engine) SetPaused(paused bool) {
	e.loop.Post(func() { e.ctrl.SetPaused(paused) })
}

func (e *engine) AdjustSpeed(delta float64) float64 {
	return e.params.AdjustSpeed(delta)
}

// loadTuning layers the config [tuning] table, the saved tuning file and the
// --speed flag, in that order.
func loadTuning(cmd *cobra.Command, fileCfg config.FileConfig) (*tuning.Params, error) {
	params := tuning.New()
	if err := params.Apply(fileCfg.Tuning); err != nil {
		return nil, fmt.Errorf("invalid [tuning]: %w", err)
	}
	saved, err := loadSavedTuning(config.DefaultTuningPath())
	if err != nil {
		return nil, err
	}
	if err := params.Apply(saved); err != nil {
		return nil, fmt.Errorf("invalid saved tuning: %w", err)
	}
	if cmd.Flags().Changed("speed") {
		if err := params.Set(tuning.Speed, runSpeed); err != nil {
			return nil, fmt.Errorf("invalid --speed: %w", err)
		}
	}
	return params, nil
}

func loadSavedTuning(path string) (map[string]float64, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat tuning: %w", err)
	}
	values, err := config.DecodeTuning(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return values, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newDecksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decks",
		Short: "List rule decks in the rules directory",
		Args:  cobra.NoArgs,
		RunE:  runDecksCmd,
	}
}

func runDecksCmd(cmd *cobra.Command, _ []string) error {
	dir := config.DefaultRulesDir()
	decks, err := rules.ListDecks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logErrf("No decks found. Put rule files in %s\n", dir)
			return fmt.Errorf("rules directory does not exist")
		}
		return fmt.Errorf("failed to read rules directory: %w", err)
	}
	if len(decks) == 0 {
		logErrf("No decks found. Put rule files in %s\n", dir)
		return fmt.Errorf("no decks found")
	}
	for _, deck := range decks {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), deck); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newSegmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Print how a deck splits into segments and batches",
		Args:  cobra.NoArgs,
		RunE:  runSegmentsCmd,
	}
	cmd.Flags().StringVar(&segmentsRules, "rules", config.DefaultRulesPath(), "rule deck")
	return cmd
}

func runSegmentsCmd(cmd *cobra.Command, _ []string) error {
	deck, err := rules.Load(segmentsRules)
	if err != nil {
		return deckLoadError(segmentsRules, err)
	}
	if err := writeSegments(cmd.OutOrStdout(), segment.Split(deck.Rules)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeSegments lists every segment followed by the batches a fresh run
// would reveal.
func writeSegments(w io.Writer, segs []model.Segment) error {
	for i, seg := range segs {
		flags := []string{}
		if seg.IsFirst {
			flags = append(flags, "first")
		}
		if seg.IsLast {
			flags = append(flags, "last")
		}
		if segment.IsBreakpoint(seg) {
			flags = append(flags, "break")
		}
		if _, err := fmt.Fprintf(w, "%4d  #%-4d %-18s %s\n", i, seg.Num, strings.Join(flags, ","), seg.Primary); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	cursor, n := 0, 1
	for {
		batch := segment.NextBatch(segs, cursor)
		if batch.Empty() {
			return nil
		}
		from := batch.Items[0]
		to := batch.Items[len(batch.Items)-1]
		if _, err := fmt.Fprintf(w, "batch %d: segments %d-%d, rules #%d-#%d, %d chars\n",
			n, from.Index, to.Index, from.Segment.Num, to.Segment.Num, batch.TotalChars); err != nil {
			return err
		}
		cursor = to.Index + 1
		n++
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished batches",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N batches")
	cmd.Flags().StringVar(&historyRun, "run", "", "only batches from this run id")
	cmd.Flags().IntVar(&historyWindow, "window", defaultHistoryWindow, "moving average window")
	cmd.Flags().BoolVar(&historyTUI, "tui", false, "browse history interactively")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	sinceTime, err := parseSince(historySince)
	if err != nil {
		return err
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyWindow < 1 {
		return fmt.Errorf("--window must be >= 1")
	}
	cfg := model.HistoryConfig{
		Since: sinceTime,
		Last:  historyLast,
		RunID: historyRun,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if historyTUI {
		program := tea.NewProgram(statsui.NewModel(st, cfg, historyWindow), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run history TUI: %w", err)
		}
		return nil
	}
	report, err := stats.BuildReport(cmd.Context(), st, cfg)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := report.Render(cmd.OutOrStdout(), historyWindow, 0); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
}

func newTuningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tuning",
		Short: "Show, export or import tuning parameters",
		Args:  cobra.NoArgs,
		RunE:  runTuningCmd,
	}
	cmd.Flags().StringVar(&tuningExport, "export", "", "write the current tuning to a TOML file (--export=path)")
	cmd.Flags().Lookup("export").NoOptDefVal = config.DefaultTuningPath()
	cmd.Flags().StringVar(&tuningImport, "import", "", "validate a TOML tuning file and save it for future runs")
	return cmd
}

func runTuningCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if tuningImport != "" {
		values, err := config.DecodeTuning(tuningImport)
		if err != nil {
			return fmt.Errorf("failed to import tuning: %w", err)
		}
		if err := config.WriteTuning(config.DefaultTuningPath(), values); err != nil {
			return err
		}
		logErrf("Saved %d tuning values to %s\n", len(values), config.DefaultTuningPath())
	}
	params, err := loadTuning(cmd, fileCfg)
	if err != nil {
		return err
	}
	if tuningExport != "" {
		if err := config.WriteTuning(tuningExport, params.Values()); err != nil {
			return err
		}
		logErrf("Wrote %s\n", tuningExport)
		return nil
	}
	return writeTuningTable(cmd.OutOrStdout(), params.Values())
}

func writeTuningTable(w io.Writer, values map[string]float64) error {
	defaults := tuning.Defaults()
	if _, err := fmt.Fprintf(w, "%-24s %12s %12s\n", "key", "current", "default"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, key := range config.SortedTuningKeys(values) {
		marker := ""
		if values[key] != defaults[key] {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%-24s %12g %12g %s\n", key, values[key], defaults[key], marker); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	var tuningLines strings.Builder
	defaults := tuning.Defaults()
	for _, key := range config.SortedTuningKeys(defaults) {
		tuningLines.WriteString(fmt.Sprintf("# %s = %g\n", key, defaults[key]))
	}
	return fmt.Sprintf(`# ruletype configuration
# Uncomment a value to enable it. CLI flags override config values.

[reveal]
# rules = %q   # Rule deck (.toml, .yaml, .yml, .tsv, .csv)
# start-rule = 0          # Show rules up to this number without animation
# resume = false          # Start after the last settled rule of a previous run
# seed = 1                # Fixed seed for reproducible delays and typos

[log]
# level = %q          # debug, info, warn or error
# path = %q

[tuning]
%s`,
		config.DefaultRulesPath(),
		defaultLogLevel,
		config.DefaultLogPath(),
		tuningLines.String(),
	)
}

func deckLoadError(path string, err error) error {
	lines := []string{
		fmt.Sprintf("failed to load rules: %v", err),
		fmt.Sprintf("expected a rule deck at: %s", path),
		"Run: ruletype decks",
		"Pass another deck with: ruletype --rules <path>",
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
