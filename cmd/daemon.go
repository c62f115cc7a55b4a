package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/daemon"
	"github.com/theirongolddev/restock/internal/metrics"
	"github.com/theirongolddev/restock/internal/pipeline"

	"github.com/spf13/cobra"
)

type daemonRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	Store     string    `json:"store"`
}

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the restock API with live SSE/WebSocket streams",
	Long:  "Serve the HTTP API, re-plan the shopping list on an interval and stream changes to clients.",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	defaultPID := filepath.Join(config.DataDir(), "restockd.pid")
	defaultLog := filepath.Join(config.DataDir(), "restockd.log")

	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	daemonCmd.PersistentFlags().DurationVar(&flagDaemonInterval, "interval", 0, "Re-plan interval (default from config)")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", defaultPID, "PID file path")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")
	daemonCmd.PersistentFlags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	files := daemonFiles{pid: flagDaemonPIDFile}
	if err := files.ensureFree(); err != nil {
		return err
	}
	if flagDaemonDetach {
		return startDaemonDetached(files)
	}
	return runDaemonForeground(cmd.Context(), files)
}

func startDaemonDetached(files daemonFiles) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	for _, dir := range []string{filepath.Dir(files.pid), filepath.Dir(flagDaemonLogFile)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create daemon directory: %w", err)
		}
	}

	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	args := append(withoutDetach(os.Args[1:]), "--child")
	child := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  PID file: %s\n", files.pid)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

// daemonSettings merges daemon flags over the [daemon] config section.
func daemonSettings(cfg config.Config) daemon.Config {
	dc := daemon.Config{
		Addr:         cfg.Daemon.Addr,
		Interval:     time.Duration(cfg.Daemon.IntervalSec) * time.Second,
		EventsBuffer: cfg.Daemon.EventsBuffer,
		StoreDriver:  cfg.Store.Driver,
	}
	if flagDaemonAddr != "" {
		dc.Addr = flagDaemonAddr
	}
	if flagDaemonInterval > 0 {
		dc.Interval = flagDaemonInterval
	}
	if flagDaemonEventsBuffer > 0 {
		dc.EventsBuffer = flagDaemonEventsBuffer
	}
	return dc
}

func runDaemonForeground(parent context.Context, files daemonFiles) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.New()
	eng, cfg, closeStore, err := openEngine(ctx,
		pipeline.WithListener(collector),
		pipeline.WithConflictObserver(collector),
	)
	if err != nil {
		return err
	}
	defer closeStore()

	dc := daemonSettings(cfg)
	svc := daemon.New(eng, collector, dc)

	if err := files.write(daemonRuntimeState{
		PID:       os.Getpid(),
		Addr:      dc.Addr,
		StartedAt: time.Now(),
		Store:     cfg.Store.Driver,
	}); err != nil {
		return err
	}
	defer files.clear()

	fmt.Printf("  restock daemon listening on http://%s\n", dc.Addr)
	fmt.Printf("  Re-planning every %s (%s store)\n", dc.Interval, cfg.Store.Driver)
	fmt.Printf("  Stop with: restock daemon stop --pid-file %s\n", files.pid)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	st, err := files.readState()
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Println("  Daemon: not running (pid file not found)")
		return nil
	case err != nil:
		return err
	case !processAlive(st.PID):
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", st.PID)
		return nil
	}

	addr := st.Addr
	if flagDaemonAddr != "" {
		addr = flagDaemonAddr
	}
	if addr == "" {
		addr = config.DefaultConfig().Daemon.Addr
	}

	status, err := fetchDaemonStatus(cmd.Context(), addr)
	if flagJSON {
		if err != nil {
			return err
		}
		return printJSON(status)
	}

	fmt.Printf("  Daemon PID: %d (up %s)\n", st.PID, time.Since(st.StartedAt).Truncate(time.Second))
	fmt.Printf("  Address: http://%s\n", addr)
	if err != nil {
		fmt.Printf("  API status: %v\n", err)
		return nil
	}

	if status.LastPollAt.IsZero() {
		fmt.Println("  Last poll: pending")
	} else {
		fmt.Printf("  Last poll: %s (%d so far)\n", status.LastPollAt.Local().Format(time.RFC3339), status.PollCount)
	}
	if status.StoreDriver != "" {
		fmt.Printf("  Store: %s\n", status.StoreDriver)
	}
	fmt.Printf("  Items: %d (%d good, %d low, %d critical)\n",
		status.Summary.TotalItems, status.Summary.GoodItems, status.Summary.LowItems, status.Summary.CriticalItems)
	fmt.Printf("  Shopping entries: %d\n", status.Summary.ShoppingEntries)
	fmt.Printf("  Stream subscribers: %d\n", status.SubscriberCount)
	if status.LastError != "" {
		fmt.Printf("  Last error: %s\n", status.LastError)
	}
	return nil
}

// fetchDaemonStatus asks a running daemon for its /v1/status document.
func fetchDaemonStatus(ctx context.Context, addr string) (daemon.Status, error) {
	var st daemon.Status
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/v1/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed response: %w", err)
	}
	return st, nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	pid, err := files.readPID()
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	if !waitForExit(pid, 8*time.Second) {
		return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
	}
	files.clear()
	fmt.Printf("  Stopped daemon (pid %d)\n", pid)
	return nil
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(150 * time.Millisecond)
	}
	return false
}

func withoutDetach(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// daemonFiles is the pid file and its JSON state sidecar.
type daemonFiles struct {
	pid string
}

func (f daemonFiles) statePath() string { return f.pid + ".json" }

// ensureFree fails when a live daemon owns the pid file and clears stale files.
func (f daemonFiles) ensureFree() error {
	pid, err := f.readPID()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	f.clear()
	return nil
}

func (f daemonFiles) write(st daemonRuntimeState) error {
	if err := os.MkdirAll(filepath.Dir(f.pid), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.WriteFile(f.pid, []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.statePath(), append(data, '\n'), 0o600)
}

func (f daemonFiles) clear() {
	_ = os.Remove(f.pid)
	_ = os.Remove(f.statePath())
}

func (f daemonFiles) readPID() (int, error) {
	data, err := os.ReadFile(f.pid)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", f.pid)
	}
	return pid, nil
}

// readState returns the sidecar state, falling back to the bare pid file.
func (f daemonFiles) readState() (daemonRuntimeState, error) {
	pid, err := f.readPID()
	if err != nil {
		return daemonRuntimeState{}, err
	}
	st := daemonRuntimeState{PID: pid}
	data, err := os.ReadFile(f.statePath())
	if err != nil {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return daemonRuntimeState{PID: pid}, nil
	}
	st.PID = pid
	return st, nil
}
