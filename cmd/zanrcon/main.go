// zanrcon - remote console client for Zandronum-family game servers.
//
// zanrcon speaks the compressed UDP console protocol: it logs in with
// a salted password digest, streams live server output to the
// terminal, and can republish the console over a local HTTP bridge
// and an MQTT broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zanrcon-project/zanrcon/internal/api"
	"github.com/zanrcon-project/zanrcon/internal/config"
	"github.com/zanrcon-project/zanrcon/internal/console"
	"github.com/zanrcon-project/zanrcon/internal/events"
	"github.com/zanrcon-project/zanrcon/internal/history"
	"github.com/zanrcon-project/zanrcon/internal/huffman"
	"github.com/zanrcon-project/zanrcon/internal/rcon"
	"github.com/zanrcon-project/zanrcon/internal/telemetry"
	"github.com/zanrcon-project/zanrcon/internal/util"
)

const (
	AppName    = "zanrcon"
	AppVersion = "1.0.0"
	Banner     = `
  ____  __ _   _ __    _ __    ___    ___    _ __
 |_  / / _' | | '_ \  | '__|  / __|  / _ \  | '_ \
  / / | (_| | | | | | | |    | (__  | (_) | | | | |
 /___| \__,_| |_| |_| |_|     \___|  \___/  |_| |_|  v%s
 Remote Console for Zandronum Servers
`

	passwordEnv = "ZANRCON_PASSWORD"
)

type options struct {
	configDir string
	password  string
	logLevel  string
	colors    bool
	noColors  bool
	bridge    bool
	noHistory bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "zanrcon [address[:port]]",
		Short: "Remote console for Zandronum game servers",
		Long: `zanrcon connects to a game server's console port over UDP, logs in
with the console password, and gives you the server console in your
terminal: live output, command input with history, and tab-style
completion via /complete.

The target server comes from the command line or from the config
file. The password is taken from --password, the ` + passwordEnv + `
environment variable, or an interactive prompt; it is never written
to the config file.

Examples:
  zanrcon example.org
  zanrcon 198.51.100.7:10666 --colors
  ZANRCON_PASSWORD=hunter2 zanrcon example.org --bridge`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return run(opts, target)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configDir, "config", "c", config.DefaultConfigDir, "configuration directory")
	flags.StringVarP(&opts.password, "password", "p", "", "console password (falls back to "+passwordEnv+", then a prompt)")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", "log level override (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.colors, "colors", false, "render server color codes as ANSI")
	flags.BoolVar(&opts.noColors, "no-colors", false, "strip server color codes")
	flags.BoolVar(&opts.bridge, "bridge", false, "enable the local HTTP bridge")
	flags.BoolVar(&opts.noHistory, "no-history", false, "disable command history persistence")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options, target string) error {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	if opts.colors && opts.noColors {
		return fmt.Errorf("--colors and --no-colors are mutually exclusive")
	}

	// File logging only until the config says otherwise; console
	// logging would fight the prompt for the terminal.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}

	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(cfg, opts, target)

	if err := util.InitLogger(cfg.GetLogging()); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			fmt.Fprintf(os.Stderr, "config error: %s: %s\n", e.Field, e.Message)
		}
		return fmt.Errorf("configuration validation failed")
	}

	serverCfg := cfg.GetServer()
	if serverCfg.Address == "" {
		return fmt.Errorf("no server address: pass one as an argument or set server.address in %s", cfg.Path())
	}
	address := net.JoinHostPort(serverCfg.Address, strconv.Itoa(serverCfg.Port))

	password, err := resolvePassword(opts)
	if err != nil {
		return err
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("version", AppVersion).
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("starting zanrcon")

	codec, err := huffman.NewCodec(huffman.DefaultTable)
	if err != nil {
		return fmt.Errorf("failed to build wire codec: %w", err)
	}

	eventBus := events.NewEventBus()
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	sess := rcon.NewSession(codec, rcon.Config{
		ReceiveTimeout: time.Duration(serverCfg.ReceiveTimeoutSec) * time.Second,
		Recorder:       metrics,
	})

	var store *history.Store
	histCfg := cfg.GetHistory()
	if histCfg.Enabled {
		store, err = history.NewStore(histCfg.Path, histCfg.MaxEntries)
		if err != nil {
			log.Warn().Err(err).Msg("command history disabled")
			store = nil
		} else {
			defer store.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to %s...\n", address)
	if err := sess.Connect(ctx, address, password); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	password = ""

	eventBus.Emit(ctx, events.Event{
		Type:   events.EventSessionState,
		Source: "main",
		Payload: events.SessionStatePayload{
			Server: sess.Remote(),
			State:  sess.State().String(),
		},
	})

	display := cfg.GetDisplay()
	var historyStore console.HistoryStore
	if store != nil {
		historyStore = store
	}
	cons := console.New(sess, eventBus, historyStore, console.Options{
		Prompt:       display.Prompt,
		ShowColors:   display.ShowColors,
		HistoryLimit: histCfg.DisplayLimit,
	})

	var wg sync.WaitGroup

	var apiServer *api.Server
	bridgeCfg := cfg.GetBridge()
	if bridgeCfg.Enabled {
		apiServer = api.NewServer(cfg, sess, eventBus, registry)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", bridgeCfg.Port).Msg("starting HTTP bridge")
			if err := startWithRetry(ctx, "bridge", apiServer.Start, 5); err != nil {
				log.Warn().Err(err).Msg("HTTP bridge failed (non-fatal)")
			}
		}()
	}

	if cfg.GetMQTT().Enabled {
		mirror, err := telemetry.NewMQTTMirror(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, mirror disabled")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				log.Info().Msg("starting MQTT mirror")
				if err := mirror.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("MQTT mirror failed")
				}
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		distribute(ctx, sess, cons, apiServer, eventBus)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchServerState(ctx, sess, eventBus)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	consoleDone := make(chan error, 1)
	go func() {
		consoleDone <- cons.Run(ctx)
	}()

	var runErr error
	select {
	case err := <-consoleDone:
		runErr = err
	case sig := <-sigCh:
		fmt.Println()
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-sess.Done():
		// The console may be blocked reading stdin; give it a moment
		// to notice on its own before printing the notice here.
		select {
		case err := <-consoleDone:
			runErr = err
		case <-time.After(200 * time.Millisecond):
			cons.Print("[ Disconnected ]\n")
		}
	}

	cancel()

	if err := sess.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("disconnect reported an error")
	}

	eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventShutdown,
		Source: "main",
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("all tasks stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timed out after 10 seconds, forcing exit")
	}

	eventBus.Stop()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if err := sess.Err(); err != nil {
		return err
	}

	fmt.Println("Session closed.")
	return nil
}

// applyOverrides folds command-line settings into the loaded config.
// Runs before any other goroutine touches cfg.
func applyOverrides(cfg *config.Config, opts *options, target string) {
	if target != "" {
		applyTarget(cfg, target)
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.colors {
		cfg.Display.ShowColors = true
	}
	if opts.noColors {
		cfg.Display.ShowColors = false
	}
	if opts.bridge {
		cfg.Bridge.Enabled = true
	}
	if opts.noHistory {
		cfg.History.Enabled = false
	}
}

// applyTarget splits "host:port" when the port part parses, otherwise
// the whole argument is the host and the configured port stands.
func applyTarget(cfg *config.Config, target string) {
	server := cfg.GetServer()

	host, portStr, err := net.SplitHostPort(target)
	if err == nil {
		if port, perr := strconv.Atoi(portStr); perr == nil {
			server.Address = host
			server.Port = port
			cfg.SetServer(server)
			return
		}
	}

	server.Address = target
	cfg.SetServer(server)
}

// resolvePassword finds the console password without ever persisting
// it: flag first, then environment, then an interactive prompt.
func resolvePassword(opts *options) (string, error) {
	if opts.password != "" {
		return opts.password, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}

	password, err := config.PromptPassword(os.Stdin, "Password")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("a console password is required")
	}
	return password, nil
}

// distribute fans the session's output to every sink in emission
// order: the console paints it, the bridge buffers and streams it,
// and the bus hands it to the mirrors. When the session ends, the
// remaining buffered lines drain and the final state goes out.
func distribute(ctx context.Context, sess *rcon.Session, cons *console.Console, bridge *api.Server, bus *events.EventBus) {
	deliver := func(line string) {
		cons.Print(line)
		if bridge != nil {
			bridge.Feed(line)
		}
		bus.Emit(ctx, events.Event{
			Type:   events.EventConsoleOutput,
			Source: "session",
			Payload: events.ConsoleOutputPayload{
				Server: sess.Remote(),
				Text:   line,
				At:     time.Now(),
			},
		})
	}

	for {
		select {
		case line := <-sess.Output():
			deliver(line)
		case <-sess.Done():
			for {
				select {
				case line := <-sess.Output():
					deliver(line)
				default:
					final := events.SessionStatePayload{
						Server: sess.Remote(),
						State:  sess.State().String(),
					}
					if err := sess.Err(); err != nil {
						final.Error = err.Error()
					}
					if bridge != nil {
						bridge.PublishState(final.State, sess.Err())
					}
					bus.Emit(ctx, events.Event{
						Type:    events.EventSessionState,
						Source:  "session",
						Payload: final,
					})
					return
				}
			}
		}
	}
}

// watchServerState republishes scoreboard changes onto the bus. The
// session applies server updates silently, so the watcher samples for
// fresh UpdatedAt stamps.
func watchServerState(ctx context.Context, sess *rcon.Session, bus *events.EventBus) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case <-ticker.C:
			state := sess.ServerState()
			if state.UpdatedAt.Equal(last) {
				continue
			}
			last = state.UpdatedAt
			bus.Emit(ctx, events.Event{
				Type:   events.EventServerUpdate,
				Source: "session",
				Payload: events.ServerUpdatePayload{
					Server:     sess.Remote(),
					MapName:    state.MapName,
					Players:    state.Players,
					AdminCount: state.AdminCount,
				},
			})
		}
	}
}

// startWithRetry attempts to start a listener with retry on bind
// errors. A fixed 3-second interval gives the OS time to release a
// port still held by a previous process.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
