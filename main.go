// Command capture-maze runs the two-team capture-the-flag maze referee.
//
// Commands:
//  1. "server" – runs the HTTP server exposing the REST API, the viewer and
//     agent websockets, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP
//     API if none is available
//  3. "play" – plays one local match between two built-in strategies and
//     draws it in the terminal
//  4. "validate" – checks the layout configurations of a directory
//
// Flags control host/port, config and match directories, debug logging and
// optional ngrok tunneling so remote agents can join during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/capture-maze/api"
	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/config"
	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
	"github.com/wricardo/capture-maze/game/session"
	"github.com/wricardo/capture-maze/transport/mcp"
	"github.com/wricardo/capture-maze/transport/websocket"
	"github.com/wricardo/capture-maze/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Capture Maze Referee"
)

// snapshots queued per match in front of the viewer hub
const viewerQueueSize = 256

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "capture-maze",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "Directory containing layout configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
		},
		Commands: []*cli.Command{
			serverCommand(),
			stdioMCPCommand(),
			playCommand(),
			validateCommand(),
		},
	}
}

// newLogger installs the stderr handler on the root logger so every
// package logger follows the same level
func newLogger(debug bool) log15.Logger {
	level := log15.LvlInfo
	if debug {
		level = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(level, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))
	return log15.New("module", "main")
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"http"},
		Usage:   "Run the HTTP server with API, websockets and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "matches-dir", Value: "matches", Usage: "Directory of finished match records", Sources: cli.EnvVars("MATCHES_DIR")},
			&cli.DurationFlag{Name: "match-max-age", Value: 24 * time.Hour, Usage: "Drop matches not accessed for this long"},
			&cli.DurationFlag{Name: "cleanup-interval", Value: time.Hour, Usage: "How often expired matches are dropped"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: runServer,
	}
}

// services bundles what the commands share
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence session.SessionPersistence
}

// initializeServices wires the config and match managers and the game
// service. Finished matches are persisted in matchesDir and viewers of hub
// see every match.
func initializeServices(configDir, matchesDir string, hub *websocket.Hub, logger log15.Logger) (*services, error) {
	configManager, err := config.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(matchesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create match persistence: %w", err)
	}

	opts := []session.Option{session.WithLogger(logger.New("module", "session"))}
	if hub != nil {
		opts = append(opts, session.WithObserverFactory(hub.Observer), session.WithObserverQueue(viewerQueueSize))
	}
	sessionManager := session.NewManagerWithPersistence(persistence, opts...)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted matches", "err", err)
	}

	return &services{
		game:        service.NewGameService(sessionManager, configManager),
		sessions:    sessionManager,
		persistence: persistence,
	}, nil
}

// newHandler mounts the API at the root and the MCP endpoint at /mcp
func newHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/mcp", mcpHandler(mcpClient))
	return mux
}

func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)
		if response == nil {
			// Notifications have no response
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// runServer serves until the context is cancelled. The HTTP server, the
// viewer hub, match maintenance and the optional tunnel share one errgroup.
func runServer(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("debug"))

	hub := websocket.NewHub(logger.New("module", "hub"))
	svcs, err := initializeServices(cmd.String("config-dir"), cmd.String("matches-dir"), hub, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svcs.sessions.Shutdown()

	addr := net.JoinHostPort(cmd.String("host"), strconv.Itoa(cmd.Int("port")))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	addr = ln.Addr().String()

	apiServer := api.NewServer(svcs.game, hub, api.WithLogger(logger.New("module", "api")))
	handler := newHandler(apiServer, mcp.NewClient("http://"+addr))

	// Agent connections are long lived, so only the headers are bounded
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting", "app", AppName, "version", Version)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("endpoints",
			"api", "http://"+addr+"/api",
			"viewers", "ws://"+addr+"/ws?match=<match_id>",
			"agents", "ws://"+addr+"/agent?match=<match_id>",
			"mcp", "http://"+addr+"/mcp")
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", "err", err)
		}
		return nil
	})

	g.Go(func() error {
		maintainMatches(ctx, svcs.sessions, svcs.persistence, cmd.Duration("cleanup-interval"), cmd.Duration("match-max-age"), logger)
		return nil
	})

	if cmd.Bool("ngrok") {
		g.Go(func() error {
			runNgrok(ctx, handler, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), logger)
			return nil
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
// Tunnel failures are logged and leave the local server running.
func runNgrok(ctx context.Context, handler http.Handler, authToken, domain string, logger log15.Logger) {
	logger = logger.New("module", "ngrok")
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	logger.Info("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "err", err)
		return
	}
	stop := context.AfterFunc(ctx, func() {
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "err", err)
		}
	})
	defer stop()

	url := tun.URL()
	logger.Info("ngrok tunnel established", "url", url,
		"api", url+"/api",
		"agents", strings.Replace(url, "https://", "wss://", 1)+"/agent?match=<match_id>",
		"mcp", url+"/mcp")

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		logger.Error("ngrok server error", "err", err)
	}
	logger.Info("ngrok tunnel closed")
}

// maintainMatches periodically drops matches that have not been accessed
// within maxAge and finished matches whose record file was deleted
func maintainMatches(ctx context.Context, sessions *session.Manager, persistence session.SessionPersistence, interval, maxAge time.Duration, logger log15.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	records := newRecordSync(persistence)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.CleanupExpiredSessions(maxAge); removed > 0 {
				logger.Info("cleaned up expired matches", "count", removed)
			}
			if pruned := records.prune(sessions); pruned > 0 {
				logger.Info("pruned matches whose record was deleted", "count", pruned)
			}
		}
	}
}

// recordSync removes finished matches from memory once their record has
// been missing for two passes in a row
type recordSync struct {
	persistence session.SessionPersistence
	missing     map[string]bool
}

func newRecordSync(persistence session.SessionPersistence) *recordSync {
	return &recordSync{persistence: persistence, missing: make(map[string]bool)}
}

func (s *recordSync) prune(sessions *session.Manager) int {
	if s.persistence == nil {
		return 0
	}

	missing := make(map[string]bool)
	pruned := 0
	for _, match := range sessions.List() {
		if match.Master.State() != master.StateFinished || s.persistence.Exists(match.ID) {
			continue
		}
		if !s.missing[match.ID] {
			missing[match.ID] = true
			continue
		}
		if err := sessions.DeleteFromMemory(match.ID); err == nil {
			pruned++
		}
	}
	s.missing = missing
	return pruned
}

func stdioMCPCommand() *cli.Command {
	return &cli.Command{
		Name:    "stdio-mcp",
		Aliases: []string{"mcp-stdio", "mcp"},
		Usage:   "Run an MCP stdio server, with an internal HTTP API when none is reachable",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", Usage: "External API server to reuse", Sources: cli.EnvVars("MCP_API_URL")},
			&cli.StringFlag{Name: "matches-dir", Value: "matches", Usage: "Directory of finished match records", Sources: cli.EnvVars("MATCHES_DIR")},
		},
		Action: runStdioMCP,
	}
}

// apiAvailable reports whether an API server answers at baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runStdioMCP runs an MCP stdio server. It reuses the external API when one
// answers; otherwise it starts an internal API on a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("debug"))

	baseURL := cmd.String("api-url")
	if apiAvailable(ctx, baseURL) {
		logger.Info("external API server found, using it for MCP", "url", baseURL)
	} else {
		logger.Info("no external API server found, starting internal HTTP server")

		hub := websocket.NewHub(logger.New("module", "hub"))
		svcs, err := initializeServices(cmd.String("config-dir"), cmd.String("matches-dir"), hub, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svcs.sessions.Shutdown()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go hub.Run(ctx)

		httpServer := &http.Server{
			Handler:           api.NewServer(svcs.game, hub, api.WithLogger(logger.New("module", "api"))),
			ReadHeaderTimeout: 15 * time.Second,
		}
		go func() {
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "err", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + ln.Addr().String()
		logger.Info("internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a local match between two built-in strategies",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Layout configuration (defaults to the configured default)"},
			&cli.StringFlag{Name: "team0", Value: "bfs", Usage: "Strategy of team 0: " + strings.Join(agent.Strategies, ", ")},
			&cli.StringFlag{Name: "team1", Value: "random", Usage: "Strategy of team 1: " + strings.Join(agent.Strategies, ", ")},
			&cli.IntFlag{Name: "rounds", Usage: "Override the round limit of the layout"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Seed of the random strategy"},
			&cli.DurationFlag{Name: "delay", Value: 100 * time.Millisecond, Usage: "Pause after each drawn turn"},
			&cli.BoolFlag{Name: "quiet", Usage: "Only print the result"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := newLogger(cmd.Bool("debug"))

			gc, err := loadGameConfig(cmd.String("config-dir"), cmd.String("config"))
			if err != nil {
				return err
			}
			if rounds := cmd.Int("rounds"); rounds > 0 {
				gc.MaxRounds = rounds
			}

			_, err = play(ctx, os.Stdout, playOptions{
				Config:     gc,
				Strategies: [2]string{cmd.String("team0"), cmd.String("team1")},
				Seed:       int64(cmd.Int("seed")),
				Delay:      cmd.Duration("delay"),
				Quiet:      cmd.Bool("quiet"),
			}, logger)
			return err
		},
	}
}

// loadGameConfig returns a copy of the named layout, or of the default one
// when name is empty. The built-in maze is used when there is no config dir.
func loadGameConfig(dir, name string) (*engine.GameConfig, error) {
	configs, err := config.NewManager(dir)
	if err != nil {
		if name == "" {
			return engine.DefaultGameConfig(), nil
		}
		return nil, err
	}

	gc := configs.GetDefault()
	if name != "" {
		if gc, err = configs.LoadConfig(name); err != nil {
			return nil, fmt.Errorf("config %s: %w", name, err)
		}
	}
	cp := *gc
	return &cp, nil
}

type playOptions struct {
	Config     *engine.GameConfig
	Strategies [2]string
	Seed       int64
	Delay      time.Duration
	Quiet      bool
}

// pacedObserver pauses the game loop after each snapshot so a terminal
// viewer can follow
type pacedObserver struct {
	next  master.Observer
	delay time.Duration
}

func (o pacedObserver) Observe(s master.Snapshot) {
	o.next.Observe(s)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
}

func (o pacedObserver) Finish(r master.Result) {
	if f, ok := o.next.(master.Finisher); ok {
		f.Finish(r)
	}
}

// play runs one match between two local strategy teams and writes it to w
func play(ctx context.Context, w io.Writer, opts playOptions, logger log15.Logger) (*master.Result, error) {
	u, err := engine.NewUniverseFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	gmOpts := []master.Option{master.WithLogger(logger.New("module", "master"))}
	if !opts.Quiet {
		gmOpts = append(gmOpts, master.WithObserver(pacedObserver{next: master.NewAsciiViewer(w), delay: opts.Delay}))
	}
	gm := master.New(u, master.ConfigFromGame(opts.Config), gmOpts...)
	defer gm.Close()

	botsPerTeam := u.NumberBots() / u.NumberTeams()
	timeout := opts.Config.MoveTimeout(agent.DefaultTimeout)
	for i, strategy := range opts.Strategies {
		team, err := agent.NewStrategyTeam(fmt.Sprintf("%s-%d", strategy, i), strategy, botsPerTeam, opts.Seed+int64(i*botsPerTeam))
		if err != nil {
			return nil, err
		}
		proxy := agent.NewLocalProxy(team, agent.WithTimeout(timeout), agent.WithLogger(logger.New("module", "agent", "team", i)))
		if _, err := gm.AddTeam(proxy); err != nil {
			return nil, err
		}
	}

	result, err := gm.Play(ctx)
	if opts.Quiet && result != nil {
		fmt.Fprintf(w, "Game finished: %s\n", result.String())
	}
	return result, err
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate the layout configurations of a directory",
		ArgsUsage: "[dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.String("config-dir")
			if cmd.Args().Present() {
				dir = cmd.Args().First()
			}
			return runValidate(os.Stdout, dir)
		},
	}
}

func runValidate(w io.Writer, dir string) error {
	results, err := validate.Dir(dir)
	if err != nil {
		return err
	}
	if !validate.Report(w, results) {
		return cli.Exit("some configurations have errors", 1)
	}
	return nil
}
