// Command bot runs one capture-maze team outside the referee. It either
// dials the referee's agent websocket or serves the HTTP agent protocol so
// the referee can be pointed at it with POST /api/matches/{id}/remote.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/transport/websocket"
)

// strategyTeam builds its players once the referee tells it how many bots
// it controls
type strategyTeam struct {
	name     string
	strategy string
	seed     int64

	mu   sync.Mutex
	team *agent.SimpleTeam
}

func newStrategyTeam(name, strategy string, seed int64) (*strategyTeam, error) {
	if _, err := agent.NewPlayer(strategy, seed); err != nil {
		return nil, err
	}
	return &strategyTeam{name: name, strategy: strategy, seed: seed}, nil
}

func (t *strategyTeam) Name() string {
	return t.name
}

func (t *strategyTeam) SetBotIDs(ids []int) error {
	team, err := agent.NewStrategyTeam(t.name, t.strategy, len(ids), t.seed)
	if err != nil {
		return err
	}
	if err := team.SetBotIDs(ids); err != nil {
		return err
	}
	t.mu.Lock()
	t.team = team
	t.mu.Unlock()
	return nil
}

func (t *strategyTeam) current() (*agent.SimpleTeam, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.team == nil {
		return nil, fmt.Errorf("team %s has no bot ids yet", t.name)
	}
	return t.team, nil
}

func (t *strategyTeam) SetInitial(u *engine.Universe) error {
	team, err := t.current()
	if err != nil {
		return err
	}
	return team.SetInitial(u)
}

func (t *strategyTeam) GetMove(botIndex int, u *engine.Universe) (engine.Direction, error) {
	team, err := t.current()
	if err != nil {
		return "", err
	}
	return team.GetMove(botIndex, u)
}

// agentURL joins the referee address and match id into the agent endpoint
func agentURL(server, matchID string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server url %q: unsupported scheme", server)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/agent"
	}
	if matchID != "" {
		q := u.Query()
		q.Set("match", matchID)
		u.RawQuery = q.Encode()
	}
	if u.Query().Get("match") == "" {
		return "", errors.New("a match id is required")
	}
	return u.String(), nil
}

func newLogger(debug bool) log15.Logger {
	level := log15.LvlInfo
	if debug {
		level = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(level, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))
	return log15.New("module", "bot")
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "bot",
		Usage: "Play one capture-maze team with a built-in strategy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Referee address to dial, e.g. ws://localhost:8080/agent",
				Sources: cli.EnvVars("BOT_SERVER"),
			},
			&cli.StringFlag{
				Name:    "match",
				Usage:   "Id of the match to join",
				Sources: cli.EnvVars("BOT_MATCH"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Serve the HTTP agent protocol on this address instead of dialing",
				Sources: cli.EnvVars("BOT_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "name",
				Value:   "bot",
				Usage:   "Team name",
				Sources: cli.EnvVars("BOT_NAME"),
			},
			&cli.StringFlag{
				Name:    "strategy",
				Value:   "bfs",
				Usage:   "Strategy of every bot: " + strings.Join(agent.Strategies, ", "),
				Sources: cli.EnvVars("BOT_STRATEGY"),
			},
			&cli.IntFlag{
				Name:  "seed",
				Value: 1,
				Usage: "Seed of the random strategy",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := newLogger(cmd.Bool("debug"))
			team, err := newStrategyTeam(cmd.String("name"), cmd.String("strategy"), int64(cmd.Int("seed")))
			if err != nil {
				return err
			}

			if addr := cmd.String("listen"); addr != "" {
				return serveHTTP(ctx, addr, team, logger)
			}

			target, err := agentURL(cmd.String("server"), cmd.String("match"))
			if err != nil {
				return err
			}
			logger.Info("joining match", "url", target, "strategy", cmd.String("strategy"))
			if err := websocket.RunAgent(ctx, target, team, logger); err != nil {
				return err
			}
			logger.Info("match over")
			return nil
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serveHTTP answers referee requests until ctx is cancelled
func serveHTTP(ctx context.Context, addr string, team agent.Team, logger log15.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           agent.Handler(team),
		ReadHeaderTimeout: 5 * time.Second,
	}
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	})

	logger.Info("serving agent", "url", "http://"+ln.Addr().String()+"/")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
