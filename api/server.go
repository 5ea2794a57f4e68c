package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/inconshreveable/log15"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/config"
	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
	"github.com/wricardo/capture-maze/game/session"
	"github.com/wricardo/capture-maze/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  log15.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(l log15.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new API server. hub may be nil, which disables the
// viewer endpoint.
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  log15.New("module", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Match management
	api.HandleFunc("/matches", s.handleCreateMatch).Methods("POST")
	api.HandleFunc("/matches", s.handleListMatches).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleGetMatch).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleDeleteMatch).Methods("DELETE")

	// Teams
	api.HandleFunc("/matches/{id}/local", s.handleAddLocalTeam).Methods("POST")
	api.HandleFunc("/matches/{id}/remote", s.handleAddRemoteTeam).Methods("POST")

	// Match state
	api.HandleFunc("/matches/{id}/universe", s.handleGetUniverse).Methods("GET")
	api.HandleFunc("/matches/{id}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/matches/{id}/legal-moves", s.handleGetLegalMoves).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/agent", s.handleAgent)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Router exposes the mux router so callers can mount more handlers
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to status codes
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrMatchNotFound), errors.Is(err, config.ErrConfigNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, session.ErrInvalidMatchID):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrMatchFull), errors.Is(err, master.ErrNotInitializing),
		errors.Is(err, session.ErrMatchAlreadyExists):
		status = http.StatusConflict
	}
	respondError(w, status, err.Error())
}

// Match Handlers

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	match, err := s.service.CreateMatch(r.Context(), req.ConfigID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.logger.Info("match created", "match", match.ID, "config", match.ConfigName)
	respondJSON(w, http.StatusCreated, match)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.service.ListMatches(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default)
	limitStr := query.Get("limit") // number of matches to return
	state := query.Get("state")    // optional state filter

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	if state != "" {
		filtered := matches[:0]
		for _, m := range matches {
			if string(m.State) == state {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	total := len(matches)

	sort.SliceStable(matches, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = matches[i].CreatedAt, matches[j].CreatedAt
		} else {
			ti, tj = matches[i].LastAccessedAt, matches[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(matches) {
			matches = matches[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(matches),
		"total":   total,
		"matches": matches,
		"sort":    sortBy,
		"order":   order,
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := s.service.GetMatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, match)
}

func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]
	if err := s.service.DeleteMatch(r.Context(), matchID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Match %s deleted", matchID),
	})
}

// Team Handlers

func (s *Server) handleAddLocalTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Team     string `json:"team"`
		Strategy string `json:"strategy"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	match, err := s.service.AddLocalTeam(r.Context(), mux.Vars(r)["id"], req.Team, req.Strategy)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, match)
}

// handleAddRemoteTeam joins a team served over HTTP by agent.Handler
func (s *Server) handleAddRemoteTeam(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["id"]
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		respondError(w, http.StatusBadRequest, "url must be http or https")
		return
	}

	info, err := s.service.GetMatch(r.Context(), matchID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	proxy := agent.NewHTTPProxy(req.URL, moveTimeout(info))
	team, err := s.service.JoinMatch(r.Context(), info.ID, proxy, service.KindHTTP)
	if err != nil {
		proxy.Close()
		respondServiceError(w, err)
		return
	}

	s.logger.Info("remote team joined", "match", info.ID, "team", team, "url", req.URL)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"match_id": info.ID,
		"team":     team,
	})
}

// Match State Handlers

func (s *Server) handleGetUniverse(w http.ResponseWriter, r *http.Request) {
	u, err := s.service.GetUniverse(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, u.String())
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	// Zero values are defaulted by the service
	var opts service.HistoryOptions

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleGetLegalMoves(w http.ResponseWriter, r *http.Request) {
	bot, err := strconv.Atoi(r.URL.Query().Get("bot"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bot parameter must be a bot index")
		return
	}

	moves, err := s.service.GetLegalMoves(r.Context(), mux.Vars(r)["id"], bot)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, moves)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	gameConfig, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, gameConfig)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id"`
		engine.GameConfig
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = req.Name
	}
	if configID == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	if err := s.service.SaveConfig(r.Context(), configID, &req.GameConfig); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// WebSocket Handlers

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "viewers disabled", http.StatusServiceUnavailable)
		return
	}
	matchID := r.URL.Query().Get("match")
	if matchID == "" {
		http.Error(w, "match parameter required", http.StatusBadRequest)
		return
	}

	info, err := s.service.GetMatch(r.Context(), matchID)
	if err != nil {
		http.Error(w, "Invalid match", http.StatusNotFound)
		return
	}
	u, err := s.service.GetUniverse(r.Context(), info.ID)
	if err != nil {
		http.Error(w, "Invalid match", http.StatusNotFound)
		return
	}

	initial := &websocket.Message{
		MatchID: info.ID,
		Event:   websocket.EventSnapshot,
		Snapshot: &master.Snapshot{
			Round:    info.Round,
			Turn:     info.Turn,
			State:    info.State,
			Universe: u,
		},
		Result: info.Result,
	}
	s.hub.ServeWS(w, r, info.ID, initial)
}

// handleAgent accepts a remote team over a websocket and gives it the next
// free slot of the match
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match")
	if matchID == "" {
		http.Error(w, "match parameter required", http.StatusBadRequest)
		return
	}

	info, err := s.service.GetMatch(r.Context(), matchID)
	if err != nil {
		http.Error(w, "Invalid match", http.StatusNotFound)
		return
	}
	if info.State != master.StateInitializing {
		http.Error(w, "match already started", http.StatusConflict)
		return
	}

	conn, err := websocket.AcceptAgent(w, r, moveTimeout(info), s.logger)
	if err != nil {
		s.logger.Warn("agent handshake failed", "match", info.ID, "err", err)
		return
	}

	// The match outlives this request
	team, err := s.service.JoinMatch(r.Context(), info.ID, conn, service.KindWebsocket)
	if err != nil {
		s.logger.Warn("agent rejected", "match", info.ID, "team", conn.TeamName(), "err", err)
		conn.Close()
		return
	}
	s.logger.Info("agent joined", "match", info.ID, "team", team, "name", conn.TeamName())
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func moveTimeout(info *service.MatchInfo) time.Duration {
	if info.GameConfig == nil {
		return agent.DefaultTimeout
	}
	return info.GameConfig.MoveTimeout(agent.DefaultTimeout)
}
