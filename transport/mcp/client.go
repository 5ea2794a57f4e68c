package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Capture Maze",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Capture Maze - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Two teams of bots share a maze split into two halves. Bots eat the food in
the enemy half and defend the food in their own half. When the last food
is eaten the team with the higher score wins.

AVAILABLE TOOLS:
- list_configs: List available maze layouts
- create_match: Create a match waiting for two teams
- add_local_team: Fill a team slot with a built-in strategy
- list_matches: List all matches
- get_match: Get match details, teams, scores and result
- match_state: Draw the maze with bots, food and scores
- match_history: View past turns
- legal_moves: Moves a bot may make right now
- game_rules: Full rules of the game`),
	)

	c.registerTools()
}

func matchIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Match ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available maze layouts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_match",
		Description: "Create a new match with optional layout selection. The match starts once both team slots are filled.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the layout to use (optional)",
				},
			},
		},
	}, c.handleCreateMatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_local_team",
		Description: "Fill the next team slot of a match with a built-in strategy",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": matchIDProperty(),
				"team": map[string]interface{}{
					"type":        "string",
					"description": "Team name (optional)",
				},
				"strategy": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"stopping", "random", "bfs"},
					"description": "Strategy of every bot of the team",
				},
			},
			Required: []string{"match_id"},
		},
	}, c.handleAddLocalTeam)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_matches",
		Description: "List all matches",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMatches)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_match",
		Description: "Get details of a specific match",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": matchIDProperty(),
			},
			Required: []string{"match_id"},
		},
	}, c.handleGetMatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "match_state",
		Description: "Draw the current maze with bots, food and team scores",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": matchIDProperty(),
			},
			Required: []string{"match_id"},
		},
	}, c.handleMatchState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "match_history",
		Description: "Get the turn history of a match",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": matchIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Turns per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest turns first",
				},
			},
			Required: []string{"match_id"},
		},
	}, c.handleMatchHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "legal_moves",
		Description: "List the moves a bot may make right now and whether it is a destroyer or a harvester",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": matchIDProperty(),
				"bot": map[string]interface{}{
					"type":        "integer",
					"description": "Bot index (0-based)",
				},
			},
			Required: []string{"match_id", "bot"},
		},
	}, c.handleLegalMoves)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Get the complete rules of the game",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func matchID(args map[string]interface{}) (string, error) {
	id, _ := args["match_id"].(string)
	if id == "" {
		return "", fmt.Errorf("match_id is required")
	}
	return url.PathEscape(id), nil
}

// Tool handlers

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Layouts:\n\n")
	for _, config := range configs {
		b.WriteString(fmt.Sprintf("• %s (%s)\n  %s\n  Maze: %dx%d, Bots: %d, Food: %d, Rounds: %d\n\n",
			config.ConfigID, config.Name, config.Description,
			config.Width, config.Height, config.NumberBots, config.Food, config.MaxRounds))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleCreateMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var match service.MatchInfo
	if err := c.apiCall(ctx, "POST", "/api/matches", body, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created match: %s\nLayout: %s\nTeams: %d slots, %d bots\n\nFill the slots with add_local_team or connect agents to /agent?match=%s",
		match.ID, match.ConfigName, match.NumberTeams, match.NumberBots, match.ID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleAddLocalTeam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, err := matchID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	team, _ := args["team"].(string)
	strategy, _ := args["strategy"].(string)

	var match service.MatchInfo
	body := map[string]string{"team": team, "strategy": strategy}
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/matches/%s/local", id), body, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMatchInfo(&match)), nil
}

func (c *Client) handleListMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                 `json:"count"`
		Matches []service.MatchInfo `json:"matches"`
	}
	if err := c.apiCall(ctx, "GET", "/api/matches", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Matches (%d):\n\n", response.Count))
	for _, m := range response.Matches {
		b.WriteString(fmt.Sprintf("- %s (Layout: %s, State: %s, Round: %d, Score: %s, Created: %s)\n",
			m.ID, m.ConfigName, m.State, m.Round, formatScores(m.Scores), m.CreatedAt.Format("15:04:05")))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := matchID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var match service.MatchInfo
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/matches/%s", id), nil, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMatchInfo(&match)), nil
}

func (c *Client) handleMatchState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := matchID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var match service.MatchInfo
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/matches/%s", id), nil, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var u engine.Universe
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/matches/%s/universe", id), nil, &u); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatUniverse(&match, &u)), nil
}

func (c *Client) handleMatchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, err := matchID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := url.Values{}
	if page, ok := args["page"].(float64); ok {
		params.Set("page", fmt.Sprintf("%d", int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	if order, ok := args["order"].(string); ok && order != "" {
		params.Set("order", order)
	}
	path := fmt.Sprintf("/api/matches/%s/history", id)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleLegalMoves(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, err := matchID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bot, ok := args["bot"].(float64)
	if !ok {
		return mcp.NewToolResultError("bot is required"), nil
	}

	var moves service.LegalMovesResponse
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/matches/%s/legal-moves?bot=%d", id, int(bot)), nil, &moves); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Bot %d (team %d) at %s is a %s\n\nLegal moves:\n",
		moves.Bot, moves.Team, moves.Position, moves.Role))
	for _, m := range moves.Moves {
		b.WriteString(fmt.Sprintf("- %s → %s\n", m.Direction, m.To))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := `Capture Maze - Complete Rules

THE MAZE:
• # - Wall (impassable)
• . - Food
• 0-9 - Bots, drawn by their index
• The maze is split vertically: team 0 owns the left half, team 1 the right half

TEAMS AND ROLES:
• Bots alternate between teams: bot 0 and 2 play for team 0, bot 1 and 3 for team 1
• A bot in its own half is a DESTROYER: it defends its team's food
• A bot in the enemy half is a HARVESTER: it eats enemy food
• Each team only controls its own bots; the referee asks for one move at a time

TURNS:
• A round gives every bot one move, in bot index order
• A move is north, south, east, west or stop
• North is towards row 0; walls block movement
• Only the moves listed by legal_moves are valid

SCORING:
• A harvester stepping onto enemy food eats it: +1 for its team
• A destroyer meeting an enemy harvester on the same cell destroys it
• A destroyed harvester returns to its starting cell
• A harvester walking into a destroyer is destroyed too
• Bots never eat the food of their own half

END OF THE MATCH:
• Once the last food on the board is eaten the higher score wins; equal scores are a draw
• After the last round the higher score wins; equal scores are a draw
• A team that keeps timing out or disconnects forfeits the match
• An illegal or malformed move is replaced by stop

STRATEGY HINTS:
• Keep a destroyer at home while harvesters raid the enemy half
• Harvesters near an enemy destroyer should retreat across the border
• Use match_state to see the maze and legal_moves to check each bot's options`

	return mcp.NewToolResultText(rules), nil
}

// Formatting helpers

func formatScores(scores []int) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return strings.Join(parts, ":")
}

func formatMatchInfo(match *service.MatchInfo) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Match: %s\nLayout: %s\nState: %s\nRound: %d Turn: %d\nCreated: %s\n",
		match.ID, match.ConfigName, match.State, match.Round, match.Turn,
		match.CreatedAt.Format("2006-01-02 15:04:05")))

	b.WriteString(fmt.Sprintf("\nTeams (%d/%d joined):\n", len(match.Teams), match.NumberTeams))
	for _, t := range match.Teams {
		score := 0
		if t.Index < len(match.Scores) {
			score = match.Scores[t.Index]
		}
		line := fmt.Sprintf("- Team %d: %s (%s", t.Index, t.Name, t.Kind)
		if t.Strategy != "" {
			line += ", " + t.Strategy
		}
		b.WriteString(line + fmt.Sprintf(") score %d\n", score))
	}

	if match.Result != nil {
		b.WriteString(fmt.Sprintf("\nResult: %s\n", match.Result.String()))
	}
	return b.String()
}

func formatUniverse(match *service.MatchInfo, u *engine.Universe) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Match %s | State: %s | Round: %d Turn: %d\n\n", match.ID, match.State, match.Round, match.Turn))

	for _, t := range u.Teams {
		b.WriteString(fmt.Sprintf("Team %d %q: score %d, zone x=%d..%d, food left %d\n",
			t.Index, t.Name, t.Score, t.Zone.Min, t.Zone.Max, len(u.TeamFood(t.Index))))
	}
	b.WriteString("\n")

	for _, row := range u.Rows(true) {
		b.WriteString(row)
		b.WriteString("\n")
	}

	b.WriteString("\nBots:\n")
	bots := append([]engine.Bot(nil), u.Bots...)
	sort.Slice(bots, func(i, j int) bool { return bots[i].Index < bots[j].Index })
	for _, bot := range bots {
		role := "harvester"
		if bot.IsDestroyer() {
			role = "destroyer"
		}
		b.WriteString(fmt.Sprintf("- Bot %d (team %d) at %s, %s\n", bot.Index, bot.TeamIndex, bot.CurrentPos, role))
	}

	if match.Result != nil {
		b.WriteString(fmt.Sprintf("\nGame finished: %s\n", match.Result.String()))
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Turn History (Page %d/%d, %d total turns):\n\n",
		history.Page, history.TotalPages, history.TotalTurns))

	for _, turn := range history.Turns {
		line := fmt.Sprintf("R%d T%d bot %d: %s", turn.Round, turn.Turn, turn.Bot, turn.Move)
		if turn.Forfeit != "" {
			line += fmt.Sprintf(" (forfeit: %s)", turn.Forfeit)
		}
		if len(turn.Events) > 0 {
			kinds := make([]string, 0, len(turn.Events))
			for _, e := range turn.Events {
				kinds = append(kinds, string(e.Kind()))
			}
			line += " [" + strings.Join(kinds, ", ") + "]"
		}
		b.WriteString(line + "\n")
	}

	if history.HasPrevious {
		b.WriteString("\n← Previous page available")
	}
	if history.HasNext {
		b.WriteString("\n→ Next page available")
	}
	return b.String()
}
