package mcp

import (
	"context"
	"encoding/json"

	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/models"
)

const defaultFeedLimit = 20

// FeedService builds personal feeds and previews single sources.
type FeedService interface {
	FeedFor(ctx context.Context, username string, page models.PageParams) (*models.FeedResponse, error)
	Preview(ctx context.Context, src models.Source) ([]models.Post, error)
}

type AccountFinder interface {
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
}

type SourceRegistrar interface {
	Register(ctx context.Context, params models.AddSourceParams) (models.Source, error)
}

type Handler struct {
	feeds    FeedService
	accounts AccountFinder
	registry SourceRegistrar
	logger   *logging.Logger
}

func NewHandler(feeds FeedService, accounts AccountFinder, registry SourceRegistrar, logger *logging.Logger) *Handler {
	return &Handler{
		feeds:    feeds,
		accounts: accounts,
		registry: registry,
		logger:   logger,
	}
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type GetFeedParams struct {
	Username string `json:"username"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

type ListSourcesParams struct {
	Username string `json:"username"`
}

type PreviewSourceParams struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	URL   string `json:"url"`
}

func (h *Handler) GetTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_feed",
			Description: "Get an account's aggregated feed: posts from its sources and from the users it follows, newest first.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"username": {
						"type": "string",
						"description": "Account whose feed to build"
					},
					"limit": {
						"type": "integer",
						"description": "Maximum number of posts to return (default: 20)"
					},
					"offset": {
						"type": "integer",
						"description": "Number of posts to skip"
					}
				},
				"required": ["username"]
			}`),
		},
		{
			Name:        "list_sources",
			Description: "List the feeds an account subscribes to.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"username": {
						"type": "string",
						"description": "Account name"
					}
				},
				"required": ["username"]
			}`),
		},
		{
			Name:        "preview_source",
			Description: "Fetch a single feed and return its normalized posts without subscribing to it.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {
						"type": "string",
						"description": "Title attached to the posts"
					},
					"type": {
						"type": "string",
						"enum": ["blogger", "wordpress", "youtube", "atom", "direct"],
						"description": "How the feed URL is derived"
					},
					"url": {
						"type": "string",
						"description": "Site, channel or feed URL"
					}
				},
				"required": ["type", "url"]
			}`),
		},
	}
}

func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments json.RawMessage) (interface{}, error) {
	switch name {
	case "get_feed":
		return h.handleGetFeed(ctx, arguments)
	case "list_sources":
		return h.handleListSources(ctx, arguments)
	case "preview_source":
		return h.handlePreviewSource(ctx, arguments)
	default:
		return nil, &ToolError{Message: "Unknown tool: " + name}
	}
}

func (h *Handler) handleGetFeed(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	var params GetFeedParams
	if err := decodeArgs(arguments, &params); err != nil {
		return nil, err
	}
	if params.Username == "" {
		return nil, &ToolError{Message: "username is required"}
	}
	if params.Limit <= 0 {
		params.Limit = defaultFeedLimit
	}

	return h.feeds.FeedFor(ctx, params.Username, models.PageParams{
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}

func (h *Handler) handleListSources(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	var params ListSourcesParams
	if err := decodeArgs(arguments, &params); err != nil {
		return nil, err
	}
	if params.Username == "" {
		return nil, &ToolError{Message: "username is required"}
	}

	account, err := h.accounts.GetAccountByUsername(ctx, params.Username)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"sources": account.Sources,
		"count":   len(account.Sources),
	}, nil
}

func (h *Handler) handlePreviewSource(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	var params PreviewSourceParams
	if err := decodeArgs(arguments, &params); err != nil {
		return nil, err
	}

	src, err := h.registry.Register(ctx, models.AddSourceParams{
		Title: params.Title,
		Type:  models.SourceType(params.Type),
		URL:   params.URL,
	})
	if err != nil {
		return nil, err
	}

	posts, err := h.feeds.Preview(ctx, src)
	if err != nil {
		h.logger.Warn("Preview failed", logging.WithFields(map[string]interface{}{
			"url":   params.URL,
			"error": err.Error(),
		}))
		return nil, err
	}
	return map[string]interface{}{
		"source": src,
		"posts":  posts,
	}, nil
}

func decodeArgs(arguments json.RawMessage, out interface{}) error {
	if len(arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(arguments, out); err != nil {
		return &ToolError{Message: "Invalid arguments: " + err.Error()}
	}
	return nil
}

type ToolError struct {
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}
