package app

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const titleMaxRunes = 60

// GenerateSessionTitle asks the backend for a short name for a session based
// on its first user message. Best-effort: any failure returns an empty title
// and no error, because an unnamed session is perfectly usable.
func GenerateSessionTitle(ctx context.Context, client *StreamClient, cfg Config, firstMessage string) string {
	firstMessage = strings.TrimSpace(firstMessage)
	if firstMessage == "" || client == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"model":      cfg.Model,
		"max_tokens": 32,
		"messages": []map[string]string{{
			"role":    "user",
			"content": "Reply with a title of at most six words for this conversation. No quotes, no punctuation at the end.\n\n" + firstMessage,
		}},
	})
	if err != nil {
		return ""
	}

	body, err := client.Complete(ctx, StreamRequest{
		URL: cfg.BaseURL,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			"x-api-key":         cfg.APIKey,
			"anthropic-version": "2023-06-01",
		},
		Body: payload,
	})
	if err != nil {
		return ""
	}

	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}

	var title string
	for _, block := range resp.Content {
		title += block.Text
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes])
	}
	return title
}
