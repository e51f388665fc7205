// File: notification/discord/dclient.go
package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// Client sends notifications to a Discord webhook. An empty webhook URL turns
// every call into a no-op, so the engine never has to check whether Discord is
// configured.
type Client struct {
	webhookURL string
	HTTPClient *http.Client
	logger     *utilities.Logger
}

// DiscordMessage represents the structure for a Discord webhook message.
// See: https://discord.com/developers/docs/resources/webhook#execute-webhook
type DiscordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents an embed object in a Discord message.
type DiscordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"` // ISO8601 timestamp
	Color       int    `json:"color,omitempty"`     // Decimal color code
}

func NewClient(webhookURL string, logger *utilities.Logger) *Client {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}

	if webhookURL == "" {
		logger.LogWarn("Discord Client: Webhook URL is empty. Notifications will not be sent.")
	} else {
		logger.LogInfo("Discord Client initialized with webhook URL.")
	}

	return &Client{
		webhookURL: webhookURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SendMessage sends a simple text message to the configured Discord webhook.
func (c *Client) SendMessage(message string) error {
	if c.webhookURL == "" {
		c.logger.LogDebug("Discord SendMessage: Webhook URL is not set, skipping.")
		return nil
	}
	if strings.TrimSpace(message) == "" {
		c.logger.LogDebug("Discord SendMessage: Message is empty, skipping.")
		return nil
	}
	return c.sendPayload(DiscordMessage{Content: message})
}

// SendEmbedMessage sends a message with one or more embeds.
func (c *Client) SendEmbedMessage(embeds ...DiscordEmbed) error {
	if c.webhookURL == "" {
		c.logger.LogDebug("Discord SendEmbedMessage: Webhook URL is not set, skipping.")
		return nil
	}
	if len(embeds) == 0 {
		c.logger.LogDebug("Discord SendEmbedMessage: No embeds provided, skipping.")
		return nil
	}
	return c.sendPayload(DiscordMessage{Embeds: embeds})
}

func (c *Client) sendPayload(payload DiscordMessage) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		c.logger.LogError("Discord sendPayload: Failed to marshal JSON: %v", err)
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}

	req, err := http.NewRequest("POST", c.webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		c.logger.LogError("Discord sendPayload: Failed to create HTTP request: %v", err)
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "KrakenSellerBot/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.LogError("Discord sendPayload: Failed to send HTTP request: %v", err)
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.LogDebug("Discord sendPayload: Message sent successfully (Status: %s)", resp.Status)
		return nil
	}

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("discord API error: %s, failed to read response body", resp.Status)
	}
	c.logger.LogError("Discord sendPayload: Received non-OK status: %s. Body: %s", resp.Status, string(bodyBytes))
	return fmt.Errorf("discord API error: %s, response: %s", resp.Status, string(bodyBytes))
}

// NotifySell sends a formatted notification for an exit order. A dry-run exit
// is labelled as such so a paper session never reads like a live one.
func (c *Client) NotifySell(rec position.Record, reason position.SellReason, txid string, dryRun bool) error {
	if c.webhookURL == "" {
		c.logger.LogDebug("Discord NotifySell: Webhook URL is not set, skipping.")
		return nil
	}

	title := fmt.Sprintf("💰 SELL %s: %s", reason, rec.Pair)
	color := 15158332 // Red
	if dryRun {
		title = fmt.Sprintf("🧪 DRY RUN SELL %s: %s", reason, rec.Pair)
		color = 3447003 // Blue
	}

	realized := rec.UnrealizedPct
	if rec.RealizedPct != nil {
		realized = *rec.RealizedPct
	}

	description := fmt.Sprintf(
		"**Asset**: %s\n"+
			"**Size**: `%.8f`\n"+
			"**Cost Basis**: `%.4f`\n"+
			"**Exit Price**: `%.4f`\n"+
			"**Realized**: `%.2f%%`\n"+
			"**Peak Unrealized**: `%.2f%%`\n"+
			"**Order ID**: `%s`",
		rec.Asset, rec.PositionSize, rec.CostBasis, rec.CurrentPrice,
		realized, rec.ATHUnrealizedPct, txid,
	)

	embed := DiscordEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	return c.SendEmbedMessage(embed)
}

// NotifyExternalClose reports a position that vanished from the account
// without this bot selling it.
func (c *Client) NotifyExternalClose(rec position.Record) error {
	if c.webhookURL == "" {
		return nil
	}
	embed := DiscordEmbed{
		Title:       fmt.Sprintf("ℹ️ Position closed externally: %s", rec.Asset),
		Description: fmt.Sprintf("**Pair**: %s\n**Last Price**: `%.4f`\n**Peak Unrealized**: `%.2f%%`", rec.Pair, rec.CurrentPrice, rec.ATHUnrealizedPct),
		Color:       3447003, // Blue
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	return c.SendEmbedMessage(embed)
}
