package evolution

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client wraps the Evolution API gateway. The gateway owns the actual
// protocol connection; this client only drives it over REST.
type Client struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient creates a new gateway client.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("evolution baseURL cannot be empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("evolution apiKey cannot be empty")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	log.Info().Str("baseURL", baseURL).Msg("Evolution client configured")

	return &Client{
		httpClient: client,
		baseURL:    baseURL,
	}, nil
}

// SendTextRequest is the body of the gateway's text-send operation.
type SendTextRequest struct {
	Number      string `json:"number"`
	Text        string `json:"text"`
	Delay       int    `json:"delay"`
	LinkPreview bool   `json:"linkPreview"`
}

// SendTextResponse carries the gateway-assigned key of the sent message.
type SendTextResponse struct {
	Key    MessageKey `json:"key"`
	Status string     `json:"status,omitempty"`
}

// SendText sends a plain text message through the given instance.
func (c *Client) SendText(ctx context.Context, instance string, req SendTextRequest) (*SendTextResponse, error) {
	url := fmt.Sprintf("/message/sendText/%s", instance)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&SendTextResponse{}).
		Post(url)

	if err != nil {
		log.Error().Err(err).Str("url", url).Str("number", req.Number).Msg("Evolution API: SendText request failed")
		return nil, fmt.Errorf("evolution SendText request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().Str("url", url).Str("number", req.Number).Int("statusCode", resp.StatusCode()).Str("responseBody", string(resp.Body())).Msg("Evolution API: SendText returned an error")
		return nil, fmt.Errorf("evolution SendText error: status %s, body: %s", resp.Status(), resp.String())
	}

	result := resp.Result().(*SendTextResponse)
	log.Info().Str("instance", instance).Str("number", req.Number).Str("keyID", result.Key.ID).Msg("Sent text message through gateway")
	return result, nil
}

// WebhookConfig is the gateway-side webhook configuration for one instance.
type WebhookConfig struct {
	Enabled         bool     `json:"enabled"`
	URL             string   `json:"url"`
	WebhookByEvents bool     `json:"webhook_by_events,omitempty"`
	Events          []string `json:"events,omitempty"`
}

// FindWebhook fetches the current webhook configuration of an instance.
func (c *Client) FindWebhook(ctx context.Context, instance string) (*WebhookConfig, error) {
	url := fmt.Sprintf("/webhook/find/%s", instance)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&WebhookConfig{}).
		Get(url)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Evolution API: FindWebhook request failed")
		return nil, fmt.Errorf("evolution FindWebhook request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().Str("url", url).Int("statusCode", resp.StatusCode()).Str("responseBody", string(resp.Body())).Msg("Evolution API: FindWebhook returned an error")
		return nil, fmt.Errorf("evolution FindWebhook error: status %s, body: %s", resp.Status(), resp.String())
	}

	return resp.Result().(*WebhookConfig), nil
}

// SetWebhook updates the webhook configuration of an instance.
func (c *Client) SetWebhook(ctx context.Context, instance string, cfg WebhookConfig) error {
	for _, event := range cfg.Events {
		if !IsValidWebhookEvent(event) {
			return fmt.Errorf("unsupported webhook event type %q", event)
		}
	}

	url := fmt.Sprintf("/webhook/instance/%s", instance)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(cfg).
		Post(url)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Evolution API: SetWebhook request failed")
		return fmt.Errorf("evolution SetWebhook request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().Str("url", url).Int("statusCode", resp.StatusCode()).Str("responseBody", string(resp.Body())).Msg("Evolution API: SetWebhook returned an error")
		return fmt.Errorf("evolution SetWebhook error: status %s, body: %s", resp.Status(), resp.String())
	}

	log.Info().Str("instance", instance).Str("webhookURL", cfg.URL).Bool("enabled", cfg.Enabled).Msg("Updated gateway webhook configuration")
	return nil
}
