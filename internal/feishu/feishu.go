// Package feishu pushes interactive card messages to a Feishu group chat
// through a custom bot webhook.
package feishu

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// Client posts messages to a single webhook URL.
type Client struct {
	webhookURL string
	http       *resty.Client
}

// New creates a webhook client.
func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		http:       resty.New().SetTimeout(defaultTimeout),
	}
}

// Card message payload. The webhook API expects this exact shape for
// msg_type "interactive".

type cardMessage struct {
	MsgType string `json:"msg_type"`
	Card    card   `json:"card"`
}

type card struct {
	Elements []cardElement `json:"elements"`
	Header   cardHeader    `json:"header"`
}

type cardElement struct {
	Tag  string   `json:"tag"`
	Text cardText `json:"text"`
}

type cardText struct {
	Content string `json:"content"`
	Tag     string `json:"tag"`
}

type cardHeader struct {
	Title cardText `json:"title"`
}

// PushCard sends one interactive card with a plain-text title and a
// lark_md body.
func (c *Client) PushCard(ctx context.Context, title, content string) error {
	msg := cardMessage{
		MsgType: "interactive",
		Card: card{
			Elements: []cardElement{
				{
					Tag: "div",
					Text: cardText{
						Content: content,
						Tag:     "lark_md",
					},
				},
			},
			Header: cardHeader{
				Title: cardText{
					Content: title,
					Tag:     "plain_text",
				},
			},
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(c.webhookURL)
	if err != nil {
		return fmt.Errorf("feishu: request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("feishu: unexpected status code %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
