package op

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/paperdag/paperdag/internal/backoff"
	"github.com/paperdag/paperdag/internal/feishu"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/pipeline"
)

const pushRetries = 2

// CardFunc renders an item into a card title and body.
type CardFunc func(item any) (title, content string, err error)

// FeishuPusher delivers one card per item, sequentially so the chat shows
// them in input order. Delivery failures are recorded per item, never
// propagated; the failed items simply stay unmarked for the next run.
type FeishuPusher struct {
	pipeline.BaseOperator

	client        *feishu.Client
	card          CardFunc
	retryInterval time.Duration
}

var _ pipeline.Operator = (*FeishuPusher)(nil)

// NewFeishuPusher creates the pusher.
func NewFeishuPusher(client *feishu.Client, card CardFunc) *FeishuPusher {
	return &FeishuPusher{client: client, card: card, retryInterval: time.Second}
}

// Process pushes the items and returns []any of PushResult aligned with
// the input.
func (p *FeishuPusher) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}

	results := make([]PushResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		title, content, err := p.card(item)
		if err != nil {
			return nil, fmt.Errorf("op: failed to render card: %w", err)
		}

		policy := backoff.NewExponentialBackoffPolicy(p.retryInterval)
		policy.MaxRetries = pushRetries

		pushErr := backoff.Retry(ctx, func(ctx context.Context) error {
			return p.client.PushCard(ctx, title, content)
		}, policy, nil)
		if pushErr != nil {
			if errors.Is(pushErr, context.Canceled) || errors.Is(pushErr, context.DeadlineExceeded) {
				return nil, pushErr
			}
			logger.Error(ctx, "Failed to push card", "title", title, "err", pushErr)
		}

		results = append(results, PushResult{Item: item, OK: pushErr == nil})
	}

	logger.Info(ctx, "Pushed cards",
		"count", len(results),
		"failed", lo.CountBy(results, func(r PushResult) bool { return !r.OK }))
	return lo.ToAnySlice(results), nil
}
