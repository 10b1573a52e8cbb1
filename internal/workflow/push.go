package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/op"
	"github.com/paperdag/paperdag/internal/pipeline"
)

// BuildPush assembles the push pipeline: read the stored summaries, drop
// the ones already delivered, push the rest oldest-first, and mark only
// the deliveries that succeeded.
func BuildPush(deps Deps) (*pipeline.Pipeline, error) {
	cfg := deps.Config
	if deps.Feishu == nil {
		return nil, fmt.Errorf("workflow: feishu_webhook_url must be set for the push workflow")
	}

	states, err := openStates(cfg.Storage.BasePath, nsPush)
	if err != nil {
		return nil, err
	}
	summaries, err := openKV(cfg.Storage.BasePath, kvPaperSummaries)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	b.add("read_paper_summaries", op.NewKVReader(summaries, paperSummaryFromJSON, op.WithSkipNullValues()))
	b.add("filter_pushed_papers", op.NewFilterFinished(states, op.PaperID), "read_paper_summaries")
	b.add("order_by_update_date", op.NewCustom("order_by_update_date", orderByUpdateDate), "filter_pushed_papers")
	b.add("push_paper_summaries", op.NewFeishuPusher(deps.Feishu, paperCard), "order_by_update_date")
	b.add("filter_out_push_failed_papers", op.NewCustom("filter_out_push_failed_papers", keepDelivered), "push_paper_summaries")
	b.add("mark_pushed_papers", op.NewMarkFinished(states, op.PaperID), "filter_out_push_failed_papers")
	return b.build()
}

// RunPush executes the push workflow once. Failed deliveries are not an
// error; the papers stay unmarked and the next run retries them.
func RunPush(ctx context.Context, deps Deps) error {
	p, err := BuildPush(deps)
	if err != nil {
		return err
	}
	results, err := p.Execute(ctx, nil)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Push workflow finished",
		"attempted", listLen(results["order_by_update_date"]),
		"delivered", listLen(results["mark_pushed_papers"]))
	return nil
}

func paperSummaryFromJSON(key string, value json.RawMessage) (any, error) {
	var paper models.PaperWithSummary
	if err := json.Unmarshal(value, &paper); err != nil {
		return nil, fmt.Errorf("invalid paper summary document %q: %w", key, err)
	}
	return &paper, nil
}

// orderByUpdateDate sorts ascending by update date so the chat reads
// oldest to newest, ties broken by id to keep runs deterministic.
func orderByUpdateDate(_ context.Context, items []any) ([]any, error) {
	papers := make([]*models.PaperWithSummary, len(items))
	for i, item := range items {
		paper, ok := item.(*models.PaperWithSummary)
		if !ok {
			return nil, fmt.Errorf("workflow: expected *models.PaperWithSummary, got %T", item)
		}
		papers[i] = paper
	}

	sort.SliceStable(papers, func(i, j int) bool {
		if papers[i].UpdateDate.Equal(papers[j].UpdateDate.Time) {
			return papers[i].ID < papers[j].ID
		}
		return papers[i].UpdateDate.Before(papers[j].UpdateDate.Time)
	})
	return lo.ToAnySlice(papers), nil
}

// paperCard renders the recommendation card for one summarized paper.
func paperCard(item any) (string, string, error) {
	paper, ok := item.(*models.PaperWithSummary)
	if !ok {
		return "", "", fmt.Errorf("workflow: expected *models.PaperWithSummary, got %T", item)
	}

	var content strings.Builder
	fmt.Fprintf(&content, "**%s**\n", paper.Title)
	fmt.Fprintf(&content, "**更新时间**: %s\n\n", paper.UpdateDate)
	fmt.Fprintf(&content, "👤 %s\n\n", paper.Authors)
	fmt.Fprintf(&content, "💡 AI总结：%s...\n\n", paper.Summary)
	content.WriteString("---\n")
	fmt.Fprintf(&content, "📎 [论文原文](%s)", paper.URL)
	return "📄 新论文推荐", content.String(), nil
}

// keepDelivered unwraps the push results, keeping only delivered papers.
func keepDelivered(_ context.Context, items []any) ([]any, error) {
	kept := make([]any, 0, len(items))
	for _, item := range items {
		result, ok := item.(op.PushResult)
		if !ok {
			return nil, fmt.Errorf("workflow: expected op.PushResult, got %T", item)
		}
		if result.OK {
			kept = append(kept, result.Item)
		}
	}
	return kept, nil
}
