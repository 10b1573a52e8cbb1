package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/op"
)

const reportPromptRequirements = "要求：\n" +
	"1. 分领域总结研究趋势\n" +
	"2. 用简洁的bullet points呈现\n" +
	"3. 推荐3篇最值得阅读的论文并说明理由\n" +
	"4. 领域相关趋势列出相关论文标题\n" +
	"5. 论文标题用英文表达\n" +
	"6.只输出分领域研究趋势总结和推荐阅读论文，不需要输出其他内容\n" +
	"7.论文标题输出时不要省略"

// RunReport pushes a cross-paper brief for one calendar day: it collects
// the stored summaries updated on that date, asks the model for a trends
// digest, and delivers it as a single card. There is no delivery state
// for briefs; reporting the same date twice sends two cards. A date
// without papers is skipped without error.
func RunReport(ctx context.Context, deps Deps, date models.Date) error {
	cfg := deps.Config
	if deps.Feishu == nil {
		return fmt.Errorf("workflow: feishu_webhook_url must be set for the report workflow")
	}

	summaries, err := openKV(cfg.Storage.BasePath, kvPaperSummaries)
	if err != nil {
		return err
	}

	reader := op.NewKVReader(summaries, paperSummaryFromJSON, op.WithSkipNullValues())
	out, err := reader.Process(ctx, nil)
	if err != nil {
		return err
	}
	items, _ := out.([]any)

	var papers []*models.PaperWithSummary
	for _, item := range items {
		paper, ok := item.(*models.PaperWithSummary)
		if !ok {
			return fmt.Errorf("workflow: expected *models.PaperWithSummary, got %T", item)
		}
		if paper.UpdateDate.String() == date.String() && strings.TrimSpace(paper.Summary) != "" {
			papers = append(papers, paper)
		}
	}
	if len(papers) == 0 {
		logger.Info(ctx, "No papers to report", "date", date.String())
		return nil
	}

	report, err := generateReport(ctx, deps, papers)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s 论文日报", date)
	content := fmt.Sprintf("📅 AI论文简报(%s)%s", date, report)
	if err := deps.Feishu.PushCard(ctx, title, content); err != nil {
		return fmt.Errorf("workflow: failed to push daily report: %w", err)
	}

	logger.Info(ctx, "Report workflow finished", "date", date.String(), "papers", len(papers))
	return nil
}

// generateReport asks the model to digest the day's summaries into one
// structured brief.
func generateReport(ctx context.Context, deps Deps, papers []*models.PaperWithSummary) (string, error) {
	var digest strings.Builder
	digest.WriteString("今日论文汇总：\n\n")
	for i, paper := range papers {
		fmt.Fprintf(&digest, "【论文%d】%s\nAI总结：%s...\n\n", i+1, paper.Title, paper.Summary)
	}

	prompt := fmt.Sprintf("请将以下论文汇总信息整理成一份结构清晰的每日简报（使用中文）：\n%s\n%s",
		digest.String(), reportPromptRequirements)

	opts := deps.chatOptions()
	req := llm.NewChatRequest(opts.Model,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.WithTemperature(opts.Temperature),
		llm.WithMaxTokens(opts.MaxTokens),
	)
	resp, err := deps.LLM.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("workflow: failed to generate daily report: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
