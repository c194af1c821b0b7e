package hackernews

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/ingest"
	"github.com/campusdata/ingest-cli/internal/store"
	"github.com/campusdata/ingest-cli/pkg/anthropic"
)

// neutralSentiment is assigned when AI is unavailable or its answer
// cannot be parsed, so every record still ends up scored.
const neutralSentiment = 0.5

const sentimentSystem = "You score the sentiment of news headlines. " +
	"Respond with only a number between 0.0 (very negative) and 1.0 (very positive). " +
	"0.5 is neutral."

// Analyzer scores headline sentiment for a capture's derived records.
// A nil client disables AI calls and every headline is scored neutral.
type Analyzer struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// NewAnalyzer creates a sentiment analyzer. Pass a nil client to run
// without AI.
func NewAnalyzer(ai anthropic.Client, model string, maxTokens int64) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 64
	}
	return &Analyzer{ai: ai, model: model, maxTokens: maxTokens}
}

// Analyze scores every derived record of the capture. Individual AI
// failures degrade to neutral instead of failing the job.
func (a *Analyzer) Analyze(ctx context.Context, st store.Store, scrapedDataID string) (*ingest.AnalyzeResult, error) {
	log := zap.L().With(zap.String("module", ModuleName), zap.String("scraped_data_id", scrapedDataID))

	records, err := st.ListProcessedData(ctx, scrapedDataID)
	if err != nil {
		return nil, eris.Wrapf(err, "hackernews: list records for capture %s", scrapedDataID)
	}
	if len(records) == 0 {
		log.Warn("no headlines to analyze")
		return &ingest.AnalyzeResult{Success: true, Items: 0}, nil
	}

	if a.ai == nil {
		log.Warn("ai not configured, scoring all headlines neutral")
		for _, rec := range records {
			if err := st.SetSentiment(ctx, rec.ID, neutralSentiment); err != nil {
				return nil, err
			}
		}
		return &ingest.AnalyzeResult{Success: true, Items: len(records)}, nil
	}

	analyzed := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score := a.scoreHeadline(ctx, rec.Title, log)
		if err := st.SetSentiment(ctx, rec.ID, score); err != nil {
			return nil, err
		}
		analyzed++
	}

	log.Info("headlines analyzed", zap.Int("count", analyzed))
	return &ingest.AnalyzeResult{Success: true, Items: analyzed}, nil
}

func (a *Analyzer) scoreHeadline(ctx context.Context, headline string, log *zap.Logger) float64 {
	if headline == "" {
		headline = "Untitled"
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    sentimentSystem,
		Messages: []anthropic.Message{
			{Role: "user", Content: headline},
		},
	})
	if err != nil {
		log.Warn("sentiment call failed, scoring neutral",
			zap.String("headline", headline), zap.Error(err))
		return neutralSentiment
	}
	resp.Usage.LogUsage(a.model, "sentiment")

	score, err := parseScore(resp.Text)
	if err != nil {
		log.Warn("unparseable sentiment answer, scoring neutral",
			zap.String("headline", headline), zap.String("answer", resp.Text))
		return neutralSentiment
	}
	return score
}

// parseScore extracts a 0..1 score from the model's answer, clamping
// out-of-range values.
func parseScore(text string) (float64, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0, eris.New("hackernews: empty sentiment answer")
	}
	score, err := strconv.ParseFloat(strings.Trim(fields[0], "\"'.,"), 64)
	if err != nil {
		return 0, eris.Wrap(err, "hackernews: parse sentiment answer")
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}
