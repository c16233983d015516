// Package classify implements dual-level policy issue extraction: each bill
// is assigned CAP-style L1 and L2 policy categories by an LLM, with
// confidence scores recorded on the bill↔category link table.
//
// Automatic assignments never overwrite manual (editorial) links; that
// guarantee lives in store.CategoryStore.LinkBill.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/llm"
	"github.com/seiji-watch/diet-tracker/internal/metrics"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

// Assignment is one category the model proposed for a bill.
type Assignment struct {
	CAPCode    string  `json:"cap_code"`
	Layer      string  `json:"layer"` // "L1" or "L2"
	Confidence float64 `json:"confidence"`
}

// response is the full JSON document the model must return.
type response struct {
	Assignments []Assignment `json:"assignments"`
}

// responseSchema constrains the model output. The same schema text is
// embedded in the prompt and used to validate what comes back.
var responseSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"assignments"},
	Properties: map[string]*jsonschema.Schema{
		"assignments": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"cap_code", "layer", "confidence"},
				Properties: map[string]*jsonschema.Schema{
					"cap_code":   {Type: "string"},
					"layer":      {Type: "string", Enum: []any{"L1", "L2"}},
					"confidence": {Type: "number", Minimum: ptrFloat(0), Maximum: ptrFloat(1)},
				},
			},
		},
	},
}

func ptrFloat(f float64) *float64 { return &f }

// Classifier runs policy extraction for bills.
type Classifier struct {
	provider   llm.Provider
	bills      *store.BillStore
	categories *store.CategoryStore
	threshold  float64
	logger     *slog.Logger

	resolved *jsonschema.Resolved
}

// New creates a Classifier. Assignments below threshold are discarded.
func New(provider llm.Provider, bills *store.BillStore, categories *store.CategoryStore, threshold float64, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	resolved, err := responseSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve response schema: %w", err)
	}
	return &Classifier{
		provider:   provider,
		bills:      bills,
		categories: categories,
		threshold:  threshold,
		logger:     logger,
		resolved:   resolved,
	}, nil
}

// Report summarizes one classification run.
type Report struct {
	Bills   int // bills processed
	Linked  int // links written
	Dropped int // assignments below threshold or with unknown CAP codes
	Failed  int // bills skipped after unparseable model output
}

// Run classifies up to limit unclassified bills.
func (c *Classifier) Run(ctx context.Context, limit int) (*Report, error) {
	tree, err := c.categories.Tree(ctx)
	if err != nil {
		return nil, fmt.Errorf("load category tree: %w", err)
	}
	if len(tree) == 0 {
		return nil, fmt.Errorf("policy category taxonomy is empty; seed it before classifying")
	}

	bills, err := c.bills.ListUnclassified(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclassified bills: %w", err)
	}

	report := &Report{}
	for _, bill := range bills {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Bills++

		assignments, err := c.ClassifyBill(ctx, bill, tree)
		if err != nil {
			c.logger.Warn("classification failed, skipping bill",
				"bill_id", bill.ID, "title", bill.Title, "error", err)
			metrics.RecordClassificationError()
			report.Failed++
			continue
		}
		metrics.RecordClassification()

		for _, a := range assignments {
			if a.Confidence < c.threshold {
				report.Dropped++
				continue
			}
			category, err := c.categories.GetByCAPCode(ctx, a.CAPCode)
			if err != nil {
				c.logger.Warn("model proposed unknown CAP code",
					"bill_id", bill.ID, "cap_code", a.CAPCode)
				report.Dropped++
				continue
			}
			err = c.categories.LinkBill(ctx, domain.BillCategoryLink{
				BillID:     bill.ID,
				CategoryID: category.ID,
				Confidence: a.Confidence,
				IsManual:   false,
			})
			if err != nil {
				return report, fmt.Errorf("link bill %s: %w", bill.ID, err)
			}
			report.Linked++
		}
	}

	c.logger.Info("classification run complete",
		"bills", report.Bills, "linked", report.Linked,
		"dropped", report.Dropped, "failed", report.Failed)
	return report, nil
}

// ClassifyBill asks the model for L1/L2 assignments for one bill. Output
// that fails schema validation is retried once with a corrective prompt;
// a second failure abandons the bill, never applying a partial result.
func (c *Classifier) ClassifyBill(ctx context.Context, bill *domain.Bill, tree []*domain.CategoryTree) ([]Assignment, error) {
	prompt := c.buildPrompt(bill, tree)

	raw, err := c.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   1024,
		ForceJSON:   true,
	})
	if err != nil {
		return nil, err
	}

	resp, parseErr := c.parse(raw)
	if parseErr != nil {
		c.logger.Debug("model output failed validation, retrying once",
			"bill_id", bill.ID, "error", parseErr)
		raw, err = c.provider.Complete(ctx, llm.Request{
			System:      systemPrompt,
			Prompt:      prompt + "\n\n前回の出力はスキーマに違反しました: " + parseErr.Error() + "\nスキーマに厳密に従ったJSONのみを出力してください。",
			Temperature: 0.0,
			MaxTokens:   1024,
			ForceJSON:   true,
		})
		if err != nil {
			return nil, err
		}
		resp, parseErr = c.parse(raw)
		if parseErr != nil {
			return nil, fmt.Errorf("model output invalid after retry: %w", parseErr)
		}
	}

	return resp.Assignments, nil
}

// parse unmarshals and schema-validates raw model output.
func (c *Classifier) parse(raw string) (*response, error) {
	raw = stripFences(raw)

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}
	if err := c.resolved.Validate(generic); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal assignments: %w", err)
	}
	return &resp, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const systemPrompt = `あなたは日本の国会の法案を政策分野に分類する専門家です。` +
	`法案をCAP (Comparative Agendas Project) 方式の政策カテゴリに分類してください。` +
	`L1は大分類、L2は小分類です。確信が持てるカテゴリのみを返してください。`

func (c *Classifier) buildPrompt(bill *domain.Bill, tree []*domain.CategoryTree) string {
	var b strings.Builder

	b.WriteString("## 法案\n")
	fmt.Fprintf(&b, "タイトル: %s\n", bill.Title)
	if bill.Summary != "" {
		fmt.Fprintf(&b, "概要: %s\n", bill.Summary)
	}
	fmt.Fprintf(&b, "国会回次: 第%d回\n\n", bill.Session)

	b.WriteString("## 政策カテゴリ一覧\n")
	for _, l1 := range tree {
		fmt.Fprintf(&b, "- [L1 %s] %s\n", l1.CAPCode, l1.TitleJA)
		for _, l2 := range l1.Children {
			fmt.Fprintf(&b, "  - [L2 %s] %s\n", l2.CAPCode, l2.TitleJA)
		}
	}

	schemaJSON, _ := json.Marshal(responseSchema)
	b.WriteString("\n## 出力形式\n")
	b.WriteString("次のJSONスキーマに従うJSONオブジェクトのみを出力してください。")
	b.WriteString("L1を1つ、関連するL2を0〜3つ、それぞれ確信度 (0〜1) と共に返してください。\n")
	b.Write(schemaJSON)
	b.WriteString("\n")

	return b.String()
}
