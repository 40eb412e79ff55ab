package extract

import (
	"context"
	"fmt"
	"time"
)

// デフォルトのステップ数と間隔
const (
	DefaultSteps        = 10
	DefaultStepInterval = time.Second
)

// Placeholder は固定の待ち時間のあとに固定のデータを返す抽出器です。
// 実際の文書解析が実装されるまでのライフサイクル確認用です。
type Placeholder struct {
	Steps    int
	Interval time.Duration
}

// NewPlaceholder は Placeholder を作成します。steps が 1 未満の場合は DefaultSteps を使います。
func NewPlaceholder(steps int, interval time.Duration) *Placeholder {
	if steps < 1 {
		steps = DefaultSteps
	}
	if interval < 0 {
		interval = 0
	}
	return &Placeholder{Steps: steps, Interval: interval}
}

// Run はステップごとに進捗を通知し、各ステップの間は Interval だけ待機します。
func (p *Placeholder) Run(ctx context.Context, doc Document, reporter ProgressReporter) (*ExtractedData, error) {
	steps := p.Steps
	if steps < 1 {
		steps = DefaultSteps
	}

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ReportProgress(reporter, StepPercent(i, steps)); err != nil {
			return nil, fmt.Errorf("report progress for %s at step %d: %w", doc.ID, i, err)
		}
		if err := sleepContext(ctx, p.Interval); err != nil {
			return nil, err
		}
	}

	return fabricatedData(), nil
}

func fabricatedData() *ExtractedData {
	value := 50000.00
	return &ExtractedData{
		PartyIdentification: PartyIdentification{
			Parties:     []string{"Acme Corp.", "Global Solutions Inc."},
			Signatories: []string{"John Doe", "Jane Smith"},
		},
		FinancialDetails: FinancialDetails{
			TotalContractValue: &value,
			Currency:           "USD",
		},
		PaymentStructure: PaymentStructure{
			PaymentTerms: "Net 30",
		},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
