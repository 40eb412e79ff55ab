package extract

import "fmt"

// 各セクションが存在した場合に加算される重み。合計は 100 になりません。
const (
	WeightContractValue = 30
	WeightParties       = 25
	WeightPaymentTerms  = 20
)

// ScoringMode は「セクションが存在する」とみなす基準です。
type ScoringMode string

const (
	// ScoringPresence は値が与えられていれば（0 であっても）存在とみなします。
	ScoringPresence ScoringMode = "presence"
	// ScoringLegacy は旧実装互換で、契約金額 0 を「存在しない」とみなします。
	ScoringLegacy ScoringMode = "legacy"
)

// ParseScoringMode は文字列を ScoringMode に変換します。空文字は ScoringPresence です。
func ParseScoringMode(s string) (ScoringMode, error) {
	switch ScoringMode(s) {
	case "", ScoringPresence:
		return ScoringPresence, nil
	case ScoringLegacy:
		return ScoringLegacy, nil
	default:
		return "", fmt.Errorf("unknown scoring mode: %q", s)
	}
}

// Score は抽出結果から信頼度スコアを計算します。同じ入力に対して常に同じ値を返します。
func Score(data *ExtractedData, mode ScoringMode) int {
	if data == nil {
		return 0
	}

	score := 0
	if hasContractValue(data.FinancialDetails.TotalContractValue, mode) {
		score += WeightContractValue
	}
	if len(data.PartyIdentification.Parties) > 0 {
		score += WeightParties
	}
	if data.PaymentStructure.PaymentTerms != "" {
		score += WeightPaymentTerms
	}
	return score
}

func hasContractValue(v *float64, mode ScoringMode) bool {
	if v == nil {
		return false
	}
	if mode == ScoringLegacy {
		return *v != 0
	}
	return true
}
