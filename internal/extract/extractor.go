// Package extract は契約書からの情報抽出の契約（インターフェース・結果の形・スコアリング）を提供します。
package extract

import "context"

// Document は抽出対象の文書を表します。
type Document struct {
	ID       string
	Filename string
}

// PartyIdentification は契約当事者に関する抽出結果です。
type PartyIdentification struct {
	Parties     []string `json:"parties" bson:"parties"`
	Signatories []string `json:"signatories" bson:"signatories"`
}

// FinancialDetails は金額に関する抽出結果です。
// TotalContractValue が nil の場合は「抽出できなかった」ことを表します。
type FinancialDetails struct {
	TotalContractValue *float64 `json:"total_contract_value" bson:"total_contract_value"`
	Currency           string   `json:"currency" bson:"currency"`
}

// PaymentStructure は支払条件に関する抽出結果です。
type PaymentStructure struct {
	PaymentTerms string `json:"payment_terms" bson:"payment_terms"`
}

// ExtractedData は抽出処理の成果物です。
type ExtractedData struct {
	PartyIdentification PartyIdentification `json:"party_identification" bson:"party_identification"`
	FinancialDetails    FinancialDetails    `json:"financial_details" bson:"financial_details"`
	PaymentStructure    PaymentStructure    `json:"payment_structure" bson:"payment_structure"`
}

// Extractor は文書から ExtractedData を生成する処理を表します。
// 実装は処理の進み具合を reporter に通知し、reporter がエラーを返した場合は
// 直ちに処理を中断してそのエラーを返さなければなりません。
type Extractor interface {
	Run(ctx context.Context, doc Document, reporter ProgressReporter) (*ExtractedData, error)
}
