package jobs

import (
	"time"

	"github.com/yourusername/contract-forge/internal/extract"
)

// Status はジョブの実行状態を表します。pending → processing → completed の順にのみ進みます。
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Valid は s が既知の状態かどうかを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// Record はジョブの現在状態を表します。JSON のキーは既存クライアントとの互換のため旧 API に合わせています。
type Record struct {
	ID              string                 `json:"_id"`
	Filename        string                 `json:"filename"`
	Status          Status                 `json:"status"`
	Progress        int                    `json:"progress"`
	ExtractedData   *extract.ExtractedData `json:"extracted_data"`
	ConfidenceScore *int                   `json:"confidence_score"`
	CreatedAt       time.Time              `json:"upload_time"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Completed はジョブが完了しているかを返します。
func (r *Record) Completed() bool {
	return r != nil && r.Status == StatusCompleted
}

// StatusView は状態と進捗だけを取り出した軽量な射影です。
type StatusView struct {
	ID       string `json:"contract_id"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// Task はワーカーに渡される 1 件分の処理依頼です。
type Task struct {
	JobID    string `json:"contract_id"`
	Filename string `json:"filename"`
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.ConfidenceScore != nil {
		score := *r.ConfidenceScore
		out.ConfidenceScore = &score
	}
	return &out
}
