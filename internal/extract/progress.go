package extract

// ProgressReporter は進捗更新用コールバックです。percent は 0〜100 です。
type ProgressReporter func(percent int) error

// ReportProgress は percent を 0〜100 に丸めて cb に渡します。cb が nil の場合は何もしません。
func ReportProgress(cb ProgressReporter, percent int) error {
	if cb == nil {
		return nil
	}
	return cb(ClampPercent(percent))
}

// ClampPercent は percent を 0〜100 の範囲に収めます。
func ClampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// StepPercent は total ステップ中 step ステップ目を終えた時点の進捗率（四捨五入）を返します。
func StepPercent(step, total int) int {
	if total <= 0 {
		return 100
	}
	return ClampPercent((200*step + total) / (2 * total))
}
