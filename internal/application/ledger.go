package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-event-admission/internal/domain/request"
)

// Ledger はイベントごとの確定参加数を集計する
// 確定数の正は常にリクエスト行のライブ集計であり、events.confirmed_requests
// 列は一覧表示・検索フィルタ用のキャッシュにすぎない
type Ledger struct {
	requestRepo request.Repository
}

func NewLedger(requestRepo request.Repository) *Ledger {
	return &Ledger{requestRepo: requestRepo}
}

// ConfirmedCount はイベントの確定参加数を返す
func (l *Ledger) ConfirmedCount(ctx context.Context, eventID int64) (int, error) {
	count, err := l.requestRepo.CountByEventAndStatus(ctx, eventID, request.StatusConfirmed)
	if err != nil {
		return 0, fmt.Errorf("確定数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ConfirmedCounts は複数イベントの確定参加数をまとめて返す
// 該当リクエストがないイベントは結果に含まれない（0扱い）
func (l *Ledger) ConfirmedCounts(ctx context.Context, eventIDs []int64) (map[int64]int, error) {
	if len(eventIDs) == 0 {
		return map[int64]int{}, nil
	}
	counts, err := l.requestRepo.CountConfirmedByEvents(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("確定数の一括取得に失敗しました: %w", err)
	}
	return counts, nil
}
