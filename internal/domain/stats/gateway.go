package stats

import (
	"context"
	"time"
)

// AppName は統計サービスへ送るアプリケーション識別子
const AppName = "event-admission"

// Hit はエンドポイントへの1回のアクセスを表す
type Hit struct {
	App       string
	URI       string
	IP        string
	Timestamp time.Time
}

// Gateway は閲覧統計サービスへのゲートウェイ
// 集計ロジック自体は外部サービスの責務で、本コアは記録と参照のみを行う
// 呼び出しはベストエフォートであり、失敗しても主処理を失敗させてはならない
type Gateway interface {
	// RecordHit はアクセスを1件記録する
	RecordHit(ctx context.Context, hit Hit) error

	// CountViews は期間内のURIへのアクセス数を返す
	// unique が true の場合はIPごとに重複を除いて数える
	CountViews(ctx context.Context, uri string, start, end time.Time, unique bool) (int64, error)
}
