package request

import (
	"context"

	"github.com/sanosuguru/go-event-admission/internal/domain/transaction"
)

// Repository は参加リクエストリポジトリのインターフェース
type Repository interface {
	// Create は新しい参加リクエストを作成する（トランザクション必須）
	// (event, requester) の重複は ErrDuplicateRequest を返す
	Create(ctx context.Context, tx transaction.Tx, r *Request) error

	// GetByID はIDから参加リクエストを取得する
	GetByID(ctx context.Context, id int64) (*Request, error)

	// GetByRequesterAndID は申請者本人のリクエストを取得する
	GetByRequesterAndID(ctx context.Context, requesterID, id int64) (*Request, error)

	// GetByRequester は申請者のリクエスト一覧を取得する
	GetByRequester(ctx context.Context, requesterID int64) ([]*Request, error)

	// GetByEvent はイベントへのリクエスト一覧を取得する
	GetByEvent(ctx context.Context, eventID int64) ([]*Request, error)

	// ExistsActiveByEventAndRequester はキャンセル以外のリクエストが存在するかを返す
	ExistsActiveByEventAndRequester(ctx context.Context, eventID, requesterID int64) (bool, error)

	// CountActiveByEvent はキャンセル以外のリクエスト数を返す（トランザクション内で使用）
	CountActiveByEvent(ctx context.Context, tx transaction.Tx, eventID int64) (int, error)

	// CountByEventAndStatus は指定状態のリクエスト数を返す
	CountByEventAndStatus(ctx context.Context, eventID int64, status Status) (int, error)

	// CountConfirmedByEvents は複数イベントの確定数をまとめて返す
	CountConfirmedByEvents(ctx context.Context, eventIDs []int64) (map[int64]int, error)

	// UpdateStatus はリクエストの状態を更新する（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, r *Request) error

	// UpdateStatusBatch は複数リクエストの状態を一括更新する（トランザクション必須）
	// 全件更新できない場合はエラーを返し、部分適用しない
	UpdateStatusBatch(ctx context.Context, tx transaction.Tx, ids []int64, status Status) error
}
