package event

import (
	"context"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/domain/transaction"
)

// Sort は公開イベント検索のソート順を表す
type Sort string

const (
	SortByEventDate Sort = "EVENT_DATE"
	SortByViews     Sort = "VIEWS"
)

// SearchFilter は公開イベント検索の条件
type SearchFilter struct {
	Text          string
	CategoryIDs   []int64
	Paid          *bool
	RangeStart    *time.Time
	RangeEnd      *time.Time
	OnlyAvailable bool
	Sort          Sort
	From          int
	Size          int
}

// AdminSearchFilter は管理者向けイベント検索の条件
// States は集合として扱う（0個以上）
type AdminSearchFilter struct {
	UserIDs     []int64
	States      []State
	CategoryIDs []int64
	RangeStart  *time.Time
	RangeEnd    *time.Time
	From        int
	Size        int
}

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, e *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id int64) (*Event, error)

	// GetByIDForUpdate はイベント行を行ロック付きで取得する（トランザクション必須）
	// 同一イベントへの check-then-act を直列化するための取得経路
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*Event, error)

	// GetByIDAndInitiator はオーナーのイベントを取得する
	GetByIDAndInitiator(ctx context.Context, id, initiatorID int64) (*Event, error)

	// GetPublishedByID は公開済みイベントを取得する
	GetPublishedByID(ctx context.Context, id int64) (*Event, error)

	// GetByInitiator はオーナーのイベント一覧を取得する
	GetByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]*Event, error)

	// Update はイベントを更新する
	Update(ctx context.Context, e *Event) error

	// Search は公開済みイベントをフィルタ条件で検索する
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)

	// SearchByAdmin は全イベントを管理者向けフィルタ条件で検索する
	SearchByAdmin(ctx context.Context, filter AdminSearchFilter) ([]*Event, error)

	// RefreshConfirmedCount はイベントの確定数キャッシュ列を再計算する（トランザクション必須）
	// リクエストの状態を変更するトランザクション内で必ず呼び出すこと
	RefreshConfirmedCount(ctx context.Context, tx transaction.Tx, eventID int64) error
}
