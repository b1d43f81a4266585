package user

import (
	"context"
	"errors"
)

// ErrUserNotFound はユーザーが存在しないことを表す
var ErrUserNotFound = errors.New("ユーザーが見つかりません")

// User はイベントのオーナーや参加申請者を表す
// ユーザー管理は本コアの範囲外であり、参照解決のみを扱う
type User struct {
	ID    int64
	Name  string
	Email string
}

// Repository はユーザーの参照解決インターフェース
type Repository interface {
	// GetByID はIDからユーザーを取得する
	GetByID(ctx context.Context, id int64) (*User, error)
}
