package category

import (
	"context"
	"errors"
)

// ErrCategoryNotFound はカテゴリが存在しないことを表す
var ErrCategoryNotFound = errors.New("カテゴリが見つかりません")

// Category はイベントが参照するカテゴリを表す
// カテゴリ自体のCRUDは本コアの範囲外であり、参照解決のみを扱う
type Category struct {
	ID   int64
	Name string
}

// Repository はカテゴリの参照解決インターフェース
type Repository interface {
	// GetByID はIDからカテゴリを取得する
	GetByID(ctx context.Context, id int64) (*Category, error)
}
