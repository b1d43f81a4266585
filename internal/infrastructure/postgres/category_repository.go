package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-admission/internal/domain/category"
)

// CategoryRepository はカテゴリ参照解決のPostgreSQL実装
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository はCategoryRepositoryを作成する
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByID はIDからカテゴリを取得する
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*category.Category, error) {
	var c category.Category
	query := `SELECT id, name FROM categories WHERE id = $1`
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, category.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("カテゴリ取得に失敗しました: %w", err)
	}
	return &c, nil
}

var _ category.Repository = (*CategoryRepository)(nil)
