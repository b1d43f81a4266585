package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-admission/internal/domain/request"
	"github.com/sanosuguru/go-event-admission/internal/domain/transaction"
)

// requestRow はDBの行を表す構造体
type requestRow struct {
	ID          int64     `db:"id"`
	EventID     int64     `db:"event_id"`
	RequesterID int64     `db:"requester_id"`
	Created     time.Time `db:"created"`
	Status      string    `db:"status"`
}

func (r *requestRow) toEntity() *request.Request {
	return &request.Request{
		ID:          r.ID,
		EventID:     r.EventID,
		RequesterID: r.RequesterID,
		Created:     r.Created,
		Status:      request.Status(r.Status),
	}
}

func toRequests(rows []requestRow) []*request.Request {
	requests := make([]*request.Request, len(rows))
	for i, row := range rows {
		requests[i] = row.toEntity()
	}
	return requests
}

const requestColumns = `id, event_id, requester_id, created, status`

// RequestRepository は参加リクエストリポジトリのPostgreSQL実装
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository はRequestRepositoryを作成する
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create は新しい参加リクエストを作成する
// アクティブな (event, requester) の重複は部分一意インデックスで防がれる
func (r *RequestRepository) Create(ctx context.Context, tx transaction.Tx, req *request.Request) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが必要です")
	}
	query := `
		INSERT INTO requests (event_id, requester_id, created, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := sqlxTx.QueryRowContext(ctx, query,
		req.EventID, req.RequesterID, req.Created, string(req.Status),
	).Scan(&req.ID)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return request.ErrDuplicateRequest
		}
		return fmt.Errorf("参加リクエスト作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDから参加リクエストを取得する
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*request.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, request.ErrRequestNotFound
		}
		return nil, fmt.Errorf("参加リクエスト取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByRequesterAndID は申請者本人のリクエストを取得する
func (r *RequestRepository) GetByRequesterAndID(ctx context.Context, requesterID, id int64) (*request.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1 AND requester_id = $2`

	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, id, requesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, request.ErrRequestNotFound
		}
		return nil, fmt.Errorf("参加リクエスト取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByRequester は申請者のリクエスト一覧を取得する
func (r *RequestRepository) GetByRequester(ctx context.Context, requesterID int64) ([]*request.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE requester_id = $1 ORDER BY id`

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, query, requesterID); err != nil {
		return nil, fmt.Errorf("参加リクエスト一覧取得に失敗しました: %w", err)
	}
	return toRequests(rows), nil
}

// GetByEvent はイベントへのリクエスト一覧を取得する
func (r *RequestRepository) GetByEvent(ctx context.Context, eventID int64) ([]*request.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE event_id = $1 ORDER BY id`

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("参加リクエスト一覧取得に失敗しました: %w", err)
	}
	return toRequests(rows), nil
}

// ExistsActiveByEventAndRequester はキャンセル以外のリクエストが存在するかを返す
func (r *RequestRepository) ExistsActiveByEventAndRequester(ctx context.Context, eventID, requesterID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM requests WHERE event_id = $1 AND requester_id = $2 AND status <> 'CANCELED')`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, eventID, requesterID); err != nil {
		return false, fmt.Errorf("参加リクエスト存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// CountActiveByEvent はキャンセル以外のリクエスト数を返す
func (r *RequestRepository) CountActiveByEvent(ctx context.Context, tx transaction.Tx, eventID int64) (int, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return 0, fmt.Errorf("トランザクションが必要です")
	}
	query := `SELECT COUNT(*) FROM requests WHERE event_id = $1 AND status <> 'CANCELED'`

	var count int
	if err := sqlxTx.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("参加リクエスト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountByEventAndStatus は指定状態のリクエスト数を返す
// 確定数は常にこのライブカウントが正であり、events側の列はキャッシュにすぎない
func (r *RequestRepository) CountByEventAndStatus(ctx context.Context, eventID int64, status request.Status) (int, error) {
	query := `SELECT COUNT(*) FROM requests WHERE event_id = $1 AND status = $2`

	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID, string(status)); err != nil {
		return 0, fmt.Errorf("参加リクエスト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountConfirmedByEvents は複数イベントの確定数をまとめて返す
func (r *RequestRepository) CountConfirmedByEvents(ctx context.Context, eventIDs []int64) (map[int64]int, error) {
	result := make(map[int64]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return result, nil
	}
	query := `
		SELECT event_id, COUNT(*) AS count
		FROM requests
		WHERE event_id = ANY($1) AND status = 'CONFIRMED'
		GROUP BY event_id
	`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(eventIDs))
	if err != nil {
		return nil, fmt.Errorf("確定数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventID int64
		var count int
		if err := rows.Scan(&eventID, &count); err != nil {
			return nil, fmt.Errorf("確定数の読み取りに失敗しました: %w", err)
		}
		result[eventID] = count
	}
	return result, rows.Err()
}

// UpdateStatus はリクエストの状態を更新する
func (r *RequestRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, req *request.Request) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが必要です")
	}
	query := `UPDATE requests SET status = $1 WHERE id = $2`

	result, err := sqlxTx.ExecContext(ctx, query, string(req.Status), req.ID)
	if err != nil {
		return fmt.Errorf("参加リクエスト更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return request.ErrRequestNotFound
	}
	return nil
}

// UpdateStatusBatch は複数リクエストの状態を一括更新する
// 全件更新できない場合はエラーを返す（呼び出し側のロールバックで部分適用を防ぐ）
func (r *RequestRepository) UpdateStatusBatch(ctx context.Context, tx transaction.Tx, ids []int64, status request.Status) error {
	if len(ids) == 0 {
		return nil
	}
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが必要です")
	}
	query := `UPDATE requests SET status = $1 WHERE id = ANY($2)`

	result, err := sqlxTx.ExecContext(ctx, query, string(status), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("参加リクエスト一括更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if int(rowsAffected) != len(ids) {
		return request.ErrRequestNotFound
	}
	return nil
}

var _ request.Repository = (*RequestRepository)(nil)
