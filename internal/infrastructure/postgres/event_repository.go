package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID                int64      `db:"id"`
	Title             string     `db:"title"`
	Annotation        string     `db:"annotation"`
	Description       *string    `db:"description"`
	CategoryID        int64      `db:"category_id"`
	InitiatorID       int64      `db:"initiator_id"`
	Lat               float64    `db:"lat"`
	Lon               float64    `db:"lon"`
	Paid              bool       `db:"paid"`
	ParticipantLimit  int        `db:"participant_limit"`
	RequestModeration bool       `db:"request_moderation"`
	CreatedOn         time.Time  `db:"created_on"`
	EventDate         time.Time  `db:"event_date"`
	PublishedOn       *time.Time `db:"published_on"`
	State             string     `db:"state"`
}

const eventColumns = `id, title, annotation, description, category_id, initiator_id, lat, lon, paid, participant_limit, request_moderation, created_on, event_date, published_on, state`

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	var desc string
	if r.Description != nil {
		desc = *r.Description
	}
	return &event.Event{
		ID:                r.ID,
		Title:             r.Title,
		Annotation:        r.Annotation,
		Description:       desc,
		CategoryID:        r.CategoryID,
		InitiatorID:       r.InitiatorID,
		Location:          event.Location{Lat: r.Lat, Lon: r.Lon},
		Paid:              r.Paid,
		ParticipantLimit:  r.ParticipantLimit,
		RequestModeration: r.RequestModeration,
		CreatedOn:         r.CreatedOn,
		EventDate:         r.EventDate,
		PublishedOn:       r.PublishedOn,
		State:             event.State(r.State),
	}
}

func toEvents(rows []eventRow) []*event.Event {
	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (title, annotation, description, category_id, initiator_id, lat, lon, paid, participant_limit, request_moderation, created_on, event_date, published_on, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	var desc *string
	if e.Description != "" {
		desc = &e.Description
	}

	err := r.db.QueryRowContext(ctx, query,
		e.Title, e.Annotation, desc, e.CategoryID, e.InitiatorID,
		e.Location.Lat, e.Location.Lon, e.Paid, e.ParticipantLimit, e.RequestModeration,
		e.CreatedOn, e.EventDate, e.PublishedOn, string(e.State),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByIDForUpdate はイベント行を行ロック付きで取得する
// 同一イベントに対する check-then-act の直列化点
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*event.Event, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, fmt.Errorf("トランザクションが必要です")
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	var row eventRow
	err := sqlxTx.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByIDAndInitiator はオーナーのイベントを取得する
func (r *EventRepository) GetByIDAndInitiator(ctx context.Context, id, initiatorID int64) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND initiator_id = $2`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id, initiatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetPublishedByID は公開済みイベントを取得する
func (r *EventRepository) GetPublishedByID(ctx context.Context, id int64) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND published_on IS NOT NULL`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByInitiator はオーナーのイベント一覧を取得する
func (r *EventRepository) GetByInitiator(ctx context.Context, initiatorID int64, from, size int) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE initiator_id = $1 ORDER BY id LIMIT $2 OFFSET $3`

	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, query, initiatorID, size, from)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

// Update はイベントを更新する
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET title = $1, annotation = $2, description = $3, category_id = $4,
		    lat = $5, lon = $6, paid = $7, participant_limit = $8,
		    request_moderation = $9, event_date = $10, published_on = $11, state = $12
		WHERE id = $13
	`
	var desc *string
	if e.Description != "" {
		desc = &e.Description
	}

	result, err := r.db.ExecContext(ctx, query,
		e.Title, e.Annotation, desc, e.CategoryID,
		e.Location.Lat, e.Location.Lon, e.Paid, e.ParticipantLimit,
		e.RequestModeration, e.EventDate, e.PublishedOn, string(e.State), e.ID,
	)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// Search は公開済みイベントをフィルタ条件で検索する
func (r *EventRepository) Search(ctx context.Context, filter event.SearchFilter) ([]*event.Event, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + eventColumns + ` FROM events WHERE state = 'PUBLISHED'`)
	args := make([]interface{}, 0, 8)

	if filter.Text != "" {
		pattern := "%" + filter.Text + "%"
		args = append(args, pattern)
		n := strconv.Itoa(len(args))
		b.WriteString(` AND (annotation ILIKE $` + n + ` OR description ILIKE $` + n + `)`)
	}
	if len(filter.CategoryIDs) > 0 {
		args = append(args, pq.Array(filter.CategoryIDs))
		b.WriteString(` AND category_id = ANY($` + strconv.Itoa(len(args)) + `)`)
	}
	if filter.Paid != nil {
		args = append(args, *filter.Paid)
		b.WriteString(` AND paid = $` + strconv.Itoa(len(args)))
	}
	if filter.RangeStart != nil {
		args = append(args, *filter.RangeStart)
		b.WriteString(` AND event_date > $` + strconv.Itoa(len(args)))
	}
	if filter.RangeEnd != nil {
		args = append(args, *filter.RangeEnd)
		b.WriteString(` AND event_date < $` + strconv.Itoa(len(args)))
	}
	if filter.RangeStart == nil && filter.RangeEnd == nil {
		// 期間未指定の場合はこれから開催されるイベントのみ
		b.WriteString(` AND event_date > NOW()`)
	}
	if filter.OnlyAvailable {
		b.WriteString(` AND (participant_limit = 0 OR confirmed_requests < participant_limit)`)
	}

	if filter.Sort == event.SortByEventDate {
		b.WriteString(` ORDER BY event_date`)
	} else {
		b.WriteString(` ORDER BY id`)
	}

	args = append(args, filter.Size)
	b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	args = append(args, filter.From)
	b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("イベント検索に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

// SearchByAdmin は全イベントを管理者向けフィルタ条件で検索する
func (r *EventRepository) SearchByAdmin(ctx context.Context, filter event.AdminSearchFilter) ([]*event.Event, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + eventColumns + ` FROM events WHERE TRUE`)
	args := make([]interface{}, 0, 6)

	if len(filter.UserIDs) > 0 {
		args = append(args, pq.Array(filter.UserIDs))
		b.WriteString(` AND initiator_id = ANY($` + strconv.Itoa(len(args)) + `)`)
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		args = append(args, pq.Array(states))
		b.WriteString(` AND state = ANY($` + strconv.Itoa(len(args)) + `)`)
	}
	if len(filter.CategoryIDs) > 0 {
		args = append(args, pq.Array(filter.CategoryIDs))
		b.WriteString(` AND category_id = ANY($` + strconv.Itoa(len(args)) + `)`)
	}
	if filter.RangeStart != nil {
		args = append(args, *filter.RangeStart)
		b.WriteString(` AND event_date > $` + strconv.Itoa(len(args)))
	}
	if filter.RangeEnd != nil {
		args = append(args, *filter.RangeEnd)
		b.WriteString(` AND event_date < $` + strconv.Itoa(len(args)))
	}

	b.WriteString(` ORDER BY id`)
	args = append(args, filter.Size)
	b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	args = append(args, filter.From)
	b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("イベント検索に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

// RefreshConfirmedCount はイベントの確定数キャッシュ列を再計算する
// リクエスト行が常に正であり、キャッシュ列は同一トランザクション内でのみ更新される
func (r *EventRepository) RefreshConfirmedCount(ctx context.Context, tx transaction.Tx, eventID int64) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが必要です")
	}
	query := `
		UPDATE events
		SET confirmed_requests = (SELECT COUNT(*) FROM requests WHERE event_id = $1 AND status = 'CONFIRMED')
		WHERE id = $1
	`
	if _, err := sqlxTx.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("確定数キャッシュの更新に失敗しました: %w", err)
	}
	return nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
