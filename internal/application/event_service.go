package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/domain/category"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/stats"
	"github.com/sanosuguru/go-event-admission/internal/domain/user"
	redisinfra "github.com/sanosuguru/go-event-admission/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
	"go.uber.org/zap"
)

// 状態遷移アクション
const (
	ActionPublishEvent = "PUBLISH_EVENT"
	ActionRejectEvent  = "REJECT_EVENT"
	ActionSendToReview = "SEND_TO_REVIEW"
	ActionCancelReview = "CANCEL_REVIEW"
)

// viewsCacheTTL は統計サービス障害時のフォールバック用キャッシュの寿命
const viewsCacheTTL = 10 * time.Minute

// HitSink は閲覧ヒットの送信先
// 送信は非同期・ベストエフォートで、主処理をブロックしない
type HitSink interface {
	Enqueue(hit stats.Hit)
}

// EventView は閲覧数と確定参加数を付与したイベント
type EventView struct {
	Event             *event.Event
	ConfirmedRequests int
	Views             int64
}

type EventService struct {
	eventRepo    event.Repository
	categoryRepo category.Repository
	userRepo     user.Repository
	ledger       *Ledger
	gateway      stats.Gateway
	hits         HitSink
	viewsCache   redisinfra.ViewsCacheInterface
}

func NewEventService(
	eventRepo event.Repository,
	categoryRepo category.Repository,
	userRepo user.Repository,
	ledger *Ledger,
	gateway stats.Gateway,
	hits HitSink,
	viewsCache redisinfra.ViewsCacheInterface,
) *EventService {
	return &EventService{
		eventRepo:    eventRepo,
		categoryRepo: categoryRepo,
		userRepo:     userRepo,
		ledger:       ledger,
		gateway:      gateway,
		hits:         hits,
		viewsCache:   viewsCache,
	}
}

type CreateEventInput struct {
	Title             string
	Annotation        string
	Description       string
	CategoryID        int64
	Location          event.Location
	Paid              bool
	ParticipantLimit  int
	RequestModeration *bool
	EventDate         time.Time
}

// UpdateEventInput は部分更新の入力
// nil のフィールドは変更しない
type UpdateEventInput struct {
	Title             *string
	Annotation        *string
	Description       *string
	CategoryID        *int64
	Location          *event.Location
	Paid              *bool
	ParticipantLimit  *int
	RequestModeration *bool
	EventDate         *time.Time
	StateAction       string
}

func (s *EventService) CreateEvent(ctx context.Context, userID int64, input CreateEventInput) (*event.Event, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.categoryRepo.GetByID(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	e := event.NewEvent(userID, input.CategoryID, input.Title, input.Annotation, input.Description,
		input.Location, input.Paid, input.ParticipantLimit, input.RequestModeration, input.EventDate)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

// UpdateEventByAdmin は管理者によるイベント更新（部分更新と公開・却下）
func (s *EventService) UpdateEventByAdmin(ctx context.Context, eventID int64, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := s.applyPatch(ctx, e, input); err != nil {
		return nil, err
	}
	if input.EventDate != nil {
		if err := e.RescheduleByAdmin(*input.EventDate); err != nil {
			return nil, err
		}
	}

	switch input.StateAction {
	case ActionPublishEvent:
		if err := e.Publish(); err != nil {
			return nil, err
		}
	case ActionRejectEvent:
		if err := e.Reject(); err != nil {
			return nil, err
		}
	}

	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	return e, nil
}

// UpdateEventByUser はオーナーによるイベント更新（部分更新と再申請・取り下げ）
// 公開済みイベントはオーナーからは一切変更できない
func (s *EventService) UpdateEventByUser(ctx context.Context, userID, eventID int64, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByIDAndInitiator(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if e.IsPublished() {
		return nil, event.ErrAlreadyPublished
	}

	if err := s.applyPatch(ctx, e, input); err != nil {
		return nil, err
	}
	if input.EventDate != nil {
		if err := e.RescheduleByInitiator(*input.EventDate); err != nil {
			return nil, err
		}
	}

	switch input.StateAction {
	case ActionSendToReview:
		if err := e.SendToReview(); err != nil {
			return nil, err
		}
	case ActionCancelReview:
		if err := e.CancelReview(); err != nil {
			return nil, err
		}
	}

	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) applyPatch(ctx context.Context, e *event.Event, input UpdateEventInput) error {
	if input.Title != nil {
		e.Title = *input.Title
	}
	if input.Annotation != nil {
		e.Annotation = *input.Annotation
	}
	if input.Description != nil {
		e.Description = *input.Description
	}
	if input.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *input.CategoryID); err != nil {
			return err
		}
		e.CategoryID = *input.CategoryID
	}
	if input.Location != nil {
		e.Location = *input.Location
	}
	if input.Paid != nil {
		e.Paid = *input.Paid
	}
	if input.ParticipantLimit != nil {
		if *input.ParticipantLimit < 0 {
			return event.ErrInvalidParticipantLimit
		}
		e.ParticipantLimit = *input.ParticipantLimit
	}
	if input.RequestModeration != nil {
		e.RequestModeration = *input.RequestModeration
	}
	if e.Title == "" {
		return event.ErrTitleRequired
	}
	if e.Annotation == "" {
		return event.ErrAnnotationRequired
	}
	return nil
}

func (s *EventService) GetOwnEvents(ctx context.Context, userID int64, from, size int) ([]*EventView, error) {
	from, size = normalizePage(from, size)
	events, err := s.eventRepo.GetByInitiator(ctx, userID, from, size)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	return s.decorate(ctx, events)
}

func (s *EventService) GetOwnEvent(ctx context.Context, userID, eventID int64) (*EventView, error) {
	e, err := s.eventRepo.GetByIDAndInitiator(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	return s.decorateOne(ctx, e)
}

// GetPublishedEvent は公開済みイベントを取得し、閲覧を記録する
// 閲覧記録と閲覧数取得はベストエフォートで、失敗しても本処理は成功する
func (s *EventService) GetPublishedEvent(ctx context.Context, eventID int64, clientIP string) (*EventView, error) {
	e, err := s.eventRepo.GetPublishedByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	s.recordHit(eventURI(eventID), clientIP)
	return s.decorateOne(ctx, e)
}

// SearchPublished は公開済みイベントを検索する
// 一覧アクセス1件と、結果の各イベントに1件ずつ閲覧を記録する
func (s *EventService) SearchPublished(ctx context.Context, filter event.SearchFilter, clientIP string) ([]*EventView, error) {
	if filter.RangeStart != nil && filter.RangeEnd != nil && filter.RangeStart.After(*filter.RangeEnd) {
		return nil, event.ErrInvalidDateRange
	}
	filter.From, filter.Size = normalizePage(filter.From, filter.Size)
	events, err := s.eventRepo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("イベント検索に失敗しました: %w", err)
	}

	s.recordHit("/events", clientIP)
	for _, e := range events {
		s.recordHit(eventURI(e.ID), clientIP)
	}

	views, err := s.decorate(ctx, events)
	if err != nil {
		return nil, err
	}
	if filter.Sort == event.SortByViews {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Views > views[j].Views
		})
	}
	return views, nil
}

func (s *EventService) SearchByAdmin(ctx context.Context, filter event.AdminSearchFilter) ([]*EventView, error) {
	if filter.RangeStart != nil && filter.RangeEnd != nil && filter.RangeStart.After(*filter.RangeEnd) {
		return nil, event.ErrInvalidDateRange
	}
	filter.From, filter.Size = normalizePage(filter.From, filter.Size)
	events, err := s.eventRepo.SearchByAdmin(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("イベント検索に失敗しました: %w", err)
	}
	return s.decorate(ctx, events)
}

func (s *EventService) recordHit(uri, clientIP string) {
	if s.hits == nil {
		return
	}
	s.hits.Enqueue(stats.Hit{
		App:       stats.AppName,
		URI:       uri,
		IP:        clientIP,
		Timestamp: time.Now(),
	})
}

func (s *EventService) decorateOne(ctx context.Context, e *event.Event) (*EventView, error) {
	confirmed, err := s.ledger.ConfirmedCount(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	return &EventView{
		Event:             e,
		ConfirmedRequests: confirmed,
		Views:             s.viewsOf(ctx, e),
	}, nil
}

func (s *EventService) decorate(ctx context.Context, events []*event.Event) ([]*EventView, error) {
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	counts, err := s.ledger.ConfirmedCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]*EventView, len(events))
	for i, e := range events {
		views[i] = &EventView{
			Event:             e,
			ConfirmedRequests: counts[e.ID],
			Views:             s.viewsOf(ctx, e),
		}
	}
	return views, nil
}

// viewsOf は統計サービスから閲覧数を取得する
// 統計サービスが落ちている場合はキャッシュ済みの最終値、なければ0を返す
func (s *EventService) viewsOf(ctx context.Context, e *event.Event) int64 {
	if s.gateway == nil {
		return 0
	}
	start := e.CreatedOn
	if e.PublishedOn != nil {
		start = *e.PublishedOn
	}
	views, err := s.gateway.CountViews(ctx, eventURI(e.ID), start, time.Now(), true)
	if err != nil {
		logger.Warn("閲覧数の取得に失敗、キャッシュ値にフォールバックします",
			zap.Int64("event_id", e.ID), zap.Error(err))
		if s.viewsCache != nil {
			if cached, cerr := s.viewsCache.GetViews(ctx, e.ID); cerr == nil {
				return cached
			}
		}
		return 0
	}
	if s.viewsCache != nil {
		if cerr := s.viewsCache.SetViews(ctx, e.ID, views, viewsCacheTTL); cerr != nil {
			logger.Debug("閲覧数キャッシュの更新に失敗", zap.Error(cerr))
		}
	}
	return views
}

func eventURI(eventID int64) string {
	return fmt.Sprintf("/events/%d", eventID)
}

func normalizePage(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	if size <= 0 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return from, size
}
