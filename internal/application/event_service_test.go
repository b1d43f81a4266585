package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-admission/internal/domain/category"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/stats"
	"github.com/sanosuguru/go-event-admission/internal/domain/user"
)

// MockCategoryRepository implements category.Repository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) GetByID(ctx context.Context, id int64) (*category.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*category.Category), args.Error(1)
}

// MockStatsGateway implements stats.Gateway
type MockStatsGateway struct {
	mock.Mock
}

func (m *MockStatsGateway) RecordHit(ctx context.Context, hit stats.Hit) error {
	args := m.Called(ctx, hit)
	return args.Error(0)
}

func (m *MockStatsGateway) CountViews(ctx context.Context, uri string, start, end time.Time, unique bool) (int64, error) {
	args := m.Called(ctx, uri, start, end, unique)
	return args.Get(0).(int64), args.Error(1)
}

// MockViewsCache implements redisinfra.ViewsCacheInterface
type MockViewsCache struct {
	mock.Mock
}

func (m *MockViewsCache) GetViews(ctx context.Context, eventID int64) (int64, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockViewsCache) SetViews(ctx context.Context, eventID int64, views int64, ttl time.Duration) error {
	args := m.Called(ctx, eventID, views, ttl)
	return args.Error(0)
}

func (m *MockViewsCache) Invalidate(ctx context.Context, eventID int64) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

// captureHitSink は送信されたヒットを記録するだけのスタブ
type captureHitSink struct {
	mu   sync.Mutex
	hits []stats.Hit
}

func (s *captureHitSink) Enqueue(hit stats.Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, hit)
}

func (s *captureHitSink) all() []stats.Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stats.Hit(nil), s.hits...)
}

type eventDeps struct {
	eventRepo    *MockEventRepository
	categoryRepo *MockCategoryRepository
	userRepo     *MockUserRepository
	reqRepo      *MockRequestRepository
	gateway      *MockStatsGateway
	hits         *captureHitSink
	viewsCache   *MockViewsCache
	service      *EventService
}

func newEventDeps() *eventDeps {
	eventRepo := new(MockEventRepository)
	categoryRepo := new(MockCategoryRepository)
	userRepo := new(MockUserRepository)
	reqRepo := new(MockRequestRepository)
	gateway := new(MockStatsGateway)
	hits := &captureHitSink{}
	viewsCache := new(MockViewsCache)

	service := NewEventService(eventRepo, categoryRepo, userRepo, NewLedger(reqRepo), gateway, hits, viewsCache)

	return &eventDeps{
		eventRepo:    eventRepo,
		categoryRepo: categoryRepo,
		userRepo:     userRepo,
		reqRepo:      reqRepo,
		gateway:      gateway,
		hits:         hits,
		viewsCache:   viewsCache,
		service:      service,
	}
}

func validCreateInput() CreateEventInput {
	return CreateEventInput{
		Title:            "Go Conference",
		Annotation:       "annual meetup",
		Description:      "talks and workshops",
		CategoryID:       5,
		Location:         event.Location{Lat: 35.68, Lon: 139.76},
		Paid:             true,
		ParticipantLimit: 100,
		EventDate:        time.Now().Add(72 * time.Hour),
	}
}

// === CreateEvent ===

func TestEventService_CreateEvent_Success(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	deps.userRepo.On("GetByID", ctx, int64(100)).Return(&user.User{ID: 100}, nil)
	deps.categoryRepo.On("GetByID", ctx, int64(5)).Return(&category.Category{ID: 5}, nil)
	deps.eventRepo.On("Create", ctx, mock.AnythingOfType("*event.Event")).Return(nil)

	e, err := deps.service.CreateEvent(ctx, 100, validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, event.StatePending, e.State)
	assert.True(t, e.RequestModeration, "承認モードが未指定なら既定は true")
	assert.Equal(t, int64(100), e.InitiatorID)
}

func TestEventService_CreateEvent_CategoryNotFound(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	deps.userRepo.On("GetByID", ctx, int64(100)).Return(&user.User{ID: 100}, nil)
	deps.categoryRepo.On("GetByID", ctx, int64(5)).Return(nil, category.ErrCategoryNotFound)

	_, err := deps.service.CreateEvent(ctx, 100, validCreateInput())
	assert.ErrorIs(t, err, category.ErrCategoryNotFound)
}

func TestEventService_CreateEvent_DateTooSoon(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	deps.userRepo.On("GetByID", ctx, int64(100)).Return(&user.User{ID: 100}, nil)
	deps.categoryRepo.On("GetByID", ctx, int64(5)).Return(&category.Category{ID: 5}, nil)

	input := validCreateInput()
	input.EventDate = time.Now().Add(time.Hour)
	_, err := deps.service.CreateEvent(ctx, 100, input)
	assert.ErrorIs(t, err, event.ErrInvalidEventDate)
	deps.eventRepo.AssertNotCalled(t, "Create", ctx, mock.Anything)
}

// === UpdateEventByAdmin ===

func TestEventService_UpdateEventByAdmin_Publish(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	e := &event.Event{ID: 1, Title: "t", Annotation: "a", State: event.StatePending, EventDate: time.Now().Add(72 * time.Hour)}
	deps.eventRepo.On("GetByID", ctx, int64(1)).Return(e, nil)
	deps.eventRepo.On("Update", ctx, e).Return(nil)

	got, err := deps.service.UpdateEventByAdmin(ctx, 1, UpdateEventInput{StateAction: ActionPublishEvent})
	require.NoError(t, err)
	assert.Equal(t, event.StatePublished, got.State)
	require.NotNil(t, got.PublishedOn)
}

func TestEventService_UpdateEventByAdmin_PublishTwice(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	now := time.Now()
	e := &event.Event{ID: 1, Title: "t", Annotation: "a", State: event.StatePublished, PublishedOn: &now}
	deps.eventRepo.On("GetByID", ctx, int64(1)).Return(e, nil)

	_, err := deps.service.UpdateEventByAdmin(ctx, 1, UpdateEventInput{StateAction: ActionPublishEvent})
	assert.ErrorIs(t, err, event.ErrAlreadyPublished)
	// 公開日時は最初の公開から変わらない
	assert.Equal(t, now, *e.PublishedOn)
}

func TestEventService_UpdateEventByAdmin_PublishCanceled(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	e := &event.Event{ID: 1, Title: "t", Annotation: "a", State: event.StateCanceled}
	deps.eventRepo.On("GetByID", ctx, int64(1)).Return(e, nil)

	_, err := deps.service.UpdateEventByAdmin(ctx, 1, UpdateEventInput{StateAction: ActionPublishEvent})
	assert.ErrorIs(t, err, event.ErrAlreadyCanceled)
}

func TestEventService_UpdateEventByAdmin_RejectPublished(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	now := time.Now()
	e := &event.Event{ID: 1, Title: "t", Annotation: "a", State: event.StatePublished, PublishedOn: &now}
	deps.eventRepo.On("GetByID", ctx, int64(1)).Return(e, nil)

	_, err := deps.service.UpdateEventByAdmin(ctx, 1, UpdateEventInput{StateAction: ActionRejectEvent})
	assert.ErrorIs(t, err, event.ErrAlreadyPublished)
}

func TestEventService_UpdateEventByAdmin_RescheduleAfterPublish(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	now := time.Now()
	e := &event.Event{ID: 1, Title: "t", Annotation: "a", State: event.StatePublished, PublishedOn: &now}
	deps.eventRepo.On("GetByID", ctx, int64(1)).Return(e, nil)

	// 公開日時+1時間より前への変更は拒否される
	tooSoon := now.Add(30 * time.Minute)
	_, err := deps.service.UpdateEventByAdmin(ctx, 1, UpdateEventInput{EventDate: &tooSoon})
	assert.ErrorIs(t, err, event.ErrInvalidEventDate)
}

// === UpdateEventByUser ===

func TestEventService_UpdateEventByUser_PublishedIsImmutable(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	now := time.Now()
	e := &event.Event{ID: 1, InitiatorID: 100, Title: "t", Annotation: "a", State: event.StatePublished, PublishedOn: &now}
	deps.eventRepo.On("GetByIDAndInitiator", ctx, int64(1), int64(100)).Return(e, nil)

	title := "new title"
	_, err := deps.service.UpdateEventByUser(ctx, 100, 1, UpdateEventInput{Title: &title})
	assert.ErrorIs(t, err, event.ErrAlreadyPublished)
	deps.eventRepo.AssertNotCalled(t, "Update", ctx, e)
}

func TestEventService_UpdateEventByUser_CancelReview(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	e := &event.Event{ID: 1, InitiatorID: 100, Title: "t", Annotation: "a", State: event.StatePending}
	deps.eventRepo.On("GetByIDAndInitiator", ctx, int64(1), int64(100)).Return(e, nil)
	deps.eventRepo.On("Update", ctx, e).Return(nil)

	got, err := deps.service.UpdateEventByUser(ctx, 100, 1, UpdateEventInput{StateAction: ActionCancelReview})
	require.NoError(t, err)
	assert.Equal(t, event.StateCanceled, got.State)
}

func TestEventService_UpdateEventByUser_SendToReview(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	e := &event.Event{ID: 1, InitiatorID: 100, Title: "t", Annotation: "a", State: event.StateCanceled}
	deps.eventRepo.On("GetByIDAndInitiator", ctx, int64(1), int64(100)).Return(e, nil)
	deps.eventRepo.On("Update", ctx, e).Return(nil)

	got, err := deps.service.UpdateEventByUser(ctx, 100, 1, UpdateEventInput{StateAction: ActionSendToReview})
	require.NoError(t, err)
	assert.Equal(t, event.StatePending, got.State)
}

func TestEventService_UpdateEventByUser_DateTooSoon(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	e := &event.Event{ID: 1, InitiatorID: 100, Title: "t", Annotation: "a", State: event.StatePending}
	deps.eventRepo.On("GetByIDAndInitiator", ctx, int64(1), int64(100)).Return(e, nil)

	tooSoon := time.Now().Add(time.Hour)
	_, err := deps.service.UpdateEventByUser(ctx, 100, 1, UpdateEventInput{EventDate: &tooSoon})
	assert.ErrorIs(t, err, event.ErrInvalidEventDate)
}

func TestEventService_UpdateEventByUser_NotOwn(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByIDAndInitiator", ctx, int64(1), int64(999)).Return(nil, event.ErrEventNotFound)

	_, err := deps.service.UpdateEventByUser(ctx, 999, 1, UpdateEventInput{})
	assert.ErrorIs(t, err, event.ErrEventNotFound)
}

// === Reads ===

func TestEventService_GetPublishedEvent_RecordsHitAndDecorates(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	now := time.Now()
	e := &event.Event{ID: 1, Title: "t", Annotation: "a", State: event.StatePublished, PublishedOn: &now}
	deps.eventRepo.On("GetPublishedByID", ctx, int64(1)).Return(e, nil)
	deps.reqRepo.On("CountByEventAndStatus", ctx, int64(1), mock.Anything).Return(7, nil)
	deps.gateway.On("CountViews", ctx, "/events/1", mock.Anything, mock.Anything, true).Return(int64(42), nil)
	deps.viewsCache.On("SetViews", ctx, int64(1), int64(42), mock.Anything).Return(nil)

	view, err := deps.service.GetPublishedEvent(ctx, 1, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 7, view.ConfirmedRequests)
	assert.Equal(t, int64(42), view.Views)

	hits := deps.hits.all()
	require.Len(t, hits, 1)
	assert.Equal(t, "/events/1", hits[0].URI)
	assert.Equal(t, "192.0.2.1", hits[0].IP)
	assert.Equal(t, stats.AppName, hits[0].App)
}

func TestEventService_GetPublishedEvent_GatewayDownFallsBackToCache(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	now := time.Now()
	e := &event.Event{ID: 1, Title: "t", Annotation: "a", State: event.StatePublished, PublishedOn: &now}
	deps.eventRepo.On("GetPublishedByID", ctx, int64(1)).Return(e, nil)
	deps.reqRepo.On("CountByEventAndStatus", ctx, int64(1), mock.Anything).Return(0, nil)
	deps.gateway.On("CountViews", ctx, "/events/1", mock.Anything, mock.Anything, true).
		Return(int64(0), assert.AnError)
	deps.viewsCache.On("GetViews", ctx, int64(1)).Return(int64(35), nil)

	// 統計サービスの障害は本処理を失敗させない
	view, err := deps.service.GetPublishedEvent(ctx, 1, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, int64(35), view.Views)
}

func TestEventService_SearchPublished_InvalidRange(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	start := time.Now().Add(48 * time.Hour)
	end := time.Now()
	_, err := deps.service.SearchPublished(ctx, event.SearchFilter{RangeStart: &start, RangeEnd: &end}, "192.0.2.1")
	assert.ErrorIs(t, err, event.ErrInvalidDateRange)
}

func TestEventService_SearchPublished_SortByViews(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	now := time.Now()
	events := []*event.Event{
		{ID: 1, Title: "t1", Annotation: "a", State: event.StatePublished, PublishedOn: &now},
		{ID: 2, Title: "t2", Annotation: "a", State: event.StatePublished, PublishedOn: &now},
	}
	deps.eventRepo.On("Search", ctx, mock.AnythingOfType("event.SearchFilter")).Return(events, nil)
	deps.reqRepo.On("CountConfirmedByEvents", ctx, []int64{1, 2}).Return(map[int64]int{1: 3}, nil)
	deps.gateway.On("CountViews", ctx, "/events/1", mock.Anything, mock.Anything, true).Return(int64(5), nil)
	deps.gateway.On("CountViews", ctx, "/events/2", mock.Anything, mock.Anything, true).Return(int64(50), nil)
	deps.viewsCache.On("SetViews", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	views, err := deps.service.SearchPublished(ctx, event.SearchFilter{Sort: event.SortByViews}, "192.0.2.1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(2), views[0].Event.ID, "閲覧数の多い順に並ぶ")
	assert.Equal(t, int64(1), views[1].Event.ID)
	assert.Equal(t, 3, views[1].ConfirmedRequests)
	assert.Equal(t, 0, views[0].ConfirmedRequests)

	// 一覧アクセス1件 + イベントごとに1件
	hits := deps.hits.all()
	assert.Len(t, hits, 3)
	assert.Equal(t, "/events", hits[0].URI)
}

func TestEventService_GetOwnEvents(t *testing.T) {
	deps := newEventDeps()
	ctx := context.Background()

	events := []*event.Event{{ID: 1, InitiatorID: 100, Title: "t", Annotation: "a", State: event.StatePending}}
	deps.eventRepo.On("GetByInitiator", ctx, int64(100), 0, 10).Return(events, nil)
	deps.reqRepo.On("CountConfirmedByEvents", ctx, []int64{1}).Return(map[int64]int{}, nil)
	deps.gateway.On("CountViews", ctx, "/events/1", mock.Anything, mock.Anything, true).Return(int64(0), nil)
	deps.viewsCache.On("SetViews", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	views, err := deps.service.GetOwnEvents(ctx, 100, -1, 0)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}
