package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/config"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/request"
	"github.com/sanosuguru/go-event-admission/internal/domain/transaction"
	"github.com/sanosuguru/go-event-admission/internal/domain/user"
	redisinfra "github.com/sanosuguru/go-event-admission/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-admission/internal/pkg/metrics"
)

// AdmissionService は参加リクエストの提出・キャンセル・一括決定を行う
// 同一イベントへの check-then-act は分散ロックとイベント行の行ロックで直列化する
type AdmissionService struct {
	txManager   transaction.Manager
	requestRepo request.Repository
	eventRepo   event.Repository
	userRepo    user.Repository
	lockManager redisinfra.LockManagerInterface
	lockCfg     config.LockConfig
	metrics     *metrics.Metrics
}

func NewAdmissionService(
	txManager transaction.Manager,
	requestRepo request.Repository,
	eventRepo event.Repository,
	userRepo user.Repository,
	lockManager redisinfra.LockManagerInterface,
	lockCfg config.LockConfig,
	m *metrics.Metrics,
) *AdmissionService {
	return &AdmissionService{
		txManager:   txManager,
		requestRepo: requestRepo,
		eventRepo:   eventRepo,
		userRepo:    userRepo,
		lockManager: lockManager,
		lockCfg:     lockCfg,
		metrics:     m,
	}
}

// DecisionResult は一括決定の結果
type DecisionResult struct {
	Confirmed []*request.Request
	Rejected  []*request.Request
}

// SubmitRequest はイベントへの参加リクエストを提出する
// 事前承認が無効または上限が無制限の場合は提出時に自動確定される
func (s *AdmissionService) SubmitRequest(ctx context.Context, userID, eventID int64) (*request.Request, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	lock, err := s.acquireEventLock(ctx, eventID)
	if err != nil {
		s.countAdmission("error")
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	ev, err := s.eventRepo.GetByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	exists, err := s.requestRepo.ExistsActiveByEventAndRequester(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("重複チェックに失敗しました: %w", err)
	}
	if exists {
		s.countAdmission("duplicate")
		return nil, request.ErrDuplicateRequest
	}
	if ev.InitiatorID == userID {
		return nil, request.ErrSelfRegistration
	}
	if !ev.IsPublished() {
		return nil, event.ErrNotPublished
	}
	if ev.ParticipantLimit > 0 {
		active, err := s.requestRepo.CountActiveByEvent(ctx, tx, eventID)
		if err != nil {
			return nil, fmt.Errorf("参加数の取得に失敗しました: %w", err)
		}
		if active >= ev.ParticipantLimit {
			s.countAdmission("limit")
			return nil, request.ErrParticipantLimit
		}
	}

	status := request.StatusPending
	if !ev.RequestModeration || ev.ParticipantLimit == 0 {
		status = request.StatusConfirmed
	}

	req := request.NewRequest(eventID, userID, status)
	if err := s.requestRepo.Create(ctx, tx, req); err != nil {
		if errors.Is(err, request.ErrDuplicateRequest) {
			s.countAdmission("duplicate")
		}
		return nil, err
	}
	if status == request.StatusConfirmed {
		if err := s.eventRepo.RefreshConfirmedCount(ctx, tx, eventID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	if status == request.StatusConfirmed {
		s.countAdmission("confirmed")
	} else {
		s.countAdmission("pending")
	}
	return req, nil
}

// CancelOwnRequest は申請者本人がリクエストをキャンセルする
func (s *AdmissionService) CancelOwnRequest(ctx context.Context, userID, requestID int64) (*request.Request, error) {
	req, err := s.requestRepo.GetByRequesterAndID(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}
	wasConfirmed := req.IsConfirmed()
	if err := req.Cancel(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.requestRepo.UpdateStatus(ctx, tx, req); err != nil {
		return nil, err
	}
	// 確定済み枠の解放は確定数キャッシュに即時反映する
	if wasConfirmed {
		if err := s.eventRepo.RefreshConfirmedCount(ctx, tx, req.EventID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return req, nil
}

// DecideRequests はオーナーが保留中リクエストを一括で確定・却下する
// 適用は全件成功か全件失敗のどちらかで、部分適用はしない
func (s *AdmissionService) DecideRequests(ctx context.Context, ownerID, eventID int64, status request.Status, requestIDs []int64) (*DecisionResult, error) {
	if status != request.StatusConfirmed && status != request.StatusRejected {
		return nil, request.ErrInvalidDecision
	}

	lock, err := s.acquireEventLock(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	ev, err := s.eventRepo.GetByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.InitiatorID != ownerID {
		return nil, event.ErrEventNotFound
	}

	// 承認不要のイベントは決定対象がなく、何も書き込まない
	if !ev.RequiresAdmission() {
		return &DecisionResult{}, nil
	}

	all, err := s.requestRepo.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("リクエスト一覧の取得に失敗しました: %w", err)
	}
	idSet := make(map[int64]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		idSet[id] = struct{}{}
	}
	var selected []*request.Request
	var pending []*request.Request
	for _, r := range all {
		if _, ok := idSet[r.ID]; !ok {
			continue
		}
		selected = append(selected, r)
		if r.Status == request.StatusPending {
			pending = append(pending, r)
		}
	}

	if status == request.StatusRejected {
		for _, r := range selected {
			if r.IsConfirmed() {
				return nil, request.ErrRequestAlreadyConfirmed
			}
		}
	} else {
		confirmed, err := s.requestRepo.CountByEventAndStatus(ctx, eventID, request.StatusConfirmed)
		if err != nil {
			return nil, fmt.Errorf("確定数の取得に失敗しました: %w", err)
		}
		// 境界値は許可する（確定数 + 今回分 == 上限 は成功）
		if confirmed+len(pending) > ev.ParticipantLimit {
			return nil, request.ErrParticipantLimit
		}
	}

	if len(pending) > 0 {
		ids := make([]int64, len(pending))
		for i, r := range pending {
			ids[i] = r.ID
		}
		if err := s.requestRepo.UpdateStatusBatch(ctx, tx, ids, status); err != nil {
			return nil, err
		}
		if status == request.StatusConfirmed {
			if err := s.eventRepo.RefreshConfirmedCount(ctx, tx, eventID); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	result := &DecisionResult{}
	for _, r := range pending {
		r.Status = status
	}
	if status == request.StatusConfirmed {
		result.Confirmed = pending
	} else {
		result.Rejected = pending
	}
	if s.metrics != nil && len(pending) > 0 {
		s.metrics.DecisionsTotal.WithLabelValues(string(status)).Add(float64(len(pending)))
	}
	return result, nil
}

// GetEventRequests はオーナーが自分のイベントへのリクエスト一覧を取得する
func (s *AdmissionService) GetEventRequests(ctx context.Context, ownerID, eventID int64) ([]*request.Request, error) {
	if _, err := s.eventRepo.GetByIDAndInitiator(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	return s.requestRepo.GetByEvent(ctx, eventID)
}

// GetUserRequests は申請者が自分のリクエスト一覧を取得する
func (s *AdmissionService) GetUserRequests(ctx context.Context, userID int64) ([]*request.Request, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.requestRepo.GetByRequester(ctx, userID)
}

// acquireEventLock はイベント単位の分散ロックを取得する
// 取得できない場合はリトライ可能な ErrEventBusy を返す
func (s *AdmissionService) acquireEventLock(ctx context.Context, eventID int64) (redisinfra.Lock, error) {
	if s.lockManager == nil {
		return nil, nil
	}
	start := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, eventLockKey(eventID),
		s.lockCfg.TTL, s.lockCfg.MaxRetries, s.lockCfg.RetryInterval)
	if s.metrics != nil {
		result := "success"
		if err != nil {
			result = "failed"
		}
		s.metrics.DistributedLockDuration.WithLabelValues("acquire", result).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, request.ErrEventBusy
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	return lock, nil
}

func (s *AdmissionService) countAdmission(result string) {
	if s.metrics != nil {
		s.metrics.AdmissionsTotal.WithLabelValues(result).Inc()
	}
}

func eventLockKey(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}
