package event

import "time"

// State はイベントの状態を表す
type State string

const (
	StatePending   State = "PENDING"
	StatePublished State = "PUBLISHED"
	StateCanceled  State = "CANCELED"
)

const (
	// MinLeadTime はイベント作成・再申請時に必要な開催日時までの最小リードタイム
	MinLeadTime = 2 * time.Hour
	// MinLeadTimeAfterPublish は公開済みイベントの日時変更時に公開日時から必要な最小間隔
	MinLeadTimeAfterPublish = 1 * time.Hour
)

// Location はイベントの開催地点を表す
type Location struct {
	Lat float64
	Lon float64
}

// Event はイベントエンティティを表す
type Event struct {
	ID                int64
	Title             string
	Annotation        string
	Description       string
	CategoryID        int64
	InitiatorID       int64
	Location          Location
	Paid              bool
	ParticipantLimit  int // 0 は無制限
	RequestModeration bool
	CreatedOn         time.Time
	EventDate         time.Time
	PublishedOn       *time.Time
	State             State
}

// NewEvent は新しいイベントをPENDING状態で作成する
// requestModeration が未指定(nil)の場合は true を既定値とする
func NewEvent(initiatorID, categoryID int64, title, annotation, description string, loc Location, paid bool, participantLimit int, requestModeration *bool, eventDate time.Time) *Event {
	moderation := true
	if requestModeration != nil {
		moderation = *requestModeration
	}
	return &Event{
		Title:             title,
		Annotation:        annotation,
		Description:       description,
		CategoryID:        categoryID,
		InitiatorID:       initiatorID,
		Location:          loc,
		Paid:              paid,
		ParticipantLimit:  participantLimit,
		RequestModeration: moderation,
		CreatedOn:         time.Now(),
		EventDate:         eventDate,
		State:             StatePending,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrTitleRequired
	}
	if e.Annotation == "" {
		return ErrAnnotationRequired
	}
	if e.ParticipantLimit < 0 {
		return ErrInvalidParticipantLimit
	}
	if e.EventDate.Before(time.Now().Add(MinLeadTime)) {
		return ErrInvalidEventDate
	}
	return nil
}

// IsPublished はイベントが公開済みかを返す
func (e *Event) IsPublished() bool {
	return e.PublishedOn != nil
}

// RequiresAdmission は参加リクエストにオーナーの承認が必要かを返す
// 事前承認が無効、または上限が無制限の場合は提出時に自動確定される
func (e *Event) RequiresAdmission() bool {
	return e.RequestModeration && e.ParticipantLimit > 0
}

// Publish はイベントを公開する
// PublishedOn は公開時に一度だけ設定され、以後は不変
func (e *Event) Publish() error {
	if e.IsPublished() {
		return ErrAlreadyPublished
	}
	if e.State == StateCanceled {
		return ErrAlreadyCanceled
	}
	now := time.Now()
	e.State = StatePublished
	e.PublishedOn = &now
	return nil
}

// Reject は管理者がイベントを却下する
// 公開済みイベントは却下できない
func (e *Event) Reject() error {
	if e.IsPublished() {
		return ErrAlreadyPublished
	}
	e.State = StateCanceled
	return nil
}

// SendToReview はオーナーがイベントを再申請する
func (e *Event) SendToReview() error {
	if e.IsPublished() {
		return ErrAlreadyPublished
	}
	e.State = StatePending
	return nil
}

// CancelReview はオーナーがイベントを取り下げる
func (e *Event) CancelReview() error {
	if e.IsPublished() {
		return ErrAlreadyPublished
	}
	e.State = StateCanceled
	return nil
}

// RescheduleByAdmin は管理者によるイベント日時変更
// 新しい日時は現在より後、公開済みの場合は公開日時+1時間より後でなければならない
func (e *Event) RescheduleByAdmin(date time.Time) error {
	if date.Before(time.Now()) {
		return ErrInvalidEventDate
	}
	if e.PublishedOn != nil && date.Before(e.PublishedOn.Add(MinLeadTimeAfterPublish)) {
		return ErrInvalidEventDate
	}
	e.EventDate = date
	return nil
}

// RescheduleByInitiator はオーナーによるイベント日時変更
// 公開前のみ到達するパスのため、常に現在+2時間のリードタイムを要求する
func (e *Event) RescheduleByInitiator(date time.Time) error {
	if date.Before(time.Now().Add(MinLeadTime)) {
		return ErrInvalidEventDate
	}
	e.EventDate = date
	return nil
}
