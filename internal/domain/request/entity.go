package request

import "time"

// Status は参加リクエストの状態を表す
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
	StatusCanceled  Status = "CANCELED"
)

// Request はイベントへの参加リクエストを表す
// イベントとユーザーを結ぶ関係エンティティで、作成後の変更は
// 承認エンジン（一括確定・却下）と申請者本人のキャンセルのみ
type Request struct {
	ID          int64
	EventID     int64
	RequesterID int64
	Created     time.Time
	Status      Status
}

// NewRequest は新しい参加リクエストを作成する
func NewRequest(eventID, requesterID int64, status Status) *Request {
	return &Request{
		EventID:     eventID,
		RequesterID: requesterID,
		Created:     time.Now(),
		Status:      status,
	}
}

// IsActive はキャンセルされていないリクエストかを返す
func (r *Request) IsActive() bool {
	return r.Status != StatusCanceled
}

// IsConfirmed はリクエストが確定済みかを返す
func (r *Request) IsConfirmed() bool {
	return r.Status == StatusConfirmed
}

// Cancel は申請者本人がリクエストをキャンセルする
func (r *Request) Cancel() error {
	if r.Status == StatusCanceled {
		return ErrRequestAlreadyCanceled
	}
	r.Status = StatusCanceled
	return nil
}
