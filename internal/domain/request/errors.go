package request

import "errors"

// Request ドメインのエラー定義
var (
	ErrRequestNotFound         = errors.New("参加リクエストが見つかりません")
	ErrDuplicateRequest        = errors.New("参加リクエストは既に存在します")
	ErrSelfRegistration        = errors.New("イベントのオーナーは自分のイベントに参加リクエストを送れません")
	ErrParticipantLimit        = errors.New("参加者上限に達しています")
	ErrRequestAlreadyConfirmed = errors.New("参加リクエストは既に確定されています")
	ErrRequestAlreadyCanceled  = errors.New("参加リクエストは既にキャンセルされています")
	ErrInvalidDecision         = errors.New("一括決定の状態はCONFIRMEDまたはREJECTEDのみ指定できます")
	ErrEventBusy               = errors.New("イベントが他のリクエストを処理中です。再試行してください")
)
