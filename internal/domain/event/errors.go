package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound           = errors.New("イベントが見つかりません")
	ErrTitleRequired           = errors.New("イベントタイトルは必須です")
	ErrAnnotationRequired      = errors.New("イベント概要は必須です")
	ErrInvalidParticipantLimit = errors.New("参加者上限は0以上である必要があります")
	ErrInvalidEventDate        = errors.New("開催日時が近すぎます")
	ErrAlreadyPublished        = errors.New("イベントは既に公開されています")
	ErrAlreadyCanceled         = errors.New("イベントは既にキャンセルされています")
	ErrNotPublished            = errors.New("イベントはまだ公開されていません")
	ErrInvalidDateRange        = errors.New("検索期間の開始は終了より前である必要があります")
)
