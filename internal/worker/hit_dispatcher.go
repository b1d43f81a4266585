package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-admission/internal/domain/stats"
	"github.com/sanosuguru/go-event-admission/internal/pkg/logger"
)

// sendTimeout は1件あたりの送信タイムアウト
const sendTimeout = 3 * time.Second

// HitDispatcher は閲覧ヒットを統計サービスへ非同期送信するワーカー
// 送信はベストエフォートで、バッファが満杯の場合はヒットを破棄する
type HitDispatcher struct {
	gateway stats.Gateway
	buffer  chan stats.Hit
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHitDispatcher は新しいディスパッチャを作成
func NewHitDispatcher(gateway stats.Gateway, bufferSize int) *HitDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &HitDispatcher{
		gateway: gateway,
		buffer:  make(chan stats.Hit, bufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Enqueue はヒットをバッファに積む
// バッファが満杯の場合はブロックせずに破棄する
func (d *HitDispatcher) Enqueue(hit stats.Hit) {
	select {
	case d.buffer <- hit:
	default:
		logger.Warn("ヒットバッファが満杯のため破棄", zap.String("uri", hit.URI))
	}
}

// Start はディスパッチャを開始
func (d *HitDispatcher) Start(ctx context.Context) {
	logger.Info("ヒットディスパッチャ開始", zap.Int("buffer_size", cap(d.buffer)))

	defer close(d.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("ヒットディスパッチャ停止（コンテキストキャンセル）")
			return
		case <-d.stopCh:
			d.drain()
			logger.Info("ヒットディスパッチャ停止（シグナル受信）")
			return
		case hit := <-d.buffer:
			d.send(hit)
		}
	}
}

// Stop はディスパッチャを停止する
// バッファに残ったヒットは送信してから終了する
func (d *HitDispatcher) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

// drain は停止時にバッファの残りを送信する
func (d *HitDispatcher) drain() {
	for {
		select {
		case hit := <-d.buffer:
			d.send(hit)
		default:
			return
		}
	}
}

// send はヒットを1件送信する
// 失敗はログに残すのみで、リトライしない
func (d *HitDispatcher) send(hit stats.Hit) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.gateway.RecordHit(ctx, hit); err != nil {
		logger.Error("ヒット送信に失敗", zap.String("uri", hit.URI), zap.Error(err))
	}
}
