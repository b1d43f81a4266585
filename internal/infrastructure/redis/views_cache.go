package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// ViewsCacheInterface は閲覧数キャッシュのインターフェース
type ViewsCacheInterface interface {
	GetViews(ctx context.Context, eventID int64) (int64, error)
	SetViews(ctx context.Context, eventID int64, views int64, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID int64) error
}

// ViewsCache はイベント閲覧数の最終観測値を保持する
// 統計サービスが一時的に利用できない間のフォールバックとして使う
type ViewsCache struct {
	client *redis.Client
}

// NewViewsCache は新しいViewsCacheインスタンスを作成する
func NewViewsCache(client *redis.Client) *ViewsCache {
	return &ViewsCache{client: client}
}

// GetViews はイベントの閲覧数をキャッシュから取得する
func (c *ViewsCache) GetViews(ctx context.Context, eventID int64) (int64, error) {
	val, err := c.client.Get(ctx, c.viewsKey(eventID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetViews はイベントの閲覧数をキャッシュに保存する
func (c *ViewsCache) SetViews(ctx context.Context, eventID int64, views int64, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.viewsKey(eventID), views, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はイベントのキャッシュを無効化する
func (c *ViewsCache) Invalidate(ctx context.Context, eventID int64) error {
	if err := c.client.Del(ctx, c.viewsKey(eventID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *ViewsCache) viewsKey(eventID int64) string {
	return fmt.Sprintf("events:views:%d", eventID)
}

var _ ViewsCacheInterface = (*ViewsCache)(nil)
