package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sanosuguru/go-event-admission/internal/domain/stats"
)

// TimeLayout は統計サービスとの間で使う日時フォーマット
const TimeLayout = "2006-01-02 15:04:05"

// Client は閲覧統計サービスのHTTPクライアント
// 標準ライブラリの net/http のみで構成する薄いゲートウェイ実装
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient は統計サービスクライアントを作成する
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type hitDto struct {
	IP        string `json:"ip"`
	App       string `json:"app"`
	URI       string `json:"uri"`
	Timestamp string `json:"timestamp"`
}

type viewStatsDto struct {
	App  string `json:"app"`
	URI  string `json:"uri"`
	Hits int64  `json:"hits"`
}

// RecordHit はアクセスを1件記録する
func (c *Client) RecordHit(ctx context.Context, hit stats.Hit) error {
	body, err := json.Marshal(hitDto{
		IP:        hit.IP,
		App:       hit.App,
		URI:       hit.URI,
		Timestamp: hit.Timestamp.Format(TimeLayout),
	})
	if err != nil {
		return fmt.Errorf("ヒットのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hit", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ヒット送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ヒット送信に失敗しました: status=%d", resp.StatusCode)
	}
	return nil
}

// CountViews は期間内のURIへのアクセス数を返す
func (c *Client) CountViews(ctx context.Context, uri string, start, end time.Time, unique bool) (int64, error) {
	params := url.Values{}
	params.Set("start", start.Format(TimeLayout))
	params.Set("end", end.Format(TimeLayout))
	params.Add("uris", uri)
	params.Set("unique", fmt.Sprintf("%t", unique))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("統計取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("統計取得に失敗しました: status=%d", resp.StatusCode)
	}

	var result []viewStatsDto
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("統計のデコードに失敗しました: %w", err)
	}
	// 単一URIで問い合わせるため、結果は0件か1件
	if len(result) == 1 {
		return result[0].Hits, nil
	}
	return 0, nil
}

var _ stats.Gateway = (*Client)(nil)
