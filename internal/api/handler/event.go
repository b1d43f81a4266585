package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-admission/internal/api"
	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
)

// timeLayout はワイヤ上のタイムスタンプ形式
const timeLayout = "2006-01-02 15:04:05"

type EventHandler struct {
	service EventServiceInterface
}

func NewEventHandler(s EventServiceInterface) *EventHandler {
	return &EventHandler{service: s}
}

type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type CreateEventRequest struct {
	Title             string      `json:"title" validate:"required,min=3,max=120" example:"Go Conference 2026"`
	Annotation        string      `json:"annotation" validate:"required,min=20,max=2000"`
	Description       string      `json:"description" validate:"required,min=20,max=7000"`
	Category          int64       `json:"category" validate:"required,gt=0" example:"1"`
	Location          LocationDTO `json:"location"`
	Paid              bool        `json:"paid"`
	ParticipantLimit  int         `json:"participantLimit" validate:"gte=0" example:"100"`
	RequestModeration *bool       `json:"requestModeration"`
	EventDate         string      `json:"eventDate" validate:"required" example:"2026-10-01 10:00:00"`
}

type UpdateEventRequest struct {
	Title             *string      `json:"title" validate:"omitempty,min=3,max=120"`
	Annotation        *string      `json:"annotation" validate:"omitempty,min=20,max=2000"`
	Description       *string      `json:"description" validate:"omitempty,min=20,max=7000"`
	Category          *int64       `json:"category" validate:"omitempty,gt=0"`
	Location          *LocationDTO `json:"location"`
	Paid              *bool        `json:"paid"`
	ParticipantLimit  *int         `json:"participantLimit" validate:"omitempty,gte=0"`
	RequestModeration *bool        `json:"requestModeration"`
	EventDate         *string      `json:"eventDate"`
	StateAction       string       `json:"stateAction" validate:"omitempty,oneof=PUBLISH_EVENT REJECT_EVENT SEND_TO_REVIEW CANCEL_REVIEW"`
}

type EventResponse struct {
	ID                int64       `json:"id" example:"1"`
	Title             string      `json:"title"`
	Annotation        string      `json:"annotation"`
	Description       string      `json:"description"`
	Category          int64       `json:"category"`
	Initiator         int64       `json:"initiator"`
	Location          LocationDTO `json:"location"`
	Paid              bool        `json:"paid"`
	ParticipantLimit  int         `json:"participantLimit"`
	RequestModeration bool        `json:"requestModeration"`
	ConfirmedRequests int         `json:"confirmedRequests"`
	Views             int64       `json:"views"`
	CreatedOn         string      `json:"createdOn"`
	EventDate         string      `json:"eventDate"`
	PublishedOn       string      `json:"publishedOn,omitempty"`
	State             string      `json:"state" example:"PENDING"`
}

func toEventResponse(e *event.Event, confirmed int, views int64) EventResponse {
	resp := EventResponse{
		ID:                e.ID,
		Title:             e.Title,
		Annotation:        e.Annotation,
		Description:       e.Description,
		Category:          e.CategoryID,
		Initiator:         e.InitiatorID,
		Location:          LocationDTO{Lat: e.Location.Lat, Lon: e.Location.Lon},
		Paid:              e.Paid,
		ParticipantLimit:  e.ParticipantLimit,
		RequestModeration: e.RequestModeration,
		ConfirmedRequests: confirmed,
		Views:             views,
		CreatedOn:         e.CreatedOn.Format(timeLayout),
		EventDate:         e.EventDate.Format(timeLayout),
		State:             string(e.State),
	}
	if e.PublishedOn != nil {
		resp.PublishedOn = e.PublishedOn.Format(timeLayout)
	}
	return resp
}

func toEventResponses(views []*application.EventView) []EventResponse {
	resp := make([]EventResponse, len(views))
	for i, v := range views {
		resp[i] = toEventResponse(v.Event, v.ConfirmedRequests, v.Views)
	}
	return resp
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントをPENDING状態で登録します
// @Tags events
// @Accept json
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} map[string]string "開催日時が近すぎる"
// @Failure 404 {object} map[string]string
// @Router /users/{userId}/events [post]
func (h *EventHandler) Create(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	eventDate, err := time.ParseInLocation(timeLayout, req.EventDate, time.Local)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開催日時の形式が不正です")
	}

	e, err := h.service.CreateEvent(c.Request().Context(), userID, application.CreateEventInput{
		Title:             req.Title,
		Annotation:        req.Annotation,
		Description:       req.Description,
		CategoryID:        req.Category,
		Location:          event.Location{Lat: req.Location.Lat, Lon: req.Location.Lon},
		Paid:              req.Paid,
		ParticipantLimit:  req.ParticipantLimit,
		RequestModeration: req.RequestModeration,
		EventDate:         eventDate,
	})
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, toEventResponse(e, 0, 0))
}

// GetOwnEvents godoc
// @Summary 自分のイベント一覧を取得
// @Tags events
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param from query int false "オフセット" default(0)
// @Param size query int false "取得件数" default(10)
// @Success 200 {array} EventResponse
// @Router /users/{userId}/events [get]
func (h *EventHandler) GetOwnEvents(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	from, size := pageParams(c)
	views, err := h.service.GetOwnEvents(c.Request().Context(), userID, from, size)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponses(views))
}

// GetOwnEvent godoc
// @Summary 自分のイベントを取得
// @Tags events
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param eventId path int true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string
// @Router /users/{userId}/events/{eventId} [get]
func (h *EventHandler) GetOwnEvent(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	eventID, err := pathID(c, "eventId")
	if err != nil {
		return err
	}
	view, err := h.service.GetOwnEvent(c.Request().Context(), userID, eventID)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(view.Event, view.ConfirmedRequests, view.Views))
}

// UpdateByUser godoc
// @Summary オーナーがイベントを更新
// @Description 公開前のイベントの部分更新と再申請・取り下げを行います
// @Tags events
// @Accept json
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param eventId path int true "イベントID"
// @Param request body UpdateEventRequest true "更新内容"
// @Success 200 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "公開済みイベントは変更不可"
// @Router /users/{userId}/events/{eventId} [patch]
func (h *EventHandler) UpdateByUser(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	eventID, err := pathID(c, "eventId")
	if err != nil {
		return err
	}
	input, httpErr := h.bindUpdate(c, ActionSendToReview, ActionCancelReview)
	if httpErr != nil {
		return httpErr
	}
	e, err := h.service.UpdateEventByUser(c.Request().Context(), userID, eventID, input)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(e, 0, 0))
}

// UpdateByAdmin godoc
// @Summary 管理者がイベントを更新
// @Description 部分更新と公開・却下を行います
// @Tags admin
// @Accept json
// @Produce json
// @Param eventId path int true "イベントID"
// @Param request body UpdateEventRequest true "更新内容"
// @Success 200 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "公開済み・キャンセル済みとの競合"
// @Router /admin/events/{eventId} [patch]
func (h *EventHandler) UpdateByAdmin(c echo.Context) error {
	eventID, err := pathID(c, "eventId")
	if err != nil {
		return err
	}
	input, httpErr := h.bindUpdate(c, ActionPublishEvent, ActionRejectEvent)
	if httpErr != nil {
		return httpErr
	}
	e, err := h.service.UpdateEventByAdmin(c.Request().Context(), eventID, input)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(e, 0, 0))
}

// Search godoc
// @Summary 公開イベントを検索
// @Description 公開済みイベントをフィルタ条件で検索し、閲覧を記録します
// @Tags events
// @Produce json
// @Param text query string false "概要・詳細の部分一致（大文字小文字無視）"
// @Param categories query string false "カテゴリIDのカンマ区切り"
// @Param paid query bool false "有料のみ/無料のみ"
// @Param rangeStart query string false "期間開始"
// @Param rangeEnd query string false "期間終了"
// @Param onlyAvailable query bool false "空きのあるイベントのみ"
// @Param sort query string false "EVENT_DATE または VIEWS"
// @Param from query int false "オフセット" default(0)
// @Param size query int false "取得件数" default(10)
// @Success 200 {array} EventResponse
// @Failure 400 {object} map[string]string "期間の開始が終了より後"
// @Router /events [get]
func (h *EventHandler) Search(c echo.Context) error {
	filter := event.SearchFilter{
		Text:          c.QueryParam("text"),
		OnlyAvailable: boolParam(c, "onlyAvailable"),
		Sort:          event.SortByEventDate,
	}
	if sort := c.QueryParam("sort"); sort != "" {
		filter.Sort = event.Sort(sort)
	}
	var err error
	if filter.CategoryIDs, err = idListParam(c, "categories"); err != nil {
		return err
	}
	if p := c.QueryParam("paid"); p != "" {
		paid := p == "true"
		filter.Paid = &paid
	}
	if filter.RangeStart, err = timeParam(c, "rangeStart"); err != nil {
		return err
	}
	if filter.RangeEnd, err = timeParam(c, "rangeEnd"); err != nil {
		return err
	}
	filter.From, filter.Size = pageParams(c)

	views, err := h.service.SearchPublished(c.Request().Context(), filter, c.RealIP())
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponses(views))
}

// SearchByAdmin godoc
// @Summary 管理者がイベントを検索
// @Description 全状態のイベントをフィルタ条件で検索します
// @Tags admin
// @Produce json
// @Param users query string false "オーナーIDのカンマ区切り"
// @Param states query string false "状態のカンマ区切り（集合として扱う）"
// @Param categories query string false "カテゴリIDのカンマ区切り"
// @Param rangeStart query string false "期間開始"
// @Param rangeEnd query string false "期間終了"
// @Param from query int false "オフセット" default(0)
// @Param size query int false "取得件数" default(10)
// @Success 200 {array} EventResponse
// @Router /admin/events [get]
func (h *EventHandler) SearchByAdmin(c echo.Context) error {
	filter := event.AdminSearchFilter{}
	var err error
	if filter.UserIDs, err = idListParam(c, "users"); err != nil {
		return err
	}
	if filter.CategoryIDs, err = idListParam(c, "categories"); err != nil {
		return err
	}
	for _, s := range listParam(c, "states") {
		filter.States = append(filter.States, event.State(s))
	}
	if filter.RangeStart, err = timeParam(c, "rangeStart"); err != nil {
		return err
	}
	if filter.RangeEnd, err = timeParam(c, "rangeEnd"); err != nil {
		return err
	}
	filter.From, filter.Size = pageParams(c)

	views, err := h.service.SearchByAdmin(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponses(views))
}

// GetPublished godoc
// @Summary 公開イベントの詳細を取得
// @Description 閲覧を記録し、閲覧数と確定参加数を付与して返します
// @Tags events
// @Produce json
// @Param id path int true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string "未公開または存在しない"
// @Router /events/{id} [get]
func (h *EventHandler) GetPublished(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	view, err := h.service.GetPublishedEvent(c.Request().Context(), eventID, c.RealIP())
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(view.Event, view.ConfirmedRequests, view.Views))
}

func (h *EventHandler) bindUpdate(c echo.Context, allowedActions ...string) (application.UpdateEventInput, error) {
	var req UpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return application.UpdateEventInput{}, echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return application.UpdateEventInput{}, err
	}
	if req.StateAction != "" && !contains(allowedActions, req.StateAction) {
		return application.UpdateEventInput{}, echo.NewHTTPError(http.StatusBadRequest, "この操作では指定できない状態遷移です")
	}

	input := application.UpdateEventInput{
		Title:             req.Title,
		Annotation:        req.Annotation,
		Description:       req.Description,
		CategoryID:        req.Category,
		Paid:              req.Paid,
		ParticipantLimit:  req.ParticipantLimit,
		RequestModeration: req.RequestModeration,
		StateAction:       req.StateAction,
	}
	if req.Location != nil {
		input.Location = &event.Location{Lat: req.Location.Lat, Lon: req.Location.Lon}
	}
	if req.EventDate != nil {
		date, err := time.ParseInLocation(timeLayout, *req.EventDate, time.Local)
		if err != nil {
			return application.UpdateEventInput{}, echo.NewHTTPError(http.StatusBadRequest, "開催日時の形式が不正です")
		}
		input.EventDate = &date
	}
	return input, nil
}

// ハンドラー層から状態遷移アクション名を再利用する
const (
	ActionPublishEvent = application.ActionPublishEvent
	ActionRejectEvent  = application.ActionRejectEvent
	ActionSendToReview = application.ActionSendToReview
	ActionCancelReview = application.ActionCancelReview
)

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "無効なIDです")
	}
	return id, nil
}

func pageParams(c echo.Context) (int, int) {
	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size == 0 {
		size = 10
	}
	return from, size
}

func boolParam(c echo.Context, name string) bool {
	return c.QueryParam(name) == "true"
}

// listParam はカンマ区切りと複数指定の両方を受け付ける
func listParam(c echo.Context, name string) []string {
	var values []string
	for _, raw := range c.QueryParams()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
	}
	return values
}

func idListParam(c echo.Context, name string) ([]int64, error) {
	var ids []int64
	for _, v := range listParam(c, name) {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "無効なIDです")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func timeParam(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(timeLayout, v, time.Local)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "日時の形式が不正です")
	}
	return &t, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
