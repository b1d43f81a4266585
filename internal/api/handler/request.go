package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-admission/internal/api"
	"github.com/sanosuguru/go-event-admission/internal/domain/request"
)

type RequestHandler struct {
	service AdmissionServiceInterface
}

func NewRequestHandler(s AdmissionServiceInterface) *RequestHandler {
	return &RequestHandler{service: s}
}

type RequestResponse struct {
	ID        int64  `json:"id" example:"1"`
	Event     int64  `json:"event" example:"1"`
	Requester int64  `json:"requester" example:"200"`
	Created   string `json:"created" example:"2026-09-01 12:00:00"`
	Status    string `json:"status" example:"PENDING"`
}

func toRequestResponse(r *request.Request) RequestResponse {
	return RequestResponse{
		ID:        r.ID,
		Event:     r.EventID,
		Requester: r.RequesterID,
		Created:   r.Created.Format(timeLayout),
		Status:    string(r.Status),
	}
}

func toRequestResponses(requests []*request.Request) []RequestResponse {
	resp := make([]RequestResponse, len(requests))
	for i, r := range requests {
		resp[i] = toRequestResponse(r)
	}
	return resp
}

type DecideRequestsRequest struct {
	RequestIDs []int64 `json:"requestIds" validate:"required,min=1"`
	Status     string  `json:"status" validate:"required,oneof=CONFIRMED REJECTED" example:"CONFIRMED"`
}

type DecisionResponse struct {
	ConfirmedRequests []RequestResponse `json:"confirmedRequests"`
	RejectedRequests  []RequestResponse `json:"rejectedRequests"`
}

// Submit godoc
// @Summary 参加リクエストを提出
// @Description 公開済みイベントへの参加リクエストを提出します
// @Tags requests
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param eventId query int true "イベントID"
// @Success 201 {object} RequestResponse
// @Failure 400 {object} map[string]string "未公開・自分のイベント"
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "重複・上限到達・処理競合"
// @Router /users/{userId}/requests [post]
func (h *RequestHandler) Submit(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	eventID, err := queryID(c, "eventId")
	if err != nil {
		return err
	}
	r, err := h.service.SubmitRequest(c.Request().Context(), userID, eventID)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, toRequestResponse(r))
}

// GetOwn godoc
// @Summary 自分の参加リクエスト一覧を取得
// @Tags requests
// @Produce json
// @Param userId path int true "ユーザーID"
// @Success 200 {array} RequestResponse
// @Failure 404 {object} map[string]string
// @Router /users/{userId}/requests [get]
func (h *RequestHandler) GetOwn(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	requests, err := h.service.GetUserRequests(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toRequestResponses(requests))
}

// Cancel godoc
// @Summary 参加リクエストをキャンセル
// @Tags requests
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param requestId path int true "リクエストID"
// @Success 200 {object} RequestResponse
// @Failure 404 {object} map[string]string "本人のリクエストではない"
// @Failure 409 {object} map[string]string "キャンセル済み"
// @Router /users/{userId}/requests/{requestId}/cancel [patch]
func (h *RequestHandler) Cancel(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	requestID, err := pathID(c, "requestId")
	if err != nil {
		return err
	}
	r, err := h.service.CancelOwnRequest(c.Request().Context(), userID, requestID)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toRequestResponse(r))
}

// ListForEvent godoc
// @Summary 自分のイベントへの参加リクエスト一覧を取得
// @Tags requests
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param eventId path int true "イベントID"
// @Success 200 {array} RequestResponse
// @Failure 404 {object} map[string]string "オーナーのイベントではない"
// @Router /users/{userId}/events/{eventId}/requests [get]
func (h *RequestHandler) ListForEvent(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	eventID, err := pathID(c, "eventId")
	if err != nil {
		return err
	}
	requests, err := h.service.GetEventRequests(c.Request().Context(), userID, eventID)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toRequestResponses(requests))
}

// Decide godoc
// @Summary 参加リクエストを一括決定
// @Description 保留中リクエストを一括で確定または却下します（全件成功か全件失敗）
// @Tags requests
// @Accept json
// @Produce json
// @Param userId path int true "ユーザーID"
// @Param eventId path int true "イベントID"
// @Param request body DecideRequestsRequest true "決定内容"
// @Success 200 {object} DecisionResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "上限超過・確定済みの却下"
// @Router /users/{userId}/events/{eventId}/requests [patch]
func (h *RequestHandler) Decide(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	eventID, err := pathID(c, "eventId")
	if err != nil {
		return err
	}
	var req DecideRequestsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.service.DecideRequests(c.Request().Context(), userID, eventID, request.Status(req.Status), req.RequestIDs)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, DecisionResponse{
		ConfirmedRequests: toRequestResponses(result.Confirmed),
		RejectedRequests:  toRequestResponses(result.Rejected),
	})
}

func queryID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.QueryParam(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "無効なIDです")
	}
	return id, nil
}
