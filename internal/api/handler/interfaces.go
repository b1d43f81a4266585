package handler

import (
	"context"

	"github.com/sanosuguru/go-event-admission/internal/application"
	"github.com/sanosuguru/go-event-admission/internal/domain/event"
	"github.com/sanosuguru/go-event-admission/internal/domain/request"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, userID int64, input application.CreateEventInput) (*event.Event, error)
	UpdateEventByAdmin(ctx context.Context, eventID int64, input application.UpdateEventInput) (*event.Event, error)
	UpdateEventByUser(ctx context.Context, userID, eventID int64, input application.UpdateEventInput) (*event.Event, error)
	GetOwnEvents(ctx context.Context, userID int64, from, size int) ([]*application.EventView, error)
	GetOwnEvent(ctx context.Context, userID, eventID int64) (*application.EventView, error)
	GetPublishedEvent(ctx context.Context, eventID int64, clientIP string) (*application.EventView, error)
	SearchPublished(ctx context.Context, filter event.SearchFilter, clientIP string) ([]*application.EventView, error)
	SearchByAdmin(ctx context.Context, filter event.AdminSearchFilter) ([]*application.EventView, error)
}

// AdmissionServiceInterface は参加リクエストサービスのインターフェース
type AdmissionServiceInterface interface {
	SubmitRequest(ctx context.Context, userID, eventID int64) (*request.Request, error)
	CancelOwnRequest(ctx context.Context, userID, requestID int64) (*request.Request, error)
	DecideRequests(ctx context.Context, ownerID, eventID int64, status request.Status, requestIDs []int64) (*application.DecisionResult, error)
	GetEventRequests(ctx context.Context, ownerID, eventID int64) ([]*request.Request, error)
	GetUserRequests(ctx context.Context, userID int64) ([]*request.Request, error)
}
