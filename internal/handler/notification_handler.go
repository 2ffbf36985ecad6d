package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"taskmanager/internal/errors"
	"taskmanager/internal/notify"
	"taskmanager/internal/service"
)

const streamPingInterval = 25 * time.Second

// NotificationHandler serves the notification log and its live stream.
type NotificationHandler struct {
	svc        service.NotificationService
	subscriber notify.Subscriber
	log        *zap.Logger
}

// NewNotificationHandler creates a notification handler. A nil subscriber
// disables the live stream.
func NewNotificationHandler(svc service.NotificationService, subscriber notify.Subscriber, log *zap.Logger) *NotificationHandler {
	if subscriber == nil {
		subscriber = notify.Nop{}
	}
	return &NotificationHandler{svc: svc, subscriber: subscriber, log: log}
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param notificationId path string true "Notification ID"
// @Success 200 {object} model.Notification
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/notifications/{notificationId}/read [put]
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	taskID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	notificationID, err := uuidParam(c, "notificationId")
	if err != nil {
		return err
	}

	n, err := h.svc.MarkRead(c.Request().Context(), taskID, notificationID, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// List godoc
// @Summary The caller's notifications, newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread notifications"
// @Success 200 {array} model.Notification
// @Router /notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var q struct {
		Unread bool `query:"unread"`
	}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return errors.Validation("invalid query parameters")
	}

	list, err := h.svc.List(c.Request().Context(), user, q.Unread)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Stream godoc
// @Summary Live notification stream (server-sent events)
// @Tags notifications
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {object} notify.Message
// @Failure 503 {object} errors.ErrorResponse
// @Router /notifications/stream [get]
func (h *NotificationHandler) Stream(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	messages, closeSub, err := h.subscriber.Subscribe(ctx, user.ID)
	if err != nil {
		return errors.Wrap(errors.KindTransient, "notification stream unavailable", err)
	}
	defer func() { _ = closeSub() }()
	if messages == nil {
		return errors.New(errors.KindTransient, "notification stream not configured")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ping.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("notification not streamed", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(res, "event: notification\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
