package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "workday/backend/internal/errors"
	"workday/backend/internal/service"
)

type NotifierHandler struct {
	notifierService *service.NotifierService
}

type subscriptionKeys struct {
	Auth   string `json:"auth"`
	P256dh string `json:"p256dh"`
}

type subscriptionPayload struct {
	Endpoint       string           `json:"endpoint"`
	ExpirationTime *int64           `json:"expirationTime"`
	Keys           subscriptionKeys `json:"keys"`
}

type subscribeRequest struct {
	Subscription subscriptionPayload `json:"subscription"`
	Interval     int64               `json:"interval"`
}

type updateRequest struct {
	Subscription subscriptionPayload `json:"subscription"`
	Interval     int64               `json:"interval"`
}

type unsubscribeRequest struct {
	Subscription subscriptionPayload `json:"subscription"`
}

func NewNotifierHandler(notifierService *service.NotifierService) *NotifierHandler {
	return &NotifierHandler{notifierService: notifierService}
}

// PublicKey exposes the VAPID public key so a client can create its
// browser subscription before calling Subscribe.
func (h *NotifierHandler) PublicKey(c *gin.Context) {
	if !h.requirePushConfigured(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.notifierService.VAPIDPublicKey()})
}

func (h *NotifierHandler) Subscribe(c *gin.Context) {
	if !h.requirePushConfigured(c) {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}

	apiErr := h.notifierService.Subscribe(c.Request.Context(), service.SubscribeInput{
		Endpoint:        req.Subscription.Endpoint,
		ExpirationTime:  req.Subscription.ExpirationTime,
		Auth:            req.Subscription.Keys.Auth,
		P256dh:          req.Subscription.Keys.P256dh,
		IntervalSeconds: req.Interval,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotifierHandler) Update(c *gin.Context) {
	if !h.requirePushConfigured(c) {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}

	apiErr := h.notifierService.UpdateInterval(c.Request.Context(), req.Subscription.Endpoint, req.Interval)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotifierHandler) Unsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}

	apiErr := h.notifierService.Unsubscribe(c.Request.Context(), req.Subscription.Endpoint)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

// requirePushConfigured fails fast when VAPID credentials are missing so
// no subscription is accepted that could never be delivered to.
func (h *NotifierHandler) requirePushConfigured(c *gin.Context) bool {
	if h.notifierService.PushEnabled() {
		return true
	}
	writeError(c, apperrors.Unavailable("push_not_configured", "push credentials are not configured"))
	return false
}
