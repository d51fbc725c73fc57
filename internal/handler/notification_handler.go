package handler

import (
	"errors"
	"net/http"
	"strconv"

	"minimall/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	notificationRepo *repository.NotificationRepository
}

func NewNotificationHandler(notificationRepo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo}
}

// ListFailed returns failed dispatches still eligible for retry.
func (h *NotificationHandler) ListFailed(c *gin.Context) {
	list, err := h.notificationRepo.ListFailed(100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	rec, err := h.notificationRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load notification"})
		}
		return
	}
	openid, _ := c.Get("openid")
	if openidStr, _ := openid.(string); openidStr == "" || openidStr != rec.OpenID {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err := h.notificationRepo.MarkRead(rec.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "READ"})
}
