package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pricewatch_backend/models"
)

// AlertController handles price-alert requests
type AlertController struct {
	db *gorm.DB
}

// NewAlertController creates a new alert controller
func NewAlertController(db *gorm.DB) *AlertController {
	return &AlertController{db: db}
}

// CreateAlertRequest is the payload for creating an alert
type CreateAlertRequest struct {
	Symbol        string `json:"symbol" binding:"required"`
	Timeframe     string `json:"timeframe"`
	ConditionKind string `json:"condition_kind" binding:"required"`
	TargetValue   string `json:"target_value" binding:"required"`
	NotifyEmail   *bool  `json:"notify_email"`
	NotifyPush    *bool  `json:"notify_push"`
}

// currentUserID extracts the authenticated user's id from the context
func currentUserID(c *gin.Context) (uint, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	subject, ok := raw.(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(subject, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// GetAlerts returns the authenticated user's alerts
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user context"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := ac.db.Model(&models.Alert{}).Where("user_id = ?", userID)

	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}
	if symbol := c.Query("symbol"); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var total int64
	query.Count(&total)

	var alerts []models.Alert
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&alerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": alerts,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// CreateAlert creates a new price alert for the authenticated user.
// Condition kind and timeframe are validated here so the evaluation engine
// never sees an unrecognized variant.
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user context"})
		return
	}

	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.IsValidConditionKind(req.ConditionKind) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "Invalid condition kind",
			"valid_kinds": models.ValidConditionKinds(),
		})
		return
	}

	if req.Timeframe == "" {
		req.Timeframe = models.TimeframeH1
	}
	if !models.IsValidTimeframe(req.Timeframe) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "Invalid timeframe",
			"valid_timeframes": models.ValidTimeframes(),
		})
		return
	}

	target, err := decimal.NewFromString(req.TargetValue)
	if err != nil || !target.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Target value must be a positive number"})
		return
	}

	alert := models.Alert{
		UserID:        userID,
		Symbol:        req.Symbol,
		Timeframe:     req.Timeframe,
		ConditionKind: req.ConditionKind,
		TargetValue:   target,
		IsActive:      true,
		NotifyEmail:   true,
	}
	if req.NotifyEmail != nil {
		alert.NotifyEmail = *req.NotifyEmail
	}
	if req.NotifyPush != nil {
		alert.NotifyPush = *req.NotifyPush
	}

	if err := ac.db.Create(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// GetAlert returns a single alert owned by the authenticated user
// GET /api/v1/alerts/:id
func (ac *AlertController) GetAlert(c *gin.Context) {
	alert, ok := ac.findOwnedAlert(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// DeactivateAlert disables an alert without deleting it
// POST /api/v1/alerts/:id/deactivate
func (ac *AlertController) DeactivateAlert(c *gin.Context) {
	alert, ok := ac.findOwnedAlert(c)
	if !ok {
		return
	}

	if err := ac.db.Model(&alert).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate alert"})
		return
	}

	alert.IsActive = false
	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// ReactivateAlert re-arms a fired or disabled alert. The next scheduled
// check picks it up again.
// POST /api/v1/alerts/:id/reactivate
func (ac *AlertController) ReactivateAlert(c *gin.Context) {
	alert, ok := ac.findOwnedAlert(c)
	if !ok {
		return
	}

	if err := ac.db.Model(&alert).Update("is_active", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reactivate alert"})
		return
	}

	alert.IsActive = true
	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// DeleteAlert removes an alert owned by the authenticated user
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	alert, ok := ac.findOwnedAlert(c)
	if !ok {
		return
	}

	if err := ac.db.Delete(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}

// findOwnedAlert loads the alert from the :id param, enforcing ownership.
// Writes the error response itself when the lookup fails.
func (ac *AlertController) findOwnedAlert(c *gin.Context) (models.Alert, bool) {
	var alert models.Alert

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user context"})
		return alert, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return alert, false
	}

	if err := ac.db.Where("id = ? AND user_id = ?", id, userID).First(&alert).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return alert, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert"})
		return alert, false
	}

	return alert, true
}
