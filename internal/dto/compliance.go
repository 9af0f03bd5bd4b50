package dto

import "github.com/noah-isme/sma-docs-api/internal/models"

// AlertsQuery captures the alert lookahead window.
type AlertsQuery struct {
	LookaheadDays int `form:"lookaheadDays" validate:"gte=0,lte=365"`
}

// OverviewQuery pages the staff overview.
type OverviewQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}

// AlertsResponse lists alerts computed for one student.
type AlertsResponse struct {
	StudentID     string         `json:"studentId"`
	LookaheadDays int            `json:"lookaheadDays"`
	Alerts        []models.Alert `json:"alerts"`
}
