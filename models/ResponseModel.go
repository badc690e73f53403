package models

import "time"

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string `json:"error" example:"record not found"`
	Details string `json:"details,omitempty"`
}

// MessageResponse is the standard success payload
type MessageResponse struct {
	Message string `json:"message" example:"ok"`
}

// UpdateProgressRequest is the body of a progress update call.
type UpdateProgressRequest struct {
	ElementID  string                 `json:"elementId" binding:"required"`
	ActivityID string                 `json:"activityId" binding:"required"`
	ProjectID  string                 `json:"projectId,omitempty"`
	Status     string                 `json:"status" binding:"required" example:"IN_PROGRESS"`
	Progress   float64                `json:"progress" example:"40"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	UserID     string                 `json:"userId,omitempty"`
	Dates      *ProgressDates         `json:"dates,omitempty"`
	SkipSync   bool                   `json:"skipSync,omitempty"`
}

// ProgressDates carries caller-supplied explicit dates, which always win over
// schedule inference.
type ProgressDates struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ApproveLogRequest is the body of a log approval call.
type ApproveLogRequest struct {
	LogTimestamp string `json:"logTimestamp" binding:"required"`
	ApprovedBy   string `json:"approvedBy" binding:"required"`
	UserID       string `json:"userId,omitempty"`
}

// DailyProductionRequest records one day's metrics for a progress record.
type DailyProductionRequest struct {
	Date   string                 `json:"date" binding:"required" example:"2026-08-30"`
	Data   map[string]interface{} `json:"data" binding:"required"`
	UserID string                 `json:"userId,omitempty"`
}

// ActivityStatusDTO is the display-friendly shape of one progress record,
// enriched with its planned schedule when one exists.
type ActivityStatusDTO struct {
	ID               string     `json:"id"`
	ElementID        string     `json:"elementId"`
	ActivityID       string     `json:"activityId"`
	ActivityName     string     `json:"activityName,omitempty"`
	Status           string     `json:"status"`
	Progress         float64    `json:"progress"`
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
	PlannedStartDate *time.Time `json:"plannedStartDate,omitempty"`
	PlannedEndDate   *time.Time `json:"plannedEndDate,omitempty"`
	PlannedQuantity  float64    `json:"plannedQuantity,omitempty"`
	PlannedHhh       float64    `json:"plannedHhh,omitempty"`
	RequiresApproval bool       `json:"requiresApproval"`
}

// ElementProgressResponse is one enriched element view-model. Normalized
// metadata keys are spread at the top level next to the fixed fields, so the
// payload mirrors what heterogeneous import sources produced.
type ElementProgressResponse map[string]interface{}

// ProductionLogDTO is one flattened history entry for log listings.
type ProductionLogDTO struct {
	ProgressID       string                 `json:"progressId"`
	ElementID        string                 `json:"elementId"`
	ActivityID       string                 `json:"activityId"`
	Status           string                 `json:"status"`
	Progress         float64                `json:"progress"`
	UserID           string                 `json:"userId"`
	Timestamp        string                 `json:"timestamp"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	ApprovedBy       string                 `json:"approvedBy,omitempty"`
	ApprovedAt       string                 `json:"approvedAt,omitempty"`
	RequiresApproval bool                   `json:"requiresApproval,omitempty"`
	Tower            *TowerRef              `json:"tower,omitempty"`
	ActivityName     string                 `json:"activityName,omitempty"`
	ProjectID        string                 `json:"projectId,omitempty"`
}

// TowerRef is the minimal tower identification attached to pending logs.
type TowerRef struct {
	ObjectID string `json:"objectId"`
	Name     string `json:"name"`
}

// TowerImportRequest is the body of a tower import call.
type TowerImportRequest struct {
	CompanyID     string            `json:"companyId" binding:"required"`
	DefaultSiteID string            `json:"defaultSiteId,omitempty"`
	Items         []TowerImportItem `json:"items" binding:"required"`
}

// ConstructionImportRequest is the body of a construction technical-data import.
type ConstructionImportRequest struct {
	CompanyID string                   `json:"companyId" binding:"required"`
	Items     []ConstructionImportItem `json:"items" binding:"required"`
}

// WorkStageResponse is one stage with its most recent daily progress row.
type WorkStageResponse struct {
	WorkStage
	LatestProgress *StageProgress `json:"latestProgress,omitempty"`
}

// ActivityLog mirrors the activity_logs audit table.
type ActivityLog struct {
	ID           int       `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UserName     string    `json:"user_name"`
	HostName     string    `json:"host_name"`
	EventContext string    `json:"event_context"`
	IPAddress    string    `json:"ip_address"`
	Description  string    `json:"description"`
	EventName    string    `json:"event_name"`
	ProjectID    string    `json:"project_id"`
}

// Session is the minimal session row used for audit attribution.
type Session struct {
	UserID    int       `json:"user_id"`
	SessionID string    `json:"session_id"`
	HostName  string    `json:"host_name"`
	IPAddress string    `json:"ip_address"`
	Timestamp time.Time `json:"timestp"`
}
