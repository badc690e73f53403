package models

import "time"

// WorkStage is a hierarchical progress-reporting node tied to a site. A stage
// optionally links to a production activity, which makes it a sync target for
// progress aggregates.
type WorkStage struct {
	ID                   string    `gorm:"primaryKey;column:id" json:"id"`
	SiteID               string    `gorm:"column:site_id;not null" json:"siteId"`
	ParentID             *string   `gorm:"column:parent_id" json:"parentId,omitempty"`
	Name                 string    `gorm:"column:name;not null" json:"name"`
	ProductionActivityID *string   `gorm:"column:production_activity_id" json:"productionActivityId,omitempty"`
	ActualPercentage     float64   `gorm:"column:actual_percentage;type:numeric(6,2);default:0" json:"actualPercentage"`
	PlannedPercentage    float64   `gorm:"column:planned_percentage;type:numeric(6,2);default:0" json:"plannedPercentage"`
	CreatedAt            time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for WorkStage
func (WorkStage) TableName() string {
	return "work_stages"
}

// StageProgress is one daily progress row for a work stage. Rows written by
// the automatic sync use the deterministic id auto_<stageID>_<dayUnixMillis>
// so repeated syncs on the same day overwrite instead of piling up.
type StageProgress struct {
	ID                string    `gorm:"primaryKey;column:id" json:"id"`
	StageID           string    `gorm:"column:stage_id;not null" json:"stageId"`
	ActualPercentage  float64   `gorm:"column:actual_percentage;type:numeric(6,2);default:0" json:"actualPercentage"`
	PlannedPercentage float64   `gorm:"column:planned_percentage;type:numeric(6,2);default:0" json:"plannedPercentage"`
	RecordedDate      time.Time `gorm:"column:recorded_date;not null" json:"recordedDate"`
	UpdatedBy         string    `gorm:"column:updated_by" json:"updatedBy"`
	Notes             string    `gorm:"column:notes" json:"notes"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for StageProgress
func (StageProgress) TableName() string {
	return "stage_progress"
}
