package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Activity status values stored on production progress records.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	// StatusApproved is only ever written onto individual history entries.
	StatusApproved = "APPROVED"
)

// ValidProgressStatus reports whether s is one of the three record-level statuses.
func ValidProgressStatus(s string) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusFinished
}

// ProgressHistoryEntry is one append-only log line in a progress record's history.
// Older records (imported before top-level dates existed) may carry their dates
// directly on the entry, so those fields are kept alongside the metadata blob.
type ProgressHistoryEntry struct {
	Status          string                 `json:"status"`
	ProgressPercent float64                `json:"progressPercent"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	ChangedBy       string                 `json:"changedBy,omitempty"`
	Timestamp       string                 `json:"timestamp"`
	StartDate       string                 `json:"startDate,omitempty"`
	EndDate         string                 `json:"endDate,omitempty"`
	FinalStartDate  string                 `json:"finalStartDate,omitempty"`
	FinalEndDate    string                 `json:"finalEndDate,omitempty"`
	ApprovedBy      string                 `json:"approvedBy,omitempty"`
	ApprovedAt      string                 `json:"approvedAt,omitempty"`
}

// ProgressHistory is the ordered history list persisted as JSONB.
type ProgressHistory []ProgressHistoryEntry

func (h ProgressHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *ProgressHistory) Scan(value interface{}) error {
	if value == nil {
		*h = ProgressHistory{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported type for ProgressHistory: %T", value)
	}
}

// DailyProductionMap holds per-day recorded metrics keyed by ISO date (2006-01-02).
type DailyProductionMap map[string]map[string]interface{}

func (m DailyProductionMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *DailyProductionMap) Scan(value interface{}) error {
	if value == nil {
		*m = DailyProductionMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for DailyProductionMap: %T", value)
	}
}

// ProductionProgress is the status/percent/history record for one (element, activity) pair.
type ProductionProgress struct {
	ID               string             `gorm:"primaryKey;column:id" json:"id"`
	ProjectID        string             `gorm:"column:project_id;not null" json:"projectId"`
	ElementID        string             `gorm:"column:element_id;not null;uniqueIndex:idx_progress_element_activity" json:"elementId"`
	ActivityID       string             `gorm:"column:activity_id;not null;uniqueIndex:idx_progress_element_activity" json:"activityId"`
	CurrentStatus    string             `gorm:"column:current_status;not null;default:'PENDING'" json:"currentStatus"`
	ProgressPercent  float64            `gorm:"column:progress_percent;type:numeric(6,2);default:0" json:"progressPercent"`
	StartDate        *time.Time         `gorm:"column:start_date" json:"startDate,omitempty"`
	EndDate          *time.Time         `gorm:"column:end_date" json:"endDate,omitempty"`
	History          ProgressHistory    `gorm:"column:history;type:jsonb" json:"history"`
	DailyProduction  DailyProductionMap `gorm:"column:daily_production;type:jsonb" json:"dailyProduction"`
	RequiresApproval bool               `gorm:"column:requires_approval;default:false" json:"requiresApproval"`
	ApprovalReason   *string            `gorm:"column:approval_reason" json:"approvalReason,omitempty"`
	CreatedAt        time.Time          `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt        time.Time          `gorm:"column:updated_at" json:"updatedAt"`

	Activity *ProductionActivity `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
	Element  *MapElement         `gorm:"foreignKey:ElementID" json:"element,omitempty"`
}

// TableName specifies the table name for ProductionProgress
func (ProductionProgress) TableName() string {
	return "map_element_production_progress"
}

// ReconstructDates backfills missing top-level dates from the history for
// records created before start/end dates were tracked as columns.
func (p *ProductionProgress) ReconstructDates() {
	if p.StartDate != nil && p.EndDate != nil {
		return
	}

	if p.StartDate == nil && len(p.History) > 0 {
		first := p.History[0]
		p.StartDate = firstValidDate(
			first.FinalStartDate,
			first.StartDate,
			metadataString(first.Metadata, "finalStartDate"),
			first.Timestamp,
		)
		if p.StartDate == nil && !p.CreatedAt.IsZero() {
			t := p.CreatedAt
			p.StartDate = &t
		}
	}

	if p.EndDate == nil && (p.CurrentStatus == StatusFinished || p.ProgressPercent >= 100) {
		if finished := p.finishedEntry(); finished != nil {
			p.EndDate = firstValidDate(
				finished.FinalEndDate,
				finished.EndDate,
				metadataString(finished.Metadata, "finalEndDate"),
				finished.Timestamp,
			)
		}
		if p.EndDate == nil && !p.UpdatedAt.IsZero() {
			t := p.UpdatedAt
			p.EndDate = &t
		}
	}
}

func (p *ProductionProgress) finishedEntry() *ProgressHistoryEntry {
	for i := range p.History {
		if p.History[i].Status == StatusFinished || p.History[i].ProgressPercent >= 100 {
			return &p.History[i]
		}
	}
	return nil
}

// RecordProgress overwrites the current status/percent and appends a history entry.
// History entries are immutable once appended, except for ApproveLog.
func (p *ProductionProgress) RecordProgress(status string, progress float64, metadata map[string]interface{}, userID string) {
	p.CurrentStatus = status
	p.ProgressPercent = progress

	entry := ProgressHistoryEntry{
		Status:          status,
		ProgressPercent: progress,
		Metadata:        metadata,
		ChangedBy:       userID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	}

	p.History = append(p.History, entry)
	p.UpdatedAt = time.Now()
}

// ApproveLog patches the history entry whose timestamp exactly equals logTimestamp.
// Matching is plain string equality on the stored timestamp.
func (p *ProductionProgress) ApproveLog(logTimestamp, approvedBy string) error {
	for i := range p.History {
		if p.History[i].Timestamp == logTimestamp {
			p.History[i].Status = StatusApproved
			p.History[i].ApprovedBy = approvedBy
			p.History[i].ApprovedAt = time.Now().UTC().Format(time.RFC3339Nano)
			p.UpdatedAt = time.Now()
			return nil
		}
	}
	return errors.New("log entry not found in history")
}

// RecordDailyProduction upserts the recorded metrics for one ISO date.
func (p *ProductionProgress) RecordDailyProduction(date string, data map[string]interface{}, userID string) {
	if p.DailyProduction == nil {
		p.DailyProduction = DailyProductionMap{}
	}
	record := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		record[k] = v
	}
	record["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	record["updatedBy"] = userID
	p.DailyProduction[date] = record
	p.UpdatedAt = time.Now()
}

// LatestEntry returns the newest history entry, or nil for an empty history.
func (p *ProductionProgress) LatestEntry() *ProgressHistoryEntry {
	if len(p.History) == 0 {
		return nil
	}
	return &p.History[len(p.History)-1]
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}

// firstValidDate parses the first candidate that yields a timestamp.
func firstValidDate(candidates ...string) *time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := ParseFlexibleTime(c); err == nil {
			return &t
		}
	}
	return nil
}

// ParseFlexibleTime accepts the timestamp layouts that occur in stored history
// entries: RFC3339 with or without sub-second precision, and bare dates.
func ParseFlexibleTime(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
