package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a free-form JSONB column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
}

// MapElement is the legacy skeleton row used for map rendering. Towers of all
// bounded contexts hang off this table through (project_id, external_id).
type MapElement struct {
	ID          string     `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   string     `gorm:"column:project_id;not null;uniqueIndex:idx_map_element_project_external" json:"projectId"`
	CompanyID   string     `gorm:"column:company_id;not null" json:"companyId"`
	SiteID      *string    `gorm:"column:site_id" json:"siteId,omitempty"`
	ExternalID  string     `gorm:"column:external_id;not null;uniqueIndex:idx_map_element_project_external" json:"externalId"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	ElementType string     `gorm:"column:element_type;not null;default:'TOWER'" json:"elementType"`
	Sequence    int        `gorm:"column:sequence;default:0" json:"sequence"`
	Latitude    *float64   `gorm:"column:latitude;type:numeric(10,7)" json:"latitude,omitempty"`
	Longitude   *float64   `gorm:"column:longitude;type:numeric(10,7)" json:"longitude,omitempty"`
	Elevation   *float64   `gorm:"column:elevation;type:numeric(10,2)" json:"elevation,omitempty"`
	Metadata    JSONMap    `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for MapElement
func (MapElement) TableName() string {
	return "map_elements"
}

// TowerProduction carries the sequencing/classification metadata owned by the
// production context. Keyed by (project_id, tower_id).
type TowerProduction struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	ProjectID string    `gorm:"column:project_id;not null;uniqueIndex:idx_tower_production_project_tower" json:"projectId"`
	CompanyID string    `gorm:"column:company_id;not null" json:"companyId"`
	TowerID   string    `gorm:"column:tower_id;not null;uniqueIndex:idx_tower_production_project_tower" json:"towerId"`
	Sequencia int       `gorm:"column:sequencia;default:0" json:"sequencia"`
	Metadata  JSONMap   `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for TowerProduction
func (TowerProduction) TableName() string {
	return "tower_production"
}

// TowerConstruction carries the engineering/geo metadata owned by the
// construction context. Keyed by (project_id, tower_id).
type TowerConstruction struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	ProjectID string    `gorm:"column:project_id;not null;uniqueIndex:idx_tower_construction_project_tower" json:"projectId"`
	CompanyID string    `gorm:"column:company_id;not null" json:"companyId"`
	TowerID   string    `gorm:"column:tower_id;not null;uniqueIndex:idx_tower_construction_project_tower" json:"towerId"`
	Sequencia int       `gorm:"column:sequencia;default:0" json:"sequencia"`
	Metadata  JSONMap   `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for TowerConstruction
func (TowerConstruction) TableName() string {
	return "tower_construction"
}

// ProductionActivity is a unit of trackable work (e.g. "foundation pour").
type ProductionActivity struct {
	ID        string    `gorm:"primaryKey;column:id" json:"id"`
	ProjectID string    `gorm:"column:project_id;not null" json:"projectId"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Category  string    `gorm:"column:category" json:"category"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName specifies the table name for ProductionActivity
func (ProductionActivity) TableName() string {
	return "production_activities"
}

// ActivitySchedule is the planned window for one (element, activity) pair.
type ActivitySchedule struct {
	ID              string     `gorm:"primaryKey;column:id" json:"id"`
	ProjectID       string     `gorm:"column:project_id;not null" json:"projectId"`
	ElementID       string     `gorm:"column:element_id;not null;uniqueIndex:idx_schedule_element_activity" json:"elementId"`
	ActivityID      string     `gorm:"column:activity_id;not null;uniqueIndex:idx_schedule_element_activity" json:"activityId"`
	PlannedStart    *time.Time `gorm:"column:planned_start" json:"plannedStart,omitempty"`
	PlannedEnd      *time.Time `gorm:"column:planned_end" json:"plannedEnd,omitempty"`
	PlannedQuantity float64    `gorm:"column:planned_quantity;type:numeric(12,2);default:0" json:"plannedQuantity"`
	PlannedHhh      float64    `gorm:"column:planned_hhh;type:numeric(12,2);default:0" json:"plannedHhh"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"createdAt"`
}

// TableName specifies the table name for ActivitySchedule
func (ActivitySchedule) TableName() string {
	return "activity_schedules"
}

// TowerImportItem is one row of an import payload. Sources are inconsistent
// about field names, so fallback pairs are kept side by side; pointers mark
// absent numerics apart from explicit zeroes.
type TowerImportItem struct {
	Number               string   `json:"number,omitempty"`
	ExternalID           string   `json:"externalId,omitempty"`
	Trecho               string   `json:"trecho,omitempty"`
	TowerType            string   `json:"towerType,omitempty"`
	FoundationType       string   `json:"foundationType,omitempty"`
	ConcreteVolume       *float64 `json:"concreteVolume,omitempty"`
	TotalConcreto        *float64 `json:"totalConcreto,omitempty"`
	SteelWeight          *float64 `json:"steelWeight,omitempty"`
	PesoArmacao          *float64 `json:"pesoArmacao,omitempty"`
	StructureWeight      *float64 `json:"structureWeight,omitempty"`
	PesoEstrutura        *float64 `json:"pesoEstrutura,omitempty"`
	SpanLength           *float64 `json:"spanLength,omitempty"`
	GoForward            *float64 `json:"goForward,omitempty"`
	Sequence             *int     `json:"sequence,omitempty"`
	ObjectSeq            *int     `json:"objectSeq,omitempty"`
	TramoLancamento      string   `json:"tramoLancamento,omitempty"`
	TipificacaoEstrutura string   `json:"tipificacaoEstrutura,omitempty"`
	Lat                  *float64 `json:"lat,omitempty"`
	Lng                  *float64 `json:"lng,omitempty"`
	Alt                  *float64 `json:"alt,omitempty"`
	SiteID               string   `json:"siteId,omitempty"`
}

// ImportError is one aggregate failure entry in an import result.
type ImportError struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// ImportResults summarizes one import batch.
type ImportResults struct {
	Total    int           `json:"total"`
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Errors   []ImportError `json:"errors"`
}

// ConstructionImportItem is one row of a construction technical-data import.
type ConstructionImportItem struct {
	TowerID       string  `json:"towerId"`
	Sequencia     int     `json:"sequencia"`
	Vao           float64 `json:"vao"`
	Elevacao      float64 `json:"elevacao"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Zona          string  `json:"zona"`
	PesoEstrutura float64 `json:"pesoEstrutura"`
	PesoConcreto  float64 `json:"pesoConcreto"`
	PesoEscavacao float64 `json:"pesoEscavacao"`
	Aco1          float64 `json:"aco1"`
	Aco2          float64 `json:"aco2"`
	Aco3          float64 `json:"aco3"`
	Metadata      JSONMap `json:"metadata,omitempty"`
}
