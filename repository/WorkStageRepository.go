package repository

import (
	"backend/models"

	"gorm.io/gorm"
)

// SyncTarget is one (project, activity) pair with at least one linked work
// stage, used by the nightly resync job.
type SyncTarget struct {
	ProjectID  string
	ActivityID string
}

// WorkStageRepository serves the work-stage read endpoints and the resync job.
type WorkStageRepository interface {
	FindBySite(siteID string) ([]models.WorkStageResponse, error)
	FindSyncTargets() ([]SyncTarget, error)
}

type GormWorkStageRepository struct {
	db *gorm.DB
}

func NewGormWorkStageRepository(db *gorm.DB) *GormWorkStageRepository {
	return &GormWorkStageRepository{db: db}
}

// FindBySite lists the stages of a site with each stage's newest daily row.
func (r *GormWorkStageRepository) FindBySite(siteID string) ([]models.WorkStageResponse, error) {
	var stages []models.WorkStage
	if err := r.db.Where("site_id = ?", siteID).Order("name ASC").Find(&stages).Error; err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, nil
	}

	ids := make([]string, len(stages))
	for i, s := range stages {
		ids[i] = s.ID
	}
	var rows []models.StageProgress
	err := r.db.Where("stage_id IN ?", ids).Order("recorded_date DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*models.StageProgress, len(stages))
	for i := range rows {
		if _, seen := latest[rows[i].StageID]; !seen {
			latest[rows[i].StageID] = &rows[i]
		}
	}

	results := make([]models.WorkStageResponse, len(stages))
	for i, s := range stages {
		results[i] = models.WorkStageResponse{WorkStage: s, LatestProgress: latest[s.ID]}
	}
	return results, nil
}

// FindSyncTargets lists every distinct (project, activity) pair that has both
// progress records and a linked work stage.
func (r *GormWorkStageRepository) FindSyncTargets() ([]SyncTarget, error) {
	var targets []SyncTarget
	err := r.db.Model(&models.ProductionProgress{}).
		Select("DISTINCT map_element_production_progress.project_id AS project_id, map_element_production_progress.activity_id AS activity_id").
		Joins("JOIN work_stages ON work_stages.production_activity_id = map_element_production_progress.activity_id").
		Scan(&targets).Error
	return targets, err
}
