package repository

import (
	"backend/models"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ElementWithProgress is one tower joined with its progress records and
// activity schedules, as returned by FindElementsWithProgress.
type ElementWithProgress struct {
	Element   models.MapElement
	Progress  []models.ProductionProgress
	Schedules []models.ActivitySchedule
}

// ProgressRepository is the persistence gateway for production progress.
type ProgressRepository interface {
	Save(progress *models.ProductionProgress) (*models.ProductionProgress, error)
	SaveMany(progresses []*models.ProductionProgress) error
	FindByID(id string) (*models.ProductionProgress, error)
	FindByElement(elementID string) ([]models.ProductionProgress, error)
	FindByElementAndActivity(elementID, activityID string) (*models.ProductionProgress, error)
	FindByElementsBatch(elementIDs []string) ([]models.ProductionProgress, error)
	FindByActivity(projectID, activityID string) ([]models.ProductionProgress, error)
	FindElementsWithProgress(projectID, companyID, siteID string) ([]ElementWithProgress, error)
	FindSchedule(elementID, activityID string) (*models.ActivitySchedule, error)
	FindSchedulesBatch(elementIDs, activityIDs []string) ([]models.ActivitySchedule, error)
	FindPendingLogs(companyID string) ([]models.ProductionProgress, error)
	FindElementProjectID(elementID string) (string, error)
	FindElementCompanyID(elementID string) (string, error)
	SyncWorkStages(elementID, activityID, projectID, updatedBy string) error
}

// GormProgressRepository implements ProgressRepository on top of GORM/Postgres.
type GormProgressRepository struct {
	db *gorm.DB
}

func NewGormProgressRepository(db *gorm.DB) *GormProgressRepository {
	return &GormProgressRepository{db: db}
}

// Save persists the record and returns the reloaded row so derived fields are
// consistent. New records without an id are upserted on (element_id, activity_id).
func (r *GormProgressRepository) Save(progress *models.ProductionProgress) (*models.ProductionProgress, error) {
	if progress.History == nil {
		progress.History = models.ProgressHistory{}
	}
	if progress.DailyProduction == nil {
		progress.DailyProduction = models.DailyProductionMap{}
	}

	if progress.ID == "" {
		var existing models.ProductionProgress
		err := r.db.Where("element_id = ? AND activity_id = ?", progress.ElementID, progress.ActivityID).
			First(&existing).Error
		switch {
		case err == nil:
			progress.ID = existing.ID
			progress.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			progress.ID = uuid.NewString()
			if err := r.db.Create(progress).Error; err != nil {
				return nil, fmt.Errorf("failed to create progress record: %v", err)
			}
			return r.FindByID(progress.ID)
		default:
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"current_status":    progress.CurrentStatus,
		"progress_percent":  progress.ProgressPercent,
		"start_date":        progress.StartDate,
		"end_date":          progress.EndDate,
		"history":           progress.History,
		"daily_production":  progress.DailyProduction,
		"requires_approval": progress.RequiresApproval,
		"approval_reason":   progress.ApprovalReason,
		"updated_at":        time.Now(),
	}
	if err := r.db.Model(&models.ProductionProgress{}).Where("id = ?", progress.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update progress record %s: %v", progress.ID, err)
	}

	return r.FindByID(progress.ID)
}

// SaveMany persists a batch inside one transaction.
func (r *GormProgressRepository) SaveMany(progresses []*models.ProductionProgress) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		repo := &GormProgressRepository{db: tx}
		for _, p := range progresses {
			if _, err := repo.Save(p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormProgressRepository) FindByID(id string) (*models.ProductionProgress, error) {
	var progress models.ProductionProgress
	err := r.db.Preload("Activity").Where("id = ?", id).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	progress.ReconstructDates()
	return &progress, nil
}

func (r *GormProgressRepository) FindByElement(elementID string) ([]models.ProductionProgress, error) {
	var results []models.ProductionProgress
	err := r.db.Preload("Activity").Where("element_id = ?", elementID).Find(&results).Error
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].ReconstructDates()
	}
	return results, nil
}

func (r *GormProgressRepository) FindByElementAndActivity(elementID, activityID string) (*models.ProductionProgress, error) {
	var progress models.ProductionProgress
	err := r.db.Where("element_id = ? AND activity_id = ?", elementID, activityID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	progress.ReconstructDates()
	return &progress, nil
}

func (r *GormProgressRepository) FindByElementsBatch(elementIDs []string) ([]models.ProductionProgress, error) {
	if len(elementIDs) == 0 {
		return nil, nil
	}
	var results []models.ProductionProgress
	err := r.db.Where("element_id IN ?", elementIDs).Find(&results).Error
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].ReconstructDates()
	}
	return results, nil
}

func (r *GormProgressRepository) FindByActivity(projectID, activityID string) ([]models.ProductionProgress, error) {
	var results []models.ProductionProgress
	err := r.db.Where("project_id = ? AND activity_id = ?", projectID, activityID).Find(&results).Error
	return results, err
}

// FindElementsWithProgress loads the towers of a project together with their
// progress records and schedules. companyID and siteID are optional filters;
// siteID "none" selects towers without a site.
func (r *GormProgressRepository) FindElementsWithProgress(projectID, companyID, siteID string) ([]ElementWithProgress, error) {
	query := r.db.Where("element_type = ?", "TOWER").Order("sequence ASC")
	if projectID != "" && projectID != "all" {
		query = query.Where("project_id = ?", projectID)
	}
	if companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	if siteID != "" && siteID != "all" {
		if siteID == "none" {
			query = query.Where("site_id IS NULL")
		} else {
			query = query.Where("site_id = ?", siteID)
		}
	}

	var elements []models.MapElement
	if err := query.Find(&elements).Error; err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, nil
	}

	ids := make([]string, len(elements))
	for i, el := range elements {
		ids[i] = el.ID
	}

	var progresses []models.ProductionProgress
	if err := r.db.Preload("Activity").Where("element_id IN ?", ids).Find(&progresses).Error; err != nil {
		return nil, err
	}
	var schedules []models.ActivitySchedule
	if err := r.db.Where("element_id IN ?", ids).Find(&schedules).Error; err != nil {
		return nil, err
	}

	progressByElement := make(map[string][]models.ProductionProgress)
	for i := range progresses {
		progresses[i].ReconstructDates()
		progressByElement[progresses[i].ElementID] = append(progressByElement[progresses[i].ElementID], progresses[i])
	}
	schedulesByElement := make(map[string][]models.ActivitySchedule)
	for _, s := range schedules {
		schedulesByElement[s.ElementID] = append(schedulesByElement[s.ElementID], s)
	}

	results := make([]ElementWithProgress, len(elements))
	for i, el := range elements {
		results[i] = ElementWithProgress{
			Element:   el,
			Progress:  progressByElement[el.ID],
			Schedules: schedulesByElement[el.ID],
		}
	}
	return results, nil
}

func (r *GormProgressRepository) FindSchedule(elementID, activityID string) (*models.ActivitySchedule, error) {
	var schedule models.ActivitySchedule
	err := r.db.Where("element_id = ? AND activity_id = ?", elementID, activityID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *GormProgressRepository) FindSchedulesBatch(elementIDs, activityIDs []string) ([]models.ActivitySchedule, error) {
	if len(elementIDs) == 0 || len(activityIDs) == 0 {
		return nil, nil
	}
	var schedules []models.ActivitySchedule
	err := r.db.Where("element_id IN ? AND activity_id IN ?", elementIDs, activityIDs).Find(&schedules).Error
	return schedules, err
}

// FindPendingLogs lists records awaiting approval, newest first, with the
// element/activity display fields preloaded.
func (r *GormProgressRepository) FindPendingLogs(companyID string) ([]models.ProductionProgress, error) {
	query := r.db.Preload("Activity").Preload("Element").
		Where("current_status = ?", models.StatusPending).
		Order("created_at DESC")
	if companyID != "" {
		query = query.Where("element_id IN (SELECT id FROM map_elements WHERE company_id = ?)", companyID)
	}

	var results []models.ProductionProgress
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	for i := range results {
		results[i].ReconstructDates()
	}
	return results, nil
}

func (r *GormProgressRepository) FindElementProjectID(elementID string) (string, error) {
	var element models.MapElement
	err := r.db.Select("project_id").Where("id = ?", elementID).First(&element).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return element.ProjectID, nil
}

func (r *GormProgressRepository) FindElementCompanyID(elementID string) (string, error) {
	var element models.MapElement
	err := r.db.Select("company_id").Where("id = ?", elementID).First(&element).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return element.CompanyID, nil
}

// SyncWorkStages recomputes the average percent for the activity within the
// project and upserts it into the daily progress row of every linked work
// stage. The row id is deterministic per stage and day so the same day's sync
// overwrites instead of accumulating. Errors are logged, never propagated.
func (r *GormProgressRepository) SyncWorkStages(elementID, activityID, projectID, updatedBy string) error {
	if elementID != "" {
		var count int64
		if err := r.db.Model(&models.MapElement{}).Where("id = ?", elementID).Count(&count).Error; err != nil {
			log.Printf("Error syncing work stages: %v", err)
			return nil
		}
		if count == 0 {
			return nil
		}
	}

	var stages []models.WorkStage
	if err := r.db.Where("production_activity_id = ?", activityID).Find(&stages).Error; err != nil {
		log.Printf("Error syncing work stages: %v", err)
		return nil
	}

	for _, stage := range stages {
		if err := r.syncWorkStageItem(stage, activityID, projectID, updatedBy); err != nil {
			log.Printf("Error syncing work stage %s: %v", stage.ID, err)
		}
	}
	return nil
}

func (r *GormProgressRepository) syncWorkStageItem(stage models.WorkStage, activityID, projectID, updatedBy string) error {
	var avgProgress float64
	err := r.db.Model(&models.ProductionProgress{}).
		Where("activity_id = ? AND project_id = ?", activityID, projectID).
		Select("COALESCE(AVG(progress_percent), 0)").
		Scan(&avgProgress).Error
	if err != nil {
		return err
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	id := fmt.Sprintf("auto_%s_%d", stage.ID, today.UnixMilli())

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.StageProgress
		err := tx.Where("id = ?", id).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&models.StageProgress{}).Where("id = ?", id).Updates(map[string]interface{}{
				"actual_percentage": avgProgress,
				"updated_by":        updatedBy,
				"updated_at":        time.Now(),
			}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.StageProgress{
				ID:               id,
				StageID:          stage.ID,
				ActualPercentage: avgProgress,
				RecordedDate:     today,
				UpdatedBy:        updatedBy,
				Notes:            "Automatic sync from production progress",
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return tx.Model(&models.WorkStage{}).Where("id = ?", stage.ID).
			Update("actual_percentage", avgProgress).Error
	})
}
