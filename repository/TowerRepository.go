package repository

import (
	"backend/models"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const importBatchSize = 50

// TowerProductionRepository persists the production-context tower rows.
type TowerProductionRepository interface {
	SaveMany(rows []models.TowerProduction) error
	FindByProject(projectID string) ([]models.TowerProduction, error)
	FindExistingTowerIDs(projectID string, towerIDs []string) (map[string]bool, error)
}

// TowerConstructionRepository persists the construction-context tower rows.
type TowerConstructionRepository interface {
	SaveMany(rows []models.TowerConstruction) error
	FindByProject(projectID string) ([]models.TowerConstruction, error)
}

// MapElementRepository persists the legacy skeleton rows shared by every context.
type MapElementRepository interface {
	SaveMany(rows []models.MapElement) error
	FindByProject(projectID string) ([]models.MapElement, error)
	FindByID(id string) (*models.MapElement, error)
	SyncTechnicalData(projectID, externalID string, metadata models.JSONMap) error
}

type GormTowerProductionRepository struct {
	db *gorm.DB
}

func NewGormTowerProductionRepository(db *gorm.DB) *GormTowerProductionRepository {
	return &GormTowerProductionRepository{db: db}
}

// SaveMany upserts rows on (project_id, tower_id), batched so one bad batch
// does not abort the whole import transaction log.
func (r *GormTowerProductionRepository) SaveMany(rows []models.TowerProduction) error {
	for start := 0; start < len(rows); start += importBatchSize {
		end := start + importBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		err := r.db.Transaction(func(tx *gorm.DB) error {
			for i := start; i < end; i++ {
				if err := upsertTowerProduction(tx, &rows[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to save production towers batch %d-%d: %v", start, end, err)
		}
	}
	return nil
}

func upsertTowerProduction(tx *gorm.DB, row *models.TowerProduction) error {
	var existing models.TowerProduction
	err := tx.Where("project_id = ? AND tower_id = ?", row.ProjectID, row.TowerID).First(&existing).Error
	switch {
	case err == nil:
		merged := mergeMetadata(existing.Metadata, row.Metadata)
		return tx.Model(&models.TowerProduction{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"sequencia":  row.Sequencia,
			"metadata":   merged,
			"updated_at": time.Now(),
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row.ID = uuid.NewString()
		return tx.Create(row).Error
	default:
		return err
	}
}

func (r *GormTowerProductionRepository) FindByProject(projectID string) ([]models.TowerProduction, error) {
	var rows []models.TowerProduction
	err := r.db.Where("project_id = ?", projectID).Order("sequencia ASC").Find(&rows).Error
	return rows, err
}

func (r *GormTowerProductionRepository) FindExistingTowerIDs(projectID string, towerIDs []string) (map[string]bool, error) {
	if len(towerIDs) == 0 {
		return map[string]bool{}, nil
	}
	var found []string
	err := r.db.Model(&models.TowerProduction{}).
		Where("project_id = ? AND tower_id IN ?", projectID, towerIDs).
		Pluck("tower_id", &found).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(found))
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

type GormTowerConstructionRepository struct {
	db *gorm.DB
}

func NewGormTowerConstructionRepository(db *gorm.DB) *GormTowerConstructionRepository {
	return &GormTowerConstructionRepository{db: db}
}

func (r *GormTowerConstructionRepository) SaveMany(rows []models.TowerConstruction) error {
	for start := 0; start < len(rows); start += importBatchSize {
		end := start + importBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		err := r.db.Transaction(func(tx *gorm.DB) error {
			for i := start; i < end; i++ {
				if err := upsertTowerConstruction(tx, &rows[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to save construction towers batch %d-%d: %v", start, end, err)
		}
	}
	return nil
}

func upsertTowerConstruction(tx *gorm.DB, row *models.TowerConstruction) error {
	var existing models.TowerConstruction
	err := tx.Where("project_id = ? AND tower_id = ?", row.ProjectID, row.TowerID).First(&existing).Error
	switch {
	case err == nil:
		merged := mergeMetadata(existing.Metadata, row.Metadata)
		return tx.Model(&models.TowerConstruction{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"sequencia":  row.Sequencia,
			"metadata":   merged,
			"updated_at": time.Now(),
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row.ID = uuid.NewString()
		return tx.Create(row).Error
	default:
		return err
	}
}

func (r *GormTowerConstructionRepository) FindByProject(projectID string) ([]models.TowerConstruction, error) {
	var rows []models.TowerConstruction
	err := r.db.Where("project_id = ?", projectID).Order("sequencia ASC").Find(&rows).Error
	return rows, err
}

type GormMapElementRepository struct {
	db *gorm.DB
}

func NewGormMapElementRepository(db *gorm.DB) *GormMapElementRepository {
	return &GormMapElementRepository{db: db}
}

func (r *GormMapElementRepository) SaveMany(rows []models.MapElement) error {
	for start := 0; start < len(rows); start += importBatchSize {
		end := start + importBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		err := r.db.Transaction(func(tx *gorm.DB) error {
			for i := start; i < end; i++ {
				if err := upsertMapElement(tx, &rows[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to save map elements batch %d-%d: %v", start, end, err)
		}
	}
	return nil
}

func upsertMapElement(tx *gorm.DB, row *models.MapElement) error {
	var existing models.MapElement
	err := tx.Where("project_id = ? AND external_id = ?", row.ProjectID, row.ExternalID).First(&existing).Error
	switch {
	case err == nil:
		merged := mergeMetadata(existing.Metadata, row.Metadata)
		updates := map[string]interface{}{
			"name":       row.Name,
			"sequence":   row.Sequence,
			"metadata":   merged,
			"updated_at": time.Now(),
		}
		if row.SiteID != nil {
			updates["site_id"] = *row.SiteID
		}
		if row.Latitude != nil {
			updates["latitude"] = *row.Latitude
		}
		if row.Longitude != nil {
			updates["longitude"] = *row.Longitude
		}
		if row.Elevation != nil {
			updates["elevation"] = *row.Elevation
		}
		return tx.Model(&models.MapElement{}).Where("id = ?", existing.ID).Updates(updates).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		row.ID = uuid.NewString()
		return tx.Create(row).Error
	default:
		return err
	}
}

func (r *GormMapElementRepository) FindByProject(projectID string) ([]models.MapElement, error) {
	var rows []models.MapElement
	err := r.db.Where("project_id = ?", projectID).Order("sequence ASC").Find(&rows).Error
	return rows, err
}

func (r *GormMapElementRepository) FindByID(id string) (*models.MapElement, error) {
	var row models.MapElement
	err := r.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SyncTechnicalData merges the given metadata into the skeleton row keyed by
// (project_id, external_id), in one transaction. Only provided keys change.
func (r *GormMapElementRepository) SyncTechnicalData(projectID, externalID string, metadata models.JSONMap) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.MapElement
		err := tx.Where("project_id = ? AND external_id = ?", projectID, externalID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("map element %s not found in project %s", externalID, projectID)
		}
		if err != nil {
			return err
		}
		merged := mergeMetadata(existing.Metadata, metadata)
		return tx.Model(&models.MapElement{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"metadata":   merged,
			"updated_at": time.Now(),
		}).Error
	})
}

// mergeMetadata overlays incoming keys onto the stored blob without dropping
// keys the incoming payload does not mention.
func mergeMetadata(existing, incoming models.JSONMap) models.JSONMap {
	merged := make(models.JSONMap, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
