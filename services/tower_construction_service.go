package services

import (
	"backend/models"
	"backend/repository"
	"fmt"
	"log"
)

// TowerConstructionService imports construction technical data and pushes the
// engineering figures back onto the legacy skeleton rows. Towers unknown to
// the production context are provisioned there with default metadata.
type TowerConstructionService struct {
	production   repository.TowerProductionRepository
	construction repository.TowerConstructionRepository
	elements     repository.MapElementRepository
}

func NewTowerConstructionService(
	production repository.TowerProductionRepository,
	construction repository.TowerConstructionRepository,
	elements repository.MapElementRepository,
) *TowerConstructionService {
	return &TowerConstructionService{
		production:   production,
		construction: construction,
		elements:     elements,
	}
}

// ImportProjectData upserts the construction rows for a project, provisions
// any towers the production context has never seen, and then syncs each
// tower's technical metadata into its map element. Sync failures count the
// item as failed but never abort the rest of the batch.
func (s *TowerConstructionService) ImportProjectData(projectID string, req models.ConstructionImportRequest) (*models.ImportResults, error) {
	results := &models.ImportResults{Total: len(req.Items)}

	valid := make([]models.ConstructionImportItem, 0, len(req.Items))
	for i, item := range req.Items {
		if item.TowerID == "" {
			results.Failed++
			results.Errors = append(results.Errors, models.ImportError{
				Item:  fmt.Sprintf("item %d", i),
				Error: "construction row has no towerId",
			})
			continue
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return results, nil
	}

	rows := make([]models.TowerConstruction, len(valid))
	for i, item := range valid {
		rows[i] = models.TowerConstruction{
			ProjectID: projectID,
			CompanyID: req.CompanyID,
			TowerID:   item.TowerID,
			Sequencia: item.Sequencia,
			Metadata:  constructionMetadata(item),
		}
	}
	if err := s.construction.SaveMany(rows); err != nil {
		return nil, fmt.Errorf("construction import failed: %v", err)
	}

	s.provisionProductionTowers(projectID, req.CompanyID, valid)

	for _, item := range valid {
		err := s.elements.SyncTechnicalData(projectID, item.TowerID, technicalMetadata(item))
		if err != nil {
			results.Failed++
			results.Errors = append(results.Errors, models.ImportError{
				Item:  item.TowerID,
				Error: err.Error(),
			})
			continue
		}
		results.Imported++
	}
	return results, nil
}

// provisionProductionTowers creates default production rows for towers the
// construction import introduced. Existing production rows are never touched,
// and a provisioning failure only costs the default rows, not the import.
func (s *TowerConstructionService) provisionProductionTowers(projectID, companyID string, items []models.ConstructionImportItem) {
	towerIDs := make([]string, len(items))
	for i, item := range items {
		towerIDs[i] = item.TowerID
	}
	existing, err := s.production.FindExistingTowerIDs(projectID, towerIDs)
	if err != nil {
		log.Printf("production provisioning lookup failed for project %s: %v", projectID, err)
		return
	}

	var rows []models.TowerProduction
	for _, item := range items {
		if existing[item.TowerID] {
			continue
		}
		rows = append(rows, models.TowerProduction{
			ProjectID: projectID,
			CompanyID: companyID,
			TowerID:   item.TowerID,
			Sequencia: item.Sequencia,
			Metadata:  models.JSONMap{"trecho": "", "towerType": "Autoportante"},
		})
	}
	if len(rows) == 0 {
		return
	}

	log.Printf("provisioning %d production towers in project %s (%d already exist)",
		len(rows), projectID, len(existing))
	if err := s.production.SaveMany(rows); err != nil {
		log.Printf("production provisioning failed for project %s: %v", projectID, err)
	}
}

func constructionMetadata(item models.ConstructionImportItem) models.JSONMap {
	metadata := models.JSONMap{
		"vao":           item.Vao,
		"elevacao":      item.Elevacao,
		"zona":          item.Zona,
		"pesoEstrutura": item.PesoEstrutura,
		"pesoConcreto":  item.PesoConcreto,
		"pesoEscavacao": item.PesoEscavacao,
		"aco1":          item.Aco1,
		"aco2":          item.Aco2,
		"aco3":          item.Aco3,
	}
	if item.Lat != 0 || item.Lng != 0 {
		metadata["lat"] = item.Lat
		metadata["lng"] = item.Lng
	}
	for k, v := range item.Metadata {
		metadata[k] = v
	}
	return metadata
}

// technicalMetadata is the subset of construction figures surfaced on the
// shared map skeleton.
func technicalMetadata(item models.ConstructionImportItem) models.JSONMap {
	return models.JSONMap{
		"goForward":     item.Vao,
		"pesoEstrutura": item.PesoEstrutura,
		"totalConcreto": item.PesoConcreto,
		"pesoArmacao":   item.Aco1 + item.Aco2 + item.Aco3,
	}
}
