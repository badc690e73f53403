package services

import (
	"backend/models"
	"backend/repository"
	"fmt"
	"strings"
	"sync"
)

// TowerImportService turns one import payload into three coordinated writes:
// the production context, the construction context, and the legacy map
// skeleton. The three branches run concurrently and the batch fails as a
// whole if any branch fails.
type TowerImportService struct {
	production   repository.TowerProductionRepository
	construction repository.TowerConstructionRepository
	elements     repository.MapElementRepository
}

func NewTowerImportService(
	production repository.TowerProductionRepository,
	construction repository.TowerConstructionRepository,
	elements repository.MapElementRepository,
) *TowerImportService {
	return &TowerImportService{
		production:   production,
		construction: construction,
		elements:     elements,
	}
}

// ProcessImport fans the items out to the three tower tables. On any branch
// failure the result reports every item as failed, since partial visibility
// across contexts is worse than a clean retry.
func (s *TowerImportService) ProcessImport(projectID string, req models.TowerImportRequest) (*models.ImportResults, error) {
	items := make([]models.TowerImportItem, 0, len(req.Items))
	seqs := make([]int, 0, len(req.Items))
	var errs []models.ImportError
	for i, item := range req.Items {
		if towerID(item) == "" {
			errs = append(errs, models.ImportError{
				Item:  fmt.Sprintf("item %d", i),
				Error: "tower has no number or externalId",
			})
			continue
		}
		items = append(items, item)
		seqs = append(seqs, sequenceFor(item, i))
	}

	results := &models.ImportResults{Total: len(req.Items), Errors: errs}
	results.Failed = len(errs)
	if len(items) == 0 {
		return results, nil
	}

	productionRows := make([]models.TowerProduction, len(items))
	constructionRows := make([]models.TowerConstruction, len(items))
	elementRows := make([]models.MapElement, len(items))
	for i, item := range items {
		id := towerID(item)
		productionRows[i] = buildProductionRow(projectID, req.CompanyID, id, seqs[i], item)
		constructionRows[i] = buildConstructionRow(projectID, req.CompanyID, id, seqs[i], item)
		elementRows[i] = buildElementRow(projectID, req.CompanyID, req.DefaultSiteID, id, seqs[i], item)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var branchErrs []error

	run := func(name string, fn func() error) {
		defer wg.Done()
		if err := fn(); err != nil {
			mu.Lock()
			branchErrs = append(branchErrs, fmt.Errorf("%s import failed: %v", name, err))
			mu.Unlock()
		}
	}

	wg.Add(3)
	go run("production", func() error { return s.production.SaveMany(productionRows) })
	go run("construction", func() error { return s.construction.SaveMany(constructionRows) })
	go run("map elements", func() error { return s.elements.SaveMany(elementRows) })
	wg.Wait()

	if len(branchErrs) > 0 {
		msgs := make([]string, len(branchErrs))
		for i, err := range branchErrs {
			msgs[i] = err.Error()
		}
		results.Imported = 0
		results.Failed = results.Total
		results.Errors = append(results.Errors, models.ImportError{
			Item:  "batch",
			Error: strings.Join(msgs, "; "),
		})
		return results, fmt.Errorf("tower import failed: %s", strings.Join(msgs, "; "))
	}

	results.Imported = len(items)
	return results, nil
}

// towerID resolves the tower identifier; an explicit externalId wins over the
// spreadsheet number.
func towerID(item models.TowerImportItem) string {
	if item.ExternalID != "" {
		return item.ExternalID
	}
	return item.Number
}

// sequenceFor falls back to the payload position, so payloads without
// sequence numbers still import in a deterministic order.
func sequenceFor(item models.TowerImportItem, index int) int {
	if item.ObjectSeq != nil {
		return *item.ObjectSeq
	}
	if item.Sequence != nil {
		return *item.Sequence
	}
	return index + 1
}

func buildProductionRow(projectID, companyID, id string, seq int, item models.TowerImportItem) models.TowerProduction {
	metadata := models.JSONMap{}
	putString(metadata, "trecho", item.Trecho)
	putString(metadata, "towerType", item.TowerType)
	putString(metadata, "tramoLancamento", item.TramoLancamento)
	putString(metadata, "tipificacaoEstrutura", item.TipificacaoEstrutura)
	putFloat(metadata, "goForward", firstFloat(item.GoForward, item.SpanLength))

	return models.TowerProduction{
		ProjectID: projectID,
		CompanyID: companyID,
		TowerID:   id,
		Sequencia: seq,
		Metadata:  metadata,
	}
}

func buildConstructionRow(projectID, companyID, id string, seq int, item models.TowerImportItem) models.TowerConstruction {
	metadata := models.JSONMap{}
	putString(metadata, "foundationType", item.FoundationType)
	putFloat(metadata, "totalConcreto", firstFloat(item.TotalConcreto, item.ConcreteVolume))
	putFloat(metadata, "pesoArmacao", firstFloat(item.PesoArmacao, item.SteelWeight))
	putFloat(metadata, "pesoEstrutura", firstFloat(item.PesoEstrutura, item.StructureWeight))

	return models.TowerConstruction{
		ProjectID: projectID,
		CompanyID: companyID,
		TowerID:   id,
		Sequencia: seq,
		Metadata:  metadata,
	}
}

func buildElementRow(projectID, companyID, defaultSiteID, id string, seq int, item models.TowerImportItem) models.MapElement {
	metadata := models.JSONMap{}
	putString(metadata, "towerType", item.TowerType)
	putString(metadata, "trecho", item.Trecho)
	putFloat(metadata, "goForward", firstFloat(item.GoForward, item.SpanLength))
	putFloat(metadata, "totalConcreto", firstFloat(item.TotalConcreto, item.ConcreteVolume))
	putFloat(metadata, "pesoArmacao", firstFloat(item.PesoArmacao, item.SteelWeight))
	putFloat(metadata, "pesoEstrutura", firstFloat(item.PesoEstrutura, item.StructureWeight))

	element := models.MapElement{
		ProjectID:   projectID,
		CompanyID:   companyID,
		ExternalID:  id,
		Name:        id,
		ElementType: "TOWER",
		Sequence:    seq,
		Latitude:    item.Lat,
		Longitude:   item.Lng,
		Elevation:   item.Alt,
		Metadata:    metadata,
	}
	siteID := item.SiteID
	if siteID == "" {
		siteID = defaultSiteID
	}
	if siteID != "" {
		element.SiteID = &siteID
	}
	return element
}

// firstFloat returns the first non-nil candidate, preserving explicit zeroes.
func firstFloat(candidates ...*float64) *float64 {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func putString(m models.JSONMap, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func putFloat(m models.JSONMap, key string, value *float64) {
	if value != nil {
		m[key] = *value
	}
}
