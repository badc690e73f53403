package services

import (
	"backend/models"
	"errors"
	"strings"
	"sync"
	"testing"
)

type fakeTowerProductionRepo struct {
	mu       sync.Mutex
	rows     []models.TowerProduction
	existing map[string]bool
	err      error
}

func (f *fakeTowerProductionRepo) SaveMany(rows []models.TowerProduction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeTowerProductionRepo) FindByProject(projectID string) ([]models.TowerProduction, error) {
	return f.rows, nil
}

func (f *fakeTowerProductionRepo) FindExistingTowerIDs(projectID string, towerIDs []string) (map[string]bool, error) {
	if f.existing == nil {
		return map[string]bool{}, nil
	}
	return f.existing, nil
}

type fakeTowerConstructionRepo struct {
	mu   sync.Mutex
	rows []models.TowerConstruction
	err  error
}

func (f *fakeTowerConstructionRepo) SaveMany(rows []models.TowerConstruction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeTowerConstructionRepo) FindByProject(projectID string) ([]models.TowerConstruction, error) {
	return f.rows, nil
}

type fakeMapElementRepo struct {
	mu        sync.Mutex
	rows      []models.MapElement
	synced    map[string]models.JSONMap
	err       error
	syncErrOn string
}

func (f *fakeMapElementRepo) SaveMany(rows []models.MapElement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeMapElementRepo) FindByProject(projectID string) ([]models.MapElement, error) {
	return f.rows, nil
}

func (f *fakeMapElementRepo) FindByID(id string) (*models.MapElement, error) {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

func (f *fakeMapElementRepo) SyncTechnicalData(projectID, externalID string, metadata models.JSONMap) error {
	if f.syncErrOn == externalID {
		return errors.New("map element not found")
	}
	if f.synced == nil {
		f.synced = map[string]models.JSONMap{}
	}
	f.synced[externalID] = metadata
	return nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestProcessImportFansOutToAllThreeTables(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerImportService(prod, constr, elements)

	results, err := svc.ProcessImport("proj-1", models.TowerImportRequest{
		CompanyID: "co-1",
		Items: []models.TowerImportItem{
			{Number: "T-001", TowerType: "AT-230", TotalConcreto: floatPtr(45.2), ObjectSeq: intPtr(3)},
			{ExternalID: "T-002", Trecho: "T2"},
		},
	})
	if err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}
	if results.Imported != 2 || results.Failed != 0 {
		t.Errorf("results = %+v, want 2 imported", results)
	}
	if len(prod.rows) != 2 || len(constr.rows) != 2 || len(elements.rows) != 2 {
		t.Errorf("fan-out incomplete: prod=%d constr=%d elements=%d",
			len(prod.rows), len(constr.rows), len(elements.rows))
	}
	if prod.rows[0].TowerID != "T-001" || prod.rows[0].Sequencia != 3 {
		t.Errorf("production row: %+v", prod.rows[0])
	}
	if constr.rows[0].Metadata["totalConcreto"] != 45.2 {
		t.Errorf("construction metadata: %+v", constr.rows[0].Metadata)
	}
}

func TestProcessImportFieldFallbacks(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerImportService(prod, constr, elements)

	_, err := svc.ProcessImport("proj-1", models.TowerImportRequest{
		CompanyID: "co-1",
		Items: []models.TowerImportItem{
			// Primary name absent, fallback present; explicit zero must survive.
			{Number: "T-010", ConcreteVolume: floatPtr(12.5), PesoArmacao: floatPtr(0), SpanLength: floatPtr(380)},
		},
	})
	if err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}

	meta := constr.rows[0].Metadata
	if meta["totalConcreto"] != 12.5 {
		t.Errorf("totalConcreto = %v, want fallback concreteVolume 12.5", meta["totalConcreto"])
	}
	if meta["pesoArmacao"] != 0.0 {
		t.Errorf("pesoArmacao = %v, explicit zero must be kept", meta["pesoArmacao"])
	}
	if elements.rows[0].Metadata["goForward"] != 380.0 {
		t.Errorf("goForward = %v, want fallback spanLength", elements.rows[0].Metadata["goForward"])
	}
}

func TestProcessImportPrimaryFieldWinsOverFallback(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerImportService(prod, constr, elements)

	_, err := svc.ProcessImport("proj-1", models.TowerImportRequest{
		CompanyID: "co-1",
		Items: []models.TowerImportItem{
			{Number: "T-011", TotalConcreto: floatPtr(50), ConcreteVolume: floatPtr(99)},
		},
	})
	if err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}
	if constr.rows[0].Metadata["totalConcreto"] != 50.0 {
		t.Errorf("totalConcreto = %v, primary field must win", constr.rows[0].Metadata["totalConcreto"])
	}
}

func TestProcessImportMissingIdentifier(t *testing.T) {
	svc := NewTowerImportService(&fakeTowerProductionRepo{}, &fakeTowerConstructionRepo{}, &fakeMapElementRepo{})

	results, err := svc.ProcessImport("proj-1", models.TowerImportRequest{
		CompanyID: "co-1",
		Items: []models.TowerImportItem{
			{TowerType: "AT-230"}, // no number, no externalId
			{Number: "T-001"},
		},
	})
	if err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}
	if results.Imported != 1 || results.Failed != 1 || len(results.Errors) != 1 {
		t.Errorf("results = %+v, want 1 imported / 1 failed", results)
	}
}

func TestProcessImportBranchFailureFailsWholeBatch(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{err: errors.New("constraint violation")}
	elements := &fakeMapElementRepo{}
	svc := NewTowerImportService(prod, constr, elements)

	results, err := svc.ProcessImport("proj-1", models.TowerImportRequest{
		CompanyID: "co-1",
		Items: []models.TowerImportItem{
			{Number: "T-001"},
			{Number: "T-002"},
			{Number: "T-003"},
		},
	})
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if results.Imported != 0 {
		t.Errorf("Imported = %d, want 0 on branch failure", results.Imported)
	}
	if results.Failed != results.Total {
		t.Errorf("Failed = %d, want Total = %d", results.Failed, results.Total)
	}
	if !strings.Contains(err.Error(), "construction") {
		t.Errorf("error should name the failed branch: %v", err)
	}
}

func TestProcessImportExternalIDWinsOverNumber(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerImportService(prod, constr, elements)

	_, err := svc.ProcessImport("proj-1", models.TowerImportRequest{
		CompanyID: "co-1",
		Items: []models.TowerImportItem{
			{Number: "T-020", ExternalID: "EXT-020"},
		},
	})
	if err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}
	if prod.rows[0].TowerID != "EXT-020" {
		t.Errorf("TowerID = %q, externalId must win over number", prod.rows[0].TowerID)
	}
	if elements.rows[0].ExternalID != "EXT-020" {
		t.Errorf("ExternalID = %q, want EXT-020", elements.rows[0].ExternalID)
	}
}

func TestProcessImportSequenceFallsBackToPosition(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerImportService(prod, constr, elements)

	_, err := svc.ProcessImport("proj-1", models.TowerImportRequest{
		CompanyID: "co-1",
		Items: []models.TowerImportItem{
			{Number: "T-001"},
			{Number: "T-002"},
			{Number: "T-003", ObjectSeq: intPtr(90)},
		},
	})
	if err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}
	got := []int{prod.rows[0].Sequencia, prod.rows[1].Sequencia, prod.rows[2].Sequencia}
	want := []int{1, 2, 90}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sequencia = %v, want %v (position fallback)", got, want)
			break
		}
	}
	if elements.rows[1].Sequence != 2 {
		t.Errorf("element Sequence = %d, want 2", elements.rows[1].Sequence)
	}
}

func TestConstructionImportSyncsTechnicalData(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerConstructionService(prod, constr, elements)

	results, err := svc.ImportProjectData("proj-1", models.ConstructionImportRequest{
		CompanyID: "co-1",
		Items: []models.ConstructionImportItem{
			{TowerID: "T-001", Vao: 410, PesoEstrutura: 18.4, PesoConcreto: 52.1, Aco1: 1.2, Aco2: 0.8, Aco3: 0.5},
		},
	})
	if err != nil {
		t.Fatalf("ImportProjectData: %v", err)
	}
	if results.Imported != 1 {
		t.Errorf("results = %+v", results)
	}

	synced := elements.synced["T-001"]
	if synced == nil {
		t.Fatal("technical data not synced to map element")
	}
	if synced["goForward"] != 410.0 {
		t.Errorf("goForward = %v", synced["goForward"])
	}
	if synced["pesoArmacao"] != 2.5 {
		t.Errorf("pesoArmacao = %v, want sum of aco fields", synced["pesoArmacao"])
	}
}

func TestConstructionImportProvisionsMissingProductionTowers(t *testing.T) {
	prod := &fakeTowerProductionRepo{existing: map[string]bool{"T-001": true}}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerConstructionService(prod, constr, elements)

	results, err := svc.ImportProjectData("proj-1", models.ConstructionImportRequest{
		CompanyID: "co-1",
		Items: []models.ConstructionImportItem{
			{TowerID: "T-001", Sequencia: 1},
			{TowerID: "T-002", Sequencia: 2},
		},
	})
	if err != nil {
		t.Fatalf("ImportProjectData: %v", err)
	}
	if results.Imported != 2 {
		t.Errorf("results = %+v, want 2 imported", results)
	}

	// Only the unknown tower gets a default production row.
	if len(prod.rows) != 1 {
		t.Fatalf("production rows = %d, want 1", len(prod.rows))
	}
	row := prod.rows[0]
	if row.TowerID != "T-002" || row.Sequencia != 2 {
		t.Errorf("provisioned row: %+v", row)
	}
	if row.Metadata["towerType"] != "Autoportante" || row.Metadata["trecho"] != "" {
		t.Errorf("default metadata: %+v", row.Metadata)
	}
}

func TestConstructionImportProvisioningFailureIsNotFatal(t *testing.T) {
	prod := &fakeTowerProductionRepo{err: errors.New("production table unavailable")}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{}
	svc := NewTowerConstructionService(prod, constr, elements)

	results, err := svc.ImportProjectData("proj-1", models.ConstructionImportRequest{
		CompanyID: "co-1",
		Items: []models.ConstructionImportItem{
			{TowerID: "T-001"},
		},
	})
	if err != nil {
		t.Fatalf("ImportProjectData: %v", err)
	}
	if results.Imported != 1 || results.Failed != 0 {
		t.Errorf("results = %+v, provisioning failure must not fail the import", results)
	}
	if len(constr.rows) != 1 {
		t.Errorf("construction rows = %d, want 1", len(constr.rows))
	}
}

func TestConstructionImportSyncFailureIsPerItem(t *testing.T) {
	prod := &fakeTowerProductionRepo{}
	constr := &fakeTowerConstructionRepo{}
	elements := &fakeMapElementRepo{syncErrOn: "T-002"}
	svc := NewTowerConstructionService(prod, constr, elements)

	results, err := svc.ImportProjectData("proj-1", models.ConstructionImportRequest{
		CompanyID: "co-1",
		Items: []models.ConstructionImportItem{
			{TowerID: "T-001"},
			{TowerID: "T-002"},
		},
	})
	if err != nil {
		t.Fatalf("ImportProjectData: %v", err)
	}
	if results.Imported != 1 || results.Failed != 1 {
		t.Errorf("results = %+v, want 1 imported / 1 failed", results)
	}
	if len(constr.rows) != 2 {
		t.Errorf("construction rows = %d, upsert must not be rolled back by sync failures", len(constr.rows))
	}
}
