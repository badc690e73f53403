package services

import (
	"backend/models"
	"backend/repository"
	"fmt"
	"testing"
	"time"
)

// fakeProgressRepo is an in-memory ProgressRepository for service tests.
type fakeProgressRepo struct {
	records   map[string]*models.ProductionProgress // keyed by element|activity
	byID      map[string]*models.ProductionProgress
	schedules map[string]*models.ActivitySchedule
	projects  map[string]string // element -> project
	nextID    int
	syncCalls []string // "project|activity"
	elements  []repository.ElementWithProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{
		records:   map[string]*models.ProductionProgress{},
		byID:      map[string]*models.ProductionProgress{},
		schedules: map[string]*models.ActivitySchedule{},
		projects:  map[string]string{},
	}
}

func key(elementID, activityID string) string { return elementID + "|" + activityID }

func (f *fakeProgressRepo) Save(p *models.ProductionProgress) (*models.ProductionProgress, error) {
	if p.ID == "" {
		f.nextID++
		p.ID = fmt.Sprintf("p%d", f.nextID)
	}
	clone := *p
	f.records[key(p.ElementID, p.ActivityID)] = &clone
	f.byID[p.ID] = &clone
	return &clone, nil
}

func (f *fakeProgressRepo) SaveMany(ps []*models.ProductionProgress) error {
	for _, p := range ps {
		if _, err := f.Save(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeProgressRepo) FindByID(id string) (*models.ProductionProgress, error) {
	if p, ok := f.byID[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeProgressRepo) FindByElement(elementID string) ([]models.ProductionProgress, error) {
	var out []models.ProductionProgress
	for _, p := range f.records {
		if p.ElementID == elementID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProgressRepo) FindByElementAndActivity(elementID, activityID string) (*models.ProductionProgress, error) {
	if p, ok := f.records[key(elementID, activityID)]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeProgressRepo) FindByElementsBatch(ids []string) ([]models.ProductionProgress, error) {
	var out []models.ProductionProgress
	for _, id := range ids {
		found, _ := f.FindByElement(id)
		out = append(out, found...)
	}
	return out, nil
}

func (f *fakeProgressRepo) FindByActivity(projectID, activityID string) ([]models.ProductionProgress, error) {
	var out []models.ProductionProgress
	for _, p := range f.records {
		if p.ProjectID == projectID && p.ActivityID == activityID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProgressRepo) FindElementsWithProgress(projectID, companyID, siteID string) ([]repository.ElementWithProgress, error) {
	return f.elements, nil
}

func (f *fakeProgressRepo) FindSchedule(elementID, activityID string) (*models.ActivitySchedule, error) {
	return f.schedules[key(elementID, activityID)], nil
}

func (f *fakeProgressRepo) FindSchedulesBatch(elementIDs, activityIDs []string) ([]models.ActivitySchedule, error) {
	var out []models.ActivitySchedule
	for _, s := range f.schedules {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeProgressRepo) FindPendingLogs(companyID string) ([]models.ProductionProgress, error) {
	var out []models.ProductionProgress
	for _, p := range f.records {
		if p.CurrentStatus == models.StatusPending {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProgressRepo) FindElementProjectID(elementID string) (string, error) {
	return f.projects[elementID], nil
}

func (f *fakeProgressRepo) FindElementCompanyID(elementID string) (string, error) {
	return "", nil
}

func (f *fakeProgressRepo) SyncWorkStages(elementID, activityID, projectID, updatedBy string) error {
	f.syncCalls = append(f.syncCalls, projectID+"|"+activityID)
	return nil
}

func newTestService(repo *fakeProgressRepo, now time.Time) *ProgressService {
	svc := NewProgressService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func TestUpdateProgressCreatesRecord(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	saved, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID:  "el-1",
		ActivityID: "act-1",
		Status:     models.StatusInProgress,
		Progress:   25,
		UserID:     "user-1",
	})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if saved.ProjectID != "proj-1" {
		t.Errorf("ProjectID = %q, want proj-1 (inferred from element)", saved.ProjectID)
	}
	if saved.StartDate == nil || !saved.StartDate.Equal(now) {
		t.Errorf("StartDate = %v, want clock fallback %v", saved.StartDate, now)
	}
	if len(saved.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(saved.History))
	}
	if len(repo.syncCalls) != 1 || repo.syncCalls[0] != "proj-1|act-1" {
		t.Errorf("syncCalls = %v", repo.syncCalls)
	}
}

func TestUpdateProgressScheduleDateInference(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	plannedStart := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	plannedEnd := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	repo.schedules[key("el-1", "act-1")] = &models.ActivitySchedule{
		ElementID:    "el-1",
		ActivityID:   "act-1",
		PlannedStart: &plannedStart,
		PlannedEnd:   &plannedEnd,
	}
	svc := newTestService(repo, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC))

	saved, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID:  "el-1",
		ActivityID: "act-1",
		Status:     models.StatusFinished,
		Progress:   100,
	})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if saved.StartDate == nil || !saved.StartDate.Equal(plannedStart) {
		t.Errorf("StartDate = %v, want planned start %v", saved.StartDate, plannedStart)
	}
	if saved.EndDate == nil || !saved.EndDate.Equal(plannedEnd) {
		t.Errorf("EndDate = %v, want planned end %v", saved.EndDate, plannedEnd)
	}
}

func TestUpdateProgressExplicitDatesWin(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	plannedStart := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	repo.schedules[key("el-1", "act-1")] = &models.ActivitySchedule{PlannedStart: &plannedStart}
	svc := newTestService(repo, time.Now())

	explicit := time.Date(2025, 8, 20, 7, 30, 0, 0, time.UTC)
	saved, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID:  "el-1",
		ActivityID: "act-1",
		Status:     models.StatusInProgress,
		Progress:   10,
		Dates:      &models.ProgressDates{Start: &explicit},
	})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if saved.StartDate == nil || !saved.StartDate.Equal(explicit) {
		t.Errorf("StartDate = %v, want explicit %v", saved.StartDate, explicit)
	}
}

func TestUpdateProgressKeepsExistingStartDate(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	svc := newTestService(repo, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	first, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 10,
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	svc.now = func() time.Time { return time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC) }
	second, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusFinished, Progress: 100,
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if !second.StartDate.Equal(*first.StartDate) {
		t.Errorf("StartDate changed on finish: %v -> %v", first.StartDate, second.StartDate)
	}
	if second.EndDate == nil {
		t.Error("EndDate not set on finish")
	}
	if len(second.History) != 2 {
		t.Errorf("len(History) = %d, want 2", len(second.History))
	}
}

func TestUpdateProgressStampsEffectiveDatesOnHistory(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	saved, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID:  "el-1",
		ActivityID: "act-1",
		Status:     models.StatusFinished,
		Progress:   100,
		Metadata:   map[string]interface{}{"crew": "A"},
	})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	meta := saved.History[0].Metadata
	if meta["crew"] != "A" {
		t.Errorf("caller metadata lost: %+v", meta)
	}
	wantDate := now.Format(time.RFC3339Nano)
	if meta["finalStartDate"] != wantDate {
		t.Errorf("finalStartDate = %v, want %v", meta["finalStartDate"], wantDate)
	}
	if meta["finalEndDate"] != wantDate {
		t.Errorf("finalEndDate = %v, want %v", meta["finalEndDate"], wantDate)
	}
}

func TestUpdateProgressBatchStampsEffectiveDatesOnHistory(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	now := time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, now)

	if _, _, err := svc.UpdateProgressBatch([]models.UpdateProgressRequest{
		{ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 30},
	}); err != nil {
		t.Fatalf("UpdateProgressBatch: %v", err)
	}

	saved, err := svc.repo.FindByElementAndActivity("el-1", "act-1")
	if err != nil || saved == nil {
		t.Fatalf("record not saved: %v", err)
	}
	if saved.History[0].Metadata["finalStartDate"] != now.Format(time.RFC3339Nano) {
		t.Errorf("batch entry metadata = %+v, want finalStartDate stamped", saved.History[0].Metadata)
	}
	if _, ok := saved.History[0].Metadata["finalEndDate"]; ok {
		t.Error("finalEndDate stamped on an unfinished record")
	}
}

func TestUpdateProgressRejectsInvalidStatus(t *testing.T) {
	repo := newFakeProgressRepo()
	svc := newTestService(repo, time.Now())
	_, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: "DONE",
	})
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestUpdateProgressUnknownElement(t *testing.T) {
	repo := newFakeProgressRepo()
	svc := newTestService(repo, time.Now())
	_, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "ghost", ActivityID: "act-1", Status: models.StatusInProgress,
	})
	if err == nil {
		t.Fatal("expected error when project cannot be resolved")
	}
}

func TestUpdateProgressSkipSync(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	svc := newTestService(repo, time.Now())

	_, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 5, SkipSync: true,
	})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if len(repo.syncCalls) != 0 {
		t.Errorf("sync ran despite SkipSync: %v", repo.syncCalls)
	}
}

func TestUpdateProgressBatchSkipsNoOps(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	repo.projects["el-2"] = "proj-1"
	svc := newTestService(repo, time.Now())

	if _, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 50,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.syncCalls = nil

	updated, skipped, err := svc.UpdateProgressBatch([]models.UpdateProgressRequest{
		// No-op: same status, percent delta below threshold, no metadata.
		{ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 50.005},
		{ElementID: "el-2", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 10},
	})
	if err != nil {
		t.Fatalf("UpdateProgressBatch: %v", err)
	}
	if updated != 1 || skipped != 1 {
		t.Errorf("updated=%d skipped=%d, want 1/1", updated, skipped)
	}
	if len(repo.syncCalls) != 1 {
		t.Errorf("sync should run once per (project, activity) pair, got %v", repo.syncCalls)
	}
}

func TestUpdateProgressBatchMetadataForcesUpdate(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	svc := newTestService(repo, time.Now())

	if _, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 50,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated, skipped, err := svc.UpdateProgressBatch([]models.UpdateProgressRequest{
		{ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 50,
			Metadata: map[string]interface{}{"note": "remeasured"}},
	})
	if err != nil {
		t.Fatalf("UpdateProgressBatch: %v", err)
	}
	if updated != 1 || skipped != 0 {
		t.Errorf("updated=%d skipped=%d, metadata must force the update", updated, skipped)
	}
}

func TestApproveLogThroughService(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	svc := newTestService(repo, time.Now())

	saved, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 20,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	approved, err := svc.ApproveLog(saved.ID, models.ApproveLogRequest{
		LogTimestamp: saved.History[0].Timestamp,
		ApprovedBy:   "supervisor",
	})
	if err != nil {
		t.Fatalf("ApproveLog: %v", err)
	}
	if approved.History[0].Status != models.StatusApproved {
		t.Errorf("entry not approved: %+v", approved.History[0])
	}

	if _, err := svc.ApproveLog("missing", models.ApproveLogRequest{LogTimestamp: "x", ApprovedBy: "y"}); err == nil {
		t.Error("expected error for unknown record")
	}
}

func TestListProjectProgressSpreadsNormalizedMetadata(t *testing.T) {
	repo := newFakeProgressRepo()
	plannedStart := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	repo.elements = []repository.ElementWithProgress{
		{
			Element: models.MapElement{
				ID:         "el-1",
				ExternalID: "T-0412",
				Name:       "T-0412",
				ProjectID:  "proj-1",
				Sequence:   12,
				Metadata:   models.JSONMap{"ESTRUTURA": "AT-230", "name": "shadow attempt"},
			},
			Progress: []models.ProductionProgress{
				{ID: "p1", ElementID: "el-1", ActivityID: "act-1", CurrentStatus: models.StatusInProgress, ProgressPercent: 40,
					Activity: &models.ProductionActivity{ID: "act-1", Name: "Foundation"}},
			},
			Schedules: []models.ActivitySchedule{
				{ElementID: "el-1", ActivityID: "act-1", PlannedStart: &plannedStart, PlannedQuantity: 8},
			},
		},
	}
	svc := newTestService(repo, time.Now())

	results, err := svc.ListProjectProgress("proj-1", "", "")
	if err != nil {
		t.Fatalf("ListProjectProgress: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	el := results[0]
	if el["towerType"] != "AT-230" {
		t.Errorf("normalized metadata not spread: towerType = %v", el["towerType"])
	}
	if el["name"] != "T-0412" {
		t.Errorf("reserved field shadowed by metadata: name = %v", el["name"])
	}

	acts, ok := el["activities"].([]models.ActivityStatusDTO)
	if !ok || len(acts) != 1 {
		t.Fatalf("activities missing: %v", el["activities"])
	}
	if acts[0].ActivityName != "Foundation" || acts[0].Progress != 40 {
		t.Errorf("unexpected activity DTO: %+v", acts[0])
	}
	if acts[0].PlannedStartDate == nil || acts[0].PlannedQuantity != 8 {
		t.Errorf("schedule enrichment missing: %+v", acts[0])
	}
}

func TestGetLogsByElementNewestFirst(t *testing.T) {
	repo := newFakeProgressRepo()
	repo.projects["el-1"] = "proj-1"
	svc := newTestService(repo, time.Now())

	if _, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 10,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.UpdateProgress(models.UpdateProgressRequest{
		ElementID: "el-1", ActivityID: "act-1", Status: models.StatusInProgress, Progress: 30,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	logs, err := svc.GetLogsByElement("el-1")
	if err != nil {
		t.Fatalf("GetLogsByElement: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if logs[0].Timestamp < logs[1].Timestamp {
		t.Error("logs not sorted newest first")
	}
	if logs[0].Progress != 30 {
		t.Errorf("newest log progress = %v, want 30", logs[0].Progress)
	}
	if logs[0].ProjectID != "proj-1" {
		t.Errorf("log ProjectID = %q, want proj-1", logs[0].ProjectID)
	}
}
