package services

import (
	"backend/models"
	"backend/repository"
	"fmt"
	"log"
	"math"
	"sort"
	"time"
)

// Element fields that keep their fixed position in a progress response and
// must never be shadowed by a metadata key of the same name.
var reservedElementFields = map[string]bool{
	"id": true, "objectId": true, "name": true, "sequence": true,
	"lat": true, "lng": true, "elevation": true, "siteId": true,
	"projectId": true, "activities": true,
}

// ProgressService owns the production-progress workflow: status updates with
// date inference, history approval, and the enriched project listing.
type ProgressService struct {
	repo repository.ProgressRepository
	now  func() time.Time
}

func NewProgressService(repo repository.ProgressRepository) *ProgressService {
	return &ProgressService{repo: repo, now: time.Now}
}

// UpdateProgress applies one status/percent change to an (element, activity)
// pair, creating the record when none exists. Explicit dates win over schedule
// inference, which wins over the clock.
func (s *ProgressService) UpdateProgress(req models.UpdateProgressRequest) (*models.ProductionProgress, error) {
	if !models.ValidProgressStatus(req.Status) {
		return nil, fmt.Errorf("invalid status %q", req.Status)
	}

	projectID, err := s.resolveProjectID(req.ProjectID, req.ElementID)
	if err != nil {
		return nil, err
	}

	progress, err := s.repo.FindByElementAndActivity(req.ElementID, req.ActivityID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = &models.ProductionProgress{
			ProjectID:     projectID,
			ElementID:     req.ElementID,
			ActivityID:    req.ActivityID,
			CurrentStatus: models.StatusPending,
		}
	}

	schedule, err := s.repo.FindSchedule(req.ElementID, req.ActivityID)
	if err != nil {
		return nil, err
	}

	start, end := s.determineEffectiveDates(progress, req.Status, req.Dates, schedule)
	progress.StartDate = start
	progress.EndDate = end
	progress.RecordProgress(req.Status, req.Progress, stampEffectiveDates(req.Metadata, start, end), req.UserID)

	saved, err := s.repo.Save(progress)
	if err != nil {
		return nil, err
	}

	if !req.SkipSync {
		// Best effort: a failed stage sync never fails the update.
		if err := s.repo.SyncWorkStages(req.ElementID, req.ActivityID, projectID, req.UserID); err != nil {
			log.Printf("work stage sync failed for activity %s: %v", req.ActivityID, err)
		}
	}
	return saved, nil
}

// UpdateProgressBatch applies many updates at once. Updates that would change
// nothing (same status, percent within 0.01, no metadata) are skipped, and
// stage sync runs once per touched (project, activity) pair instead of per row.
func (s *ProgressService) UpdateProgressBatch(reqs []models.UpdateProgressRequest) (int, int, error) {
	if len(reqs) == 0 {
		return 0, 0, nil
	}

	var toSave []*models.ProductionProgress
	skipped := 0
	type syncKey struct{ projectID, activityID string }
	syncTargets := map[syncKey]string{}

	for _, req := range reqs {
		if !models.ValidProgressStatus(req.Status) {
			return 0, 0, fmt.Errorf("invalid status %q for element %s", req.Status, req.ElementID)
		}
		projectID, err := s.resolveProjectID(req.ProjectID, req.ElementID)
		if err != nil {
			return 0, 0, err
		}

		progress, err := s.repo.FindByElementAndActivity(req.ElementID, req.ActivityID)
		if err != nil {
			return 0, 0, err
		}
		if progress != nil && progress.CurrentStatus == req.Status &&
			math.Abs(progress.ProgressPercent-req.Progress) < 0.01 && len(req.Metadata) == 0 {
			skipped++
			continue
		}
		if progress == nil {
			progress = &models.ProductionProgress{
				ProjectID:     projectID,
				ElementID:     req.ElementID,
				ActivityID:    req.ActivityID,
				CurrentStatus: models.StatusPending,
			}
		}

		schedule, err := s.repo.FindSchedule(req.ElementID, req.ActivityID)
		if err != nil {
			return 0, 0, err
		}
		start, end := s.determineEffectiveDates(progress, req.Status, req.Dates, schedule)
		progress.StartDate = start
		progress.EndDate = end
		progress.RecordProgress(req.Status, req.Progress, stampEffectiveDates(req.Metadata, start, end), req.UserID)

		toSave = append(toSave, progress)
		if !req.SkipSync {
			syncTargets[syncKey{projectID, req.ActivityID}] = req.UserID
		}
	}

	if len(toSave) > 0 {
		if err := s.repo.SaveMany(toSave); err != nil {
			return 0, skipped, err
		}
	}
	for key, userID := range syncTargets {
		if err := s.repo.SyncWorkStages("", key.activityID, key.projectID, userID); err != nil {
			log.Printf("work stage sync failed for activity %s: %v", key.activityID, err)
		}
	}
	return len(toSave), skipped, nil
}

// determineEffectiveDates picks the record's start/end. Caller-supplied dates
// always win; otherwise a transition into IN_PROGRESS or FINISHED falls back
// to the planned schedule window, then to the current time.
func (s *ProgressService) determineEffectiveDates(progress *models.ProductionProgress, status string, dates *models.ProgressDates, schedule *models.ActivitySchedule) (*time.Time, *time.Time) {
	start := progress.StartDate
	end := progress.EndDate

	if dates != nil && dates.Start != nil {
		start = dates.Start
	} else if start == nil && (status == models.StatusInProgress || status == models.StatusFinished) {
		if schedule != nil && schedule.PlannedStart != nil {
			start = schedule.PlannedStart
		} else {
			t := s.now()
			start = &t
		}
	}

	if dates != nil && dates.End != nil {
		end = dates.End
	} else if status == models.StatusFinished {
		if end == nil {
			if schedule != nil && schedule.PlannedEnd != nil {
				end = schedule.PlannedEnd
			} else {
				t := s.now()
				end = &t
			}
		}
	}

	return start, end
}

// ApproveLog marks one history entry as approved, matched by its exact stored
// timestamp string.
func (s *ProgressService) ApproveLog(progressID string, req models.ApproveLogRequest) (*models.ProductionProgress, error) {
	progress, err := s.repo.FindByID(progressID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, fmt.Errorf("progress record %s not found", progressID)
	}
	if err := progress.ApproveLog(req.LogTimestamp, req.ApprovedBy); err != nil {
		return nil, err
	}
	return s.repo.Save(progress)
}

// RecordDaily stores one day's production metrics on an existing record.
func (s *ProgressService) RecordDaily(progressID string, req models.DailyProductionRequest) (*models.ProductionProgress, error) {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", req.Date)
	}
	progress, err := s.repo.FindByID(progressID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, fmt.Errorf("progress record %s not found", progressID)
	}
	progress.RecordDailyProduction(req.Date, req.Data, req.UserID)
	return s.repo.Save(progress)
}

// ListProjectProgress returns the enriched tower list for a project: fixed
// element fields, normalized metadata spread beside them, and per-activity
// status DTOs with schedule enrichment.
func (s *ProgressService) ListProjectProgress(projectID, companyID, siteID string) ([]models.ElementProgressResponse, error) {
	elements, err := s.repo.FindElementsWithProgress(projectID, companyID, siteID)
	if err != nil {
		return nil, err
	}

	results := make([]models.ElementProgressResponse, 0, len(elements))
	for _, item := range elements {
		el := item.Element
		response := models.ElementProgressResponse{
			"id":        el.ID,
			"objectId":  el.ExternalID,
			"name":      el.Name,
			"sequence":  el.Sequence,
			"projectId": el.ProjectID,
		}
		if el.SiteID != nil {
			response["siteId"] = *el.SiteID
		}
		if el.Latitude != nil {
			response["lat"] = *el.Latitude
		}
		if el.Longitude != nil {
			response["lng"] = *el.Longitude
		}
		if el.Elevation != nil {
			response["elevation"] = *el.Elevation
		}

		for k, v := range NormalizeMetadata(el.Metadata) {
			if !reservedElementFields[k] {
				response[k] = v
			}
		}

		scheduleByActivity := make(map[string]models.ActivitySchedule, len(item.Schedules))
		for _, sched := range item.Schedules {
			scheduleByActivity[sched.ActivityID] = sched
		}

		activities := make([]models.ActivityStatusDTO, 0, len(item.Progress))
		for _, p := range item.Progress {
			dto := buildActivityDTO(p)
			if sched, ok := scheduleByActivity[p.ActivityID]; ok {
				dto.PlannedStartDate = sched.PlannedStart
				dto.PlannedEndDate = sched.PlannedEnd
				dto.PlannedQuantity = sched.PlannedQuantity
				dto.PlannedHhh = sched.PlannedHhh
			}
			activities = append(activities, dto)
		}
		response["activities"] = activities
		results = append(results, response)
	}
	return results, nil
}

// GetElementProgress returns the activity status DTOs of one element.
func (s *ProgressService) GetElementProgress(elementID string) ([]models.ActivityStatusDTO, error) {
	records, err := s.repo.FindByElement(elementID)
	if err != nil {
		return nil, err
	}
	dtos := make([]models.ActivityStatusDTO, 0, len(records))
	for _, p := range records {
		dtos = append(dtos, buildActivityDTO(p))
	}
	return dtos, nil
}

// GetLogsByElement flattens the full history of an element, newest first.
func (s *ProgressService) GetLogsByElement(elementID string) ([]models.ProductionLogDTO, error) {
	records, err := s.repo.FindByElement(elementID)
	if err != nil {
		return nil, err
	}
	var logs []models.ProductionLogDTO
	for _, p := range records {
		for _, entry := range p.History {
			logs = append(logs, historyEntryDTO(p, entry))
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp > logs[j].Timestamp
	})
	return logs, nil
}

// GetPendingLogs lists the newest unapproved history entry of every record
// still awaiting approval, enriched with tower and activity display names.
func (s *ProgressService) GetPendingLogs(companyID string) ([]models.ProductionLogDTO, error) {
	records, err := s.repo.FindPendingLogs(companyID)
	if err != nil {
		return nil, err
	}
	logs := make([]models.ProductionLogDTO, 0, len(records))
	for _, p := range records {
		entry := p.LatestEntry()
		if entry == nil || entry.Status == models.StatusApproved {
			continue
		}
		dto := historyEntryDTO(p, *entry)
		if p.Element != nil {
			dto.Tower = &models.TowerRef{ObjectID: p.Element.ExternalID, Name: p.Element.Name}
		}
		logs = append(logs, dto)
	}
	return logs, nil
}

// SyncProjectActivity forces a stage resync for one (project, activity) pair.
func (s *ProgressService) SyncProjectActivity(projectID, activityID, updatedBy string) error {
	return s.repo.SyncWorkStages("", activityID, projectID, updatedBy)
}

// stampEffectiveDates copies the caller metadata and records the resolved
// dates on the history entry, so date reconstruction on legacy reads finds
// the same values the update used.
func stampEffectiveDates(metadata map[string]interface{}, start, end *time.Time) map[string]interface{} {
	stamped := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		stamped[k] = v
	}
	if start != nil {
		stamped["finalStartDate"] = start.UTC().Format(time.RFC3339Nano)
	}
	if end != nil {
		stamped["finalEndDate"] = end.UTC().Format(time.RFC3339Nano)
	}
	return stamped
}

func (s *ProgressService) resolveProjectID(explicit, elementID string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	projectID, err := s.repo.FindElementProjectID(elementID)
	if err != nil {
		return "", err
	}
	if projectID == "" {
		return "", fmt.Errorf("project not found for element %s", elementID)
	}
	return projectID, nil
}

func buildActivityDTO(p models.ProductionProgress) models.ActivityStatusDTO {
	dto := models.ActivityStatusDTO{
		ID:               p.ID,
		ElementID:        p.ElementID,
		ActivityID:       p.ActivityID,
		Status:           p.CurrentStatus,
		Progress:         p.ProgressPercent,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		RequiresApproval: p.RequiresApproval,
	}
	if p.Activity != nil {
		dto.ActivityName = p.Activity.Name
	}
	return dto
}

func historyEntryDTO(p models.ProductionProgress, entry models.ProgressHistoryEntry) models.ProductionLogDTO {
	dto := models.ProductionLogDTO{
		ProgressID:       p.ID,
		ProjectID:        p.ProjectID,
		ElementID:        p.ElementID,
		ActivityID:       p.ActivityID,
		Status:           entry.Status,
		Progress:         entry.ProgressPercent,
		UserID:           entry.ChangedBy,
		Timestamp:        entry.Timestamp,
		Metadata:         entry.Metadata,
		ApprovedBy:       entry.ApprovedBy,
		ApprovedAt:       entry.ApprovedAt,
		RequiresApproval: p.RequiresApproval,
	}
	if p.Activity != nil {
		dto.ActivityName = p.Activity.Name
	}
	return dto
}
