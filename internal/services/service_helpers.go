package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/cbt-service/internal/events"
	"github.com/SAP-F-2025/cbt-service/internal/grading"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

// resolveStudent maps a Casdoor user id to its local student profile.
func resolveStudent(ctx context.Context, repo repositories.Repository, userID string) (*models.Student, error) {
	student, err := repo.Student().GetByUserID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentProfileNotFound
		}
		return nil, fmt.Errorf("failed to get student profile: %w", err)
	}
	return student, nil
}

func requireStaff(requester *models.User, resourceID uint, resource, action string) error {
	if requester == nil || !requester.IsStaff() {
		userID := ""
		if requester != nil {
			userID = requester.ID
		}
		return NewPermissionError(userID, resourceID, resource, action, "insufficient role permissions")
	}
	return nil
}

// positionOf ranks a released result among the exam's released results.
func positionOf(ctx context.Context, repo repositories.Repository, result *models.Result) (int, error) {
	higher, err := repo.Result().CountReleasedAbove(ctx, result.ExamID, result.Percentage, result.ID)
	if err != nil {
		return 0, err
	}
	return grading.Position(higher), nil
}

// publishEvent runs after commit; a failure is logged and swallowed.
func publishEvent(ctx context.Context, logger *slog.Logger, publisher events.EventPublisher, event *events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err)
	}
}

func examEventKey(examID uint) string {
	return fmt.Sprintf("exam:%d", examID)
}

func resultReleasedEvent(result *models.Result) *events.Event {
	return events.NewEvent(events.ResultReleased, examEventKey(result.ExamID), events.ResultReleasedEvent{
		ResultID:   result.ID,
		AttemptID:  result.AttemptID,
		ExamID:     result.ExamID,
		StudentID:  result.StudentID,
		Percentage: result.Percentage,
		Grade:      result.Grade,
		Position:   result.Position,
	})
}

func pageOffset(page, size int) int {
	if page < 0 {
		page = 0
	}
	return page * size
}
