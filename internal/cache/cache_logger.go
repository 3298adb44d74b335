package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// Exam cache keys
func ExamKey(examID uint) string          { return fmt.Sprintf("id:%d", examID) }
func ExamQuestionsKey(examID uint) string { return fmt.Sprintf("questions:%d", examID) }
func StudentUserKey(userID string) string { return "user:" + userID }

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateExamCache drops the exam header and its question set.
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint) {
	SafeDelete(ctx, cm.Exam, ExamKey(examID), ExamQuestionsKey(examID))
}

// InvalidateStudentCache drops every cached profile, used after bulk imports.
func InvalidateStudentCache(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Student, "user:*")
}
