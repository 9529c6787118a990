package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"rag-document-platform/internal/logger"
	"rag-document-platform/models"

	"github.com/go-co-op/gocron"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CleanupService prunes finished ingest jobs past the retention window and
// removes their leftover upload directories.
type CleanupService struct {
	jobs       *mongo.Collection
	storageDir string
	retention  time.Duration
	scheduler  *gocron.Scheduler
}

func NewCleanupService(jobs *mongo.Collection, storageDir string, retention time.Duration) *CleanupService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &CleanupService{
		jobs:       jobs,
		storageDir: storageDir,
		retention:  retention,
		scheduler:  s,
	}
}

// Start schedules the cleanup at cronExpr and runs the scheduler in the
// background.
func (cs *CleanupService) Start(cronExpr string) error {
	_, err := cs.scheduler.Cron(cronExpr).Tag("ingest-job-cleanup").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := cs.Run(ctx); err != nil {
			logger.Error("Ingest job cleanup failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	cs.scheduler.StartAsync()
	return nil
}

func (cs *CleanupService) Stop() {
	cs.scheduler.Stop()
}

// Run deletes finished jobs older than the retention window along with
// their stored uploads.
func (cs *CleanupService) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-cs.retention)

	filter := bson.M{
		"status":     bson.M{"$in": []string{models.JobStatusCompleted, models.JobStatusFailed}},
		"created_at": bson.M{"$lt": cutoff},
	}

	cursor, err := cs.jobs.Find(ctx, filter)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var jobs []models.IngestJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	for _, job := range jobs {
		uploadDir := filepath.Join(cs.storageDir, "uploads", job.JobID)
		if err := os.RemoveAll(uploadDir); err != nil {
			logger.Warn("Failed to remove upload dir", "job_id", job.JobID, "error", err)
		}
	}

	result, err := cs.jobs.DeleteMany(ctx, filter)
	if err != nil {
		return err
	}

	logger.Info("Pruned old ingest jobs", "deleted", result.DeletedCount)
	return nil
}
