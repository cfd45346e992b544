// Package job holds the cron jobs the web server schedules.
package job

import (
	"github.com/postboard/postboard/database"
	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/util/common"

	"go.uber.org/atomic"
	"gorm.io/gorm"
)

// CheckpointJob folds the SQLite write-ahead log back into the database
// file so it does not grow without bound between restarts.
type CheckpointJob struct {
	db      *gorm.DB
	running atomic.Bool
	runs    atomic.Int64
}

func NewCheckpointJob(db *gorm.DB) *CheckpointJob {
	return &CheckpointJob{db: db}
}

// Here Run is an interface method of the Job interface
func (j *CheckpointJob) Run() {
	if !j.running.CompareAndSwap(false, true) {
		logger.Debug("wal checkpoint still running, skipped")
		return
	}
	defer j.running.Store(false)
	defer common.Recover("checkpoint job")

	if err := database.Checkpoint(j.db); err != nil {
		logger.Warning("wal checkpoint failed:", err)
		return
	}
	j.runs.Inc()
}

// Runs counts the checkpoints that completed.
func (j *CheckpointJob) Runs() int64 {
	return j.runs.Load()
}
