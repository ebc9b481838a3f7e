package database

import (
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"snapfixer/internal/photo"
)

func TestMigrateCreatesJobTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !db.Migrator().HasTable(&ProcessingJob{}) {
		t.Fatal("expected processing_jobs table")
	}

	rule := photo.DocumentRule{TargetWidthMM: 35, TargetHeightMM: 45, BackgroundColor: "white"}
	job := ProcessingJob{
		ID:        "job-1",
		Rule:      datatypes.NewJSONType(rule),
		Status:    JobPending,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	var loaded ProcessingJob
	if err := db.First(&loaded, "id = ?", "job-1").Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if got := loaded.Rule.Data(); got != rule {
		t.Fatalf("rule round trip mismatch: %+v", got)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	for status, want := range map[JobStatus]bool{
		JobPending:    false,
		JobProcessing: false,
		JobCompleted:  true,
		JobFailed:     true,
	} {
		if got := status.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
