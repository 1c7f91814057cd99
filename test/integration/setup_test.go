package integration

import (
	"log"
	"os"
	"testing"

	"secondbrain-be/pkg/database"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// openDB connects to DB_CONNECTION_STRING or skips. The schema must already
// be migrated with cmd/migrate.
func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, true)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	return db
}

// oneHot is a unit vector of the column dimension.
func oneHot(i int) []float32 {
	v := make([]float32, 1536)
	v[i] = 1
	return v
}
