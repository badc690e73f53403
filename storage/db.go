package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

var db *sql.DB

func InitDB() *sql.DB {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")

	connStr := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=disable",
		user, password, dbname, host, port)

	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Set connection pool settings optimized for light server load
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	return db
}

func GetDB() *sql.DB {
	return db
}

func CleanupExpiredSessions(db *sql.DB) error {
	threshold := time.Now().Add(-24 * time.Hour)
	_, err := db.Exec("DELETE FROM session WHERE expires_at < $1", threshold)
	return err
}

// CleanupOldActivityLogs trims the audit trail to the retention window.
// Retention defaults to 180 days, overridable via ACTIVITY_LOG_RETENTION_DAYS.
func CleanupOldActivityLogs(db *sql.DB) error {
	days := 180
	if s := os.Getenv("ACTIVITY_LOG_RETENTION_DAYS"); s != "" {
		if _, err := fmt.Sscanf(s, "%d", &days); err != nil || days < 1 {
			days = 180
		}
	}
	threshold := time.Now().AddDate(0, 0, -days)
	result, err := db.Exec("DELETE FROM activity_logs WHERE created_at < $1", threshold)
	if err != nil {
		return err
	}
	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		log.Printf("Cleaned up %d activity logs older than %d days", deleted, days)
	}
	return nil
}
