package main

import (
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/wwwzy/SQLChatAgent/internal/storage"
	"gorm.io/gorm"
)

func main() {
	path := "sqlchat.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// Connect to the database
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	fmt.Println("--- Verifying SQLChat Audit Database ---")

	// Verify AuditRecords
	var auditCount int64
	if !db.Migrator().HasTable(&storage.AuditRecord{}) {
		fmt.Println("Table 'audit_records' does not exist yet.")
	} else {
		db.Model(&storage.AuditRecord{}).Count(&auditCount)
		fmt.Printf("Total Audit Records: %d\n", auditCount)

		if auditCount > 0 {
			var records []storage.AuditRecord
			db.Order("created_at desc").Limit(5).Find(&records)
			fmt.Println("Latest 5 Tool Calls (Local Time):")
			for _, r := range records {
				fmt.Printf("  [%s] %s %-24s %-8s %s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), shortID(r.TraceID), r.Action, r.Source, r.Status)
			}
		}
	}

	fmt.Println("\n------------------------------------")

	// Verify QueryLogs
	var queryCount int64
	if !db.Migrator().HasTable(&storage.QueryLog{}) {
		fmt.Println("Table 'query_logs' does not exist yet.")
	} else {
		db.Model(&storage.QueryLog{}).Count(&queryCount)
		fmt.Printf("Total Query Logs: %d\n", queryCount)

		if queryCount > 0 {
			var logs []storage.QueryLog
			db.Order("created_at desc").Limit(5).Find(&logs)
			fmt.Println("Latest 5 Queries (Local Time):")
			for _, l := range logs {
				q := l.Query
				if len(q) > 50 {
					q = q[:47] + "..."
				}
				fmt.Printf("  [%s] %s %-13s %4dms %s\n",
					l.CreatedAt.Local().Format("2006-01-02 15:04:05"), shortID(l.TraceID), l.Kind, l.DurationMS, q)
			}
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
