package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wwwzy/SQLChatAgent/internal/retention"
	"github.com/wwwzy/SQLChatAgent/internal/storage"
)

// storageCmd represents the storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "管理审计库",
	Long:  `提供查看审计库概况、清理审计记录和查询日志的命令。`,
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "显示审计库统计概况",
	Run:   runInfo,
}

// pruneCmd 按配置中的 retention 策略立即清理一次
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "根据配置文件立即执行一次保留策略清理",
	Long:  `忽略定时任务间隔，立即按 retention.audit 与 retention.query_logs 策略清理一次。`,
	Run:   runPrune,
}

// pruneAuditCmd represents the prune-audit command
var pruneAuditCmd = &cobra.Command{
	Use:   "prune-audit",
	Short: "清理审计记录",
	Long:  `根据用户指定的保留条数或天数，清理旧的审计记录。`,
	Run: func(cmd *cobra.Command, args []string) {
		runPruneTable(cmd, "audit records", pruneTarget{
			keepLatest: func(s *storage.Storage, ctx context.Context, n int) (int64, error) {
				return s.DeleteAuditRecordsKeepLatest(ctx, n)
			},
			before: func(s *storage.Storage, ctx context.Context, t time.Time) (int64, error) {
				return s.DeleteAuditRecordsBefore(ctx, t)
			},
			count: func(s *storage.Storage, ctx context.Context) (int64, error) {
				return s.CountAuditRecords(ctx)
			},
		})
	},
}

// pruneQueriesCmd 清理查询日志
var pruneQueriesCmd = &cobra.Command{
	Use:   "prune-queries",
	Short: "清理查询日志",
	Long:  `根据用户指定的保留条数或天数，清理旧的查询日志。`,
	Run: func(cmd *cobra.Command, args []string) {
		runPruneTable(cmd, "query logs", pruneTarget{
			keepLatest: func(s *storage.Storage, ctx context.Context, n int) (int64, error) {
				return s.DeleteQueryLogsKeepLatest(ctx, n)
			},
			before: func(s *storage.Storage, ctx context.Context, t time.Time) (int64, error) {
				return s.DeleteQueryLogsBefore(ctx, t)
			},
			count: func(s *storage.Storage, ctx context.Context) (int64, error) {
				return s.CountQueryLogs(ctx)
			},
		})
	},
}

var (
	keepCount int
	keepDays  int
)

func init() {
	for _, c := range []*cobra.Command{pruneAuditCmd, pruneQueriesCmd} {
		c.Flags().IntVar(&keepCount, "keep", 0, "保留最近的 N 条记录")
		c.Flags().IntVar(&keepDays, "days", 0, "保留最近 N 天的记录")
	}

	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(infoCmd)
	storageCmd.AddCommand(pruneCmd)
	storageCmd.AddCommand(pruneAuditCmd)
	storageCmd.AddCommand(pruneQueriesCmd)
}

type pruneTarget struct {
	keepLatest func(*storage.Storage, context.Context, int) (int64, error)
	before     func(*storage.Storage, context.Context, time.Time) (int64, error)
	count      func(*storage.Storage, context.Context) (int64, error)
}

func runPruneTable(cmd *cobra.Command, label string, target pruneTarget) {
	ctx := context.Background()

	if keepCount <= 0 && keepDays <= 0 {
		fmt.Println("Error: must specify either --keep or --days")
		cmd.Usage()
		os.Exit(1)
	}

	store := mustOpenStore(ctx)
	defer store.Close()

	var deletedCount int64

	if keepCount > 0 {
		fmt.Printf("Pruning %s, keeping latest %d records...\n", label, keepCount)
		count, err := target.keepLatest(store, ctx, keepCount)
		if err != nil {
			fmt.Printf("Error pruning by count: %v\n", err)
			os.Exit(1)
		}
		deletedCount += count
	}

	if keepDays > 0 {
		before := time.Now().UTC().AddDate(0, 0, -keepDays)
		fmt.Printf("Pruning %s older than %d days (before %s)...\n", label, keepDays, before.Format(time.RFC3339))
		count, err := target.before(store, ctx, before)
		if err != nil {
			fmt.Printf("Error pruning by days: %v\n", err)
			os.Exit(1)
		}
		deletedCount += count
	}

	fmt.Printf("Prune completed. Deleted %d records.\n", deletedCount)

	if count, err := target.count(store, ctx); err == nil {
		fmt.Printf("Remaining %s: %d\n", label, count)
	}
}

func runPrune(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	store := mustOpenStore(ctx)
	defer store.Close()

	rc := cfg.Retention
	fmt.Printf("Policy: audit keep_for=%s keep_latest=%d, query_logs keep_for=%s keep_latest=%d\n",
		rc.Audit.KeepFor, rc.Audit.KeepLatest, rc.QueryLogs.KeepFor, rc.QueryLogs.KeepLatest)

	pruner, err := retention.NewPruner(store, rc)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	report, err := pruner.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		fmt.Printf("Prune failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Prune completed. Deleted %d audit records, %d query logs.\n", report.AuditDeleted, report.QueryLogDeleted)
}

func mustOpenStore(ctx context.Context) *storage.Storage {
	if cfg == nil {
		fmt.Println("Config not loaded")
		os.Exit(1)
	}

	fmt.Println("Opening database...")
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runInfo(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if cfg == nil {
		fmt.Println("Config not loaded")
		os.Exit(1)
	}

	// 1. 获取数据库文件信息
	dbPath := cfg.Storage.Path
	if !filepath.IsAbs(dbPath) {
		if absPath, err := filepath.Abs(dbPath); err == nil {
			dbPath = absPath
		}
	}

	var dbSizeStr string
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			dbSizeStr = "Not Found (Will be created on first run)"
		} else {
			dbSizeStr = fmt.Sprintf("Error: %v", err)
		}
	} else {
		sizeMB := float64(info.Size()) / 1024 / 1024
		dbSizeStr = fmt.Sprintf("%.2f MB (%s)", sizeMB, dbPath)
	}

	// 2. 连接数据库
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		fmt.Printf("Database File: %s\n", dbSizeStr)
		fmt.Printf("Error opening database: %v\n", err)
		return
	}
	defer store.Close()

	// 3. 获取统计信息
	auditCount, err := store.CountAuditRecords(ctx)
	if err != nil {
		fmt.Printf("Error counting audit records: %v\n", err)
	}
	queryCount, err := store.CountQueryLogs(ctx)
	if err != nil {
		fmt.Printf("Error counting query logs: %v\n", err)
	}

	// 4. 格式化输出
	fmt.Printf("Database File: %s\n\n", dbSizeStr)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Table\tCount")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "AuditRecords\t%d\n", auditCount)
	fmt.Fprintf(w, "QueryLogs\t%d\n", queryCount)
	w.Flush()
}
