package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/audit"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/config"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/database"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/repository"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func AuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
		Long:  "Query, aggregate, and export audit log entries from the durable store",
	}

	cmd.AddCommand(AuditQueryCmd())
	cmd.AddCommand(AuditStatsCmd())
	cmd.AddCommand(AuditExportCmd())

	return cmd
}

func auditFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "Filter by user ID")
	cmd.Flags().String("task-type", "", "Filter by task type")
	cmd.Flags().String("state", "", "Filter by terminal state")
	cmd.Flags().String("from", "", "Only entries at or after this RFC 3339 timestamp")
	cmd.Flags().String("to", "", "Only entries at or before this RFC 3339 timestamp")
	cmd.Flags().Float64("min-confidence", 0, "Only entries at or above this confidence")
	cmd.Flags().Bool("review-only", false, "Only entries flagged for human review")
}

func auditFiltersFromFlags(cmd *cobra.Command) (audit.Filters, error) {
	var filters audit.Filters

	filters.UserID, _ = cmd.Flags().GetString("user")
	taskType, _ := cmd.Flags().GetString("task-type")
	filters.TaskType = domain.TaskType(taskType)
	state, _ := cmd.Flags().GetString("state")
	filters.State = domain.RequestState(state)
	filters.MinConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
	filters.ReviewOnly, _ = cmd.Flags().GetBool("review-only")

	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, fmt.Errorf("invalid --from timestamp: %w", err)
		}
		filters.From = from
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, fmt.Errorf("invalid --to timestamp: %w", err)
		}
		filters.To = to
	}

	return filters, nil
}

func AuditQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List audit log entries",
		Long:  "List audit log entries newest-first with optional filters",
		RunE:  runAuditQuery,
	}

	auditFilterFlags(cmd)
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of results")
	cmd.Flags().String("cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filters, err := auditFiltersFromFlags(cmd)
	if err != nil {
		return err
	}
	filters.Limit, _ = cmd.Flags().GetInt("limit")
	filters.Cursor, _ = cmd.Flags().GetString("cursor")

	logger, pool, err := getAuditLogger(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	page, err := logger.Query(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to query audit log: %w", err)
	}

	output := map[string]interface{}{
		"items":    page.Items,
		"cursor":   page.Cursor,
		"has_more": page.HasMore,
	}
	jsonBytes, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonBytes))

	return nil
}

func AuditStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate audit log statistics",
		Long:  "Compute success, review, and confidence statistics over matching entries",
		RunE:  runAuditStats,
	}

	auditFilterFlags(cmd)

	return cmd
}

func runAuditStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filters, err := auditFiltersFromFlags(cmd)
	if err != nil {
		return err
	}

	logger, pool, err := getAuditLogger(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	stats, err := logger.Stats(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to compute audit stats: %w", err)
	}

	jsonBytes, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(jsonBytes))

	return nil
}

func AuditExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit log entries",
		Long:  "Export matching audit log entries as JSON or CSV, to stdout, a file, or the S3 archive",
		RunE:  runAuditExport,
	}

	auditFilterFlags(cmd)
	cmd.Flags().StringP("format", "f", "json", "Export format (json or csv)")
	cmd.Flags().StringP("out", "o", "", "Write to a file instead of stdout")
	cmd.Flags().Bool("archive", false, "Upload the export to the configured S3 bucket")

	return cmd
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	filters, err := auditFiltersFromFlags(cmd)
	if err != nil {
		return err
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := audit.ParseExportFormat(formatFlag)
	if err != nil {
		return err
	}

	logger, pool, err := getAuditLogger(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	body, err := logger.Export(ctx, filters, format)
	if err != nil {
		return fmt.Errorf("failed to export audit log: %w", err)
	}

	if archive, _ := cmd.Flags().GetBool("archive"); archive {
		return archiveExport(ctx, format, body)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
			return fmt.Errorf("failed to write export file: %w", err)
		}
		fmt.Printf("Export written to %s\n", out)
		return nil
	}

	fmt.Println(body)
	return nil
}

func archiveExport(ctx context.Context, format audit.ExportFormat, body string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasS3() {
		return fmt.Errorf("S3 archive requires S3_ENDPOINT, S3_ACCESS_KEY_ID, and S3_SECRET_ACCESS_KEY")
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}

	name := fmt.Sprintf("audit-export-%s.%s", time.Now().UTC().Format("20060102T150405Z"), format)
	contentType := "application/json"
	if format == audit.FormatCSV {
		contentType = "text/csv"
	}

	key, err := client.ArchiveExport(ctx, name, contentType, body)
	if err != nil {
		return fmt.Errorf("failed to archive export: %w", err)
	}

	fmt.Printf("Export archived to s3://%s/%s\n", cfg.S3Bucket, key)
	return nil
}

func getAuditLogger(ctx context.Context) (*audit.Logger, *pgxpool.Pool, error) {
	pool, err := getDBPool(ctx)
	if err != nil {
		return nil, nil, err
	}

	return audit.NewLogger(repository.NewAuditRepository(pool)), pool, nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return nil, fmt.Errorf("audit commands require DATABASE_URL; the in-memory ring is only reachable through the HTTP API")
	}

	return database.NewPool(ctx, cfg.DatabaseURL)
}
