package tariffsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wb-tariffs/internal/metrics"
	"wb-tariffs/internal/stories/spreadsheets"
	"wb-tariffs/internal/stories/tariffs"
	"wb-tariffs/internal/wildberries"
)

const DefaultSheetName = "stocks_coefs"

// Run results reported to metrics.
const (
	resultSuccess     = "success"
	resultPartial     = "partial"
	resultEmpty       = "empty"
	resultDomainError = "domain_error"
	resultFailed      = "failed"
)

type Config struct {
	SheetName string
	SortBy    string
	// Location decides what "today" is. Nil means time.Local.
	Location *time.Location
}

type Option func(*Worker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// Worker fetches today's box tariffs, upserts them per warehouse and
// republishes the day's rows into every registered spreadsheet.
type Worker struct {
	fetcher      Fetcher
	tariffs      TariffsService
	spreadsheets SpreadsheetsStorage
	publisher    Publisher
	cfg          Config
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

func NewWorker(
	fetcher Fetcher,
	tariffsService TariffsService,
	spreadsheetsStorage SpreadsheetsStorage,
	publisher Publisher,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Worker {
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	if cfg.SortBy == "" {
		cfg.SortBy = tariffs.DefaultSortColumn
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	w := &Worker{
		fetcher:      fetcher,
		tariffs:      tariffsService,
		spreadsheets: spreadsheetsStorage,
		publisher:    publisher,
		cfg:          cfg,
		logger:       logger.With("worker", "tariffsync"),
		tracer:       otel.Tracer("wb-tariffs/internal/workers/tariffsync"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Name() string {
	return "tariffsync"
}

// Run performs one synchronization. An upstream domain error or an empty
// response ends the run without error.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.logger.With("run_id", uuid.NewString())
	start := time.Now()

	result, err := w.run(ctx, logger)

	metrics.ObserveSyncRun(result, time.Since(start))
	logger.Info("Tariff sync finished",
		"result", result,
		"duration", time.Since(start))
	return err
}

func (w *Worker) run(ctx context.Context, logger *slog.Logger) (string, error) {
	date := tariffs.DateOf(w.now().In(w.cfg.Location))
	logger = logger.With("date", tariffs.FormatDate(date))

	resp, err := w.fetch(ctx, date)
	if err != nil {
		return resultFailed, err
	}

	if resp.Empty() {
		logger.Info("Empty response from Wildberries, nothing to sync")
		return resultEmpty, nil
	}
	if resp.Error != nil {
		logger.Warn("Received an error from Wildberries",
			"status", resp.Error.StatusCode,
			"title", resp.Error.Title,
			"detail", resp.Error.Detail,
			"request_id", resp.Error.RequestID)
		return resultDomainError, nil
	}

	failed, err := w.persist(ctx, logger, date, resp.Tariffs)
	if err != nil {
		return resultFailed, err
	}

	if err := w.publish(ctx, logger, date); err != nil {
		return resultFailed, err
	}

	if failed > 0 {
		return resultPartial, nil
	}
	return resultSuccess, nil
}

func (w *Worker) fetch(ctx context.Context, date time.Time) (*wildberries.BoxTariffsResponse, error) {
	ctx, span := w.tracer.Start(ctx, "tariffsync.fetch",
		trace.WithAttributes(attribute.String("date", tariffs.FormatDate(date))))
	defer span.End()

	resp, err := w.fetcher.GetBoxTariffs(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("fetch box tariffs: %w", err)
	}
	return resp, nil
}

// persist upserts warehouses one at a time; each write completes before the
// next starts. A failing warehouse is logged and skipped.
func (w *Worker) persist(ctx context.Context, logger *slog.Logger, date time.Time, data *wildberries.BoxTariffs) (int, error) {
	ctx, span := w.tracer.Start(ctx, "tariffsync.persist",
		trace.WithAttributes(attribute.Int("warehouses", len(data.WarehouseList))))
	defer span.End()

	validUntil, err := data.ValidUntil()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad dtTillMax")
		return 0, fmt.Errorf("parse tariff validity: %w", err)
	}

	var created, updated, failed int
	for _, wh := range data.WarehouseList {
		if err := ctx.Err(); err != nil {
			return failed, fmt.Errorf("persist tariffs: %w", err)
		}

		if err := wh.Validate(); err != nil {
			failed++
			metrics.IncTariffUpsert("failed")
			logger.Error("Skipping invalid warehouse entry",
				"warehouse", wh.WarehouseName,
				"geo", wh.GeoName,
				"error", err)
			continue
		}

		_, action, err := w.tariffs.Upsert(ctx, toTariff(date, validUntil, wh))
		if err != nil {
			failed++
			metrics.IncTariffUpsert("failed")
			logger.Error("Failed to upsert tariff",
				"warehouse", wh.WarehouseName,
				"error", err)
			continue
		}

		metrics.IncTariffUpsert(string(action))
		if action == tariffs.ActionCreated {
			created++
		} else {
			updated++
		}
	}

	span.SetAttributes(attribute.Int("failed", failed))
	logger.Info("Tariffs written to database",
		"created", created,
		"updated", updated,
		"failed", failed)
	return failed, nil
}

// publish sends the day's rows to every registered spreadsheet. A failing
// spreadsheet does not stop the others; their errors are joined.
func (w *Worker) publish(ctx context.Context, logger *slog.Logger, date time.Time) error {
	ctx, span := w.tracer.Start(ctx, "tariffsync.publish")
	defer span.End()

	targets, err := w.spreadsheets.ListSpreadsheets(ctx, spreadsheets.ListCriteria{})
	if err != nil {
		return fmt.Errorf("list spreadsheets: %w", err)
	}
	if len(targets) == 0 {
		logger.Info("No spreadsheets registered, skipping publish")
		return nil
	}

	rows, err := w.tariffs.ListForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("list tariffs: %w", err)
	}
	if len(rows) == 0 {
		logger.Info("No tariffs stored for today, skipping publish")
		return nil
	}

	tariffs.SortByNumericDesc(rows, w.cfg.SortBy)

	values := make([][]any, 0, len(rows)+1)
	values = append(values, tariffs.HeaderRow())
	for _, row := range rows {
		values = append(values, row.SheetRow())
	}

	var errs []error
	for _, target := range targets {
		if err := w.publishTo(ctx, logger, target.ID, values); err != nil {
			metrics.IncSheetPublish("failed")
			logger.Error("Failed to publish tariffs",
				"spreadsheet_id", target.ID,
				"error", err)
			errs = append(errs, fmt.Errorf("spreadsheet %s: %w", target.ID, err))
			continue
		}
		metrics.IncSheetPublish("success")
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("publish tariffs: %w", err)
	}
	return nil
}

func (w *Worker) publishTo(ctx context.Context, logger *slog.Logger, spreadsheetID string, values [][]any) error {
	title, err := w.publisher.Title(ctx, spreadsheetID)
	if err != nil {
		return fmt.Errorf("get title: %w", err)
	}

	logger.Info("Publishing tariffs",
		"spreadsheet_id", spreadsheetID,
		"title", title,
		"sheet", w.cfg.SheetName,
		"rows", len(values)-1)

	if err := w.publisher.ClearSheet(ctx, spreadsheetID, w.cfg.SheetName); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	if err := w.publisher.AppendRows(ctx, spreadsheetID, w.cfg.SheetName, values); err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	return nil
}

func toTariff(date, validUntil time.Time, wh wildberries.WarehouseTariff) tariffs.Tariff {
	return tariffs.Tariff{
		TariffDate:                  date,
		DtTill:                      validUntil,
		DeliveryBase:                wh.BoxDeliveryBase,
		DeliveryCoefExpr:            wh.BoxDeliveryCoefExpr,
		DeliveryLiter:               wh.BoxDeliveryLiter,
		DeliveryMarketplaceBase:     wh.BoxDeliveryMarketplaceBase,
		DeliveryMarketplaceCoefExpr: wh.BoxDeliveryMarketplaceCoefExpr,
		DeliveryMarketplaceLiter:    wh.BoxDeliveryMarketplaceLiter,
		StorageBase:                 wh.BoxStorageBase,
		StorageCoefExpr:             wh.BoxStorageCoefExpr,
		StorageLiter:                wh.BoxStorageLiter,
		GeoName:                     wh.GeoName,
		WarehouseName:               wh.WarehouseName,
	}
}
