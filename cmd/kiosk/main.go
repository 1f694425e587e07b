package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sheetgrader/internal/collage"
	"github.com/noah-isme/sheetgrader/internal/device"
	"github.com/noah-isme/sheetgrader/internal/handler"
	"github.com/noah-isme/sheetgrader/internal/models"
	"github.com/noah-isme/sheetgrader/internal/ocr"
	"github.com/noah-isme/sheetgrader/internal/repository"
	"github.com/noah-isme/sheetgrader/internal/service"
	"github.com/noah-isme/sheetgrader/internal/upload"
	"github.com/noah-isme/sheetgrader/pkg/config"
	"github.com/noah-isme/sheetgrader/pkg/database"
	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
	pkgLogger "github.com/noah-isme/sheetgrader/pkg/logger"
	"github.com/noah-isme/sheetgrader/pkg/storage"
)

const pageSweepTTL = 72 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := pkgLogger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("kiosk stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	pages, err := storage.NewLocalStore(cfg.Scan.PagesDir)
	if err != nil {
		return err
	}
	if swept, err := pages.CleanupOlderThan(pageSweepTTL); err != nil {
		logger.Warn("startup page sweep failed", zap.Error(err))
	} else if len(swept) > 0 {
		logger.Info("swept stale page files", zap.Int("count", len(swept)))
	}

	store := repository.NewStore(db)
	credentials := repository.NewCredentialStore(cfg.Session.CacheFile)
	metrics := service.NewMetricsService()

	signer := storage.NewRequestSigner(cfg.Storage.Secret)
	objects := storage.NewObjectStore(cfg.Storage.Endpoint, signer, cfg.Storage.UploadTimeout, logger)
	uploads := upload.NewManager(objects, pages, metrics, logger, upload.ManagerConfig{
		RetryAttempts: cfg.Storage.RetryAttempts,
		RetryDelay:    cfg.Storage.RetryDelay,
	})
	uploads.Start(ctx)
	defer uploads.Stop()

	var transport ocr.Transport
	switch cfg.OCR.Transport {
	case "http":
		transport = ocr.NewHTTPTransport(cfg.OCR.BaseURL, cfg.OCR.APIKey, cfg.OCR.Model, cfg.OCR.CallTimeout)
	default:
		transport = ocr.NewSDKTransport(cfg.OCR.BaseURL, cfg.OCR.APIKey, cfg.OCR.Model)
	}
	extractor := ocr.NewClient(transport, cfg.OCR.MaxAttempts, cfg.OCR.UseBackoff, cfg.OCR.BaseDelay, metrics, logger)

	console := device.NewConsole(os.Stdin, os.Stdout)
	scanner := device.NewFileScanner(console, cfg.Scan.InputTimeout)
	assembler := collage.NewBuilder(cfg.Scan.MinPageWidth, cfg.Scan.MaxCollageBytes, cfg.Scan.MaxCanvasWidth, cfg.Scan.MaxCanvasHeight, logger)

	scans := service.NewScanService(
		scanner, console, console, assembler, extractor,
		uploads, store, pages, validator.New(), metrics, logger,
		service.ScanOptions{
			Folder:         cfg.Storage.Folder,
			KeepCollage:    cfg.Scan.KeepCollage,
			MaxQuestions:   cfg.Scan.MaxQuestions,
			InputTimeout:   cfg.Scan.InputTimeout,
			ConfirmTimeout: cfg.Scan.ConfirmTimeout,
		},
	)
	exports := service.NewExportService(store.Results, filepath.Join(cfg.Scan.PagesDir, "exports"), logger)

	var statusServer *http.Server
	if cfg.Status.Enabled {
		status := handler.NewStatusHandler(metrics, db, credentials)
		router := handler.NewRouter(status, logger, cfg.CORS.AllowedOrigins)
		statusServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Status.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.Int("port", cfg.Status.Port))
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = statusServer.Shutdown(shutdownCtx)
		}()
	}

	app := &kiosk{
		cfg:         cfg,
		logger:      logger,
		console:     console,
		credentials: credentials,
		store:       store,
		scans:       scans,
		exports:     exports,
	}
	return app.mainLoop(ctx)
}

// kiosk owns the operator-facing menu loop.
type kiosk struct {
	cfg         *config.Config
	logger      *zap.Logger
	console     *device.Console
	credentials *repository.CredentialStore
	store       *repository.Store
	scans       *service.ScanService
	exports     *service.ExportService
}

func (k *kiosk) mainLoop(ctx context.Context) error {
	cred, err := k.ensureLogin(ctx)
	if err != nil {
		return err
	}

	menu := []device.Choice{
		{Key: "k", Label: "scan answer key"},
		{Key: "s", Label: "grade student sheets"},
		{Key: "e", Label: "export results"},
		{Key: "l", Label: "logout"},
		{Key: "q", Label: "quit"},
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		choice, err := k.console.Confirm(ctx, fmt.Sprintf("-- %s --", cred.Name), menu, k.cfg.Scan.InputTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// an idle timeout just redraws the menu
			continue
		}

		switch choice.Key {
		case "k":
			k.scanAnswerKey(ctx, cred)
		case "s":
			k.gradeStudentSheets(ctx, cred)
		case "e":
			k.exportResults(ctx, cred)
		case "l":
			if err := k.credentials.Clear(); err != nil {
				k.logger.Warn("logout failed", zap.Error(err))
			}
			k.logger.Info("assessor logged out", zap.String("assessor_id", cred.AssessorID))
			cred, err = k.ensureLogin(ctx)
			if err != nil {
				return err
			}
		case "q":
			k.console.Show("bye")
			return nil
		}
	}
}

// ensureLogin returns the cached credential or walks the operator through a
// fresh login. Logout loops straight back here without restarting the kiosk.
func (k *kiosk) ensureLogin(ctx context.Context) (*models.Credential, error) {
	if cred, err := k.credentials.Load(); err == nil && cred != nil {
		k.console.Show("welcome back, " + cred.Name)
		return cred, nil
	}

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		id, err := k.console.ReadLine(ctx, "assessor id:", k.cfg.Scan.InputTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		name, err := k.console.ReadLine(ctx, "name:", k.cfg.Scan.InputTimeout)
		if err != nil {
			continue
		}

		cred := &models.Credential{
			AssessorID: strings.TrimSpace(id),
			Name:       strings.TrimSpace(name),
			LoggedInAt: time.Now().UTC(),
		}
		if !cred.Authenticated() {
			k.console.Show("both fields are required")
			continue
		}
		if err := k.credentials.Save(cred); err != nil {
			k.logger.Warn("could not cache login", zap.Error(err))
		}
		k.logger.Info("assessor logged in", zap.String("assessor_id", cred.AssessorID))
		return cred, nil
	}
}

func (k *kiosk) scanAnswerKey(ctx context.Context, cred *models.Credential) {
	line, err := k.console.ReadLine(ctx, fmt.Sprintf("number of questions (1-%d):", k.cfg.Scan.MaxQuestions), k.cfg.Scan.InputTimeout)
	if err != nil {
		return
	}
	count, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		k.console.Show("not a number: " + line)
		return
	}

	st, err := k.scans.NewSession(service.ModeAnswerKey, nil, count)
	if err != nil {
		k.console.Show(appErrors.FromError(err).Message)
		return
	}
	if err := k.scans.RunSession(ctx, st, cred.AssessorID); err != nil {
		k.logger.Warn("answer key session ended", zap.Error(err))
	}
}

func (k *kiosk) gradeStudentSheets(ctx context.Context, cred *models.Credential) {
	key, ok := k.pickAssessment(ctx, cred)
	if !ok {
		return
	}

	st, err := k.scans.NewSession(service.ModeStudentSheet, key, 0)
	if err != nil {
		k.console.Show(appErrors.FromError(err).Message)
		return
	}
	if err := k.scans.RunSession(ctx, st, cred.AssessorID); err != nil {
		k.logger.Warn("grading session ended", zap.Error(err))
	}
}

func (k *kiosk) exportResults(ctx context.Context, cred *models.Credential) {
	key, ok := k.pickAssessment(ctx, cred)
	if !ok {
		return
	}
	csvPath, pdfPath, err := k.exports.Export(ctx, key.AssessmentID, cred.AssessorID)
	if err != nil {
		k.console.Show("export failed: " + appErrors.FromError(err).Message)
		return
	}
	k.console.Show("exported:", "  "+csvPath, "  "+pdfPath)
}

// pickAssessment shows the assessor's recent keys and loads the chosen one.
func (k *kiosk) pickAssessment(ctx context.Context, cred *models.Credential) (*models.AnswerKeyRecord, bool) {
	keys, err := k.store.Keys.ListByTeacher(ctx, cred.AssessorID, 0)
	if err != nil {
		k.console.Show("could not list assessments: " + appErrors.FromError(err).Message)
		return nil, false
	}
	if len(keys) == 0 {
		k.console.Show("no answer keys yet; scan one first")
		return nil, false
	}

	lines := make([]string, 0, len(keys)+1)
	lines = append(lines, "your assessments:")
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("  %s (%d questions, key updated %s)",
			key.AssessmentID, key.TotalQuestions, key.UpdatedAt.Format("2006-01-02 15:04")))
	}
	k.console.Show(lines...)

	id, err := k.console.ReadLine(ctx, "assessment id:", k.cfg.Scan.InputTimeout)
	if err != nil {
		return nil, false
	}
	key, err := k.store.Keys.Find(ctx, strings.TrimSpace(id))
	if err != nil {
		k.console.Show(appErrors.FromError(err).Message)
		return nil, false
	}
	return key, true
}
