package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sheetgrader/internal/collage"
	"github.com/noah-isme/sheetgrader/internal/device"
	"github.com/noah-isme/sheetgrader/internal/models"
	"github.com/noah-isme/sheetgrader/internal/ocr"
	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
	"github.com/noah-isme/sheetgrader/pkg/storage"
)

// Mode selects what kind of document a session grades.
type Mode string

const (
	ModeAnswerKey    Mode = "answer_key"
	ModeStudentSheet Mode = "student_sheet"
)

// Stage identifies the pipeline step a session is in. A recovery retry
// re-enters the stage recorded here, so the pipeline always resumes from the
// first incomplete stage and never repeats completed work.
type Stage int

const (
	StageCollect Stage = iota
	StageCollage
	StageOCR
	StageScore
	StageUpload
	StagePersist
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageCollect:
		return "collect"
	case StageCollage:
		return "collage"
	case StageOCR:
		return "extract"
	case StageScore:
		return "score"
	case StageUpload:
		return "upload"
	case StagePersist:
		return "persist"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// ErrAbandoned reports that the operator gave up on the current document at a
// recovery menu. The session loop survives it; only the document is lost.
var ErrAbandoned = appErrors.New("DOC_ABANDONED", appErrors.KindUser, "document abandoned")

// SessionState carries everything one grading pass has accumulated. It is a
// value: stage functions return a new state instead of mutating shared
// variables, so a half-applied transition can never leak into the next sheet.
type SessionState struct {
	Mode           Mode
	AssessmentID   string
	TotalQuestions int
	Key            *models.AnswerKeyRecord

	Pages       []string
	PageCount   int
	CollagePath string
	TargetImage string

	OCRDone    bool
	Extraction *Extraction
	Score      *models.ScoreResult

	Refs           []storage.RemoteRef
	UploadDeferred bool

	Stage Stage
}

type extractor interface {
	Extract(ctx context.Context, imagePath, prompt string) (string, error)
}

type collageAssembler interface {
	Build(paths []string, outPath string) (*collage.Result, error)
}

type uploader interface {
	UploadAll(ctx context.Context, paths []string, folder string) ([]storage.RemoteRef, error)
	EnqueueRetry(paths []string, folder string, onSuccess func([]storage.RemoteRef), onExhausted func()) error
}

type persistence interface {
	ValidateAssessment(ctx context.Context, assessmentID, teacherID string) error
	SaveAnswerKey(ctx context.Context, record *models.AnswerKeyRecord) error
	SaveStudentResult(ctx context.Context, record *models.StudentResultRecord) error
	AttachResultImages(ctx context.Context, teacherID, assessmentID, studentID string, urls []string) error
}

type fileJanitor interface {
	Delete(name string) error
	DeleteAll(names []string) error
	Path(name string) string
}

type pipelineMetrics interface {
	PageScanned()
	DocumentCompleted(mode string)
	DocumentAbandoned()
	ObserveStage(stage string, d time.Duration)
	StageFailure(stage, kind string)
	UploadRetryScheduled()
}

// ScanOptions tunes session behaviour.
type ScanOptions struct {
	Folder         string
	KeepCollage    bool
	MaxQuestions   int
	InputTimeout   time.Duration
	ConfirmTimeout time.Duration
}

// ScanService drives one grading session: page collection, collage, OCR
// extraction, scoring, upload and persistence, with a bounded recovery menu
// at every failure point. No failure propagates past it as a fault.
type ScanService struct {
	scanner   device.Scanner
	prompter  device.Prompter
	display   device.Display
	collage   collageAssembler
	ocr       extractor
	sanitizer Sanitizer
	scorer    Scorer
	uploads   uploader
	store     persistence
	files     fileJanitor
	validator *validator.Validate
	metrics   pipelineMetrics
	logger    *zap.Logger
	opts      ScanOptions
}

// NewScanService wires the pipeline collaborators.
func NewScanService(
	scanner device.Scanner,
	prompter device.Prompter,
	display device.Display,
	assembler collageAssembler,
	extractor extractor,
	uploads uploader,
	store persistence,
	files fileJanitor,
	validate *validator.Validate,
	metrics pipelineMetrics,
	logger *zap.Logger,
	opts ScanOptions,
) *ScanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxQuestions <= 0 {
		opts.MaxQuestions = 99
	}
	if opts.InputTimeout <= 0 {
		opts.InputTimeout = 300 * time.Second
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 10 * time.Second
	}
	return &ScanService{
		scanner:   scanner,
		prompter:  prompter,
		display:   display,
		collage:   assembler,
		ocr:       extractor,
		uploads:   uploads,
		store:     store,
		files:     files,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// NewSession validates the inputs and returns the initial collecting state.
// Answer-key mode requires the operator-entered question count to be a
// positive integer within the supported bound; out-of-range input aborts
// session creation before any state exists.
func (s *ScanService) NewSession(mode Mode, key *models.AnswerKeyRecord, totalQuestions int) (SessionState, error) {
	switch mode {
	case ModeAnswerKey:
		if totalQuestions < 1 || totalQuestions > s.opts.MaxQuestions {
			return SessionState{}, appErrors.Clone(appErrors.ErrInvalidInput,
				fmt.Sprintf("question count must be between 1 and %d", s.opts.MaxQuestions))
		}
		return SessionState{Mode: mode, TotalQuestions: totalQuestions}, nil
	case ModeStudentSheet:
		if key == nil {
			return SessionState{}, appErrors.Clone(appErrors.ErrInvalidInput, "student session needs a loaded answer key")
		}
		return SessionState{
			Mode:           mode,
			AssessmentID:   key.AssessmentID,
			TotalQuestions: key.TotalQuestions,
			Key:            key,
		}, nil
	}
	return SessionState{}, appErrors.Clone(appErrors.ErrInvalidInput, "unknown session mode")
}

// BeginPage blocks on the scanner and appends one captured page. Capture
// errors are non-fatal: the returned state is unchanged and the caller stays
// in the collecting menu.
func (s *ScanService) BeginPage(ctx context.Context, st SessionState) (SessionState, error) {
	path, err := s.scanner.CapturePage(ctx)
	if err != nil {
		return st, err
	}
	next := st
	next.Pages = append(append([]string(nil), st.Pages...), path)
	next.PageCount++
	if s.metrics != nil {
		s.metrics.PageScanned()
	}
	s.logger.Info("page captured", zap.Int("page", next.PageCount), zap.String("mode", string(st.Mode)))
	return next, nil
}

// FinishDocument runs the pipeline from the first incomplete stage to
// completion. It is the only way out of page collection and fails fast,
// before any remote call, when no pages were captured.
func (s *ScanService) FinishDocument(ctx context.Context, st SessionState, teacherID string) (SessionState, error) {
	if len(st.Pages) == 0 {
		return st, appErrors.Clone(appErrors.ErrNoPages, "scan at least one page before saving")
	}
	if st.Stage == StageCollect {
		st.Stage = StageCollage
	}

	for st.Stage != StageDone {
		started := time.Now()
		next, err := s.runStage(ctx, st, teacherID)
		if s.metrics != nil {
			s.metrics.ObserveStage(st.Stage.String(), time.Since(started))
		}
		if err == nil {
			st = next
			continue
		}

		kind := appErrors.KindOf(err)
		if s.metrics != nil {
			s.metrics.StageFailure(st.Stage.String(), string(kind))
		}
		s.logger.Warn("stage failed",
			zap.String("stage", st.Stage.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)

		action, menuErr := s.recoveryMenu(ctx, st, err)
		if menuErr != nil || action == actionAbandon {
			s.abandon(st)
			return SessionState{}, ErrAbandoned
		}
		if action == actionProceedWithoutUpload {
			st = s.deferUpload(st)
		}
		// retry re-enters the same (first incomplete) stage
	}

	if err := s.complete(st, teacherID); err != nil {
		s.logger.Warn("cleanup incomplete", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.DocumentCompleted(string(st.Mode))
	}
	return st, nil
}

func (s *ScanService) runStage(ctx context.Context, st SessionState, teacherID string) (SessionState, error) {
	switch st.Stage {
	case StageCollage:
		return s.runCollage(st)
	case StageOCR:
		return s.runExtract(ctx, st)
	case StageScore:
		return s.runScore(st)
	case StageUpload:
		return s.runUpload(ctx, st)
	case StagePersist:
		return s.runPersist(ctx, st, teacherID)
	}
	return st, appErrors.Clone(appErrors.ErrInternal, "invalid pipeline stage")
}

func (s *ScanService) runCollage(st SessionState) (SessionState, error) {
	if len(st.Pages) == 1 {
		st.TargetImage = st.Pages[0]
		st.Stage = StageOCR
		return st, nil
	}
	out := s.files.Path("collage-" + uuid.NewString() + ".jpg")
	result, err := s.collage.Build(st.Pages, out)
	if err != nil {
		return st, err
	}
	st.CollagePath = result.Path
	st.TargetImage = result.Path
	st.Stage = StageOCR
	return st, nil
}

func (s *ScanService) runExtract(ctx context.Context, st SessionState) (SessionState, error) {
	if st.OCRDone {
		st.Stage = s.afterExtract(st.Mode)
		return st, nil
	}

	prompt := ocr.StudentSheetPrompt(st.TotalQuestions)
	if st.Mode == ModeAnswerKey {
		prompt = ocr.AnswerKeyPrompt(st.TotalQuestions)
	}
	raw, err := s.ocr.Extract(ctx, st.TargetImage, prompt)
	if err != nil {
		return st, err
	}
	extraction, err := s.sanitizer.Sanitize(raw, st.Mode)
	if err != nil {
		// malformed payload: OCRDone stays false so a manual retry
		// re-runs the extraction
		return st, err
	}

	st.Extraction = extraction
	st.OCRDone = true
	if st.Mode == ModeAnswerKey && len(extraction.Answers) != st.TotalQuestions {
		s.display.Show(fmt.Sprintf("warning: key lists %d answers, expected %d", len(extraction.Answers), st.TotalQuestions))
	}
	st.Stage = s.afterExtract(st.Mode)
	return st, nil
}

func (s *ScanService) afterExtract(mode Mode) Stage {
	if mode == ModeStudentSheet {
		return StageScore
	}
	return StageUpload
}

func (s *ScanService) runScore(st SessionState) (SessionState, error) {
	score := s.scorer.Score(st.Key.Answers, st.Extraction.Answers, st.TotalQuestions)
	if score.CountMismatch {
		s.display.Show(fmt.Sprintf("warning: extracted %d answers for %d questions; missing ones scored as wrong",
			len(st.Extraction.Answers), st.TotalQuestions))
	}
	st.Score = &score
	st.Stage = StageUpload
	return st, nil
}

func (s *ScanService) runUpload(ctx context.Context, st SessionState) (SessionState, error) {
	refs, err := s.uploads.UploadAll(ctx, st.Pages, s.opts.Folder)
	if err != nil {
		return st, err
	}
	st.Refs = refs
	st.Stage = StagePersist
	return st, nil
}

func (s *ScanService) runPersist(ctx context.Context, st SessionState, teacherID string) (SessionState, error) {
	switch st.Mode {
	case ModeAnswerKey:
		// the extracted assessment identifier is untrusted input; a miss
		// here is a data error, not worth retrying
		if err := s.store.ValidateAssessment(ctx, st.Extraction.ID, teacherID); err != nil {
			return st, err
		}
		now := time.Now().UTC()
		record := &models.AnswerKeyRecord{
			AssessmentID:   st.Extraction.ID,
			TeacherID:      teacherID,
			Answers:        st.Extraction.Answers,
			TotalQuestions: st.TotalQuestions,
			ImageURLs:      refURLs(st.Refs),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := record.Validate(); err != nil {
			return st, appErrors.Wrap(err, appErrors.ErrMalformedPayload.Code, appErrors.KindData, "extracted key is inconsistent")
		}
		if err := s.validator.Struct(record); err != nil {
			return st, appErrors.Wrap(err, appErrors.ErrMalformedPayload.Code, appErrors.KindData, "answer key record invalid")
		}
		if err := s.store.SaveAnswerKey(ctx, record); err != nil {
			return st, err
		}
	case ModeStudentSheet:
		record := &models.StudentResultRecord{
			AssessmentID:   st.AssessmentID,
			StudentID:      st.Extraction.ID,
			TeacherID:      teacherID,
			Breakdown:      st.Score.Breakdown,
			TotalScore:     st.Score.TotalScore,
			TotalQuestions: st.TotalQuestions,
			IsFinalScore:   st.Score.IsFinalScore,
			ImageURLs:      refURLs(st.Refs),
			CheckedAt:      time.Now().UTC(),
		}
		if err := record.Validate(); err != nil {
			return st, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "result record inconsistent")
		}
		if err := s.validator.Struct(record); err != nil {
			return st, appErrors.Wrap(err, appErrors.ErrMalformedPayload.Code, appErrors.KindData, "result record invalid")
		}
		if err := s.store.SaveStudentResult(ctx, record); err != nil {
			return st, err
		}
	}
	st.Stage = StageDone
	return st, nil
}

type recoveryAction int

const (
	actionRetry recoveryAction = iota
	actionAbandon
	actionProceedWithoutUpload
)

// recoveryMenu shows a short cause and a bounded choice of next actions.
// Data errors at the persist stage offer no retry: rescanning with a correct
// assessment identifier on paper is the only fix.
func (s *ScanService) recoveryMenu(ctx context.Context, st SessionState, cause error) (recoveryAction, error) {
	classified := appErrors.FromError(cause)
	message := fmt.Sprintf("%s failed: %s.", st.Stage.String(), classified.Message)

	options := []device.Choice{{Key: "r", Label: "retry"}}
	if st.Stage == StagePersist && classified.Kind == appErrors.KindData {
		options = options[:0]
	}
	if st.Stage == StageUpload && st.Mode == ModeStudentSheet {
		options = append(options, device.Choice{Key: "p", Label: "proceed without images"})
	}
	options = append(options, device.Choice{Key: "a", Label: "abandon document"})

	choice, err := s.prompter.Confirm(ctx, message, options, s.opts.InputTimeout)
	if err != nil {
		return actionAbandon, err
	}
	switch choice.Key {
	case "r":
		return actionRetry, nil
	case "p":
		return actionProceedWithoutUpload, nil
	default:
		return actionAbandon, nil
	}
}

// deferUpload advances past the upload stage with an empty reference list.
// The background retry job is enqueued after a successful persist so the
// late references have a record to attach to.
func (s *ScanService) deferUpload(st SessionState) SessionState {
	st.Refs = []storage.RemoteRef{}
	st.UploadDeferred = true
	st.Stage = StagePersist
	return st
}

// complete performs terminal cleanup. Pages handed to the background upload
// worker stay on disk: the worker owns their deletion from here on.
func (s *ScanService) complete(st SessionState, teacherID string) error {
	if st.UploadDeferred {
		assessmentID, studentID := st.AssessmentID, st.Extraction.ID
		err := s.uploads.EnqueueRetry(st.Pages, s.opts.Folder,
			func(refs []storage.RemoteRef) {
				urls := refURLs(refs)
				if err := s.store.AttachResultImages(context.Background(), teacherID, assessmentID, studentID, urls); err != nil {
					s.logger.Error("failed to attach late image references",
						zap.String("assessment_id", assessmentID),
						zap.String("student_id", studentID),
						zap.Error(err),
					)
				}
			},
			func() {
				// the record already holds an empty list; just leave a trace
				s.logger.Error("background upload exhausted, images lost",
					zap.String("assessment_id", assessmentID),
					zap.String("student_id", studentID),
				)
			},
		)
		if err != nil {
			s.logger.Error("failed to enqueue background upload", zap.Error(err))
		} else if s.metrics != nil {
			s.metrics.UploadRetryScheduled()
		}
		return s.cleanupCollage(st)
	}

	if err := s.files.DeleteAll(st.Pages); err != nil {
		return err
	}
	return s.cleanupCollage(st)
}

func (s *ScanService) cleanupCollage(st SessionState) error {
	if st.CollagePath == "" || s.opts.KeepCollage {
		return nil
	}
	return s.files.Delete(st.CollagePath)
}

// abandon deletes every page the current document captured.
func (s *ScanService) abandon(st SessionState) {
	if err := s.files.DeleteAll(st.Pages); err != nil {
		s.logger.Warn("failed to delete abandoned pages", zap.Error(err))
	}
	if st.CollagePath != "" {
		if err := s.files.Delete(st.CollagePath); err != nil {
			s.logger.Warn("failed to delete abandoned collage", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.DocumentAbandoned()
	}
}

// Reset returns a fresh collecting state for the next document of the same
// session (student mode grades many sheets in a row).
func (s *ScanService) Reset(st SessionState) SessionState {
	return SessionState{
		Mode:           st.Mode,
		AssessmentID:   st.AssessmentID,
		TotalQuestions: st.TotalQuestions,
		Key:            st.Key,
	}
}

// RunSession owns the collecting menu: scan pages, finish the document, or
// cancel. In student mode it loops so the operator can feed sheet after
// sheet; each saved document resets the state for the next student.
func (s *ScanService) RunSession(ctx context.Context, st SessionState, teacherID string) error {
	for {
		menu := []device.Choice{
			{Key: "s", Label: "scan page"},
			{Key: "d", Label: "done & save"},
			{Key: "c", Label: "cancel"},
		}
		choice, err := s.prompter.Confirm(ctx, fmt.Sprintf("[%s] pages captured: %d", st.Mode, st.PageCount), menu, s.opts.InputTimeout)
		if err != nil {
			s.abandon(st)
			return err
		}

		switch choice.Key {
		case "s":
			next, err := s.BeginPage(ctx, st)
			if err != nil {
				s.display.Show("capture failed: " + appErrors.FromError(err).Message)
				continue
			}
			st = next
		case "d":
			done, err := s.FinishDocument(ctx, st, teacherID)
			if err != nil {
				if errors.Is(err, ErrAbandoned) {
					return nil
				}
				s.display.Show(appErrors.FromError(err).Message)
				continue
			}
			s.showOutcome(done)
			if st.Mode == ModeStudentSheet {
				st = s.Reset(st)
				continue
			}
			return nil
		case "c":
			confirm, err := s.prompter.Confirm(ctx, "discard scanned pages?", []device.Choice{
				{Key: "y", Label: "yes"},
				{Key: "n", Label: "no"},
			}, s.opts.ConfirmTimeout)
			if err == nil && confirm.Key == "y" {
				s.abandon(st)
				return nil
			}
		}
	}
}

func (s *ScanService) showOutcome(st SessionState) {
	switch st.Mode {
	case ModeAnswerKey:
		s.display.Show(fmt.Sprintf("answer key %s saved (%d questions)", st.Extraction.ID, st.TotalQuestions))
	case ModeStudentSheet:
		suffix := ""
		if !st.Score.IsFinalScore {
			suffix = " (essays pending manual grading)"
		}
		s.display.Show(fmt.Sprintf("student %s: %d/%d%s", st.Extraction.ID, st.Score.TotalScore, st.TotalQuestions, suffix))
	}
}

func refURLs(refs []storage.RemoteRef) models.ImageList {
	urls := make(models.ImageList, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, ref.URL)
	}
	return urls
}
