package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"shopmart/internal/domain"
	"shopmart/internal/events"
	"shopmart/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Import log entry levels. The rendered prefixes ("Error:", ...) are
// part of the persisted log format.
const (
	ImportLogError   = "Error"
	ImportLogWarning = "Warning"
	ImportLogInfo    = "Info"
)

// ImportLogEntry is one structured line of an import run log
type ImportLogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ImportSummary reports what one import run did
type ImportSummary struct {
	Created  int              `json:"created"`
	Updated  int              `json:"updated"`
	Errors   int              `json:"errors"`
	Warnings int              `json:"warnings"`
	Entries  []ImportLogEntry `json:"-"`
}

// ImportService reconciles an uploaded CSV of products against the
// catalog: rows with unknown articles become new products, rows with
// known articles overwrite the existing ones.
type ImportService interface {
	// Run executes one import against an in-progress job. The boolean
	// is false only when the file itself cannot be decoded; malformed
	// rows are skipped and counted, never fatal.
	Run(ctx context.Context, job *domain.ImportJob, data []byte) (bool, *ImportSummary, error)
}

// importRow is one parsed CSV row keyed by the expected header columns
type importRow struct {
	title    string
	article  string
	price    string
	quantity string
	category string
}

type importService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	jobRepo      repository.ImportJobRepository
	publisher    events.Publisher
	logger       *zap.Logger
	delimiter    rune
}

// NewImportService creates a new instance of ImportService
func NewImportService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	jobRepo repository.ImportJobRepository,
	publisher events.Publisher,
	logger *zap.Logger,
	delimiter rune,
) ImportService {
	if delimiter == 0 {
		delimiter = ','
	}
	return &importService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		jobRepo:      jobRepo,
		publisher:    publisher,
		logger:       logger,
		delimiter:    delimiter,
	}
}

// Run executes one import run end to end
func (s *importService) Run(ctx context.Context, job *domain.ImportJob, data []byte) (bool, *ImportSummary, error) {
	start := time.Now().UTC()
	run := newImportRun(job.FileName, start)

	s.logger.Info("Import started",
		zap.String("job_id", job.ID.String()),
		zap.String("file", job.FileName),
	)

	if !utf8.Valid(data) {
		run.add(ImportLogError, "not a valid import file: text decoding failed")
		if err := s.finish(ctx, job, run, &ImportSummary{}); err != nil {
			return false, nil, err
		}
		return false, run.summary(), nil
	}

	rows, err := s.parseRows(data)
	if err != nil {
		run.add(ImportLogError, fmt.Sprintf("not a valid import file: %v", err))
		if finishErr := s.finish(ctx, job, run, &ImportSummary{}); finishErr != nil {
			return false, nil, finishErr
		}
		return false, run.summary(), nil
	}

	existing, err := s.productRepo.ArticleMap(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("import: failed to load existing articles: %w", err)
	}

	// Partition by the article natural key, preserving input order
	var toCreate, toUpdate []importRow
	for _, row := range rows {
		if _, ok := existing[row.article]; ok {
			toUpdate = append(toUpdate, row)
		} else {
			toCreate = append(toCreate, row)
		}
	}

	summary := &ImportSummary{}
	categories := newCategoryCache(s.categoryRepo)

	if len(toCreate) > 0 {
		created, err := s.createProducts(ctx, run, categories, toCreate)
		if err != nil {
			return false, nil, err
		}
		summary.Created = created
	}

	if len(toUpdate) > 0 {
		updated, err := s.updateProducts(ctx, run, categories, existing, toUpdate)
		if err != nil {
			return false, nil, err
		}
		summary.Updated = updated
	}

	if err := s.finish(ctx, job, run, summary); err != nil {
		return false, nil, err
	}

	summary.Errors, summary.Warnings = run.counts()
	summary.Entries = run.entries
	return true, summary, nil
}

// parseRows reads the CSV into rows keyed by the header columns.
// Missing fields come back empty and fail row validation later.
func (s *importService) parseRows(data []byte) ([]importRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = s.delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []importRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed csv: %w", err)
		}
		rows = append(rows, importRow{
			title:    field(record, "title"),
			article:  field(record, "article"),
			price:    field(record, "price"),
			quantity: field(record, "quantity"),
			category: field(record, "category"),
		})
	}

	return rows, nil
}

// validateRows drops rows with non-integer price/quantity or empty
// title/category/article. Dropped articles are reported in one Error
// entry per batch; a duplicated article keeps its last valid row.
func (s *importService) validateRows(run *importRun, rows []importRow) []importRow {
	var (
		valid       []importRow
		badArticles []string
		seen        = map[string]int{}
	)

	for _, row := range rows {
		if !rowValid(row) {
			article := row.article
			if article == "" {
				article = "unknown"
			}
			badArticles = append(badArticles, article)
			continue
		}
		if at, ok := seen[row.article]; ok {
			valid[at] = row // last valid row wins
			continue
		}
		seen[row.article] = len(valid)
		valid = append(valid, row)
	}

	if len(badArticles) > 0 {
		run.add(ImportLogError, fmt.Sprintf(
			"products with articles [%s] will not be created/updated: wrong data",
			strings.Join(badArticles, ", ")))
	}

	return valid
}

func rowValid(row importRow) bool {
	if row.title == "" || row.category == "" || row.article == "" {
		return false
	}
	if _, err := strconv.Atoi(row.price); err != nil {
		return false
	}
	if _, err := strconv.Atoi(row.quantity); err != nil {
		return false
	}
	return true
}

func (s *importService) createProducts(ctx context.Context, run *importRun, categories *categoryCache, rows []importRow) (int, error) {
	valid := s.validateRows(run, rows)
	if len(valid) == 0 {
		return 0, nil
	}

	products, err := s.buildProducts(ctx, run, categories, valid, nil)
	if err != nil {
		return 0, err
	}

	if err := s.productRepo.BulkCreate(ctx, products); err != nil {
		return 0, fmt.Errorf("import: bulk create failed: %w", err)
	}

	return len(products), nil
}

func (s *importService) updateProducts(ctx context.Context, run *importRun, categories *categoryCache, existing map[string]uuid.UUID, rows []importRow) (int, error) {
	valid := s.validateRows(run, rows)
	if len(valid) == 0 {
		return 0, nil
	}

	// Warn about the overwrite after validation, so the listed
	// articles are exactly the ones that will actually change.
	articles := make([]string, 0, len(valid))
	for _, row := range valid {
		articles = append(articles, row.article)
	}
	run.add(ImportLogWarning, fmt.Sprintf(
		"products with articles [%s] already exist and will be updated",
		strings.Join(articles, ", ")))

	products, err := s.buildProducts(ctx, run, categories, valid, existing)
	if err != nil {
		return 0, err
	}

	if err := s.productRepo.BulkUpdateByArticle(ctx, products); err != nil {
		return 0, fmt.Errorf("import: bulk update failed: %w", err)
	}

	return len(products), nil
}

// buildProducts resolves categories and converts validated rows into
// products. When existing is non-nil the known product IDs are reused.
func (s *importService) buildProducts(ctx context.Context, run *importRun, categories *categoryCache, rows []importRow, existing map[string]uuid.UUID) ([]*domain.Product, error) {
	var created []string
	now := time.Now()

	products := make([]*domain.Product, 0, len(rows))
	for _, row := range rows {
		categoryID, isNew, err := categories.resolve(ctx, row.category)
		if err != nil {
			return nil, fmt.Errorf("import: failed to resolve category %q: %w", row.category, err)
		}
		if isNew {
			created = append(created, row.category)
		}

		price, _ := strconv.Atoi(row.price)
		quantity, _ := strconv.Atoi(row.quantity)

		id := uuid.New()
		if existing != nil {
			if known, ok := existing[row.article]; ok {
				id = known
			}
		}

		products = append(products, &domain.Product{
			ID:         id,
			CategoryID: categoryID,
			Title:      row.title,
			Article:    row.article,
			Price:      float64(price),
			Quantity:   quantity,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if len(created) > 0 {
		run.add(ImportLogInfo, fmt.Sprintf(
			"new categories [%s] were created", strings.Join(created, ", ")))
	}

	return products, nil
}

// finish persists the run summary onto the job, exactly once
func (s *importService) finish(ctx context.Context, job *domain.ImportJob, run *importRun, summary *ImportSummary) error {
	errCount, warnCount := run.counts()

	if err := s.jobRepo.Complete(ctx, job.ID, errCount, warnCount, run.render()); err != nil {
		return fmt.Errorf("import: failed to complete job: %w", err)
	}

	s.logger.Info("Import finished",
		zap.String("job_id", job.ID.String()),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", errCount),
		zap.Int("warnings", warnCount),
	)

	event := map[string]interface{}{
		"type":     "products_imported",
		"job_id":   job.ID.String(),
		"file":     job.FileName,
		"created":  summary.Created,
		"updated":  summary.Updated,
		"errors":   errCount,
		"warnings": warnCount,
	}
	if err := s.publisher.PublishEvent(ctx, events.TopicImports, job.ID.String(), event); err != nil {
		s.logger.Error("Failed to publish import event", zap.Error(err))
	}

	return nil
}

// importRun accumulates the structured log of one run. Counts are
// derived from the entries themselves, not by re-parsing log text.
type importRun struct {
	fileName string
	start    time.Time
	entries  []ImportLogEntry
}

func newImportRun(fileName string, start time.Time) *importRun {
	return &importRun{fileName: fileName, start: start}
}

func (r *importRun) add(level, message string) {
	r.entries = append(r.entries, ImportLogEntry{Level: level, Message: message})
}

func (r *importRun) counts() (errs, warns int) {
	for _, e := range r.entries {
		switch e.Level {
		case ImportLogError:
			errs++
		case ImportLogWarning:
			warns++
		}
	}
	return errs, warns
}

// render produces the persisted log text: bracketed start/finish
// markers keyed by the run timestamp, one prefixed line per entry.
func (r *importRun) render() string {
	stamp := r.start.Format(time.RFC3339)

	var b strings.Builder
	fmt.Fprintf(&b, "<%s starts import at %s>\n", r.fileName, stamp)
	for _, e := range r.entries {
		fmt.Fprintf(&b, "%s: %s\n", e.Level, e.Message)
	}
	fmt.Fprintf(&b, "<%s finished import started at %s>\n", r.fileName, stamp)
	return b.String()
}

func (r *importRun) summary() *ImportSummary {
	errs, warns := r.counts()
	return &ImportSummary{
		Errors:   errs,
		Warnings: warns,
		Entries:  r.entries,
	}
}

// categoryCache resolves category names to IDs with one lookup (or
// create) per distinct name per run, so a batch referencing the same
// new name many times creates exactly one category row.
type categoryCache struct {
	repo  repository.CategoryRepository
	known map[string]uuid.UUID
}

func newCategoryCache(repo repository.CategoryRepository) *categoryCache {
	return &categoryCache{
		repo:  repo,
		known: make(map[string]uuid.UUID),
	}
}

// resolve returns the category ID for a name, creating the category
// when it does not exist yet. The boolean reports a fresh creation.
func (c *categoryCache) resolve(ctx context.Context, name string) (uuid.UUID, bool, error) {
	if id, ok := c.known[name]; ok {
		return id, false, nil
	}

	category, err := c.repo.FindByName(ctx, name)
	if err == nil {
		c.known[name] = category.ID
		return category.ID, false, nil
	}
	if err != repository.ErrCategoryNotFound {
		return uuid.Nil, false, err
	}

	fresh := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := c.repo.Create(ctx, fresh); err != nil {
		if err == repository.ErrCategoryAlreadyExists {
			// Lost a race with a concurrent writer; take theirs
			category, findErr := c.repo.FindByName(ctx, name)
			if findErr != nil {
				return uuid.Nil, false, findErr
			}
			c.known[name] = category.ID
			return category.ID, false, nil
		}
		return uuid.Nil, false, err
	}

	c.known[name] = fresh.ID
	return fresh.ID, true, nil
}
