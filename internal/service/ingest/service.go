package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/pkg/logger"
)

// Request is one uploaded CSV file.
type Request struct {
	CreatorID string
	Type      domain.ImportType
	FileName  string
	Content   []byte
	// SnapshotAt is the instant a social_posts file describes. Zero means now.
	SnapshotAt time.Time
}

// Service imports CSV files. It is safe for concurrent use.
type Service struct {
	repo     Repository
	salt     string
	archive  Archive
	recorder Recorder
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithArchive stores every accepted file's raw bytes.
func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithRecorder attaches instrumentation.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the clock used for default snapshot times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an ingest service. salt is mixed into every fan
// external id before hashing.
func NewService(repo Repository, salt string, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		salt:     salt,
		recorder: nopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashExternalID returns the salted SHA-256 of a platform fan identifier.
func HashExternalID(externalID, salt string) string {
	sum := sha256.Sum256([]byte(externalID + salt))
	return hex.EncodeToString(sum[:])
}

// ArchiveKey is the storage key of an imported file.
func ArchiveKey(creatorID, fileHash string) string {
	return fmt.Sprintf("imports/%s/%s.csv", creatorID, fileHash)
}

// Import parses the file and stores its rows. Row failures are recorded on
// the returned Import; file-level failures are returned as errors.
func (s *Service) Import(ctx context.Context, req Request) (*domain.Import, error) {
	if strings.TrimSpace(req.CreatorID) == "" {
		return nil, fmt.Errorf("%w: creator id is required", ErrInvalidRequest)
	}
	if _, ok := requiredColumns[req.Type]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownImportType, req.Type)
	}

	sum := sha256.Sum256(req.Content)
	fileHash := hex.EncodeToString(sum[:])

	header, rows, err := readCSV(req.Content)
	if err != nil {
		return nil, err
	}
	cols, err := mapColumns(header, req.Type)
	if err != nil {
		return nil, err
	}

	snapshotAt := req.SnapshotAt.UTC()
	if req.SnapshotAt.IsZero() {
		snapshotAt = s.now()
	}
	imp := &domain.Import{
		ID:         uuid.New().String(),
		CreatorID:  req.CreatorID,
		ImportType: req.Type,
		FileName:   req.FileName,
		FileHash:   fileHash,
		RowsTotal:  len(rows),
		SnapshotAt: snapshotAt,
		ImportedAt: s.now(),
		Errors:     []domain.ImportRowError{},
	}

	var rowFn func(context.Context, *domain.Import, columnMap, []string) error
	switch req.Type {
	case domain.ImportSocialPosts:
		rowFn = s.importPost
	case domain.ImportFans:
		rowFn = s.importFan
	case domain.ImportRevenue:
		rowFn = s.importRevenue
	}

	// The import record and its rows commit together, so a failed file
	// leaves nothing behind and can be uploaded again.
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ImportExists(ctx, fileHash)
		if err != nil {
			return fmt.Errorf("check import hash: %w", err)
		}
		if exists {
			return fmt.Errorf("%w (hash: %s)", ErrDuplicateImport, fileHash[:12])
		}
		if err := s.repo.CreateImport(ctx, imp); err != nil {
			return fmt.Errorf("create import: %w", err)
		}

		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := rowFn(ctx, imp, cols, row); err != nil {
				var se storeError
				if errors.As(err, &se) {
					return se.err
				}
				imp.RowsSkipped++
				imp.Errors = append(imp.Errors, domain.ImportRowError{Row: i, Error: err.Error()})
				continue
			}
			imp.RowsImported++
		}

		if err := s.repo.CompleteImport(ctx, imp); err != nil {
			return fmt.Errorf("complete import: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recorder.ImportRows(string(req.Type), imp.RowsImported, imp.RowsSkipped)

	if s.archive != nil {
		key := ArchiveKey(req.CreatorID, fileHash)
		if err := s.archive.Put(ctx, key, req.Content); err != nil {
			logger.Warn("archive import file failed", "import_id", imp.ID, "key", key, "error", err)
		}
	}

	logger.Info("import complete",
		"import_id", imp.ID,
		"creator_id", req.CreatorID,
		"type", string(req.Type),
		"rows_total", imp.RowsTotal,
		"rows_imported", imp.RowsImported,
		"rows_skipped", imp.RowsSkipped,
	)
	return imp, nil
}

// storeError marks a repository failure inside a row handler. Those abort
// the import instead of being reported as a skipped row.
type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }

func store(op string, err error) error {
	return storeError{err: fmt.Errorf("%s: %w", op, err)}
}

func readCSV(content []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: file is empty", ErrParse)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return header, rows, nil
}

func (s *Service) importPost(ctx context.Context, imp *domain.Import, cols columnMap, row []string) error {
	platform := domain.ParsePlatform(cols.get(row, "platform"))
	postID := cols.get(row, "post_id")
	if postID == "" {
		return fmt.Errorf("empty post id")
	}
	postedAt, err := parseTime(cols.get(row, "posted_at"))
	if err != nil {
		return fmt.Errorf("posted_at: %w", err)
	}

	var counts [5]int64
	for i, name := range []string{"views", "likes", "comments", "shares", "saves"} {
		n, err := parseCount(cols.get(row, name))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		counts[i] = n
	}
	var duration int64
	if cols.has("duration") {
		if duration, err = parseCount(cols.get(row, "duration")); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
	}

	snapshotAt := imp.SnapshotAt
	post := &domain.Post{
		CreatorID:          imp.CreatorID,
		Platform:           platform,
		PlatformPostID:     postID,
		PostedAt:           postedAt,
		ViewsCumulative:    counts[0],
		LikesCumulative:    counts[1],
		CommentsCumulative: counts[2],
		SharesCumulative:   counts[3],
		SavesCumulative:    counts[4],
		Caption:            cols.get(row, "caption"),
		URL:                cols.get(row, "url"),
		DurationSeconds:    int(duration),
		LastSnapshotAt:     &snapshotAt,
		CreatedAt:          s.now(),
	}
	if tag := cols.get(row, "content_type"); tag != "" {
		ct := domain.ParseContentType(tag)
		post.ContentType = &ct
	}

	id, err := s.repo.UpsertPost(ctx, post)
	if err != nil {
		return store("upsert post", err)
	}
	importID := imp.ID
	snap := &domain.Snapshot{
		ID:        uuid.New().String(),
		PostID:    id,
		CreatorID: imp.CreatorID,
		TakenAt:   snapshotAt,
		Views:     counts[0],
		Likes:     counts[1],
		Comments:  counts[2],
		Shares:    counts[3],
		Saves:     counts[4],
		ImportID:  &importID,
	}
	if err := s.repo.CreateSnapshot(ctx, snap); err != nil {
		return store("create snapshot", err)
	}
	return nil
}

func (s *Service) importFan(ctx context.Context, imp *domain.Import, cols columnMap, row []string) error {
	acquiredAt, err := parseTime(cols.get(row, "acquired_at"))
	if err != nil {
		return fmt.Errorf("acquired_at: %w", err)
	}
	fan := &domain.Fan{
		ID:         uuid.New().String(),
		CreatorID:  imp.CreatorID,
		AcquiredAt: acquiredAt,
	}
	if ext := cols.get(row, "external_id"); ext != "" {
		fan.ExternalIDHash = HashExternalID(ext, s.salt)
	}
	if churned := cols.get(row, "churned_at"); churned != "" {
		t, err := parseTime(churned)
		if err != nil {
			return fmt.Errorf("churned_at: %w", err)
		}
		fan.ChurnedAt = &t
	}
	if err := s.repo.CreateFan(ctx, fan); err != nil {
		return store("create fan", err)
	}
	return nil
}

var revenueTypes = map[domain.RevenueEventType]bool{
	domain.RevenueSubscription: true,
	domain.RevenueRenewal:      true,
	domain.RevenueTip:          true,
	domain.RevenuePPV:          true,
	domain.RevenueMessage:      true,
}

func (s *Service) importRevenue(ctx context.Context, imp *domain.Import, cols columnMap, row []string) error {
	ext := cols.get(row, "fan_id")
	if ext == "" {
		return fmt.Errorf("empty fan id")
	}
	amount, err := parseAmount(cols.get(row, "amount"))
	if err != nil {
		return err
	}
	eventAt, err := parseTime(cols.get(row, "event_at"))
	if err != nil {
		return fmt.Errorf("event_at: %w", err)
	}

	eventType := domain.RevenueSubscription
	if raw := strings.ToLower(cols.get(row, "event_type")); raw != "" {
		eventType = domain.RevenueEventType(raw)
		if !revenueTypes[eventType] {
			return fmt.Errorf("unknown event type %q", raw)
		}
	}
	currency := strings.ToUpper(cols.get(row, "currency"))
	if currency == "" {
		currency = "USD"
	}

	fan, err := s.repo.FindFanByExternalHash(ctx, imp.CreatorID, HashExternalID(ext, s.salt))
	if err != nil {
		return store("find fan", err)
	}
	if fan == nil {
		return fmt.Errorf("fan not found: %s", logger.RedactID(ext))
	}

	event := &domain.RevenueEvent{
		ID:        uuid.New().String(),
		FanID:     fan.ID,
		EventType: eventType,
		Amount:    amount,
		Currency:  currency,
		EventAt:   eventAt,
	}
	if err := s.repo.CreateRevenueEvent(ctx, event); err != nil {
		return store("create revenue event", err)
	}
	return nil
}
