package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const postgresForeignKeyViolation = "23503"

var (
	// ErrNoteNotFound indicates that no note matches the requested id.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrGuestNotFound indicates that a note references a guest that does not exist.
	ErrGuestNotFound = errors.New("notes: guest not found")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a stable code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew        = "notes.store.new"
	opAddGuest        = "notes.add_guest"
	opGetNotesInRange = "notes.get_notes_in_range"
	opAddNote         = "notes.add_note"
	opUpdateNote      = "notes.update_note"
	opDeleteNote      = "notes.delete_note"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Store issues one SQL statement per operation against the shared pool.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, "missing_database", errMissingDatabase)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:     cfg.Database,
		logger: logger,
	}, nil
}

// AddGuest inserts a guest with default values and returns its generated id.
func (s *Store) AddGuest(ctx context.Context) (Guest, error) {
	if s.db == nil {
		s.logError(opAddGuest, "missing_database", errMissingDatabase)
		return Guest{}, newServiceError(opAddGuest, "missing_database", errMissingDatabase)
	}

	var guest Guest
	if err := s.db.WithContext(ctx).Create(&guest).Error; err != nil {
		s.logError(opAddGuest, "insert_failed", err)
		return Guest{}, newServiceError(opAddGuest, "insert_failed", err)
	}
	return guest, nil
}

// GetNotesInRange returns the guest's notes dated within [start, end].
// Row order is whatever the database yields.
func (s *Store) GetNotesInRange(ctx context.Context, start, end Date, guestID int64) ([]Note, error) {
	if s.db == nil {
		s.logError(opGetNotesInRange, "missing_database", errMissingDatabase)
		return nil, newServiceError(opGetNotesInRange, "missing_database", errMissingDatabase)
	}

	notes := make([]Note, 0)
	if err := s.db.WithContext(ctx).
		Select("id", "date", "content", "guest_id").
		Where("date >= ? AND date <= ? AND guest_id = ?", start, end, guestID).
		Find(&notes).Error; err != nil {
		s.logError(opGetNotesInRange, "query_failed", err,
			zap.Stringer("start", start),
			zap.Stringer("end", end),
			zap.Int64("guest_id", guestID))
		return nil, newServiceError(opGetNotesInRange, "query_failed", err)
	}
	return notes, nil
}

// AddNote inserts a note for an existing guest.
func (s *Store) AddNote(ctx context.Context, date Date, content string, guestID int64) (Note, error) {
	if s.db == nil {
		s.logError(opAddNote, "missing_database", errMissingDatabase)
		return Note{}, newServiceError(opAddNote, "missing_database", errMissingDatabase)
	}

	note := Note{Date: date, Content: content, GuestID: guestID}
	if err := s.db.WithContext(ctx).Omit("Guest").Create(&note).Error; err != nil {
		if isForeignKeyViolation(err) {
			s.logWarn(opAddNote, "guest_not_found", err, zap.Int64("guest_id", guestID))
			return Note{}, newServiceError(opAddNote, "guest_not_found", fmt.Errorf("%w: %d", ErrGuestNotFound, guestID))
		}
		s.logError(opAddNote, "insert_failed", err, zap.Int64("guest_id", guestID))
		return Note{}, newServiceError(opAddNote, "insert_failed", err)
	}
	return note, nil
}

// UpdateNote replaces the date and content of an existing note.
func (s *Store) UpdateNote(ctx context.Context, id NoteID, date Date, content string) (Note, error) {
	if s.db == nil {
		s.logError(opUpdateNote, "missing_database", errMissingDatabase)
		return Note{}, newServiceError(opUpdateNote, "missing_database", errMissingDatabase)
	}

	var note Note
	result := s.db.WithContext(ctx).
		Raw("UPDATE notes SET date = ?, content = ? WHERE id = ? RETURNING id, date, content, guest_id", date, content, id.Int64()).
		Scan(&note)
	if result.Error != nil {
		s.logError(opUpdateNote, "update_failed", result.Error, zap.Int64("note_id", id.Int64()))
		return Note{}, newServiceError(opUpdateNote, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logWarn(opUpdateNote, "note_not_found", ErrNoteNotFound, zap.Int64("note_id", id.Int64()))
		return Note{}, newServiceError(opUpdateNote, "note_not_found", fmt.Errorf("%w: %d", ErrNoteNotFound, id))
	}
	return note, nil
}

// DeleteNote removes a note and returns its state immediately before removal.
func (s *Store) DeleteNote(ctx context.Context, id NoteID) (Note, error) {
	if s.db == nil {
		s.logError(opDeleteNote, "missing_database", errMissingDatabase)
		return Note{}, newServiceError(opDeleteNote, "missing_database", errMissingDatabase)
	}

	var note Note
	result := s.db.WithContext(ctx).
		Raw("DELETE FROM notes WHERE id = ? RETURNING id, date, content, guest_id", id.Int64()).
		Scan(&note)
	if result.Error != nil {
		s.logError(opDeleteNote, "delete_failed", result.Error, zap.Int64("note_id", id.Int64()))
		return Note{}, newServiceError(opDeleteNote, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logWarn(opDeleteNote, "note_not_found", ErrNoteNotFound, zap.Int64("note_id", id.Int64()))
		return Note{}, newServiceError(opDeleteNote, "note_not_found", fmt.Errorf("%w: %d", ErrNoteNotFound, id))
	}
	return note, nil
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresForeignKeyViolation
	}
	// A caller-supplied *gorm.DB opened without TranslateError surfaces the raw
	// SQLite error, which carries no typed code.
	return strings.Contains(strings.ToUpper(err.Error()), "FOREIGN KEY CONSTRAINT FAILED")
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	s.loggerOrDefault().Error("notes store error", storeFields(operation, reason, err, fields)...)
}

func (s *Store) logWarn(operation, reason string, err error, fields ...zap.Field) {
	s.loggerOrDefault().Warn("notes store rejected request", storeFields(operation, reason, err, fields)...)
}

func storeFields(operation, reason string, err error, fields []zap.Field) []zap.Field {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	return append(attrs, fields...)
}
