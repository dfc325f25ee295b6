package student

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"student-records/internal/metrics"

	"github.com/go-playground/validator/v10"
)

type Service interface {
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, rollNumber int64) (*Student, error)
	CreateStudent(ctx context.Context, in StudentInput) (int64, error)
	UpdateStudent(ctx context.Context, rollNumber int64, in StudentInput) error
	DeleteStudent(ctx context.Context, rollNumber int64) error
	ExportStudents(ctx context.Context) (string, error)
	WriteExport(ctx context.Context, w io.Writer) error
}

type ServiceOptions struct {
	ExportPath string
	// Publisher is optional; nil disables lifecycle events.
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type service struct {
	repo       Repository
	exporter   *Exporter
	exportPath string
	publisher  EventPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	validate   *validator.Validate
}

func NewService(repo Repository, exporter *Exporter, opts ServiceOptions) Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		repo:       repo,
		exporter:   exporter,
		exportPath: opts.ExportPath,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     logger,
		validate:   newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func (s *service) validateInput(in StudentInput) error {
	err := s.validate.Struct(&in)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return newValidationError(err.Error())
	}

	fields := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return &ValidationError{Fields: fields}
}

// Roll numbers come from a serial column, so a non-positive one cannot exist.
func knownRollNumber(rollNumber int64) bool {
	return rollNumber > 0
}

func (s *service) ListStudents(ctx context.Context) ([]Student, error) {
	s.logger.InfoContext(ctx, "listing students")

	students, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list students", "error", err)
		return nil, err
	}

	s.metrics.RecordStudentsListViewed(ctx)
	s.logger.InfoContext(ctx, "listed students", "count", len(students))
	return students, nil
}

func (s *service) GetStudent(ctx context.Context, rollNumber int64) (*Student, error) {
	if !knownRollNumber(rollNumber) {
		return nil, ErrStudentNotFound
	}

	s.logger.InfoContext(ctx, "fetching student", "roll_number", rollNumber)

	student, err := s.repo.GetByID(ctx, rollNumber)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			s.logger.InfoContext(ctx, "student not found", "roll_number", rollNumber)
		} else {
			s.logger.ErrorContext(ctx, "failed to fetch student", "roll_number", rollNumber, "error", err)
		}
		return nil, err
	}

	s.metrics.RecordStudentViewed(ctx)
	s.logger.InfoContext(ctx, "fetched student", "roll_number", rollNumber)
	return student, nil
}

func (s *service) CreateStudent(ctx context.Context, in StudentInput) (int64, error) {
	if err := s.validateInput(in); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "creating student", "email_address", in.EmailAddress)

	student := in.toStudent()
	rollNumber, err := s.repo.Create(ctx, student)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create student", "email_address", in.EmailAddress, "error", err)
		return 0, err
	}
	student.RollNumber = rollNumber

	s.metrics.RecordStudentCreated(ctx)
	s.logger.InfoContext(ctx, "created student", "roll_number", rollNumber)
	s.publish(ctx, Event{Type: EventCreated, RollNumber: rollNumber, Student: student})
	return rollNumber, nil
}

func (s *service) UpdateStudent(ctx context.Context, rollNumber int64, in StudentInput) error {
	if err := s.validateInput(in); err != nil {
		return err
	}
	if !knownRollNumber(rollNumber) {
		return ErrStudentNotFound
	}

	s.logger.InfoContext(ctx, "updating student", "roll_number", rollNumber)

	student := in.toStudent()
	affected, err := s.repo.Update(ctx, rollNumber, student)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update student", "roll_number", rollNumber, "error", err)
		return err
	}
	if affected == 0 {
		s.logger.InfoContext(ctx, "student not found", "roll_number", rollNumber)
		return ErrStudentNotFound
	}
	student.RollNumber = rollNumber

	s.metrics.RecordStudentUpdated(ctx)
	s.logger.InfoContext(ctx, "updated student", "roll_number", rollNumber)
	s.publish(ctx, Event{Type: EventUpdated, RollNumber: rollNumber, Student: student})
	return nil
}

func (s *service) DeleteStudent(ctx context.Context, rollNumber int64) error {
	if !knownRollNumber(rollNumber) {
		return ErrStudentNotFound
	}

	s.logger.InfoContext(ctx, "deleting student", "roll_number", rollNumber)

	affected, err := s.repo.Delete(ctx, rollNumber)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete student", "roll_number", rollNumber, "error", err)
		return err
	}
	if affected == 0 {
		s.logger.InfoContext(ctx, "student not found", "roll_number", rollNumber)
		return ErrStudentNotFound
	}

	s.metrics.RecordStudentDeleted(ctx)
	s.logger.InfoContext(ctx, "deleted student", "roll_number", rollNumber)
	s.publish(ctx, Event{Type: EventDeleted, RollNumber: rollNumber})
	return nil
}

func (s *service) ExportStudents(ctx context.Context) (string, error) {
	s.logger.InfoContext(ctx, "exporting students", "path", s.exportPath)

	students, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load students for export", "error", err)
		return "", err
	}

	filePath, err := s.exporter.SaveFile(students, s.exportPath)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to write export", "path", s.exportPath, "error", err)
		return "", err
	}

	s.metrics.RecordStudentsExported(ctx)
	s.logger.InfoContext(ctx, "exported students", "file_path", filePath, "count", len(students))
	s.publish(ctx, Event{Type: EventExported, FilePath: filePath, Count: len(students)})
	return filePath, nil
}

func (s *service) WriteExport(ctx context.Context, w io.Writer) error {
	s.logger.InfoContext(ctx, "streaming student export")

	students, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load students for export", "error", err)
		return err
	}

	if err := s.exporter.Write(students, w); err != nil {
		s.logger.ErrorContext(ctx, "failed to stream export", "error", err)
		return err
	}

	s.metrics.RecordStudentsExported(ctx)
	s.logger.InfoContext(ctx, "streamed student export", "count", len(students))
	s.publish(ctx, Event{Type: EventExported, Count: len(students)})
	return nil
}

// publish never fails the calling operation.
func (s *service) publish(ctx context.Context, event Event) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event.Type, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish student event", "type", event.Type, "error", err)
	}
}
