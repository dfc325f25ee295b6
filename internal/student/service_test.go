package student_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"student-records/internal/logger"
	"student-records/internal/metrics"
	"student-records/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, repo student.Repository, publisher student.EventPublisher) (student.Service, string) {
	t.Helper()
	exportPath := filepath.Join(t.TempDir(), "out", "students.xlsx")
	svc := student.NewService(repo, student.NewExporter(), student.ServiceOptions{
		ExportPath: exportPath,
		Publisher:  publisher,
		Metrics:    metrics.NewMock(),
		Logger:     logger.Discard(),
	})
	return svc, exportPath
}

func TestService_CreateThenGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeRepository(), nil)

	in := student.StudentInput{FirstName: "Alice", LastName: "Smith", Age: intPtr(21), EmailAddress: "alice.smith@example.com"}
	rollNumber, err := svc.CreateStudent(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rollNumber)

	got, err := svc.GetStudent(ctx, rollNumber)
	require.NoError(t, err)
	assert.Equal(t, student.Student{
		RollNumber:   rollNumber,
		FirstName:    "Alice",
		LastName:     "Smith",
		Age:          21,
		EmailAddress: "alice.smith@example.com",
	}, *got)
	assert.Equal(t, "Alice Smith (Roll No: 1)", got.String())
}

func TestService_Validation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleStudents()...)
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.CreateStudent(ctx, student.StudentInput{LastName: "Smith", Age: intPtr(3)})
	require.Error(t, err)
	assert.ErrorIs(t, err, student.ErrInvalidInput)

	var validationErr *student.ValidationError
	require.ErrorAs(t, err, &validationErr)
	fields := make([]string, 0, len(validationErr.Fields))
	for _, f := range validationErr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"first_name", "email_address"}, fields)

	err = svc.UpdateStudent(ctx, 1, student.StudentInput{FirstName: "A", LastName: "B", Age: intPtr(1), EmailAddress: "bad"})
	assert.ErrorIs(t, err, student.ErrInvalidInput)

	_, err = svc.CreateStudent(ctx, student.StudentInput{FirstName: "A", LastName: "B", Age: intPtr(-7), EmailAddress: "a@b.com"})
	assert.NoError(t, err, "age has no range rule beyond the column type")
}

func TestService_NonPositiveRollNumberIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleStudents()...)
	svc, _ := newTestService(t, repo, nil)

	_, err := svc.GetStudent(ctx, -4)
	assert.ErrorIs(t, err, student.ErrStudentNotFound)

	assert.ErrorIs(t, svc.DeleteStudent(ctx, 0), student.ErrStudentNotFound)

	valid := student.StudentInput{FirstName: "A", LastName: "B", Age: intPtr(1), EmailAddress: "a@b.com"}
	assert.ErrorIs(t, svc.UpdateStudent(ctx, 0, valid), student.ErrStudentNotFound)

	assert.Equal(t, 0, repo.Calls())
}

func TestService_ListCountsCreatesMinusDeletes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeRepository(), nil)

	const creates, deletes = 7, 3
	rollNumbers := make([]int64, 0, creates)
	for i := 0; i < creates; i++ {
		rollNumber, err := svc.CreateStudent(ctx, student.StudentInput{
			FirstName: "First", LastName: "Last", Age: intPtr(20 + i), EmailAddress: "student@example.com",
		})
		require.NoError(t, err)
		rollNumbers = append(rollNumbers, rollNumber)
	}
	for _, rollNumber := range rollNumbers[:deletes] {
		require.NoError(t, svc.DeleteStudent(ctx, rollNumber))
	}

	all, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, creates-deletes)
	for _, s := range all {
		assert.NotContains(t, rollNumbers[:deletes], s.RollNumber)
	}
}

func TestService_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newFakeRepository(), nil)

	_, err := svc.GetStudent(ctx, 42)
	assert.ErrorIs(t, err, student.ErrStudentNotFound)

	in := student.StudentInput{FirstName: "A", LastName: "B", Age: intPtr(1), EmailAddress: "a@b.com"}
	assert.ErrorIs(t, svc.UpdateStudent(ctx, 42, in), student.ErrStudentNotFound)
	assert.ErrorIs(t, svc.DeleteStudent(ctx, 42), student.ErrStudentNotFound)
}

func TestService_StoreErrorPropagates(t *testing.T) {
	ctx := context.Background()
	storeErr := &student.StoreError{Op: "select", Err: errors.New("connection reset")}
	repo := newFakeRepository()
	repo.err = storeErr
	svc, exportPath := newTestService(t, repo, nil)

	_, err := svc.ListStudents(ctx)
	assert.ErrorIs(t, err, storeErr)

	_, err = svc.ExportStudents(ctx)
	assert.ErrorIs(t, err, storeErr)
	assert.NoFileExists(t, exportPath)
}

func TestService_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	publisher := &fakePublisher{}
	svc, _ := newTestService(t, newFakeRepository(sampleStudents()...), publisher)

	in := student.StudentInput{FirstName: "Frank", LastName: "Miller", Age: intPtr(24), EmailAddress: "frank@example.com"}
	rollNumber, err := svc.CreateStudent(ctx, in)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStudent(ctx, rollNumber, in))
	require.NoError(t, svc.DeleteStudent(ctx, rollNumber))
	_, err = svc.ExportStudents(ctx)
	require.NoError(t, err)

	// Reads and failed mutations publish nothing.
	_, _ = svc.ListStudents(ctx)
	_ = svc.DeleteStudent(ctx, rollNumber)

	assert.Equal(t, []string{
		student.EventCreated,
		student.EventUpdated,
		student.EventDeleted,
		student.EventExported,
	}, publisher.Types())

	created, ok := publisher.events[0].payload.(student.Event)
	require.True(t, ok)
	assert.Equal(t, rollNumber, created.RollNumber)
	require.NotNil(t, created.Student)
	assert.Equal(t, "frank@example.com", created.Student.EmailAddress)
	assert.False(t, created.OccurredAt.IsZero())

	exported, ok := publisher.events[3].payload.(student.Event)
	require.True(t, ok)
	assert.Equal(t, 5, exported.Count)
}

func TestService_PublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	publisher := &fakePublisher{err: errors.New("nats: connection closed")}
	svc, _ := newTestService(t, newFakeRepository(), publisher)

	rollNumber, err := svc.CreateStudent(ctx, student.StudentInput{
		FirstName: "Grace", LastName: "Hopper", Age: intPtr(30), EmailAddress: "grace@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rollNumber)
}

func TestService_ExportStudents(t *testing.T) {
	ctx := context.Background()
	svc, exportPath := newTestService(t, newFakeRepository(sampleStudents()...), nil)

	filePath, err := svc.ExportStudents(ctx)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(filePath))
	assert.Equal(t, exportPath, filePath)
	assert.FileExists(t, filePath)
}

func TestService_ExportIOError(t *testing.T) {
	ctx := context.Background()

	// A regular file where the export directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	svc := student.NewService(newFakeRepository(sampleStudents()...), student.NewExporter(), student.ServiceOptions{
		ExportPath: filepath.Join(blocker, "students.xlsx"),
		Logger:     logger.Discard(),
	})

	_, err := svc.ExportStudents(ctx)
	require.Error(t, err)
	var exportErr *student.ExportError
	assert.ErrorAs(t, err, &exportErr)
}

func TestService_WriteExport(t *testing.T) {
	svc, _ := newTestService(t, newFakeRepository(sampleStudents()...), nil)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteExport(context.Background(), &buf))
	assert.NotZero(t, buf.Len())
}
