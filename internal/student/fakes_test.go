package student_test

import (
	"context"
	"strconv"
	"sync"

	"student-records/internal/student"
)

// fakeRepository keeps students in memory and counts calls so tests can
// assert the store was never reached.
type fakeRepository struct {
	mu       sync.Mutex
	students map[int64]student.Student
	nextID   int64
	calls    int
	err      error
}

func newFakeRepository(seed ...student.Student) *fakeRepository {
	r := &fakeRepository{students: make(map[int64]student.Student)}
	for _, s := range seed {
		r.nextID++
		s.RollNumber = r.nextID
		r.students[s.RollNumber] = s
	}
	return r
}

func (r *fakeRepository) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeRepository) GetAll(ctx context.Context) ([]student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([]student.Student, 0, len(r.students))
	for _, s := range r.students {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeRepository) GetByID(ctx context.Context, rollNumber int64) (*student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.students[rollNumber]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return &s, nil
}

func (r *fakeRepository) Create(ctx context.Context, s *student.Student) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	r.nextID++
	s.RollNumber = r.nextID
	r.students[s.RollNumber] = *s
	return s.RollNumber, nil
}

func (r *fakeRepository) Update(ctx context.Context, rollNumber int64, s *student.Student) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	if _, ok := r.students[rollNumber]; !ok {
		return 0, nil
	}
	updated := *s
	updated.RollNumber = rollNumber
	r.students[rollNumber] = updated
	return 1, nil
}

func (r *fakeRepository) Delete(ctx context.Context, rollNumber int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	if _, ok := r.students[rollNumber]; !ok {
		return 0, nil
	}
	delete(r.students, rollNumber)
	return 1, nil
}

type publishedEvent struct {
	eventType string
	payload   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{eventType: eventType, payload: payload})
	return nil
}

func (p *fakePublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.eventType
	}
	return types
}

func intPtr(v int) *int {
	return &v
}

func sampleStudents() []student.Student {
	return []student.Student{
		{FirstName: "Alice", LastName: "Smith", Age: 21, EmailAddress: "alice.smith@example.com"},
		{FirstName: "Bob", LastName: "Johnson", Age: 22, EmailAddress: "bob.johnson@example.com"},
		{FirstName: "Carol", LastName: "Williams", Age: 20, EmailAddress: "carol.williams@example.com"},
		{FirstName: "David", LastName: "Brown", Age: 23, EmailAddress: "david.brown@example.com"},
		{FirstName: "Eve", LastName: "Davis", Age: 19, EmailAddress: "eve.davis@example.com"},
	}
}

// numberedSamples returns sampleStudents with the roll numbers a freshly
// seeded store assigns.
func numberedSamples() []student.Student {
	students := sampleStudents()
	for i := range students {
		students[i].RollNumber = int64(i + 1)
	}
	return students
}

// exportRows renders students the way the workbook lays them out, one row each.
func exportRows(students []student.Student) [][]string {
	rows := make([][]string, len(students))
	for i, s := range students {
		rows[i] = []string{
			strconv.FormatInt(s.RollNumber, 10),
			s.FirstName,
			s.LastName,
			strconv.Itoa(s.Age),
			s.EmailAddress,
		}
	}
	return rows
}

var exportHeaderRow = []string{"roll_number", "first_name", "last_name", "age", "email_address"}
