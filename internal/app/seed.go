package app

import (
	"context"
	"fmt"

	"student-records/internal/student"
)

func age(v int) *int { return &v }

// SeedStudents is the demo data set inserted by the seed command.
var SeedStudents = []student.StudentInput{
	{FirstName: "Alice", LastName: "Smith", Age: age(21), EmailAddress: "alice.smith@example.com"},
	{FirstName: "Bob", LastName: "Johnson", Age: age(22), EmailAddress: "bob.johnson@example.com"},
	{FirstName: "Carol", LastName: "Williams", Age: age(20), EmailAddress: "carol.williams@example.com"},
	{FirstName: "David", LastName: "Brown", Age: age(23), EmailAddress: "david.brown@example.com"},
	{FirstName: "Eve", LastName: "Davis", Age: age(19), EmailAddress: "eve.davis@example.com"},
}

// Seed inserts SeedStudents through the service, so each row is validated
// and published like an API create.
func (a *App) Seed(ctx context.Context) ([]int64, error) {
	rollNumbers := make([]int64, 0, len(SeedStudents))
	for _, in := range SeedStudents {
		rollNumber, err := a.service.CreateStudent(ctx, in)
		if err != nil {
			return rollNumbers, fmt.Errorf("failed to seed %s %s: %w", in.FirstName, in.LastName, err)
		}
		rollNumbers = append(rollNumbers, rollNumber)
	}
	a.logger.InfoContext(ctx, "seeded students", "count", len(rollNumbers))
	return rollNumbers, nil
}
