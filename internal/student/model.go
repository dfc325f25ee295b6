package student

import (
	"fmt"

	"github.com/uptrace/bun"
)

const tableName = "school.student"

type Student struct {
	bun.BaseModel `bun:"table:school.student,alias:s"`

	RollNumber   int64  `bun:"roll_number,pk,autoincrement" json:"roll_number"`
	FirstName    string `bun:"first_name,type:varchar(50),notnull" json:"first_name"`
	LastName     string `bun:"last_name,type:varchar(50),notnull" json:"last_name"`
	Age          int    `bun:"age,type:integer,notnull" json:"age"`
	EmailAddress string `bun:"email_address,type:varchar(100),notnull" json:"email_address"`
}

func (s Student) String() string {
	return fmt.Sprintf("%s %s (Roll No: %d)", s.FirstName, s.LastName, s.RollNumber)
}

// StudentInput is the create/update payload. Age is a pointer so a missing
// value can be told apart from 0; its bounds are those of the INTEGER column.
// RollNumber is accepted so a fetched Student can be sent back as is, but the
// key always comes from the store or the request path.
type StudentInput struct {
	RollNumber   *int64 `json:"roll_number,omitempty"`
	FirstName    string `json:"first_name" validate:"required,max=50"`
	LastName     string `json:"last_name" validate:"required,max=50"`
	Age          *int   `json:"age" validate:"required,gte=-2147483648,lte=2147483647"`
	EmailAddress string `json:"email_address" validate:"required,email,max=100"`
}

func (in StudentInput) toStudent() *Student {
	s := &Student{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		EmailAddress: in.EmailAddress,
	}
	if in.Age != nil {
		s.Age = *in.Age
	}
	return s
}
