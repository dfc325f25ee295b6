package app

const ServiceName = "student-records"

// Set at build time with -ldflags "-X student-records/internal/app.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
