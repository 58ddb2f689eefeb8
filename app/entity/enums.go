package entity

// Enumerated column values. All of these are stored as VARCHAR; the
// service layer rejects values outside these sets before they reach the
// database.

const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

const (
	StatusApplied      = "Applied"
	StatusTest         = "Test"
	StatusInterview    = "Interview"
	StatusOfferAwarded = "OfferAwarded"
	StatusRejected     = "Rejected"
	StatusWithdrawn    = "Withdrawn"
)

const (
	TestTypeTechnical = "Technical"
	TestTypeEnglish   = "English"
	TestTypeOther     = "Other"
)

const (
	InterviewTypeHr          = "Hr"
	InterviewTypeBehavioural = "Behavioural"
	InterviewTypeTechnical   = "Technical"
	InterviewTypeOther       = "Other"
)

const (
	ApplicationTypeEmail   = "Email"
	ApplicationTypeWebsite = "Website"
)

var statusTypes = map[string]bool{
	StatusApplied:      true,
	StatusTest:         true,
	StatusInterview:    true,
	StatusOfferAwarded: true,
	StatusRejected:     true,
	StatusWithdrawn:    true,
}

var testTypes = map[string]bool{
	TestTypeTechnical: true,
	TestTypeEnglish:   true,
	TestTypeOther:     true,
}

var interviewTypes = map[string]bool{
	InterviewTypeHr:          true,
	InterviewTypeBehavioural: true,
	InterviewTypeTechnical:   true,
	InterviewTypeOther:       true,
}

var applicationTypes = map[string]bool{
	ApplicationTypeEmail:   true,
	ApplicationTypeWebsite: true,
}

var roles = map[string]bool{
	RoleAdmin: true,
	RoleUser:  true,
}

func IsStatusType(s string) bool      { return statusTypes[s] }
func IsTestType(s string) bool        { return testTypes[s] }
func IsInterviewType(s string) bool   { return interviewTypes[s] }
func IsApplicationType(s string) bool { return applicationTypes[s] }
func IsRole(s string) bool            { return roles[s] }
