package webhook

// Commit is one entry in a push notification's commit list.
// Commits arrive in delivery order, oldest first.
type Commit struct {
	ID        string
	Message   string
	Timestamp string
}

// Repository identifies the pushed-to repository on the hosting provider.
type Repository struct {
	Owner string
	Name  string
	Slug  string
	URL   string
}

// Payload is the provider-independent view of a webhook notification.
// A Payload only exists in validated form: provider adapters refuse to
// construct one from an incomplete notification.
type Payload struct {
	CanonOrigin string
	Commits     []Commit
	Repository  Repository
}

// ValidationError reports a structurally invalid or misdirected payload.
// Reason is one of the fixed strings below; the first violated rule wins.
type ValidationError struct {
	Reason string
}

const (
	ReasonNoData      = "no data"
	ReasonWrongOrigin = "wrong origin"
	ReasonNoCommits   = "no commits"
	ReasonNoRepoInfo  = "missing repository info"
)

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Reason
}
