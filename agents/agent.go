package agents

import "context"

// Vote is a verifier's judgment on a generated answer.
type Vote string

const (
	VoteApprove Vote = "approve"
	VoteReject  Vote = "reject"
)

// GenerateInput carries the query and its retrieved supporting context.
type GenerateInput struct {
	Query   string
	Context string
}

// Generated is the output of the generate capability.
type Generated struct {
	Text     string
	Metadata map[string]string
}

// VerifyInput asks for a judgment on a candidate response.
type VerifyInput struct {
	Query    string
	Context  string
	Response string
}

// Verified is the verifier's structured judgment.
type Verified struct {
	Vote           Vote
	Confidence     float64
	Issues         []string
	SafetyConcerns []string
}

// ReformInput asks for a rewrite addressing the verifier's findings.
type ReformInput struct {
	Query            string
	Context          string
	Response         string
	VerifierAnalysis string
}

// Reformed is the output of the reform capability.
type Reformed struct {
	Text        string
	Sources     []string
	SafetyNotes string
}

// TranslateInput asks for a translation of a final answer.
type TranslateInput struct {
	Text           string
	Context        string
	SourceLanguage string
	TargetLanguage string
}

// Translated is the output of the translate capability.
type Translated struct {
	Text string
}

// Client is the external agent collaborator. Each call is a blocking
// network operation; callers bound it with a context deadline. Errors
// carry types.ErrAgentFailure and are terminal for the request.
type Client interface {
	Generate(ctx context.Context, in GenerateInput) (*Generated, error)
	Verify(ctx context.Context, in VerifyInput) (*Verified, error)
	Reform(ctx context.Context, in ReformInput) (*Reformed, error)
	Translate(ctx context.Context, in TranslateInput) (*Translated, error)
}
