package domain

// JobOpening is a position advertised on the careers page
type JobOpening struct {
	ID         string   `json:"id" yaml:"id"`
	Title      string   `json:"title" yaml:"title"`
	Department string   `json:"department" yaml:"department"`
	Location   string   `json:"location" yaml:"location"`
	Type       string   `json:"type" yaml:"type"`
	Summary    string   `json:"summary" yaml:"summary"`
	Skills     []string `json:"skills,omitempty" yaml:"skills"`
	Active     bool     `json:"active" yaml:"active"`
}
