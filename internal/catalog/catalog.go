// Package catalog holds the job openings advertised on the careers page
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seismolink/siteapi/internal/domain"
)

//go:embed jobs.yaml
var defaultJobs []byte

type file struct {
	Jobs []domain.JobOpening `yaml:"jobs"`
}

// Catalog is an immutable set of job openings
type Catalog struct {
	jobs []domain.JobOpening
	byID map[string]int
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Parse(defaultJobs)
}

// Load reads a catalog from path, or the default catalog when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse jobs file: %w", err)
	}

	c := &Catalog{
		jobs: make([]domain.JobOpening, 0, len(f.Jobs)),
		byID: make(map[string]int, len(f.Jobs)),
	}

	for i, job := range f.Jobs {
		job.ID = strings.TrimSpace(job.ID)
		if job.ID == "" {
			return nil, fmt.Errorf("job %d has no id", i)
		}
		if job.Title == "" {
			return nil, fmt.Errorf("job %s has no title", job.ID)
		}
		if _, ok := c.byID[job.ID]; ok {
			return nil, fmt.Errorf("duplicate job id %s", job.ID)
		}

		c.byID[job.ID] = len(c.jobs)
		c.jobs = append(c.jobs, job)
	}

	return c, nil
}

// Len returns the number of openings, active or not
func (c *Catalog) Len() int {
	return len(c.jobs)
}

// Active returns the openings currently accepting applications
func (c *Catalog) Active() []domain.JobOpening {
	out := make([]domain.JobOpening, 0, len(c.jobs))
	for _, job := range c.jobs {
		if job.Active {
			out = append(out, job)
		}
	}
	return out
}

// Get returns the opening with id
func (c *Catalog) Get(id string) (domain.JobOpening, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.JobOpening{}, false
	}
	return c.jobs[i], true
}
