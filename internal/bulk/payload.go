// Package bulk implements the worker bodies of bulk delete and restore
// operations.
package bulk

import (
	"github.com/fruitsalade/webclient/internal/webworker"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
)

// Message topics understood by the handler.
const (
	TopicFileListDelete = "fileListDelete"
	TopicTrashBinDelete = "trashBinDelete"
	TopicStartProcess   = "startProcess"
	TopicTokenUpdate    = webworker.TopicTokenUpdate
)

// DefaultConcurrentRequests is the batch size when the payload sets none.
const DefaultConcurrentRequests = 4

// Payload is the data of a job message.
type Payload struct {
	Space              resource.Space      `json:"space"`
	Resources          []resource.Resource `json:"resources"`
	ConcurrentRequests int                 `json:"concurrentRequests,omitempty"`
	MissingFolderPaths []string            `json:"missingFolderPaths,omitempty"`
	BaseURL            string              `json:"baseUrl"`
	Headers            map[string]string   `json:"headers,omitempty"`
}

func (p Payload) batchSize() int {
	if p.ConcurrentRequests <= 0 {
		return DefaultConcurrentRequests
	}
	return p.ConcurrentRequests
}

// Failure is a resource whose request failed.
type Failure struct {
	Resource resource.Resource `json:"resource"`
	httperror.ErrorData
}

// Result is the single message a job posts back.
type Result struct {
	Successful []resource.Resource `json:"successful"`
	Failed     []Failure           `json:"failed"`
}

func newResult() Result {
	return Result{
		Successful: []resource.Resource{},
		Failed:     []Failure{},
	}
}
