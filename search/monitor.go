package search

import (
	"log/slog"

	"github.com/poiesic/docrag/core"
)

// QueryMonitor receives callbacks at each stage of a query.
// Implementations used by a shared Engine must be safe for concurrent use.
type QueryMonitor interface {
	Start(query string)
	AfterEmbedding(query string, dimension int)
	AfterSearch(query string, hits []core.SearchHit)
	BeforeSynthesis(query string, prompt string)
	Finish(answer *Answer)
}

type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                           {}
func (n *noopMonitor) AfterEmbedding(_ string, _ int)           {}
func (n *noopMonitor) AfterSearch(_ string, _ []core.SearchHit) {}
func (n *noopMonitor) BeforeSynthesis(_ string, _ string)       {}
func (n *noopMonitor) Finish(_ *Answer)                         {}

// LoggingMonitor writes every stage to a logger at debug level.
type LoggingMonitor struct {
	logger *slog.Logger
}

var _ QueryMonitor = (*LoggingMonitor)(nil)

// NewLoggingMonitor creates a monitor that logs to logger.
func NewLoggingMonitor(logger *slog.Logger) *LoggingMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMonitor{logger: logger.With("component", "query-monitor")}
}

func (m *LoggingMonitor) Start(query string) {
	m.logger.Debug("query started", "query", query)
}

func (m *LoggingMonitor) AfterEmbedding(query string, dimension int) {
	m.logger.Debug("query embedded", "query", query, "dimension", dimension)
}

func (m *LoggingMonitor) AfterSearch(query string, hits []core.SearchHit) {
	for rank, hit := range hits {
		m.logger.Debug("hit",
			"query", query,
			"rank", rank+1,
			"index", hit.Index,
			"distance", hit.Distance,
			"source", hit.Metadata.Source())
	}
}

func (m *LoggingMonitor) BeforeSynthesis(query string, prompt string) {
	m.logger.Debug("synthesizing answer", "query", query, "prompt_chars", len(prompt))
}

func (m *LoggingMonitor) Finish(answer *Answer) {
	m.logger.Debug("query finished",
		"query", answer.Query,
		"hits", len(answer.Hits),
		"sentinel", answer.Sentinel,
		"answer_chars", len(answer.Text))
}
