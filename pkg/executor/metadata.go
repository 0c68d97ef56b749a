package executor

import (
	"sync"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

// CommandMetadata is the runtime annotation of one compiled command.
type CommandMetadata struct {
	NumberOfRuns     *int
	EvaluatedCommand flow.Command
	LogMessages      []string
	Insight          *core.Insight
	AIReasoning      string
	LabeledCommand   string
	Duration         time.Duration
	Attachments      []core.Attachment
}

func (m CommandMetadata) clone() CommandMetadata {
	if m.NumberOfRuns != nil {
		n := *m.NumberOfRuns
		m.NumberOfRuns = &n
	}
	if m.Insight != nil {
		in := *m.Insight
		m.Insight = &in
	}
	m.LogMessages = append([]string(nil), m.LogMessages...)
	m.Attachments = append([]core.Attachment(nil), m.Attachments...)
	return m
}

// metadataStore keys metadata by compiled command identity. Commands are
// pointers, so two structurally equal commands never share an entry.
type metadataStore struct {
	mu       sync.Mutex
	entries  map[flow.Command]*CommandMetadata
	onUpdate func(flow.Command, CommandMetadata)
}

func newMetadataStore(onUpdate func(flow.Command, CommandMetadata)) *metadataStore {
	return &metadataStore{
		entries:  make(map[flow.Command]*CommandMetadata),
		onUpdate: onUpdate,
	}
}

func (s *metadataStore) get(cmd flow.Command) CommandMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if md, ok := s.entries[cmd]; ok {
		return md.clone()
	}
	return CommandMetadata{}
}

// update applies fn to the entry for cmd and publishes a snapshot.
func (s *metadataStore) update(cmd flow.Command, fn func(*CommandMetadata)) {
	s.mu.Lock()
	md, ok := s.entries[cmd]
	if !ok {
		md = &CommandMetadata{}
		s.entries[cmd] = md
	}
	fn(md)
	snapshot := md.clone()
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(cmd, snapshot)
	}
}

func (s *metadataStore) clear(cmd flow.Command) {
	s.mu.Lock()
	delete(s.entries, cmd)
	s.mu.Unlock()
}
