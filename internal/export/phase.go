package export

import (
	"fmt"
	"slices"
	"sync"

	"github.com/weflow/wxport/internal/progress"
)

// Phase is one stage of an export run.
type Phase string

const (
	PhasePreparing      Phase = "preparing"
	PhaseExportingMedia Phase = "exporting-media"
	PhaseExportingVoice Phase = "exporting-voice"
	PhaseExporting      Phase = "exporting"
	PhaseWriting        Phase = "writing"
	PhaseComplete       Phase = "complete"
)

// validTransitions keeps the pipeline strictly sequential; the two
// enrichment phases are optional and may be skipped.
var validTransitions = map[Phase][]Phase{
	PhasePreparing:      {PhaseExportingMedia, PhaseExportingVoice, PhaseExporting},
	PhaseExportingMedia: {PhaseExportingVoice, PhaseExporting},
	PhaseExportingVoice: {PhaseExporting},
	PhaseExporting:      {PhaseWriting},
	PhaseWriting:        {PhaseComplete},
}

// phaseMachine tracks and enforces run phase transitions, publishing
// each change as a progress event.
type phaseMachine struct {
	mu      sync.RWMutex
	current Phase
	broker  *progress.Broker
	runID   string
	session string
}

func newPhaseMachine(broker *progress.Broker, runID, session string) *phaseMachine {
	return &phaseMachine{
		current: PhasePreparing,
		broker:  broker,
		runID:   runID,
		session: session,
	}
}

func (m *phaseMachine) Current() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new phase. Returns an error if the pipeline
// would move backwards or skip a mandatory stage.
func (m *phaseMachine) Transition(to Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid phase transition from %s to %s", m.current, to)
	}
	m.current = to
	if m.broker != nil {
		m.broker.Report(progress.Report{
			RunID:          m.runID,
			CurrentSession: m.session,
			Phase:          string(to),
		})
	}
	return nil
}
