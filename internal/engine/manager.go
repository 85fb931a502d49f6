package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formsense/repcount/internal/config"
	"github.com/formsense/repcount/internal/monitoring"
	"github.com/formsense/repcount/internal/profile"
)

// ErrSessionNotFound is returned for operations on an unknown session id.
var ErrSessionNotFound = fmt.Errorf("session not found")

// SummaryStore persists completed-session summaries and per-rep events.
// Implemented by the sqlite store; nil stores are tolerated (nothing is
// persisted).
type SummaryStore interface {
	RecordSummary(s Summary) error
	RecordRepEvent(e RepEvent) error
}

// Manager owns all active sessions. Sessions are fully independent: the
// only shared state is the read-only profile registry and the tuning
// snapshot taken at session creation.
type Manager struct {
	mu sync.RWMutex

	tuning     *config.TuningConfig
	registry   *profile.Registry
	recognizer *Recognizer
	store      SummaryStore

	sessions map[string]*managedSession
}

// managedSession pairs a session with its ordered ingestion queue. Frames
// for one session are processed strictly in arrival order by a single
// consumer goroutine; the queue is bounded and drops the oldest queued
// frame under overload, since stale joint-angle data is worse than none.
type managedSession struct {
	session *Session

	queueMu sync.Mutex
	queue   []FeatureVector
	wake    chan struct{}
	done    chan struct{}

	// dropped counts frames discarded by newest-wins eviction.
	dropped int64

	queueBound  int
	minInterval time.Duration
}

// NewManager creates a session manager.
func NewManager(tuning *config.TuningConfig, registry *profile.Registry, store SummaryStore) *Manager {
	return &Manager{
		tuning:     tuning,
		registry:   registry,
		recognizer: NewRecognizer(RecognizerConfigFromTuning(tuning), registry),
		store:      store,
		sessions:   make(map[string]*managedSession),
	}
}

// Registry returns the shared read-only profile registry.
func (m *Manager) Registry() *profile.Registry { return m.registry }

// Tuning returns the manager's tuning snapshot.
func (m *Manager) Tuning() *config.TuningConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tuning
}

// UpdateTuning replaces the tuning applied to sessions created from now
// on. Existing sessions keep the snapshot they were created with.
func (m *Manager) UpdateTuning(t *config.TuningConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tuning = t
	m.recognizer = NewRecognizer(RecognizerConfigFromTuning(t), m.registry)
}

// CreateSession starts a new session, optionally bound to an exercise by
// identifier or name, and returns its id. fallback reports that the
// exercise could not be resolved and the generic default profile is
// active.
func (m *Manager) CreateSession(exercise string) (id string, prof *profile.Profile, fallback bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = uuid.NewString()
	sess := NewSession(id, SessionConfigFromTuning(m.tuning))
	if exercise != "" {
		prof, fallback = m.registry.Resolve(exercise)
		if fallback {
			prof = FallbackProfileFromTuning(m.tuning)
		}
		sess.SetProfile(prof, fallback)
	} else {
		prof, fallback = sess.Profile()
	}

	ms := &managedSession{
		session:     sess,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		queueBound:  m.tuning.GetQueueBound(),
		minInterval: time.Second / time.Duration(m.tuning.GetTargetFPS()),
	}
	m.sessions[id] = ms
	go m.consume(ms)
	return id, prof, fallback
}

// Process ingests one frame synchronously and returns the per-frame
// result. Ordering within a session is the caller's responsibility; the
// session mutex serialises concurrent calls. Counted reps are recorded to
// the summary store as a side effect.
func (m *Manager) Process(sessionID string, fv FeatureVector) (FrameResult, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return FrameResult{}, err
	}
	result := ms.session.ProcessFrame(fv)
	if result.Counted {
		m.recordRep(ms.session, result)
	}
	return result, nil
}

// Enqueue hands one frame to the session's ordered ingestion queue and
// returns immediately. Under overload the oldest queued frame is dropped.
func (m *Manager) Enqueue(sessionID string, fv FeatureVector) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	ms.queueMu.Lock()
	if len(ms.queue) >= ms.queueBound {
		ms.queue = ms.queue[1:]
		ms.dropped++
	}
	ms.queue = append(ms.queue, fv)
	ms.queueMu.Unlock()

	select {
	case ms.wake <- struct{}{}:
	default:
	}
	return nil
}

// consume is the single consumer goroutine for one session's queue. It
// paces processing to the target frame rate; arrival order is preserved.
func (m *Manager) consume(ms *managedSession) {
	var lastProcessed time.Time
	for {
		select {
		case <-ms.done:
			return
		case <-ms.wake:
		}

		for {
			ms.queueMu.Lock()
			if len(ms.queue) == 0 {
				ms.queueMu.Unlock()
				break
			}
			fv := ms.queue[0]
			ms.queue = ms.queue[1:]
			ms.queueMu.Unlock()

			// Throttle: hold back rather than exceed the processing
			// target. Upstream keeps queueing; overflow drops stale
			// frames in Enqueue.
			if !lastProcessed.IsZero() {
				if wait := ms.minInterval - time.Since(lastProcessed); wait > 0 {
					select {
					case <-ms.done:
						return
					case <-time.After(wait):
					}
				}
			}
			lastProcessed = time.Now()

			result := ms.session.ProcessFrame(fv)
			if result.Counted {
				m.recordRep(ms.session, result)
			}
		}
	}
}

// SetExercise activates the given exercise (id or name) on a session,
// falling back to the generic default profile when unresolved.
func (m *Manager) SetExercise(sessionID, exercise string) (prof *profile.Profile, fallback bool, err error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return nil, false, err
	}
	prof, fallback = m.registry.Resolve(exercise)
	if fallback {
		prof = FallbackProfileFromTuning(m.Tuning())
	}
	ms.session.SetProfile(prof, fallback)
	return prof, fallback, nil
}

// Identify runs one-shot auto-recognition on the session's current window.
func (m *Manager) Identify(sessionID string) (RecognitionResult, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return RecognitionResult{}, err
	}
	m.mu.RLock()
	rec := m.recognizer
	m.mu.RUnlock()
	return ms.session.Identify(rec), nil
}

// Reset zeroes a session's rep count and state. Safe with respect to an
// in-flight frame for the same session.
func (m *Manager) Reset(sessionID string) error {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ms.session.Reset()
	return nil
}

// Summary returns a session's current roll-up.
func (m *Manager) Summary(sessionID string) (Summary, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return Summary{}, err
	}
	return ms.session.Summary(), nil
}

// EndSession stops the session's consumer, persists its summary, and
// releases its state.
func (m *Manager) EndSession(sessionID string) (Summary, error) {
	m.mu.Lock()
	ms, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return Summary{}, ErrSessionNotFound
	}

	close(ms.done)
	summary := ms.session.Summary()
	if m.store != nil {
		if err := m.store.RecordSummary(summary); err != nil {
			monitoring.Logf("failed to record summary for %s: %v", sessionID, err)
		}
	}
	return summary, nil
}

// SessionCount returns the number of active sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DroppedFrames reports how many frames a session's queue has discarded.
func (m *Manager) DroppedFrames(sessionID string) (int64, error) {
	ms, err := m.lookup(sessionID)
	if err != nil {
		return 0, err
	}
	ms.queueMu.Lock()
	defer ms.queueMu.Unlock()
	return ms.dropped, nil
}

func (m *Manager) lookup(sessionID string) (*managedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ms, nil
}

func (m *Manager) recordRep(sess *Session, result FrameResult) {
	if m.store == nil {
		return
	}
	prof, _ := sess.Profile()
	event := RepEvent{
		SessionID:  sess.ID(),
		ExerciseID: prof.ID,
		RepNumber:  result.RepCount,
		CycleRange: sess.LastCycleRange(),
		FormScore:  result.FormScore,
		Timestamp:  time.Now(),
	}
	if err := m.store.RecordRepEvent(event); err != nil {
		monitoring.Logf("failed to record rep event for %s: %v", sess.ID(), err)
	}
}
