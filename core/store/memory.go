// Package store provides an in-memory core.TxStore for tests and dev.
package store

import (
	"context"
	"sync"

	"github.com/cleanmap/waste-engine/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps all state in maps guarded by one mutex. WithTx snapshots
// the maps and restores them on error, so a failed transition leaves no
// partial state — same contract as the SQLite store.
type Memory struct {
	mu        sync.RWMutex
	reports   map[core.ReportID]core.Report
	reportSeq []core.ReportID // insertion order, newest appended last
	verifiers map[core.ReportID][]core.UserID
	users     map[core.UserID]core.User
	userSeq   []core.UserID
	awards    []core.RewardEntry
	awardKeys map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		reports:   make(map[core.ReportID]core.Report),
		verifiers: make(map[core.ReportID][]core.UserID),
		users:     make(map[core.UserID]core.User),
		awardKeys: make(map[string]bool),
	}
}

// --- Reports ---

func (m *Memory) GetReport(_ context.Context, id core.ReportID) (*core.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getReportLocked(id), nil
}

func (m *Memory) getReportLocked(id core.ReportID) *core.Report {
	r, ok := m.reports[id]
	if !ok {
		return nil
	}
	r.VerifierIDs = append([]core.UserID(nil), m.verifiers[id]...)
	return &r
}

func (m *Memory) SaveReport(_ context.Context, r core.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveReportLocked(r)
	return nil
}

func (m *Memory) saveReportLocked(r core.Report) {
	if _, exists := m.reports[r.ID]; !exists {
		m.reportSeq = append(m.reportSeq, r.ID)
	}
	// Verifier membership lives in its own collection.
	r.VerifierIDs = nil
	m.reports[r.ID] = r
}

func (m *Memory) ListReports(_ context.Context) ([]core.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.Report, 0, len(m.reportSeq))
	for i := len(m.reportSeq) - 1; i >= 0; i-- {
		result = append(result, *m.getReportLocked(m.reportSeq[i]))
	}
	return result, nil
}

func (m *Memory) ListReportsByReporter(_ context.Context, reporter core.UserID) ([]core.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Report
	for i := len(m.reportSeq) - 1; i >= 0; i-- {
		if r := m.getReportLocked(m.reportSeq[i]); r.ReporterID == reporter {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *Memory) CountReportsByReporter(_ context.Context, reporter core.UserID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.reports {
		if r.ReporterID == reporter {
			count++
		}
	}
	return count, nil
}

func (m *Memory) AddVerifier(_ context.Context, reportID core.ReportID, userID core.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addVerifierLocked(reportID, userID)
}

func (m *Memory) addVerifierLocked(reportID core.ReportID, userID core.UserID) error {
	for _, v := range m.verifiers[reportID] {
		if v == userID {
			return core.ErrAlreadyVerified
		}
	}
	m.verifiers[reportID] = append(m.verifiers[reportID], userID)
	return nil
}

// --- Users ---

func (m *Memory) GetUser(_ context.Context, id core.UserID) (*core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) SaveUser(_ context.Context, u core.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveUserLocked(u)
	return nil
}

func (m *Memory) saveUserLocked(u core.User) {
	if existing, ok := m.users[u.ID]; ok {
		// Profile update only; the balance survives.
		u.Points = existing.Points
	} else {
		m.userSeq = append(m.userSeq, u.ID)
	}
	m.users[u.ID] = u
}

func (m *Memory) AddPoints(_ context.Context, id core.UserID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPointsLocked(id, delta)
}

func (m *Memory) addPointsLocked(id core.UserID, delta int) error {
	u, ok := m.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	u.Points += delta
	m.users[id] = u
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.User, 0, len(m.userSeq))
	for _, id := range m.userSeq {
		result = append(result, m.users[id])
	}
	return result, nil
}

// --- Reward ledger ---

func (m *Memory) AppendAward(_ context.Context, e core.RewardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendAwardLocked(e)
}

func (m *Memory) appendAwardLocked(e core.RewardEntry) error {
	key := core.AwardKey(e.ReportID, e.Type)
	if m.awardKeys[key] {
		return core.ErrDuplicateAward
	}
	m.awardKeys[key] = true
	m.awards = append(m.awards, e)
	return nil
}

func (m *Memory) AwardExists(_ context.Context, reportID core.ReportID, t core.RewardType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.awardKeys[core.AwardKey(reportID, t)], nil
}

func (m *Memory) AwardsByUser(_ context.Context, id core.UserID, limit int) ([]core.RewardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.RewardEntry
	for i := len(m.awards) - 1; i >= 0; i-- {
		if m.awards[i].UserID != id {
			continue
		}
		result = append(result, m.awards[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn while holding the store lock, simulating a database
// transaction with a snapshot + rollback on error. Holding the lock for
// the whole unit is also what serializes concurrent lifecycle operations,
// matching the single-writer behavior of the SQLite store.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(core.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	err := fn(view)
	if err == nil {
		// A cancelled caller must not observe a half-applied unit.
		err = ctx.Err()
	}
	if err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	reports   map[core.ReportID]core.Report
	reportSeq []core.ReportID
	verifiers map[core.ReportID][]core.UserID
	users     map[core.UserID]core.User
	userSeq   []core.UserID
	awards    []core.RewardEntry
	awardKeys map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		reports:   make(map[core.ReportID]core.Report, len(tm.reports)),
		reportSeq: append([]core.ReportID(nil), tm.reportSeq...),
		verifiers: make(map[core.ReportID][]core.UserID, len(tm.verifiers)),
		users:     make(map[core.UserID]core.User, len(tm.users)),
		userSeq:   append([]core.UserID(nil), tm.userSeq...),
		awards:    append([]core.RewardEntry(nil), tm.awards...),
		awardKeys: make(map[string]bool, len(tm.awardKeys)),
	}
	for k, v := range tm.reports {
		s.reports[k] = v
	}
	for k, v := range tm.verifiers {
		s.verifiers[k] = append([]core.UserID(nil), v...)
	}
	for k, v := range tm.users {
		s.users[k] = v
	}
	for k, v := range tm.awardKeys {
		s.awardKeys[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.reports = s.reports
	tm.reportSeq = s.reportSeq
	tm.verifiers = s.verifiers
	tm.users = s.users
	tm.userSeq = s.userSeq
	tm.awards = s.awards
	tm.awardKeys = s.awardKeys
}

// txMemoryView routes Store calls to the locked parent. Writes apply
// directly; the snapshot in WithTx provides rollback.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetReport(_ context.Context, id core.ReportID) (*core.Report, error) {
	return tv.parent.getReportLocked(id), nil
}

func (tv *txMemoryView) SaveReport(_ context.Context, r core.Report) error {
	tv.parent.saveReportLocked(r)
	return nil
}

func (tv *txMemoryView) ListReports(_ context.Context) ([]core.Report, error) {
	result := make([]core.Report, 0, len(tv.parent.reportSeq))
	for i := len(tv.parent.reportSeq) - 1; i >= 0; i-- {
		result = append(result, *tv.parent.getReportLocked(tv.parent.reportSeq[i]))
	}
	return result, nil
}

func (tv *txMemoryView) ListReportsByReporter(_ context.Context, reporter core.UserID) ([]core.Report, error) {
	var result []core.Report
	for i := len(tv.parent.reportSeq) - 1; i >= 0; i-- {
		if r := tv.parent.getReportLocked(tv.parent.reportSeq[i]); r.ReporterID == reporter {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (tv *txMemoryView) CountReportsByReporter(_ context.Context, reporter core.UserID) (int, error) {
	count := 0
	for _, r := range tv.parent.reports {
		if r.ReporterID == reporter {
			count++
		}
	}
	return count, nil
}

func (tv *txMemoryView) AddVerifier(_ context.Context, reportID core.ReportID, userID core.UserID) error {
	return tv.parent.addVerifierLocked(reportID, userID)
}

func (tv *txMemoryView) GetUser(_ context.Context, id core.UserID) (*core.User, error) {
	u, ok := tv.parent.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (tv *txMemoryView) SaveUser(_ context.Context, u core.User) error {
	tv.parent.saveUserLocked(u)
	return nil
}

func (tv *txMemoryView) AddPoints(_ context.Context, id core.UserID, delta int) error {
	return tv.parent.addPointsLocked(id, delta)
}

func (tv *txMemoryView) ListUsers(_ context.Context) ([]core.User, error) {
	result := make([]core.User, 0, len(tv.parent.userSeq))
	for _, id := range tv.parent.userSeq {
		result = append(result, tv.parent.users[id])
	}
	return result, nil
}

func (tv *txMemoryView) AppendAward(_ context.Context, e core.RewardEntry) error {
	return tv.parent.appendAwardLocked(e)
}

func (tv *txMemoryView) AwardExists(_ context.Context, reportID core.ReportID, t core.RewardType) (bool, error) {
	return tv.parent.awardKeys[core.AwardKey(reportID, t)], nil
}

func (tv *txMemoryView) AwardsByUser(_ context.Context, id core.UserID, limit int) ([]core.RewardEntry, error) {
	var result []core.RewardEntry
	for i := len(tv.parent.awards) - 1; i >= 0; i-- {
		if tv.parent.awards[i].UserID != id {
			continue
		}
		result = append(result, tv.parent.awards[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Compile-time interface checks.
var (
	_ core.Store   = (*Memory)(nil)
	_ core.TxStore = (*TxMemory)(nil)
	_ core.Store   = (*txMemoryView)(nil)
)
