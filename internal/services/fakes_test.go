package services

import (
	"context"
	"sync"
	"time"

	"campuslink/internal/apperror"
	"campuslink/internal/models"

	"github.com/pkg/errors"
)

type voteKey struct {
	target Target
	userID string
}

type voteState struct {
	counters map[Target]Counters
	threads  map[Target]string
	votes    map[voteKey]models.VoteAction
}

func (s *voteState) clone() *voteState {
	c := &voteState{
		counters: make(map[Target]Counters, len(s.counters)),
		threads:  s.threads,
		votes:    make(map[voteKey]models.VoteAction, len(s.votes)),
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	return c
}

// memVoteStore commits a transaction only when fn succeeds. Transactions run one at a time.
type memVoteStore struct {
	mu        sync.Mutex
	committed *voteState
	// onInsert runs inside InsertVote with the committed state, eg. to simulate a racing insert.
	onInsert func(committed *voteState, target Target, userID string) error
	failOn   map[string]error
}

func newMemVoteStore() *memVoteStore {
	return &memVoteStore{
		committed: &voteState{
			counters: make(map[Target]Counters),
			threads:  make(map[Target]string),
			votes:    make(map[voteKey]models.VoteAction),
		},
		failOn: make(map[string]error),
	}
}

func (s *memVoteStore) addTarget(target Target, threadID string) {
	s.committed.counters[target] = Counters{}
	s.committed.threads[target] = threadID
}

func (s *memVoteStore) counters(target Target) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed.counters[target]
}

func (s *memVoteStore) vote(target Target, userID string) (models.VoteAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.committed.votes[voteKey{target, userID}]
	return a, ok
}

func (s *memVoteStore) countVotes(target Target, action models.VoteAction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, a := range s.committed.votes {
		if k.target == target && a == action {
			n++
		}
	}
	return n
}

func (s *memVoteStore) Transaction(ctx context.Context, fn func(tx VoteStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.committed.clone()
	if err := fn(&memVoteTx{store: s, state: state}); err != nil {
		return err
	}
	s.committed = state
	return nil
}

func (s *memVoteStore) FindVote(ctx context.Context, target Target, userID string) (models.VoteAction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memVoteTx{store: s, state: s.committed}).FindVote(ctx, target, userID)
}

func (s *memVoteStore) GetCounters(ctx context.Context, target Target) (Counters, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memVoteTx{store: s, state: s.committed}).GetCounters(ctx, target)
}

func (s *memVoteStore) InsertVote(ctx context.Context, target Target, userID string, action models.VoteAction) error {
	return errors.New("writes must run in a transaction")
}

func (s *memVoteStore) UpdateVoteAction(ctx context.Context, target Target, userID string, action models.VoteAction) error {
	return errors.New("writes must run in a transaction")
}

func (s *memVoteStore) DeleteVote(ctx context.Context, target Target, userID string) error {
	return errors.New("writes must run in a transaction")
}

func (s *memVoteStore) IncrementCounter(ctx context.Context, target Target, field CounterField, delta int) error {
	return errors.New("writes must run in a transaction")
}

// memVoteTx runs against a private copy of the state. The store lock is held by Transaction.
type memVoteTx struct {
	store *memVoteStore
	state *voteState
}

func (t *memVoteTx) fail(op string) error {
	if err, ok := t.store.failOn[op]; ok {
		return &apperror.StoreError{Op: op, Err: err}
	}
	return nil
}

func (t *memVoteTx) Transaction(ctx context.Context, fn func(tx VoteStore) error) error {
	return fn(t)
}

func (t *memVoteTx) FindVote(ctx context.Context, target Target, userID string) (models.VoteAction, bool, error) {
	if err := t.fail("FindVote"); err != nil {
		return "", false, err
	}
	a, ok := t.state.votes[voteKey{target, userID}]
	return a, ok, nil
}

func (t *memVoteTx) GetCounters(ctx context.Context, target Target) (Counters, string, error) {
	if err := t.fail("GetCounters"); err != nil {
		return Counters{}, "", err
	}
	c, ok := t.state.counters[target]
	if !ok {
		return Counters{}, "", errors.Wrapf(apperror.ErrNotFound, "%s", target)
	}
	return c, t.state.threads[target], nil
}

func (t *memVoteTx) InsertVote(ctx context.Context, target Target, userID string, action models.VoteAction) error {
	if err := t.fail("InsertVote"); err != nil {
		return err
	}
	if t.store.onInsert != nil {
		if err := t.store.onInsert(t.store.committed, target, userID); err != nil {
			return err
		}
	}
	key := voteKey{target, userID}
	if _, exists := t.state.votes[key]; exists {
		return apperror.ErrConflictRetry
	}
	t.state.votes[key] = action
	return nil
}

func (t *memVoteTx) UpdateVoteAction(ctx context.Context, target Target, userID string, action models.VoteAction) error {
	if err := t.fail("UpdateVoteAction"); err != nil {
		return err
	}
	key := voteKey{target, userID}
	if _, exists := t.state.votes[key]; !exists {
		return errors.Wrap(apperror.ErrNotFound, "vote")
	}
	t.state.votes[key] = action
	return nil
}

func (t *memVoteTx) DeleteVote(ctx context.Context, target Target, userID string) error {
	if err := t.fail("DeleteVote"); err != nil {
		return err
	}
	delete(t.state.votes, voteKey{target, userID})
	return nil
}

func (t *memVoteTx) IncrementCounter(ctx context.Context, target Target, field CounterField, delta int) error {
	if err := t.fail("IncrementCounter"); err != nil {
		return err
	}
	c, ok := t.state.counters[target]
	if !ok {
		return errors.Wrapf(apperror.ErrNotFound, "%s", target)
	}
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		return v
	}
	switch field {
	case FieldLikeCount:
		c.LikeCount = clamp(c.LikeCount + delta)
	case FieldDislikeCount:
		c.DislikeCount = clamp(c.DislikeCount + delta)
	}
	t.state.counters[target] = c
	return nil
}

type recordingCache struct {
	mu      sync.Mutex
	deleted []string
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (c *recordingCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {}

func (c *recordingCache) Delete(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, keys...)
}

func (c *recordingCache) Generation(ctx context.Context, key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.deleted))
}

func (c *recordingCache) SetIfGeneration(ctx context.Context, key string, gen uint64, val []byte, ttl time.Duration) bool {
	return false
}

func (c *recordingCache) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

type recordingScheduler struct {
	mu      sync.Mutex
	targets []Target
}

func (s *recordingScheduler) Schedule(target Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, target)
}

// memPlanStore keeps plan rows keyed by (user, item key).
type memPlanStore struct {
	mu    sync.Mutex
	items map[string]map[string]models.CourseAssignment
	rules map[string]map[models.RequirementType]models.SpecialRequirement
	// failOn makes the named method fail; failAfter lets that many calls succeed first.
	failOn    map[string]error
	failAfter map[string]int
	calls     []string
}

func newMemPlanStore() *memPlanStore {
	return &memPlanStore{
		items:     make(map[string]map[string]models.CourseAssignment),
		rules:     make(map[string]map[models.RequirementType]models.SpecialRequirement),
		failOn:    make(map[string]error),
		failAfter: make(map[string]int),
	}
}

func (s *memPlanStore) call(op string) error {
	s.calls = append(s.calls, op)
	err, ok := s.failOn[op]
	if !ok {
		return nil
	}
	if s.failAfter[op] > 0 {
		s.failAfter[op]--
		return nil
	}
	return &apperror.StoreError{Op: op, Err: err}
}

func (s *memPlanStore) seed(items ...models.CourseAssignment) {
	for _, item := range items {
		if s.items[item.UserID] == nil {
			s.items[item.UserID] = make(map[string]models.CourseAssignment)
		}
		s.items[item.UserID][item.ItemKey] = item
	}
}

func (s *memPlanStore) ListCourseAssignments(ctx context.Context, userID string) ([]models.CourseAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListCourseAssignments"); err != nil {
		return nil, err
	}
	var out []models.CourseAssignment
	for _, item := range s.items[userID] {
		out = append(out, item)
	}
	return out, nil
}

func (s *memPlanStore) UpsertCourseAssignment(ctx context.Context, a *models.CourseAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpsertCourseAssignment"); err != nil {
		return err
	}
	if s.items[a.UserID] == nil {
		s.items[a.UserID] = make(map[string]models.CourseAssignment)
	}
	s.items[a.UserID][a.ItemKey] = *a
	return nil
}

func (s *memPlanStore) DeleteCourseAssignment(ctx context.Context, userID, itemKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteCourseAssignment"); err != nil {
		return err
	}
	delete(s.items[userID], itemKey)
	return nil
}

func (s *memPlanStore) DeleteSyntheticAssignments(ctx context.Context, userID string, kinds ...models.SyntheticKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteSyntheticAssignments"); err != nil {
		return err
	}
	for key, item := range s.items[userID] {
		if containsKind(kinds, item.Kind) {
			delete(s.items[userID], key)
		}
	}
	return nil
}

func (s *memPlanStore) ListSpecialRequirements(ctx context.Context, userID string) ([]models.SpecialRequirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("ListSpecialRequirements"); err != nil {
		return nil, err
	}
	var out []models.SpecialRequirement
	for _, r := range s.rules[userID] {
		out = append(out, r)
	}
	return out, nil
}

func (s *memPlanStore) SaveSpecialRequirement(ctx context.Context, r *models.SpecialRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("SaveSpecialRequirement"); err != nil {
		return err
	}
	if s.rules[r.UserID] == nil {
		s.rules[r.UserID] = make(map[models.RequirementType]models.SpecialRequirement)
	}
	s.rules[r.UserID][r.RequirementType] = *r
	return nil
}

func (s *memPlanStore) DeleteSpecialRequirement(ctx context.Context, userID string, t models.RequirementType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteSpecialRequirement"); err != nil {
		return err
	}
	delete(s.rules[userID], t)
	return nil
}
