// Package profile provides the application layer for health profiles.
//
// Every mutation is applied to the owner's in-memory profile first. For
// signed-in users the resulting snapshot is then mirrored to the remote
// repository in the background; a failed mirror is reported as a notice and
// never undoes the local change.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/infrastructure/monitoring"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	apperrors "github.com/healthharmony/assistant/pkg/errors"
	"go.uber.org/zap"
)

const msgLoadFailed = "Your saved profile could not be loaded. Changes are kept for this session."

// Options configures the profile service
type Options struct {
	SeedDefaults  bool
	MirrorTimeout time.Duration
	SessionTTL    time.Duration
	MaxNotices    int
}

type session struct {
	mu       sync.Mutex
	profile  *profile.Profile
	seq      int64
	notices  []inbound.Notice
	lastSeen time.Time

	// stale is set while the stored version is unknown; mirror writes are
	// refused until a reload succeeds
	stale bool

	// mirrorMu serialises remote writes; written is the last seq stored
	mirrorMu sync.Mutex
	written  int64
}

// Service implements inbound.ProfileService
type Service struct {
	flows   inbound.FlowService
	repo    outbound.ProfileRepository
	metrics *monitoring.MetricsCollector
	logger  *zap.Logger
	opts    Options

	mu       sync.Mutex
	sessions map[string]*session

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

// NewService creates a profile service. A nil repo runs in session-only
// mode.
func NewService(
	flows inbound.FlowService,
	repo outbound.ProfileRepository,
	metrics *monitoring.MetricsCollector,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = 10 * time.Second
	}
	if opts.MaxNotices <= 0 {
		opts.MaxNotices = 20
	}
	ctx, cancel := context.WithCancel(context.Background())

	namedLogger := logger.Named("profile-service")
	if repo == nil {
		namedLogger.Warn("No profile repository configured, profiles are kept for the session only")
	}

	return &Service{
		flows:    flows,
		repo:     repo,
		metrics:  metrics,
		logger:   namedLogger,
		opts:     opts,
		sessions: make(map[string]*session),
		baseCtx:  ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

var _ inbound.ProfileService = (*Service)(nil)

// RemoteEnabled reports whether profiles of signed-in users are persisted
func (s *Service) RemoteEnabled() bool {
	return s.repo != nil
}

// Get returns the owner's profile, creating it on first access
func (s *Service) Get(ctx context.Context, owner inbound.Owner) profile.Snapshot {
	sess := s.session(ctx, owner)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.profile.Snapshot()
}

// Add appends an item. Duplicates are reported without calling the model;
// when cmd.Validate is set the item must pass validateProfileItem first.
func (s *Service) Add(ctx context.Context, cmd inbound.AddItemCommand) (*inbound.AddItemResult, error) {
	if !cmd.Category.IsValid() {
		return nil, apperrors.NewValidationError(profile.ErrUnknownCategory.Error())
	}
	item, err := profile.NormalizeItem(cmd.Item)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	sess := s.session(ctx, cmd.Owner)

	sess.mu.Lock()
	duplicate := sess.profile.Contains(cmd.Category, item)
	snapshot := sess.profile.Snapshot()
	sess.mu.Unlock()
	if duplicate {
		return s.duplicateResult(cmd.Category, item, snapshot), nil
	}

	if cmd.Validate {
		verdict, err := s.flows.ValidateProfileItem(ctx, inbound.ValidateItemCommand{Category: cmd.Category, ItemName: item})
		if err != nil {
			return nil, err
		}
		if !verdict.IsValid {
			notice := s.newNotice(inbound.NoticeRejected, cmd.Category, item,
				fmt.Sprintf("%q does not look like a valid entry for %s.", item, cmd.Category.Title()))
			return &inbound.AddItemResult{Added: false, Profile: snapshot, Notice: &notice}, nil
		}
	}

	sess.mu.Lock()
	stored, err := sess.profile.Add(cmd.Category, item)
	if errors.Is(err, profile.ErrDuplicateItem) {
		snapshot = sess.profile.Snapshot()
		sess.mu.Unlock()
		return s.duplicateResult(cmd.Category, item, snapshot), nil
	}
	if err != nil {
		sess.mu.Unlock()
		return nil, apperrors.NewValidationError(err.Error())
	}
	sess.seq++
	seq := sess.seq
	snapshot = sess.profile.Snapshot()
	s.logEvents(cmd.Owner, sess.profile)
	sess.mu.Unlock()

	s.mirror(cmd.Owner, sess, snapshot, seq)

	return &inbound.AddItemResult{Added: true, Item: stored, Profile: snapshot}, nil
}

// Remove deletes an item by exact match. Removing a missing item is a no-op.
func (s *Service) Remove(ctx context.Context, cmd inbound.RemoveItemCommand) (profile.Snapshot, error) {
	if !cmd.Category.IsValid() {
		return profile.Snapshot{}, apperrors.NewValidationError(profile.ErrUnknownCategory.Error())
	}

	sess := s.session(ctx, cmd.Owner)

	sess.mu.Lock()
	removed := sess.profile.Remove(cmd.Category, cmd.Item)
	snapshot := sess.profile.Snapshot()
	if !removed {
		sess.mu.Unlock()
		return snapshot, nil
	}
	sess.seq++
	seq := sess.seq
	s.logEvents(cmd.Owner, sess.profile)
	sess.mu.Unlock()

	s.mirror(cmd.Owner, sess, snapshot, seq)
	return snapshot, nil
}

// Replace overwrites the owner's profile. Blank entries and duplicates in
// the input are dropped.
func (s *Service) Replace(ctx context.Context, owner inbound.Owner, snapshot profile.Snapshot) (profile.Snapshot, error) {
	sess := s.session(ctx, owner)

	sess.mu.Lock()
	sess.profile.Replace(snapshot)
	sess.seq++
	seq := sess.seq
	stored := sess.profile.Snapshot()
	s.logEvents(owner, sess.profile)
	sess.mu.Unlock()

	s.mirror(owner, sess, stored, seq)
	return stored, nil
}

// Attach binds a freshly signed-in user to their stored profile. A stored
// profile wins over the anonymous one; without one the anonymous profile
// becomes the user's and is saved.
func (s *Service) Attach(ctx context.Context, owner inbound.Owner) (profile.Snapshot, error) {
	if !owner.Authenticated() {
		return profile.Snapshot{}, apperrors.NewUnauthorizedError("")
	}

	anonymous := s.Get(ctx, inbound.Owner{SessionID: owner.SessionID})
	userSess := s.sessionNoLoad(owner)

	if s.repo == nil {
		userSess.mu.Lock()
		userSess.profile = profile.FromSnapshot(anonymous)
		snapshot := userSess.profile.Snapshot()
		userSess.mu.Unlock()
		return snapshot, nil
	}

	doc, err := s.repo.Find(ctx, *owner.UserID)
	switch {
	case err == nil:
		userSess.mu.Lock()
		userSess.profile = profile.FromSnapshot(doc.Profile)
		userSess.stale = false
		if doc.Version > userSess.seq {
			userSess.seq = doc.Version
		}
		snapshot := userSess.profile.Snapshot()
		userSess.mu.Unlock()
		s.logger.Info("Loaded stored profile", zap.String("user_id", owner.UserID.String()))
		return snapshot, nil

	case errors.Is(err, outbound.ErrNotFound):
		userSess.mu.Lock()
		userSess.profile = profile.FromSnapshot(anonymous)
		userSess.stale = false
		userSess.seq++
		seq := userSess.seq
		snapshot := userSess.profile.Snapshot()
		userSess.mu.Unlock()
		s.mirror(owner, userSess, snapshot, seq)
		return snapshot, nil

	default:
		s.logger.Warn("Failed to load stored profile", zap.String("user_id", owner.UserID.String()), zap.Error(err))
		s.pushNotice(userSess, s.newNotice(inbound.NoticePersistenceFailed, "", "", msgLoadFailed))
		userSess.mu.Lock()
		userSess.stale = true
		userSess.profile = profile.FromSnapshot(anonymous)
		snapshot := userSess.profile.Snapshot()
		userSess.mu.Unlock()
		return snapshot, nil
	}
}

// Notices drains pending notices for the owner
func (s *Service) Notices(owner inbound.Owner) []inbound.Notice {
	s.mu.Lock()
	sess, ok := s.sessions[owner.Key()]
	s.mu.Unlock()
	if !ok {
		return []inbound.Notice{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := sess.notices
	sess.notices = nil
	if out == nil {
		out = []inbound.Notice{}
	}
	return out
}

// Sweep drops anonymous and user sessions idle for longer than SessionTTL
func (s *Service) Sweep() int {
	if s.opts.SessionTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions until ctx is done
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("Swept idle profile sessions", zap.Int("count", n))
			}
		}
	}
}

// Shutdown waits for in-flight mirror writes
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// session returns the owner's state, loading a signed-in user's stored
// profile on first access.
func (s *Service) session(ctx context.Context, owner inbound.Owner) *session {
	key := owner.Key()

	s.mu.Lock()
	sess, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		sess.mu.Lock()
		sess.lastSeen = s.now()
		stale := sess.stale
		sess.mu.Unlock()
		if stale {
			s.reload(ctx, owner, sess)
		}
		return sess
	}

	initial := profile.New()
	var (
		version int64
		stale   bool
	)
	if owner.Authenticated() && s.repo != nil {
		doc, err := s.repo.Find(ctx, *owner.UserID)
		switch {
		case err == nil:
			initial = profile.FromSnapshot(doc.Profile)
			version = doc.Version
		case errors.Is(err, outbound.ErrNotFound):
		default:
			s.logger.Warn("Failed to load stored profile", zap.String("user_id", owner.UserID.String()), zap.Error(err))
			stale = true
		}
	} else if s.opts.SeedDefaults && !owner.Authenticated() {
		initial = profile.FromSnapshot(profile.DefaultSnapshot())
	}

	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return existing
	}
	sess = &session{profile: initial, seq: version, written: version, lastSeen: s.now(), stale: stale}
	s.sessions[key] = sess
	s.mu.Unlock()

	if stale {
		s.pushNotice(sess, s.newNotice(inbound.NoticePersistenceFailed, "", "", msgLoadFailed))
	}
	return sess
}

// reload retries loading a stale user's stored profile. Local entries are
// merged after the stored ones and the merged profile is mirrored at a
// version above the stored one.
func (s *Service) reload(ctx context.Context, owner inbound.Owner, sess *session) {
	if !owner.Authenticated() || s.repo == nil {
		return
	}

	doc, err := s.repo.Find(ctx, *owner.UserID)
	var stored profile.Snapshot
	var version int64
	switch {
	case err == nil:
		stored, version = doc.Profile, doc.Version
	case errors.Is(err, outbound.ErrNotFound):
	default:
		s.logger.Debug("Stored profile still unavailable", zap.String("user_id", owner.UserID.String()), zap.Error(err))
		return
	}

	// written is raised under mirrorMu so queued writes of the unmerged
	// profile are skipped
	sess.mirrorMu.Lock()
	sess.mu.Lock()
	if !sess.stale {
		sess.mu.Unlock()
		sess.mirrorMu.Unlock()
		return
	}
	sess.stale = false
	local := sess.profile.Snapshot()
	dirty := sess.seq > sess.written
	sess.profile = profile.FromSnapshot(mergeSnapshots(stored, local))
	floor := max(sess.seq, version, sess.written)
	sess.written = floor
	sess.seq = floor
	var seq int64
	if dirty {
		sess.seq++
		seq = sess.seq
	}
	snapshot := sess.profile.Snapshot()
	sess.mu.Unlock()
	sess.mirrorMu.Unlock()

	s.logger.Info("Reloaded stored profile",
		zap.String("user_id", owner.UserID.String()),
		zap.Int64("stored_version", version),
		zap.Bool("merged_local_changes", dirty))
	if dirty {
		s.mirror(owner, sess, snapshot, seq)
	}
}

func mergeSnapshots(stored, local profile.Snapshot) profile.Snapshot {
	return profile.Snapshot{
		Allergies:   append(append([]string{}, stored.Allergies...), local.Allergies...),
		Medications: append(append([]string{}, stored.Medications...), local.Medications...),
		Conditions:  append(append([]string{}, stored.Conditions...), local.Conditions...),
	}
}

func (s *Service) sessionNoLoad(owner inbound.Owner) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[owner.Key()]
	if !ok {
		sess = &session{profile: profile.New(), lastSeen: s.now()}
		s.sessions[owner.Key()] = sess
	}
	return sess
}

// mirror writes the snapshot to the remote repository in the background
func (s *Service) mirror(owner inbound.Owner, sess *session, snapshot profile.Snapshot, seq int64) {
	if !owner.Authenticated() || s.repo == nil {
		return
	}
	userID := *owner.UserID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		sess.mirrorMu.Lock()
		defer sess.mirrorMu.Unlock()
		if seq <= sess.written {
			s.metrics.ProfileMirror("skipped")
			return
		}

		sess.mu.Lock()
		stale := sess.stale
		sess.mu.Unlock()
		if stale {
			s.metrics.ProfileMirror("failed")
			s.logger.Warn("Profile mirror refused, stored version unknown",
				zap.String("user_id", userID.String()),
				zap.Int64("seq", seq))
			appErr := apperrors.NewPersistenceError("save profile", outbound.ErrStaleVersion)
			s.pushNotice(sess, s.newNotice(inbound.NoticePersistenceFailed, "", "", appErr.Message))
			return
		}

		ctx, cancel := context.WithTimeout(s.baseCtx, s.opts.MirrorTimeout)
		defer cancel()

		err := s.repo.Save(ctx, &outbound.StoredProfile{
			UserID:    userID,
			Profile:   snapshot,
			Version:   seq,
			UpdatedAt: s.now(),
		})
		if err != nil {
			if errors.Is(err, outbound.ErrStaleVersion) {
				sess.mu.Lock()
				sess.stale = true
				sess.mu.Unlock()
			}
			s.metrics.ProfileMirror("failed")
			appErr := apperrors.NewPersistenceError("save profile", err)
			s.logger.Warn("Profile mirror failed, keeping local change",
				zap.String("user_id", userID.String()),
				zap.Int64("seq", seq),
				zap.Error(err))
			s.pushNotice(sess, s.newNotice(inbound.NoticePersistenceFailed, "", "", appErr.Message))
			return
		}

		sess.written = seq
		s.metrics.ProfileMirror("ok")
	}()
}

func (s *Service) duplicateResult(c profile.Category, item string, snapshot profile.Snapshot) *inbound.AddItemResult {
	notice := s.newNotice(inbound.NoticeDuplicate, c, item,
		fmt.Sprintf("%q is already in your %s list.", item, c.Title()))
	return &inbound.AddItemResult{Added: false, Profile: snapshot, Notice: &notice}
}

func (s *Service) newNotice(kind inbound.NoticeKind, c profile.Category, item, message string) inbound.Notice {
	return inbound.Notice{Kind: kind, Message: message, Category: c, Item: item, At: s.now()}
}

func (s *Service) pushNotice(sess *session, notice inbound.Notice) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.notices = append(sess.notices, notice)
	if over := len(sess.notices) - s.opts.MaxNotices; over > 0 {
		sess.notices = sess.notices[over:]
	}
}

func (s *Service) logEvents(owner inbound.Owner, p *profile.Profile) {
	for _, e := range p.Events() {
		s.logger.Debug("Profile changed", zap.String("event", e.EventName()), zap.String("owner", owner.Key()))
	}
	p.ClearEvents()
}
