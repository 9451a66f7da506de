package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"github.com/dmitrijs2005/pwkeeper/internal/dbx"
	"github.com/dmitrijs2005/pwkeeper/internal/logging"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/devices"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/users"
)

// ---- test logger ----

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger          { return n }

// ---- clock ----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ---- in-memory store ----

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]models.User
	devices  map[int64]models.Device
	sessions map[int64]models.Session

	// failures injects an error for the named operation, e.g. "sessions.Create".
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]models.User{},
		devices:  map[int64]models.Device{},
		sessions: map[int64]models.Session{},
		failures: map[string]error{},
	}
}

func (s *memStore) fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) snapshot() (map[int64]models.User, map[int64]models.Device, map[int64]models.Session) {
	u := make(map[int64]models.User, len(s.users))
	for k, v := range s.users {
		u[k] = v
	}
	d := make(map[int64]models.Device, len(s.devices))
	for k, v := range s.devices {
		d[k] = v
	}
	ss := make(map[int64]models.Session, len(s.sessions))
	for k, v := range s.sessions {
		ss[k] = v
	}
	return u, d, ss
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memStore) allDevices() []models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	return out
}

func (s *memStore) allSessions() []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		out = append(out, v)
	}
	return out
}

func (s *memStore) session(id int64) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *memStore) user(id int64) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) putUser(u models.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	s.users[u.ID] = u
	return u.ID
}

func (s *memStore) rehashSession(id int64, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.RefreshTokenHash = hash
	s.sessions[id] = sess
}

func (s *memStore) setActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.IsActive = active
	s.users[id] = u
}

// fakeTx runs fn against the shared store and restores the store on error.
type fakeTx struct {
	s *memStore
}

func (t *fakeTx) Conn() dbx.DBTX { return nil }

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	t.s.mu.Lock()
	if err := t.s.failures["tx.Begin"]; err != nil {
		t.s.mu.Unlock()
		return err
	}
	u, d, ss := t.s.snapshot()
	t.s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		t.s.mu.Lock()
		t.s.users, t.s.devices, t.s.sessions = u, d, ss
		t.s.mu.Unlock()
		return err
	}
	return nil
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failures["users.Create"]; err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			return nil, common.ErrConflict
		}
	}
	now := time.Now()
	u := models.User{ID: r.s.id(), Email: email, PasswordHash: passwordHash, IsActive: true, CreatedAt: now, UpdatedAt: now}
	r.s.users[u.ID] = u
	return &u, nil
}

func (r *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failures["users.FindByEmail"]; err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = passwordHash
	r.s.users[id] = u
	return nil
}

type memDevices struct{ s *memStore }

func (r *memDevices) Upsert(ctx context.Context, userID int64, name, platform string, seenAt time.Time) (*models.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failures["devices.Upsert"]; err != nil {
		return nil, err
	}
	for id, d := range r.s.devices {
		if d.UserID == userID && d.Name == name && d.Platform == platform {
			d.LastSeenAt = seenAt
			r.s.devices[id] = d
			return &d, nil
		}
	}
	d := models.Device{ID: r.s.id(), UserID: userID, Name: name, Platform: platform, LastSeenAt: seenAt, CreatedAt: seenAt}
	r.s.devices[d.ID] = d
	return &d, nil
}

func (r *memDevices) Touch(ctx context.Context, id int64, seenAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return common.ErrNotFound
	}
	d.LastSeenAt = seenAt
	r.s.devices[id] = d
	return nil
}

type memSessions struct{ s *memStore }

func (r *memSessions) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failures["sessions.Create"]; err != nil {
		return nil, err
	}
	for _, existing := range r.s.sessions {
		if existing.RefreshTokenHash == s.RefreshTokenHash {
			return nil, common.ErrConflict
		}
	}
	s.ID = r.s.id()
	r.s.sessions[s.ID] = *s
	return s, nil
}

func (r *memSessions) FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failures["sessions.FindByRefreshHash"]; err != nil {
		return nil, err
	}
	for _, s := range r.s.sessions {
		if s.RefreshTokenHash == hash {
			return &s, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memSessions) LockByRefreshHash(ctx context.Context, hash string) (*models.Session, error) {
	return r.FindByRefreshHash(ctx, hash)
}

func (r *memSessions) Revoke(ctx context.Context, id int64, at time.Time) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sessions[id]
	if !ok {
		return time.Time{}, common.ErrNotFound
	}
	if s.RevokedAt == nil {
		s.RevokedAt = &at
		r.s.sessions[id] = s
	}
	return *s.RevokedAt, nil
}

func (r *memSessions) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, s := range r.s.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &at
			r.s.sessions[id] = s
			n++
		}
	}
	return n, nil
}

type memManager struct{ s *memStore }

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memManager) Users(dbx.DBTX) users.Repository            { return &memUsers{m.s} }
func (m *memManager) Devices(dbx.DBTX) devices.Repository        { return &memDevices{m.s} }
func (m *memManager) Sessions(dbx.DBTX) sessions.Repository      { return &memSessions{m.s} }
