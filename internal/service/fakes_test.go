package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morozovaek/go-social-backend/internal/cache"
	"github.com/morozovaek/go-social-backend/internal/config"
	"github.com/morozovaek/go-social-backend/internal/models"
	"github.com/morozovaek/go-social-backend/internal/storage"
)

// In-memory реализации контрактов storage и cache для юнит-тестов сервиса.
// Поля-хуки (fail*) позволяют инжектировать отказы в отдельные операции.

type fakeStorage struct {
	mu sync.Mutex

	users  map[uuid.UUID]*models.User
	tokens map[uuid.UUID]*models.Token   // key: token.ID
	jwts   map[uuid.UUID]*models.TokenJwt // key: jti
	posts  map[uuid.UUID]*models.Post
	notes  map[uuid.UUID]*models.Notification
	reads  map[uuid.UUID]time.Time // key: notification ID

	failSupersede error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users:  make(map[uuid.UUID]*models.User),
		tokens: make(map[uuid.UUID]*models.Token),
		jwts:   make(map[uuid.UUID]*models.TokenJwt),
		posts:  make(map[uuid.UUID]*models.Post),
		notes:  make(map[uuid.UUID]*models.Notification),
		reads:  make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeStorage) Close() {}

func stamp(actor models.Actor) models.Audit {
	now := time.Now().UTC()
	return models.Audit{CreatedAt: now, CreatedBy: actor.ID, UpdatedAt: now, UpdatedBy: actor.ID}
}

func (f *fakeStorage) SaveUser(_ context.Context, actor models.Actor, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Owner == user.Owner && u.Email == user.Email && !u.IsDeleted {
			return storage.ErrAlreadyExists
		}
	}

	cp := *user
	cp.Audit = stamp(actor)
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeStorage) UserByEmail(_ context.Context, owner models.Owner, email string, opts ...storage.ReadOption) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := storage.CollectReadOptions(opts)
	for _, u := range f.users {
		if u.Owner == owner && u.Email == email && (o.IncludeDeleted || !u.IsDeleted) {
			cp := *u
			return &cp, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (f *fakeStorage) UserByID(_ context.Context, id uuid.UUID, opts ...storage.ReadOption) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := storage.CollectReadOptions(opts)
	u, ok := f.users[id]
	if !ok || (!o.IncludeDeleted && u.IsDeleted) {
		return nil, storage.ErrNotFound
	}

	cp := *u
	return &cp, nil
}

func (f *fakeStorage) UpdateUserProfile(_ context.Context, actor models.Actor, id uuid.UUID, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return nil, storage.ErrNotFound
	}

	u.Username = username
	u.UpdatedAt = time.Now().UTC()
	u.UpdatedBy = actor.ID

	cp := *u
	return &cp, nil
}

func (f *fakeStorage) UpdateUserPassword(_ context.Context, actor models.Actor, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return storage.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	u.UpdatedBy = actor.ID
	return nil
}

func (f *fakeStorage) SoftDeleteUser(_ context.Context, actor models.Actor, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok || u.IsDeleted {
		return storage.ErrNotFound
	}

	now := time.Now().UTC()
	u.IsDeleted = true
	u.DeletedAt = &now
	actorID := actor.ID
	u.DeletedBy = &actorID
	return nil
}

func (f *fakeStorage) SaveTokenPair(_ context.Context, actor models.Actor, token *models.Token, detail *models.TokenJwt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertPairLocked(actor, token, detail)
	return nil
}

func (f *fakeStorage) insertPairLocked(actor models.Actor, token *models.Token, detail *models.TokenJwt) {
	tc := *token
	tc.Audit = stamp(actor)
	f.tokens[token.ID] = &tc

	dc := *detail
	dc.Audit = stamp(actor)
	f.jwts[detail.JTI] = &dc
}

func (f *fakeStorage) TokenByJTI(_ context.Context, jti uuid.UUID, opts ...storage.ReadOption) (*models.Token, *models.TokenJwt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := storage.CollectReadOptions(opts)
	d, ok := f.jwts[jti]
	if !ok || (!o.IncludeDeleted && d.IsDeleted) {
		return nil, nil, storage.ErrNotFound
	}

	t, ok := f.tokens[d.TokenID]
	if !ok || (!o.IncludeDeleted && t.IsDeleted) {
		return nil, nil, storage.ErrNotFound
	}

	tc, dc := *t, *d
	return &tc, &dc, nil
}

func (f *fakeStorage) SupersedeToken(_ context.Context, actor models.Actor, oldJTI uuid.UUID, token *models.Token, detail *models.TokenJwt) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSupersede != nil {
		return false, f.failSupersede
	}

	d, ok := f.jwts[oldJTI]
	if !ok || d.IsDeleted {
		return false, nil
	}

	f.softDeletePairLocked(actor, d)
	f.insertPairLocked(actor, token, detail)
	return true, nil
}

func (f *fakeStorage) softDeletePairLocked(actor models.Actor, d *models.TokenJwt) {
	now := time.Now().UTC()
	actorID := actor.ID

	d.IsDeleted = true
	d.DeletedAt = &now
	d.DeletedBy = &actorID

	if t, ok := f.tokens[d.TokenID]; ok {
		t.IsDeleted = true
		t.DeletedAt = &now
		t.DeletedBy = &actorID
	}
}

func (f *fakeStorage) SoftDeleteTokenByJTI(_ context.Context, actor models.Actor, jti uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.jwts[jti]
	if !ok || d.IsDeleted {
		return false, nil
	}

	f.softDeletePairLocked(actor, d)
	return true, nil
}

func (f *fakeStorage) SoftDeleteTokensByOwner(_ context.Context, actor models.Actor, owner models.Owner, ownerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, d := range f.jwts {
		if d.IsDeleted {
			continue
		}
		t, ok := f.tokens[d.TokenID]
		if !ok || t.Owner != owner || t.OwnerID != ownerID {
			continue
		}
		f.softDeletePairLocked(actor, d)
		n++
	}

	return n, nil
}

func (f *fakeStorage) PurgeDeletedTokens(_ context.Context, before time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for jti, d := range f.jwts {
		if d.IsDeleted && d.DeletedAt != nil && d.DeletedAt.Before(before) {
			delete(f.tokens, d.TokenID)
			delete(f.jwts, jti)
		}
	}

	return nil
}

// liveTokens возвращает количество живых пар субъекта.
func (f *fakeStorage) liveTokens(ownerID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.tokens {
		if t.OwnerID == ownerID && !t.IsDeleted {
			n++
		}
	}

	return n
}

func (f *fakeStorage) SavePost(_ context.Context, actor models.Actor, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *post
	cp.Audit = stamp(actor)
	f.posts[post.ID] = &cp
	return nil
}

func (f *fakeStorage) PostByID(_ context.Context, id uuid.UUID, opts ...storage.ReadOption) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := storage.CollectReadOptions(opts)
	p, ok := f.posts[id]
	if !ok || (!o.IncludeDeleted && p.IsDeleted) {
		return nil, storage.ErrNotFound
	}

	cp := *p
	return &cp, nil
}

func (f *fakeStorage) PostsByAuthor(_ context.Context, authorID uuid.UUID, limit int, opts ...storage.ReadOption) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := storage.CollectReadOptions(opts)
	var out []models.Post
	for _, p := range f.posts {
		if p.AuthorID != authorID || (!o.IncludeDeleted && p.IsDeleted) {
			continue
		}
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (f *fakeStorage) UpdatePost(_ context.Context, actor models.Actor, post *models.Post) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[post.ID]
	if !ok || p.IsDeleted {
		return nil, storage.ErrNotFound
	}

	p.Title = post.Title
	p.Content = post.Content
	p.UpdatedAt = time.Now().UTC()
	p.UpdatedBy = actor.ID

	cp := *p
	return &cp, nil
}

func (f *fakeStorage) SoftDeletePost(_ context.Context, actor models.Actor, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[id]
	if !ok || p.IsDeleted {
		return storage.ErrNotFound
	}

	now := time.Now().UTC()
	actorID := actor.ID
	p.IsDeleted = true
	p.DeletedAt = &now
	p.DeletedBy = &actorID
	return nil
}

func (f *fakeStorage) SaveNotification(_ context.Context, actor models.Actor, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *n
	cp.Audit = stamp(actor)
	f.notes[n.ID] = &cp
	return nil
}

func (f *fakeStorage) NotificationByID(_ context.Context, id uuid.UUID, opts ...storage.ReadOption) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := storage.CollectReadOptions(opts)
	n, ok := f.notes[id]
	if !ok || (!o.IncludeDeleted && n.IsDeleted) {
		return nil, storage.ErrNotFound
	}

	cp := *n
	if at, ok := f.reads[id]; ok {
		t := at
		cp.ReadAt = &t
	}
	return &cp, nil
}

func (f *fakeStorage) NotificationsForUser(_ context.Context, userID uuid.UUID, limit int, opts ...storage.ReadOption) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := storage.CollectReadOptions(opts)
	var out []models.Notification
	for id, n := range f.notes {
		if n.UserID != userID || (!o.IncludeDeleted && n.IsDeleted) {
			continue
		}
		cp := *n
		if at, ok := f.reads[id]; ok {
			t := at
			cp.ReadAt = &t
		}
		out = append(out, cp)
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (f *fakeStorage) MarkNotificationRead(_ context.Context, _ models.Actor, notificationID, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.reads[notificationID]; !ok {
		f.reads[notificationID] = time.Now().UTC()
	}
	return nil
}

type sessionEntry struct {
	hash string
}

type fakeCache struct {
	mu sync.Mutex

	sessions map[string]sessionEntry // key: owner/ownerID/jti
	otps     map[string]*cache.OTPRecord
	flows    map[uuid.UUID]models.Actor
	hits     map[string]int64

	failSet    error
	failGet    error
	failDelete func(jti uuid.UUID) error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		sessions: make(map[string]sessionEntry),
		otps:     make(map[string]*cache.OTPRecord),
		flows:    make(map[uuid.UUID]models.Actor),
		hits:     make(map[string]int64),
	}
}

func (f *fakeCache) Close() error { return nil }

func skey(owner models.Owner, ownerID, jti uuid.UUID) string {
	return string(owner) + "/" + ownerID.String() + "/" + jti.String()
}

func (f *fakeCache) SetSession(_ context.Context, owner models.Owner, ownerID, jti uuid.UUID, hash string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSet != nil {
		return f.failSet
	}

	f.sessions[skey(owner, ownerID, jti)] = sessionEntry{hash: hash}
	return nil
}

func (f *fakeCache) SessionHash(_ context.Context, owner models.Owner, ownerID, jti uuid.UUID) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet != nil {
		return "", false, f.failGet
	}

	e, ok := f.sessions[skey(owner, ownerID, jti)]
	if !ok {
		return "", false, nil
	}

	return e.hash, true, nil
}

func (f *fakeCache) CompareAndDeleteSession(_ context.Context, owner models.Owner, ownerID, jti uuid.UUID, expectedHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := skey(owner, ownerID, jti)
	e, ok := f.sessions[key]
	if !ok || e.hash != expectedHash {
		return false, nil
	}

	delete(f.sessions, key)
	return true, nil
}

func (f *fakeCache) DeleteSession(_ context.Context, owner models.Owner, ownerID, jti uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDelete != nil {
		if err := f.failDelete(jti); err != nil {
			return err
		}
	}

	delete(f.sessions, skey(owner, ownerID, jti))
	return nil
}

func (f *fakeCache) SessionJTIs(_ context.Context, owner models.Owner, ownerID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := string(owner) + "/" + ownerID.String() + "/"
	var out []uuid.UUID
	for key := range f.sessions {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			if id, err := uuid.Parse(key[len(prefix):]); err == nil {
				out = append(out, id)
			}
		}
	}

	return out, nil
}

func (f *fakeCache) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeCache) SaveOTP(_ context.Context, owner models.Owner, subjectID uuid.UUID, rec *cache.OTPRecord, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *rec
	f.otps[string(owner)+"/"+subjectID.String()] = &cp
	return nil
}

func (f *fakeCache) OTP(_ context.Context, owner models.Owner, subjectID uuid.UUID) (*cache.OTPRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.otps[string(owner)+"/"+subjectID.String()]
	if !ok {
		return nil, false, nil
	}

	cp := *rec
	return &cp, true, nil
}

func (f *fakeCache) UpdateOTP(_ context.Context, owner models.Owner, subjectID uuid.UUID, rec *cache.OTPRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *rec
	f.otps[string(owner)+"/"+subjectID.String()] = &cp
	return nil
}

func (f *fakeCache) DeleteOTP(_ context.Context, owner models.Owner, subjectID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.otps, string(owner)+"/"+subjectID.String())
	return nil
}

func (f *fakeCache) SaveFlow(_ context.Context, flowID uuid.UUID, owner models.Owner, subjectID uuid.UUID, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.flows[flowID] = models.Actor{Owner: owner, ID: subjectID}
	return nil
}

func (f *fakeCache) Flow(_ context.Context, flowID uuid.UUID) (models.Owner, uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.flows[flowID]
	if !ok {
		return "", uuid.Nil, false, nil
	}

	return a.Owner, a.ID, true, nil
}

func (f *fakeCache) DeleteFlow(_ context.Context, flowID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.flows, flowID)
	return nil
}

func (f *fakeCache) Hit(_ context.Context, name, key string, _ time.Duration, limit int64) (cache.LimitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := name + "/" + key
	f.hits[k]++
	n := f.hits[k]
	return cache.LimitResult{TotalHits: n, Blocked: n > limit}, nil
}

// Проверка соответствия контрактам.
var (
	_ storage.Storage    = (*fakeStorage)(nil)
	_ cache.SessionCache = (*fakeCache)(nil)
	_ cache.OTPStore     = (*fakeCache)(nil)
	_ cache.Limiter      = (*fakeCache)(nil)
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 168 * time.Hour,
		ResetTokenTTL:   10 * time.Minute,
		Issuer:          "social-backend",
		Audience:        []string{"social-api"},
		BcryptCost:      4,
	}
}

func testOTPConfig() config.OTPConfig {
	return config.OTPConfig{Length: 6, TTL: 10 * time.Minute, MaxAttempts: 3}
}

func testLimits() config.RateLimitConfig {
	return config.RateLimitConfig{
		AuthWindow:  time.Minute,
		AuthLimit:   100,
		ResetWindow: time.Hour,
		ResetLimit:  100,
	}
}

func newTestService(str *fakeStorage, c *fakeCache) *Service {
	return New(str, c, c, c, testAuthConfig(), testOTPConfig(), testLimits())
}
