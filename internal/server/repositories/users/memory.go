package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/dmitrijs2005/eventcheckin/internal/server/models"
	"github.com/google/uuid"
)

// ErrTxConflict is returned by MemoryRepository.InTx when a row the
// transaction wrote was changed by someone else before it committed.
var ErrTxConflict = errors.New("concurrent update, transaction aborted")

// MemoryRepository keeps users in process memory. It is safe for concurrent
// use and serves development runs without a database, and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func clone(u *models.User) *models.User {
	c := *u
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	return &c
}

func sameHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *MemoryRepository) newUser(email, name, passwordHash string) *models.User {
	now := r.now()
	return &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         common.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Row mutations shared by the store and its transactions.

func setRefreshHash(u *models.User, hash *string, now time.Time) {
	if hash == nil {
		u.RefreshTokenHash = nil
	} else {
		h := *hash
		u.RefreshTokenHash = &h
	}
	u.UpdatedAt = now
}

func swapRefreshHash(u *models.User, expected, next string, now time.Time) bool {
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != expected {
		return false
	}
	u.RefreshTokenHash = &next
	u.UpdatedAt = now
	return true
}

func revokeSessions(u *models.User, expected string, now time.Time) bool {
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != expected {
		return false
	}
	u.TokenVersion++
	u.RefreshTokenHash = nil
	u.UpdatedAt = now
	return true
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[common.NormalizeEmail(email)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) Create(_ context.Context, email, name, passwordHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = common.NormalizeEmail(email)
	if _, taken := r.byEmail[email]; taken {
		return nil, common.ErrConflict
	}

	u := r.newUser(email, name, passwordHash)
	r.byID[u.ID] = u
	r.byEmail[email] = u.ID

	return clone(u), nil
}

// update runs fn on the live row of id under the write lock.
func (r *MemoryRepository) update(id string, fn func(u *models.User, now time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u, r.now())
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.update(id, func(u *models.User, now time.Time) {
		u.PasswordHash = hash
		u.UpdatedAt = now
	})
}

func (r *MemoryRepository) UpdateRefreshTokenHash(_ context.Context, id string, hash *string) error {
	return r.update(id, func(u *models.User, now time.Time) {
		setRefreshHash(u, hash, now)
	})
}

func (r *MemoryRepository) IncrementTokenVersion(_ context.Context, id string) (int64, error) {
	var v int64
	err := r.update(id, func(u *models.User, now time.Time) {
		u.TokenVersion++
		u.UpdatedAt = now
		v = u.TokenVersion
	})
	return v, err
}

func (r *MemoryRepository) SwapRefreshTokenHash(_ context.Context, id, expected, next string) (bool, error) {
	var ok bool
	err := r.update(id, func(u *models.User, now time.Time) {
		ok = swapRefreshHash(u, expected, next, now)
	})
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return ok, err
}

func (r *MemoryRepository) RevokeSessions(_ context.Context, id, expected string) (bool, error) {
	var ok bool
	err := r.update(id, func(u *models.User, now time.Time) {
		ok = revokeSessions(u, expected, now)
	})
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return ok, err
}

// InTx runs fn against a staging layer and publishes its writes only if fn
// succeeds. The store is not locked while fn runs; only rows fn writes are
// staged. Commit fails with common.ErrConflict if a created email was taken
// meanwhile, or with ErrTxConflict if a written row changed underneath.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	tx := &memTx{
		parent: r,
		rows:   make(map[string]*models.User),
		base:   make(map[string]rowState),
		emails: make(map[string]string),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

type rowState struct {
	hash     *string
	version  int64
	password string
}

func stateOf(u *models.User) rowState {
	s := rowState{version: u.TokenVersion, password: u.PasswordHash}
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		s.hash = &h
	}
	return s
}

// memTx holds the writes of one InTx call. Rows it has not written are read
// through to the parent store.
type memTx struct {
	parent *MemoryRepository
	rows   map[string]*models.User // staged rows by id
	base   map[string]rowState     // parent state of existing rows when first written
	emails map[string]string       // emails of rows created in the tx
}

func (tx *memTx) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := tx.emails[common.NormalizeEmail(email)]; ok {
		return clone(tx.rows[id]), nil
	}
	u, err := tx.parent.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if staged, ok := tx.rows[u.ID]; ok {
		return clone(staged), nil
	}
	return u, nil
}

func (tx *memTx) FindByID(ctx context.Context, id string) (*models.User, error) {
	if staged, ok := tx.rows[id]; ok {
		return clone(staged), nil
	}
	return tx.parent.FindByID(ctx, id)
}

func (tx *memTx) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	email = common.NormalizeEmail(email)
	if _, taken := tx.emails[email]; taken {
		return nil, common.ErrConflict
	}
	if _, err := tx.parent.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	u := tx.parent.newUser(email, name, passwordHash)
	tx.rows[u.ID] = u
	tx.emails[email] = u.ID
	return clone(u), nil
}

// stage returns the writable copy of id, copying it from the parent on first
// write.
func (tx *memTx) stage(ctx context.Context, id string) (*models.User, error) {
	if u, ok := tx.rows[id]; ok {
		return u, nil
	}
	u, err := tx.parent.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.base[id] = stateOf(u)
	tx.rows[id] = u
	return u, nil
}

func (tx *memTx) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	u, err := tx.stage(ctx, id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = tx.parent.now()
	return nil
}

func (tx *memTx) UpdateRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	u, err := tx.stage(ctx, id)
	if err != nil {
		return err
	}
	setRefreshHash(u, hash, tx.parent.now())
	return nil
}

func (tx *memTx) IncrementTokenVersion(ctx context.Context, id string) (int64, error) {
	u, err := tx.stage(ctx, id)
	if err != nil {
		return 0, err
	}
	u.TokenVersion++
	u.UpdatedAt = tx.parent.now()
	return u.TokenVersion, nil
}

func (tx *memTx) SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error) {
	u, err := tx.stage(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapRefreshHash(u, expected, next, tx.parent.now()), nil
}

func (tx *memTx) RevokeSessions(ctx context.Context, id, expected string) (bool, error) {
	u, err := tx.stage(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return revokeSessions(u, expected, tx.parent.now()), nil
}

// InTx inside a transaction joins it.
func (tx *memTx) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return fn(ctx, tx)
}

func (tx *memTx) commit() error {
	r := tx.parent
	r.mu.Lock()
	defer r.mu.Unlock()

	for email := range tx.emails {
		if _, taken := r.byEmail[email]; taken {
			return common.ErrConflict
		}
	}
	for id, was := range tx.base {
		cur, ok := r.byID[id]
		if !ok {
			return ErrTxConflict
		}
		now := stateOf(cur)
		if now.version != was.version || now.password != was.password || !sameHash(now.hash, was.hash) {
			return ErrTxConflict
		}
	}

	for id, u := range tx.rows {
		r.byID[id] = clone(u)
	}
	for email, id := range tx.emails {
		r.byEmail[email] = id
	}
	return nil
}
