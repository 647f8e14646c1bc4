package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edalik/electronics-store-user-service/internal/infrastructure/redis"
	"github.com/edalik/electronics-store-user-service/internal/models"
	"github.com/edalik/electronics-store-user-service/internal/repository"
	pkgerrors "github.com/edalik/electronics-store-user-service/pkg/errors"
)

// fakeUserRepo is an in-memory UserRepository with per-user mutexes
// standing in for row locks, so the serialization property of the
// payment protocol can be exercised with real goroutines.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	locks map[uuid.UUID]*sync.Mutex
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[uuid.UUID]*models.User),
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (f *fakeUserRepo) add(user *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := f.users[user.ID]; ok {
		return pkgerrors.ErrLoginExists
	}
	for _, existing := range f.users {
		if existing.Login == user.Login {
			return pkgerrors.ErrLoginExists
		}
	}
	now := time.Now()
	user.CreatedTime = now
	user.UpdatedTime = now
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (f *fakeUserRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Login == login {
			cp := *user
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (f *fakeUserRepo) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Login == login {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[user.ID]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	stored.Name = user.Name
	stored.Surname = user.Surname
	stored.Patronymic = user.Patronymic
	stored.Gender = user.Gender
	stored.Birthdate = user.Birthdate
	stored.PhoneNumber = user.PhoneNumber
	stored.UpdatedTime = time.Now()
	user.UpdatedTime = stored.UpdatedTime
	return nil
}

func (f *fakeUserRepo) DeleteByID(ctx context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return 0, nil
	}
	delete(f.users, id)
	return 1, nil
}

func (f *fakeUserRepo) lockFor(id uuid.UUID) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[id] = lock
	}
	return lock
}

type fakeBalanceTx struct {
	repo   *fakeUserRepo
	held   map[uuid.UUID]bool
	staged map[uuid.UUID]decimal.Decimal
}

func (f *fakeUserRepo) InTransaction(ctx context.Context, fn func(tx repository.BalanceTx) error) error {
	tx := &fakeBalanceTx{
		repo:   f,
		held:   make(map[uuid.UUID]bool),
		staged: make(map[uuid.UUID]decimal.Decimal),
	}
	defer func() {
		for id := range tx.held {
			f.lockFor(id).Unlock()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, delta := range tx.staged {
		if user, ok := f.users[id]; ok {
			user.Balance = user.Balance.Add(delta)
		}
	}
	return nil
}

func (t *fakeBalanceTx) acquire(id uuid.UUID) {
	if !t.held[id] {
		t.repo.lockFor(id).Lock()
		t.held[id] = true
	}
}

func (t *fakeBalanceTx) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	t.acquire(id)
	return t.repo.GetByID(ctx, id)
}

func (t *fakeBalanceTx) IncreaseBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	t.acquire(id)
	if _, err := t.repo.GetByID(ctx, id); err != nil {
		return 0, nil
	}
	t.staged[id] = t.staged[id].Add(amount)
	return 1, nil
}

func (t *fakeBalanceTx) DecreaseBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (int64, error) {
	t.acquire(id)
	if _, err := t.repo.GetByID(ctx, id); err != nil {
		return 0, nil
	}
	t.staged[id] = t.staged[id].Sub(amount)
	return 1, nil
}

// fakeRedis is a plain map-backed cache.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

var _ redis.RedisClient = (*fakeRedis)(nil)

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return val, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := value.(string); ok {
		f.data[key] = s
	}
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeRedis) Close() error { return nil }

// fakeProducer records sent events.
type fakeProducer struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakeProducer) Send(ctx context.Context, topic string, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeProducer) Close() error { return nil }
