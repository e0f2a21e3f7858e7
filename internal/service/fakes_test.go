package service

import (
	"context"
	"errors"
	"sitegate/internal/entity"
	"sitegate/internal/storage"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uint]entity.DbUser
	nextID uint
	writes int
	err    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uint]entity.DbUser{}, nextID: 1}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *entity.DbUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = *user
	r.writes++
	return nil
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, id uint, updates entity.UserUpdates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if updates.Name != nil {
		u.Name = *updates.Name
	}
	if updates.Email != nil {
		u.Email = *updates.Email
	}
	if updates.Password != nil {
		u.Password = *updates.Password
	}
	u.UpdatedAt = time.Now()
	r.users[id] = u
	r.writes++
	return nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*entity.DbUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			found := u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id uint) (*entity.DbUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) ListUsers(_ context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	all, _ := r.ListAllUsers(context.Background())
	total := int64(len(all))
	start := int((params.Page - 1) * params.PageSize)
	if start > len(all) {
		start = len(all)
	}
	end := start + int(params.PageSize)
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], &entity.Meta{Page: params.Page, PageSize: params.PageSize, Total: total}, nil
}

func (r *fakeUserRepo) ListAllUsers(context.Context) ([]entity.DbUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]entity.DbUser, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (r *fakeUserRepo) DeleteUser(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.users, id)
	r.writes++
	return nil
}

func (r *fakeUserRepo) DeleteUsers(_ context.Context, ids []uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for _, id := range ids {
		if _, ok := r.users[id]; ok {
			delete(r.users, id)
			removed++
		}
	}
	r.writes++
	return removed, nil
}

func (r *fakeUserRepo) CountUsers(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) EmailTaken(_ context.Context, email string, excludeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type staticDomain struct {
	domain string
	err    error
}

func (d staticDomain) AllowedDomain(context.Context) (string, error) {
	return d.domain, d.err
}

type memorySettings struct {
	values map[string]string
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: map[string]string{}}
}

func (s *memorySettings) GetSetting(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return v, nil
}

func (s *memorySettings) SetSetting(_ context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

func (s *memorySettings) DeleteSetting(_ context.Context, key string) error {
	delete(s.values, key)
	return nil
}

type memoryObjects struct {
	objects map[string][]byte
	saveErr error
	seq     int
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}}
}

func (m *memoryObjects) Save(_ context.Context, data []byte, opts storage.SaveOptions) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.seq++
	base := opts.BaseName
	if base == "" {
		base = "object"
	}
	key := opts.Category + "/" + base + "-" + string(rune('a'+m.seq)) + "." + opts.Extension
	m.objects[key] = data
	return key, nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	if _, ok := m.objects[key]; !ok {
		return errors.New("missing object")
	}
	delete(m.objects, key)
	return nil
}
