package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/johkker/delice/internal/models"
	"github.com/johkker/delice/internal/verification"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	GetByPhoneFunc     func(ctx context.Context, phone string) (*models.User, error)
	GetByDocumentFunc  func(ctx context.Context, document string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateEmailFunc    func(ctx context.Context, id, email string) (*models.User, error)
	UpdatePhoneFunc    func(ctx context.Context, id, phone string) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) (*models.User, error)
	UpdateProfileFunc  func(ctx context.Context, id string, name, avatarURL *string) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	if m.GetByPhoneFunc != nil {
		return m.GetByPhoneFunc(ctx, phone)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByDocument(ctx context.Context, document string) (*models.User, error) {
	if m.GetByDocumentFunc != nil {
		return m.GetByDocumentFunc(ctx, document)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateEmail(ctx context.Context, id, email string) (*models.User, error) {
	if m.UpdateEmailFunc != nil {
		return m.UpdateEmailFunc(ctx, id, email)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePhone(ctx context.Context, id, phone string) (*models.User, error) {
	if m.UpdatePhoneFunc != nil {
		return m.UpdatePhoneFunc(ctx, id, phone)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (*models.User, error) {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, name, avatarURL *string) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, name, avatarURL)
	}
	return nil, models.ErrInternalServer
}

// MemoryUserRepository is a map-backed UserRepository with the same unique
// constraints as the users table.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserRepository(seed ...*models.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]*models.User)}
	for _, u := range seed {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *MemoryUserRepository) find(match func(u *models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Phone == phone })
}

func (r *MemoryUserRepository) GetByDocument(_ context.Context, document string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Document == document })
}

func (r *MemoryUserRepository) conflict(id string, u *models.User) error {
	for _, other := range r.users {
		if other.ID == id {
			continue
		}
		switch {
		case other.Email == u.Email:
			return models.ErrEmailInUse
		case other.Phone == u.Phone:
			return models.ErrPhoneInUse
		case other.Document == u.Document:
			return models.ErrDocumentInUse
		}
	}
	return nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.conflict("", user); err != nil {
		return nil, err
	}

	cp := *user
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	if len(cp.Roles) == 0 {
		cp.Roles = []string{models.RoleCustomer}
	}
	r.users[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (r *MemoryUserRepository) update(id string, apply func(u *models.User)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	next := *current
	apply(&next)
	if err := r.conflict(id, &next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	r.users[id] = &next

	out := next
	return &out, nil
}

func (r *MemoryUserRepository) UpdateEmail(_ context.Context, id, email string) (*models.User, error) {
	return r.update(id, func(u *models.User) {
		u.Email = email
		u.EmailVerified = true
	})
}

func (r *MemoryUserRepository) UpdatePhone(_ context.Context, id, phone string) (*models.User, error) {
	return r.update(id, func(u *models.User) {
		u.Phone = phone
		u.PhoneVerified = true
	})
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) (*models.User, error) {
	return r.update(id, func(u *models.User) {
		now := time.Now().UTC()
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &now
	})
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id string, name, avatarURL *string) (*models.User, error) {
	return r.update(id, func(u *models.User) {
		if name != nil {
			u.Name = *name
		}
		if avatarURL != nil {
			u.AvatarURL = avatarURL
		}
	})
}

// Remove deletes a user, simulating an account that vanished mid-flow.
func (r *MemoryUserRepository) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// RecordingNotifier captures codes and welcome emails instead of sending them.
type RecordingNotifier struct {
	mu          sync.Mutex
	Deliveries  []verification.Delivery
	Welcomes    []string
	FailCodes   error
	FailWelcome error

	// Delay blocks each SendCode until it elapses or ctx is done.
	Delay time.Duration
}

func (n *RecordingNotifier) SendCode(ctx context.Context, d verification.Delivery) error {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailCodes != nil {
		return n.FailCodes
	}
	n.Deliveries = append(n.Deliveries, d)
	return nil
}

func (n *RecordingNotifier) SendWelcome(_ context.Context, _, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailWelcome != nil {
		return n.FailWelcome
	}
	n.Welcomes = append(n.Welcomes, email)
	return nil
}

// LastCode returns the most recent code sent over ch.
func (n *RecordingNotifier) LastCode(ch verification.Channel) (verification.Delivery, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.Deliveries) - 1; i >= 0; i-- {
		if n.Deliveries[i].Channel == ch {
			return n.Deliveries[i], true
		}
	}
	return verification.Delivery{}, false
}

func (n *RecordingNotifier) Count(ch verification.Channel) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, d := range n.Deliveries {
		if d.Channel == ch {
			c++
		}
	}
	return c
}

// RecordingSender captures email and SMS messages.
type RecordingSender struct {
	mu     sync.Mutex
	Emails []EmailMessage
	SMS    []string
	Err    error
}

func (s *RecordingSender) SendEmail(_ context.Context, msg EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Emails = append(s.Emails, msg)
	return nil
}

func (s *RecordingSender) SendSMS(_ context.Context, to, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.SMS = append(s.SMS, to+"|"+message)
	return nil
}
