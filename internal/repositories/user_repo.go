package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/johkker/delice/internal/database"
	"github.com/johkker/delice/internal/models"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, password_hash, phone, document, avatar_url, roles,
	email_verified, phone_verified, password_changed_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var roles pq.StringArray

	err := scanner.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Phone, &user.Document, &user.AvatarURL, &roles,
		&user.EmailVerified, &user.PhoneVerified, &user.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.Roles = []string(roles)
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, phone))
}

func (r *UserRepository) GetByDocument(ctx context.Context, document string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE document = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, document))
}

// Create inserts a new user. Unique violations map to ErrEmailInUse,
// ErrPhoneInUse or ErrDocumentInUse.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.NewString()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if len(user.Roles) == 0 {
		user.Roles = []string{models.RoleCustomer}
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, phone, document, avatar_url, roles,
			email_verified, phone_verified, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash,
		user.Phone, user.Document, user.AvatarURL, pq.Array(user.Roles),
		user.EmailVerified, user.PhoneVerified, user.PasswordChangedAt,
		user.CreatedAt, user.UpdatedAt,
	))
}

// UpdateEmail sets a new, already-verified email address.
func (r *UserRepository) UpdateEmail(ctx context.Context, id, email string) (*models.User, error) {
	query := `
		UPDATE users SET email = $2, email_verified = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUserRow(r.pool.QueryRow(ctx, query, id, email))
}

// UpdatePhone sets a new, already-verified phone number.
func (r *UserRepository) UpdatePhone(ctx context.Context, id, phone string) (*models.User, error) {
	query := `
		UPDATE users SET phone = $2, phone_verified = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUserRow(r.pool.QueryRow(ctx, query, id, phone))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (*models.User, error) {
	query := `
		UPDATE users SET password_hash = $2, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUserRow(r.pool.QueryRow(ctx, query, id, passwordHash))
}

// UpdateProfile changes the fields that need no verification. Nil leaves the
// column as is.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, name, avatarURL *string) (*models.User, error) {
	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			avatar_url = COALESCE($3, avatar_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUserRow(r.pool.QueryRow(ctx, query, id, name, avatarURL))
}
