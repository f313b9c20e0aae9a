package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindByIdentifier matches either the email or the passport number.
	FindByIdentifier(ctx context.Context, identifier string) (User, error)
	UpdateKYC(ctx context.Context, id string, status KYCStatus, kycRef string) error
	CountByKYCStatus(ctx context.Context) (map[KYCStatus]int64, error)
}

const userColumns = `id, email, passport_number, full_name, phone, password_hash, kyc_status, kyc_ref, created_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users
        (id, email, passport_number, full_name, phone, password_hash, kyc_status, kyc_ref, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, user.Email, user.PassportNumber, user.FullName, user.Phone,
		user.PasswordHash, user.KYCStatus, user.KYCRef, user.CreatedAt.UTC())
	return err
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByIdentifier fetches a user by email or passport number.
func (r *PostgresRepository) FindByIdentifier(ctx context.Context, identifier string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
        WHERE email = $1 OR passport_number = $1`, identifier)
	return scanUser(row)
}

// UpdateKYC stores the KYC status and provider reference for a user.
func (r *PostgresRepository) UpdateKYC(ctx context.Context, id string, status KYCStatus, kycRef string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET kyc_status = $2, kyc_ref = $3 WHERE id = $1`, userID, status, kycRef)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountByKYCStatus returns user counts per KYC status.
func (r *PostgresRepository) CountByKYCStatus(ctx context.Context) (map[KYCStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT kyc_status, COUNT(*) FROM users GROUP BY kyc_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[KYCStatus]int64{}
	for rows.Next() {
		var status KYCStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		id        uuid.UUID
		createdAt time.Time
	)
	err := row.Scan(&id, &user.Email, &user.PassportNumber, &user.FullName, &user.Phone,
		&user.PasswordHash, &user.KYCStatus, &user.KYCRef, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
