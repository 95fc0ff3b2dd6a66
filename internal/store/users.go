package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const userColumns = `u.id, u.email, u.name, u.profile_picture, r.name, u.password_hash, u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.ProfilePicture,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func CreateUser(ctx context.Context, db *sql.DB, email, passwordHash string, name *string) (*models.User, error) {
	id := uuid.New()

	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, role_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, (SELECT id FROM roles WHERE name = $5), NOW(), NOW())`,
		id, NormalizeEmail(email), name, passwordHash, models.DefaultRole)
	if err != nil {
		if database.IsUniqueViolation(err, "uq_users_email") {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return GetUser(ctx, db, id)
}

func GetUser(ctx context.Context, db *sql.DB, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// UpdateProfile sets the non-nil fields.
func UpdateProfile(ctx context.Context, db *sql.DB, id uuid.UUID, name, passwordHash *string) (*models.User, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE users
		 SET name = COALESCE($2, name),
		     password_hash = COALESCE($3, password_hash),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, name, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := expectRow(result, database.ErrUserNotFound); err != nil {
		return nil, err
	}

	return GetUser(ctx, db, id)
}

func SetProfilePicture(ctx context.Context, db *sql.DB, id uuid.UUID, path string) (*models.User, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET profile_picture = $2, updated_at = NOW() WHERE id = $1`,
		id, path)
	if err != nil {
		return nil, fmt.Errorf("set profile picture: %w", err)
	}

	if err := expectRow(result, database.ErrUserNotFound); err != nil {
		return nil, err
	}

	return GetUser(ctx, db, id)
}

func SetUserRole(ctx context.Context, db *sql.DB, id uuid.UUID, role models.Role) (*models.User, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE users
		 SET role_id = (SELECT id FROM roles WHERE name = $2), updated_at = NOW()
		 WHERE id = $1`,
		id, role)
	if err != nil {
		return nil, fmt.Errorf("set user role: %w", err)
	}

	if err := expectRow(result, database.ErrUserNotFound); err != nil {
		return nil, err
	}

	return GetUser(ctx, db, id)
}

func ListUsers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}

func expectRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
