package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"filevault/internal/domain"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// selectUser — базовый запрос с именем роли через LEFT JOIN
const selectUser = `
    SELECT u.id, u.email, u.hashed_password, u.full_name,
           u.is_active, u.is_verified, u.role_id, r.name AS role_name,
           u.created_at, u.updated_at
    FROM users u
    LEFT JOIN roles r ON r.id = u.role_id`

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
        INSERT INTO users (email, hashed_password, full_name, is_active, is_verified, role_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.HashedPassword,
		user.FullName,
		user.IsActive,
		user.IsVerified,
		user.RoleID,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	query := selectUser + ` WHERE u.id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	query := selectUser + ` WHERE u.email = $1`

	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]domain.User, error) {
	var users []domain.User
	query := selectUser + ` ORDER BY u.id OFFSET $1 LIMIT $2`

	if err := r.db.SelectContext(ctx, &users, query, offset, limit); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
        UPDATE users
        SET email = $1, full_name = $2, is_active = $3, is_verified = $4,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query, user.Email, user.FullName, user.IsActive, user.IsVerified, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error {
	query := `
        UPDATE users
        SET hashed_password = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, hashedPassword, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *UserRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	query := `
        UPDATE users
        SET role_id = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, roleID, userID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Deactivate отключает учетную запись, данные пользователя сохраняются
func (r *UserRepository) Deactivate(ctx context.Context, userID int64) error {
	query := `
        UPDATE users
        SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Роли

func (r *UserRepository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	query := `SELECT id, name, description FROM roles WHERE name = $1`

	err := r.db.GetContext(ctx, &role, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return &role, nil
}

func (r *UserRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	query := `SELECT id, name, description FROM roles ORDER BY id`

	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

func (r *UserRepository) CreateRole(ctx context.Context, role *domain.Role) error {
	query := `INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING id`

	err := r.db.QueryRowContext(ctx, query, role.Name, role.Description).Scan(&role.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}
