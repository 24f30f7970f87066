package services

import (
	"context"
	"fmt"

	gormModels "skyhook/flightline/internal/models/gorm"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService handles account creation and the password re-verification the
// signature recorder depends on.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser registers a new pilot account with a bcrypt password hash.
func (svc *UserService) CreateUser(ctx context.Context, email string, name string, password string) (*gormModels.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrMalformedInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := gormModels.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		IsActive:     true,
	}

	if err := svc.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// VerifyPassword checks the given password against the user's stored hash.
// Every failure mode collapses into ErrForbidden so callers cannot tell a
// wrong password from a missing or inactive account.
func (svc *UserService) VerifyPassword(ctx context.Context, userID string, password string) error {
	if password == "" {
		return ErrForbidden
	}

	var user gormModels.User
	err := svc.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return ErrForbidden
	}

	if !user.IsActive {
		return ErrForbidden
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return ErrForbidden
	}

	return nil
}

// Authenticate resolves credentials to an account for login. Failures
// collapse into ErrForbidden the same way VerifyPassword does.
func (svc *UserService) Authenticate(ctx context.Context, email string, password string) (*gormModels.User, error) {
	if email == "" || password == "" {
		return nil, ErrForbidden
	}

	var user gormModels.User
	if err := svc.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, ErrForbidden
	}

	if !user.IsActive {
		return nil, ErrForbidden
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrForbidden
	}

	return &user, nil
}

// GetUser fetches an account by id.
func (svc *UserService) GetUser(ctx context.Context, userID string) (*gormModels.User, error) {
	var user gormModels.User
	if err := svc.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}
