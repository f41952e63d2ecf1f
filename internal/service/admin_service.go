package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/edupulse/portal-backend/internal/model"
	"github.com/edupulse/portal-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AdminService manages portal administrator accounts.
type AdminService struct {
	admins *repository.AdminRepository
	auth   *AuthService
	log    zerolog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(admins *repository.AdminRepository, auth *AuthService, log zerolog.Logger) *AdminService {
	return &AdminService{
		admins: admins,
		auth:   auth,
		log:    log.With().Str("component", "admin_service").Logger(),
	}
}

// Authenticate verifies an admin's email and password.
func (s *AdminService) Authenticate(ctx context.Context, email, password string) (*model.Admin, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if err := s.auth.CheckPassword(admin.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// Get returns an admin by ID.
func (s *AdminService) Get(ctx context.Context, id int) (*model.Admin, error) {
	admin, err := s.admins.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("admin not found")
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return admin, nil
}

// Create registers a new admin account with a hashed password.
func (s *AdminService) Create(ctx context.Context, email, name, password string) (*model.Admin, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := &model.Admin{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}

	s.log.Info().Int("admin_id", admin.ID).Str("email", admin.Email).Msg("Admin created")
	return admin, nil
}
