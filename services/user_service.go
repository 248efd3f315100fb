package services

import (
	"errors"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreateUserDTO carries data for a new account
type CreateUserDTO struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	FullName string          `json:"full_name" validate:"required,min=2,max=100"`
	Phone    string          `json:"phone" validate:"max=30"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=ADMIN OWNER"`
}

// UpdateUserDTO carries partial user updates
type UpdateUserDTO struct {
	FullName *string          `json:"full_name" validate:"omitempty,min=2,max=100"`
	Phone    *string          `json:"phone" validate:"omitempty,max=30"`
	Role     *models.UserRole `json:"role" validate:"omitempty,oneof=ADMIN OWNER"`
	IsActive *bool            `json:"is_active"`
	Password *string          `json:"password" validate:"omitempty,min=8"`
}

// UserService manages accounts and credential checks
type UserService struct {
	db        *gorm.DB
	validator *validator.Validate
	email     *EmailService
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, email *EmailService) *UserService {
	return &UserService{
		db:        db,
		validator: validator.New(),
		email:     email,
	}
}

// Create registers a new account. The welcome email is best-effort.
func (s *UserService) Create(dto CreateUserDTO) (*models.User, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	var existing models.User
	if err := s.db.Where("LOWER(email) = LOWER(?)", dto.Email).First(&existing).Error; err == nil {
		return nil, Validation("a user with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Internal("failed to check for existing user", err)
	}

	hash, err := utils.HashPassword(dto.Password)
	if err != nil {
		return nil, Internal("failed to hash password", err)
	}

	role := dto.Role
	if role == "" {
		role = models.UserRoleOwner
	}

	user := &models.User{
		Email:        dto.Email,
		PasswordHash: hash,
		Role:         role,
		FullName:     dto.FullName,
		Phone:        dto.Phone,
		IsActive:     true,
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, Internal("failed to create user", err)
	}

	if s.email != nil {
		if err := s.email.SendWelcomeEmail(user); err != nil {
			utils.LogError("Welcome email failed for user %d: %v", user.ID, err)
		}
	}

	utils.LogInfo("User %d registered (%s)", user.ID, user.Role)
	return user, nil
}

// Authenticate checks credentials and returns the matching active account
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("LOWER(TRIM(email)) = LOWER(TRIM(?))", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, PermissionDenied("invalid credentials")
		}
		return nil, Internal("failed to load user", err)
	}

	if !user.IsActive {
		return nil, PermissionDenied("account is deactivated")
	}
	if !utils.VerifyPassword(password, user.PasswordHash) {
		return nil, PermissionDenied("invalid credentials")
	}

	return &user, nil
}

// GetByID returns a user
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("user %d not found", id)
		}
		return nil, Internal("failed to load user", err)
	}
	return &user, nil
}

// List returns all users
func (s *UserService) List() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, Internal("failed to list users", err)
	}
	return users, nil
}

// Update applies a partial update to an account
func (s *UserService) Update(id uint, dto UpdateUserDTO) (*models.User, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.FullName != nil {
		user.FullName = *dto.FullName
	}
	if dto.Phone != nil {
		user.Phone = *dto.Phone
	}
	if dto.Role != nil {
		user.Role = *dto.Role
	}
	if dto.IsActive != nil {
		user.IsActive = *dto.IsActive
	}
	if dto.Password != nil {
		hash, err := utils.HashPassword(*dto.Password)
		if err != nil {
			return nil, Internal("failed to hash password", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now()

	if err := s.db.Save(user).Error; err != nil {
		return nil, Internal("failed to update user", err)
	}
	return user, nil
}

// Delete deactivates an account instead of removing it so historical
// payments keep their user reference
func (s *UserService) Delete(id uint) error {
	user, err := s.GetByID(id)
	if err != nil {
		return err
	}

	user.IsActive = false
	user.UpdatedAt = time.Now()
	if err := s.db.Save(user).Error; err != nil {
		return Internal("failed to deactivate user", err)
	}

	utils.LogInfo("User %d deactivated", id)
	return nil
}
