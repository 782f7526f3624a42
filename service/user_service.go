package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cntrlcomply/backend/models"
	"github.com/cntrlcomply/backend/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewUserRequest is the add-user form.
type NewUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// UserService manages workspace users and their roles. Permissions are
// informational; nothing in the workspace enforces them.
type UserService struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	audit    *AuditService
	notifier notify.Notifier
}

func NewUserService(db *gorm.DB, log *zap.SugaredLogger, audit *AuditService, notifier notify.Notifier) *UserService {
	return &UserService{db: db, log: log, audit: audit, notifier: notifier}
}

// ListUsers returns every user ordered by name.
func (s *UserService) ListUsers(ctx context.Context) ([]models.SystemUser, error) {
	var users []models.SystemUser
	if err := s.db.WithContext(ctx).Order("name").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListRoles returns the role table.
func (s *UserService) ListRoles(ctx context.Context) ([]models.UserRole, error) {
	var roles []models.UserRole
	if err := s.db.WithContext(ctx).Order("id").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func loadRole(tx *gorm.DB, id string) (*models.UserRole, error) {
	var role models.UserRole
	if err := tx.First(&role, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("Invalid role", fmt.Sprintf("%q is not a known role", id))
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return &role, nil
}

func loadUser(tx *gorm.DB, id string) (*models.SystemUser, error) {
	var u models.SystemUser
	if err := tx.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", id)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// AddUser creates an active user. The id is derived from the name.
func (s *UserService) AddUser(ctx context.Context, req NewUserRequest) (*models.SystemUser, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Role == "" {
		return nil, toastInvalid(s.notifier, invalid("Missing information", "Please fill in all required fields"))
	}
	if !models.IsValidEmail(req.Email) {
		return nil, toastInvalid(s.notifier, invalid("Invalid email", "Please enter a valid email address"))
	}
	if req.Department == "" {
		req.Department = "Compliance"
	}

	user := &models.SystemUser{
		ID:         models.UserIDFromName(req.Name),
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Status:     models.UserActive,
		Department: req.Department,
	}

	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadRole(tx, req.Role); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.SystemUser{}).
			Where("id = ? OR LOWER(email) = ?", user.ID, strings.ToLower(user.Email)).
			Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check existing users: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("user %q already exists: %w", user.ID, ErrConflict)
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionUserAdded,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			ResourceName: user.Name,
			Details:      fmt.Sprintf("Added user with role %s", user.Role),
			Metadata:     Metadata(map[string]interface{}{"email": user.Email, "department": user.Department}),
		})
	})
	if err != nil {
		return nil, toastInvalid(s.notifier, err)
	}

	s.notifier.Publish(notify.Success("User added successfully", user.Name+" has been added to the system"))
	return user, nil
}

// DeactivateUser suspends a user's access. Deactivating an inactive user is a no-op.
func (s *UserService) DeactivateUser(ctx context.Context, id string) (*models.SystemUser, error) {
	var user *models.SystemUser
	changed := false
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if user, err = loadUser(tx, id); err != nil {
			return err
		}
		if user.Status == models.UserInactive {
			return nil
		}
		user.Status = models.UserInactive
		if err := tx.Model(user).Update("status", models.UserInactive).Error; err != nil {
			return fmt.Errorf("failed to deactivate user: %w", err)
		}
		changed = true
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionUserDeactivated,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			ResourceName: user.Name,
			Details:      "Deactivated user access",
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notifier.Publish(notify.Success("User deactivated", "User access has been suspended"))
	}
	return user, nil
}

// UpdateRole assigns a different role to a user.
func (s *UserService) UpdateRole(ctx context.Context, id, role string) (*models.SystemUser, error) {
	if role == "" {
		return nil, invalid("Missing information", "Please select a role")
	}
	var user *models.SystemUser
	err := s.audit.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := loadRole(tx, role); err != nil {
			return err
		}
		var err error
		if user, err = loadUser(tx, id); err != nil {
			return err
		}
		previous := user.Role
		if previous == role {
			return nil
		}
		user.Role = role
		if err := tx.Model(user).Update("role", role).Error; err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		return s.audit.RecordTx(ctx, tx, models.AuditEvent{
			Action:       models.ActionUserRoleChanged,
			ResourceType: models.ResourceUser,
			ResourceID:   user.ID,
			ResourceName: user.Name,
			Details:      fmt.Sprintf("Changed role from %s to %s", previous, role),
			Metadata:     Metadata(map[string]interface{}{"previousRole": previous, "newRole": role}),
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(notify.Success("Role updated", user.Name+" is now "+role))
	return user, nil
}

// HasPermission reports whether role grants permission.
func (s *UserService) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	r, err := loadRole(s.db.WithContext(ctx), role)
	if err != nil {
		if _, ok := IsValidation(err); ok {
			return false, nil
		}
		return false, err
	}
	return r.HasPermission(permission), nil
}
