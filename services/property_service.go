package services

import (
	"errors"
	"time"

	"pagovecinal/models"
	"pagovecinal/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreatePropertyDTO carries data for a new condominium unit
type CreatePropertyDTO struct {
	Villa      string `json:"villa" validate:"required,max=50"`
	RowLetter  string `json:"row_letter" validate:"required,max=10"`
	Number     int    `json:"number" validate:"required,gt=0"`
	OwnerName  string `json:"owner_name" validate:"required,min=2,max=100"`
	OwnerPhone string `json:"owner_phone" validate:"max=30"`
	OwnerID    *uint  `json:"owner_id"`
}

// UpdatePropertyDTO carries the mutable owner fields. Unit identity (villa,
// row letter, number) is fixed at creation.
type UpdatePropertyDTO struct {
	OwnerName  *string `json:"owner_name" validate:"omitempty,min=2,max=100"`
	OwnerPhone *string `json:"owner_phone" validate:"omitempty,max=30"`
	OwnerID    *uint   `json:"owner_id"`
}

// PropertyService manages condominium units
type PropertyService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewPropertyService creates a new PropertyService
func NewPropertyService(db *gorm.DB) *PropertyService {
	return &PropertyService{
		db:        db,
		validator: validator.New(),
	}
}

// Create inserts a new property
func (s *PropertyService) Create(dto CreatePropertyDTO) (*models.Property, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	var count int64
	err := s.db.Model(&models.Property{}).
		Where("villa = ? AND row_letter = ? AND number = ?", dto.Villa, dto.RowLetter, dto.Number).
		Count(&count).Error
	if err != nil {
		return nil, Internal("failed to check for existing property", err)
	}
	if count > 0 {
		return nil, Validation("property %s %s-%d already exists", dto.Villa, dto.RowLetter, dto.Number)
	}

	if dto.OwnerID != nil {
		var owner models.User
		if err := s.db.First(&owner, *dto.OwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NotFound("user %d not found", *dto.OwnerID)
			}
			return nil, Internal("failed to load owner", err)
		}
	}

	property := &models.Property{
		Villa:      dto.Villa,
		RowLetter:  dto.RowLetter,
		Number:     dto.Number,
		OwnerName:  dto.OwnerName,
		OwnerPhone: dto.OwnerPhone,
		OwnerID:    dto.OwnerID,
	}

	if err := s.db.Create(property).Error; err != nil {
		return nil, Internal("failed to create property", err)
	}

	utils.LogInfo("Property %d created: %s %s-%d", property.ID, property.Villa, property.RowLetter, property.Number)
	return property, nil
}

// GetByID returns a property with its registered owner loaded
func (s *PropertyService) GetByID(id uint) (*models.Property, error) {
	var property models.Property
	if err := s.db.Preload("Owner").First(&property, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("property %d not found", id)
		}
		return nil, Internal("failed to load property", err)
	}
	return &property, nil
}

// List returns all properties ordered by location
func (s *PropertyService) List() ([]models.Property, error) {
	var properties []models.Property
	err := s.db.Preload("Owner").
		Order("villa ASC, row_letter ASC, number ASC").
		Find(&properties).Error
	if err != nil {
		return nil, Internal("failed to list properties", err)
	}
	return properties, nil
}

// ListByOwner returns the properties registered to a user
func (s *PropertyService) ListByOwner(userID uint) ([]models.Property, error) {
	var properties []models.Property
	if err := s.db.Where("owner_id = ?", userID).Find(&properties).Error; err != nil {
		return nil, Internal("failed to list owner properties", err)
	}
	return properties, nil
}

// Update applies owner changes to a property
func (s *PropertyService) Update(id uint, dto UpdatePropertyDTO) (*models.Property, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, Validation("%s", translateValidationErrors(err))
	}

	property, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if dto.OwnerName != nil {
		property.OwnerName = *dto.OwnerName
	}
	if dto.OwnerPhone != nil {
		property.OwnerPhone = *dto.OwnerPhone
	}
	if dto.OwnerID != nil {
		var owner models.User
		if err := s.db.First(&owner, *dto.OwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NotFound("user %d not found", *dto.OwnerID)
			}
			return nil, Internal("failed to load owner", err)
		}
		property.OwnerID = dto.OwnerID
	}
	property.UpdatedAt = time.Now()

	if err := s.db.Save(property).Error; err != nil {
		return nil, Internal("failed to update property", err)
	}
	return property, nil
}

// Delete removes a property that has no fees or agreements
func (s *PropertyService) Delete(id uint) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}

	var feeCount int64
	if err := s.db.Model(&models.Fee{}).Where("property_id = ?", id).Count(&feeCount).Error; err != nil {
		return Internal("failed to count property fees", err)
	}
	if feeCount > 0 {
		return Invariant("property %d has %d fees and cannot be deleted", id, feeCount)
	}

	var agreementCount int64
	if err := s.db.Model(&models.Agreement{}).Where("property_id = ?", id).Count(&agreementCount).Error; err != nil {
		return Internal("failed to count property agreements", err)
	}
	if agreementCount > 0 {
		return Invariant("property %d has %d agreements and cannot be deleted", id, agreementCount)
	}

	if err := s.db.Delete(&models.Property{}, id).Error; err != nil {
		return Internal("failed to delete property", err)
	}

	utils.LogInfo("Property %d deleted", id)
	return nil
}
