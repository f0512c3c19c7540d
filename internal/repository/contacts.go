package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"alfred/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrContactNotFound 联系人不存在
	ErrContactNotFound = errors.New("contact not found")
	// ErrInvalidContact 联系人字段校验失败
	ErrInvalidContact = errors.New("invalid contact")
)

// E.164 之外也接受本地格式（数字、空格、+、-、括号）
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{3,19}$`)

// ContactRepository 紧急联系人仓库
type ContactRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewContactRepository 创建紧急联系人仓库
func NewContactRepository(db *sql.DB, logger *zap.Logger) *ContactRepository {
	return &ContactRepository{
		db:     db,
		logger: logger,
	}
}

// List 按创建顺序列出用户的联系人
func (r *ContactRepository) List(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT contact_id, user_id, first_name, last_name, phone_number
		FROM emergency_contacts
		WHERE user_id = $1
		ORDER BY created_at ASC, contact_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query emergency_contacts: %w", err)
	}
	defer rows.Close()

	contacts := []models.EmergencyContact{}
	for rows.Next() {
		var c models.EmergencyContact
		if err := rows.Scan(&c.ContactID, &c.UserID, &c.FirstName, &c.LastName, &c.PhoneNumber); err != nil {
			return nil, fmt.Errorf("failed to scan emergency_contacts: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate emergency_contacts: %w", err)
	}
	return contacts, nil
}

// Create 新增联系人，返回带 ID 的联系人
func (r *ContactRepository) Create(ctx context.Context, contact models.EmergencyContact) (*models.EmergencyContact, error) {
	contact.FirstName = strings.TrimSpace(contact.FirstName)
	contact.LastName = strings.TrimSpace(contact.LastName)
	contact.PhoneNumber = strings.TrimSpace(contact.PhoneNumber)

	if contact.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidContact)
	}
	if contact.FirstName == "" || contact.LastName == "" {
		return nil, fmt.Errorf("%w: first_name and last_name are required", ErrInvalidContact)
	}
	if !phonePattern.MatchString(contact.PhoneNumber) {
		return nil, fmt.Errorf("%w: invalid phone_number %q", ErrInvalidContact, contact.PhoneNumber)
	}

	contact.ContactID = uuid.New().String()

	query := `
		INSERT INTO emergency_contacts (contact_id, user_id, first_name, last_name, phone_number)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		contact.ContactID, contact.UserID, contact.FirstName, contact.LastName, contact.PhoneNumber,
	); err != nil {
		return nil, fmt.Errorf("failed to insert emergency_contacts: %w", err)
	}

	return &contact, nil
}

// Delete 删除联系人
func (r *ContactRepository) Delete(ctx context.Context, userID, contactID string) error {
	if userID == "" || contactID == "" {
		return fmt.Errorf("user_id and contact_id are required")
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM emergency_contacts WHERE contact_id = $1 AND user_id = $2`,
		contactID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete emergency_contacts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}
