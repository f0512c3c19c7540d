package httpapi

import (
	"context"
	"errors"
	"net/http"

	"alfred/internal/messaging"
	"alfred/internal/models"
	"alfred/internal/repository"

	"go.uber.org/zap"
)

// ContactStore 联系人存储（repository.ContactRepository）
type ContactStore interface {
	List(ctx context.Context, userID string) ([]models.EmergencyContact, error)
	Create(ctx context.Context, contact models.EmergencyContact) (*models.EmergencyContact, error)
	Delete(ctx context.Context, userID, contactID string) error
}

// ContactInvalidator 联系人缓存失效（store.ContactCache）
type ContactInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// ContactsHandler 紧急联系人接口
type ContactsHandler struct {
	store  ContactStore
	cache  ContactInvalidator // 可为 nil
	sender messaging.Sender   // 可为 nil，不发送欢迎短信
	users  UserResolver
	logger *zap.Logger
}

func NewContactsHandler(store ContactStore, cache ContactInvalidator, sender messaging.Sender, users UserResolver, logger *zap.Logger) *ContactsHandler {
	return &ContactsHandler{
		store:  store,
		cache:  cache,
		sender: sender,
		users:  users,
		logger: logger,
	}
}

func (h *ContactsHandler) requireUser(w http.ResponseWriter) (string, bool) {
	userID, ok := h.users.CurrentUser()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Fail("not authenticated"))
	}
	return userID, ok
}

// List GET /api/v1/contacts
func (h *ContactsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}
	contacts, err := h.store.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list contacts", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list contacts"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(contacts))
}

type createContactRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

type createContactResponse struct {
	Contact    *models.EmergencyContact `json:"contact"`
	WelcomeSMS *messaging.SendResult    `json:"welcome_sms,omitempty"`
}

// Create POST /api/v1/contacts
// 创建成功后发送欢迎短信；短信失败不影响创建结果
func (h *ContactsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}
	var req createContactRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid json body"))
		return
	}

	contact, err := h.store.Create(r.Context(), models.EmergencyContact{
		UserID:      userID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidContact) {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		h.logger.Error("Failed to create contact", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to create contact"))
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), userID)
	}

	resp := createContactResponse{Contact: contact}
	if h.sender != nil {
		res := h.sender.Send(r.Context(), messaging.WelcomeText(contact.FirstName, contact.LastName), contact.PhoneNumber)
		if !res.Success {
			h.logger.Warn("Welcome SMS failed",
				zap.String("contact", contact.Descriptor()),
				zap.String("error", res.Error),
			)
		}
		resp.WelcomeSMS = &res
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Delete DELETE /api/v1/contacts/{id}
func (h *ContactsHandler) Delete(w http.ResponseWriter, r *http.Request, contactID string) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), userID, contactID); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			writeJSON(w, http.StatusNotFound, Fail("contact not found"))
			return
		}
		h.logger.Error("Failed to delete contact", zap.String("contact_id", contactID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to delete contact"))
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), userID)
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"contact_id": contactID}))
}
