package httpserver

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sfcollab/internal/domain"
	"sfcollab/internal/service"
)

// statusResponse is the envelope used by the messaging read endpoints.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type contactsResponse struct {
	Status   string                  `json:"status"`
	Contacts []domain.ContactSummary `json:"contacts"`
}

type historyResponse struct {
	Status   string               `json:"status"`
	Messages []domain.MessageView `json:"messages"`
}

func writeStatusError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Status: "error", Message: msg})
}

// ownsQuery reports whether the authenticated caller is asking about themselves.
func ownsQuery(r *http.Request, userID string) bool {
	u := CurrentUser(r)
	return u != nil && u.ID == userID
}

// @Summary      List contacts
// @Description  Everyone the user has exchanged messages with, most recent first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        userId query string true "User ID"
// @Success      200  {object}  contactsResponse
// @Failure      400  {object}  statusResponse
// @Failure      403  {object}  statusResponse
// @Failure      500  {object}  statusResponse
// @Router       /messages/contacts [get]
func handleContacts(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			writeStatusError(w, http.StatusBadRequest, "User ID is required")
			return
		}
		if !ownsQuery(r, userID) {
			writeStatusError(w, http.StatusForbidden, "Forbidden")
			return
		}

		contacts, err := msgSvc.Contacts(r.Context(), userID)
		if err != nil {
			log.Error("fetch contacts", zap.String("user_id", userID), zap.Error(err))
			writeStatusError(w, http.StatusInternalServerError, "Failed to fetch contacts")
			return
		}
		writeJSON(w, http.StatusOK, contactsResponse{Status: "success", Contacts: contacts})
	}
}

// @Summary      Conversation history
// @Description  Every message between the user and a contact, oldest first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        userId    query string true "User ID"
// @Param        contactId query string true "Contact ID"
// @Success      200  {object}  historyResponse
// @Failure      400  {object}  statusResponse
// @Failure      403  {object}  statusResponse
// @Failure      500  {object}  statusResponse
// @Router       /messages/history [get]
func handleHistory(msgSvc *service.MessageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := strings.TrimSpace(q.Get("userId"))
		contactID := strings.TrimSpace(q.Get("contactId"))
		if userID == "" || contactID == "" {
			writeStatusError(w, http.StatusBadRequest, "User ID and Contact ID are required")
			return
		}
		if !ownsQuery(r, userID) {
			writeStatusError(w, http.StatusForbidden, "Forbidden")
			return
		}

		messages, err := msgSvc.History(r.Context(), userID, contactID)
		if err != nil {
			log.Error("fetch history",
				zap.String("user_id", userID),
				zap.String("contact_id", contactID),
				zap.Error(err))
			writeStatusError(w, http.StatusInternalServerError, "Failed to fetch messages")
			return
		}
		writeJSON(w, http.StatusOK, historyResponse{Status: "success", Messages: messages})
	}
}
