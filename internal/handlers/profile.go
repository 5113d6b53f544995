package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/models"
)

const codeUserNotFound = "USER_NOT_FOUND"

type profileResponse struct {
	userResponse
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func newProfileResponse(u *models.User) profileResponse {
	return profileResponse{
		userResponse: userResponse{ID: u.ID, Username: u.Username, Email: u.Email},
		CreatedAt:    formatTime(u.CreatedAt),
		UpdatedAt:    formatTime(u.UpdatedAt),
	}
}

// currentUser loads the authenticated user, writing the error response when it cannot.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized")
		return nil, false
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()
	user, err := h.UserRepo.GetByID(ctx, owner)
	if errors.Is(err, db.ErrNotFound) {
		sendError(w, http.StatusNotFound, codeUserNotFound, "User not found")
		return nil, false
	}
	if err != nil {
		log.Printf("[profile] cannot load user %s: %v", owner, err)
		sendError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
		return nil, false
	}
	return user, true
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, "Profile retrieved", map[string]any{"user": newProfileResponse(user)})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.Username == nil && input.Email == nil {
		sendError(w, http.StatusBadRequest, codeNoFields, "At least one field must be provided")
		return
	}
	if input.Username != nil && !usernameRegex.MatchString(*input.Username) {
		sendError(w, http.StatusBadRequest, codeValidation, "username must be 3-20 letters or digits")
		return
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if !isValidEmail(email) {
			sendError(w, http.StatusBadRequest, codeValidation, "email must be a valid email address")
			return
		}
		input.Email = &email
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	user.UpdatedAt = time.Now().UTC()

	ctx, cancel := h.requestContext(r)
	defer cancel()
	if err := h.UserRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicate):
			sendError(w, http.StatusConflict, codeConflict, "Username or email already in use")
		case errors.Is(err, db.ErrNotFound):
			sendError(w, http.StatusNotFound, codeUserNotFound, "User not found")
		default:
			log.Printf("[profile] cannot update user %s: %v", user.ID, err)
			sendError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
		}
		return
	}

	log.Printf("[profile] user updated: %s", user.Username)
	sendJSON(w, http.StatusOK, "Profile updated", map[string]any{"user": newProfileResponse(user)})
}
