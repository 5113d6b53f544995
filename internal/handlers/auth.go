package handlers

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/go-todo-tracker/internal/db"
	"github.com/chepyr/go-todo-tracker/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9]{3,20}$`)
)

const passwordSpecials = "@$!%*?&"

type registerInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type userResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var input registerInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if msg := validateRegister(input); msg != "" {
		sendError(w, http.StatusBadRequest, codeValidation, msg)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[auth] error hashing password: %v", err)
		sendError(w, http.StatusInternalServerError, codeInternal, "Cannot hash password")
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()
	if err := h.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			sendError(w, http.StatusConflict, codeConflict, "Username or email already in use")
			return
		}
		log.Printf("[auth] cannot save user %s: %v", user.Username, err)
		sendError(w, http.StatusInternalServerError, codeInternal, "Cannot save user")
		return
	}

	log.Printf("[auth] user registered: %s", user.Username)
	sendJSON(w, http.StatusCreated, "Registration successful", map[string]any{
		"user": userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || input.Password == "" {
		sendError(w, http.StatusBadRequest, codeValidation, "username and password are required")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	// the same message for unknown users and wrong passwords
	user, err := h.UserRepo.GetByLogin(ctx, input.Username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Printf("[auth] error retrieving user %s: %v", input.Username, err)
		}
		sendError(w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		log.Printf("[auth] invalid password for %s", input.Username)
		sendError(w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid username or password")
		return
	}

	token, expires, err := h.generateToken(user.ID)
	if err != nil {
		log.Printf("[auth] error generating token: %v", err)
		sendError(w, http.StatusInternalServerError, codeInternal, "Cannot create token")
		return
	}

	log.Printf("[auth] user logged in: %s", user.Username)
	sendJSON(w, http.StatusOK, "Login successful", map[string]any{
		"user":      userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		"token":     token,
		"expiresAt": formatTime(expires),
	})
}

// validateRegister returns the first problem with input, or "".
func validateRegister(input registerInput) string {
	switch {
	case !usernameRegex.MatchString(input.Username):
		return "username must be 3-20 letters or digits"
	case !isValidEmail(input.Email):
		return "email must be a valid email address"
	case len(input.Password) < 8:
		return "password must be at least 8 characters long"
	case !strongPassword(input.Password):
		return "password must contain upper and lower case letters, a digit and one of " + passwordSpecials
	case input.ConfirmPassword != input.Password:
		return "confirmPassword does not match password"
	}
	return ""
}

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func strongPassword(p string) bool {
	var lower, upper, digit, special bool
	for _, c := range p {
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		}
	}
	return lower && upper && digit && special
}
