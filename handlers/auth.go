package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"timesheets/middleware"
	"timesheets/models"
)

type AuthHandler struct {
	db   *gorm.DB
	auth *middleware.Auth
}

func NewAuthHandler(db *gorm.DB, auth *middleware.Auth) *AuthHandler {
	return &AuthHandler{
		db:   db,
		auth: auth,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token              string       `json:"token"`
	User               *models.User `json:"user"`
	MustChangePassword bool         `json:"must_change_password"`
	AvatarURL          string       `json:"avatar_url"`
}

const avatarSize = 80

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=5"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.Expiration().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).
		Preload("Roles").
		Where("username = ?", req.Username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		respondError(w, http.StatusUnauthorized, "account is not active")
		return
	}

	token, err := h.auth.GenerateToken(&user)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.setTokenCookie(w, token)

	slog.InfoContext(r.Context(), "user logged in", "user_id", user.ID, "username", user.Username)
	respondData(w, http.StatusOK, loginResponse{
		Token:              token,
		User:               &user,
		MustChangePassword: user.MustChangePassword,
		AvatarURL:          user.GravatarURL(avatarSize),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "current password is incorrect")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	err = h.db.WithContext(r.Context()).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"password_hash":        string(hashedPassword),
			"must_change_password": false,
		}).Error
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	user.PasswordHash = string(hashedPassword)
	user.MustChangePassword = false

	// Regenerate token with updated user info
	token, err := h.auth.GenerateToken(user)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.setTokenCookie(w, token)

	respondData(w, http.StatusOK, loginResponse{Token: token, User: user, AvatarURL: user.GravatarURL(avatarSize)})
}
