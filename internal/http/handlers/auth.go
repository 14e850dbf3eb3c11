package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/secondchance/internal/config"
	"github.com/geocoder89/secondchance/internal/domain/user"
	"github.com/geocoder89/secondchance/internal/http/middlewares"
	"github.com/geocoder89/secondchance/internal/security"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Update(ctx context.Context, u user.User) error
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type AuthHandler struct {
	users  UserStore
	tokens TokenIssuer
	log    *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(users UserStore, tokens TokenIssuer, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{
		users:  users,
		tokens: tokens,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	email := user.NormalizeEmail(req.Email)

	_, err := h.users.GetByEmail(cctx, email)
	if err == nil {
		RespondError(ctx, http.StatusBadRequest, "email_taken", "Email id already exists", nil)
		return
	}
	if !errors.Is(err, user.ErrNotFound) {
		h.log.ErrorContext(cctx, "register_lookup_failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	if req.Password == "" {
		RespondValidation(ctx, "Invalid request body", []string{"password"})
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		h.log.ErrorContext(cctx, "password_hash_failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.users.Create(cctx, user.NewFromRegisterRequest(req, hash, h.now()))
	if err != nil {
		// lost a race with a concurrent registration of the same email
		if errors.Is(err, user.ErrEmailTaken) {
			RespondError(ctx, http.StatusBadRequest, "email_taken", "Email id already exists", nil)
			return
		}

		h.log.ErrorContext(cctx, "register_insert_failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		h.log.ErrorContext(cctx, "token_issue_failed", "err", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.log.InfoContext(cctx, "user_registered", "user_id", u.ID)

	ctx.JSON(http.StatusOK, gin.H{
		"authtoken": token,
		"email":     u.Email,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	found, err := h.users.GetByEmail(cctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondError(ctx, http.StatusNotFound, "invalid_credentials", "User not found", nil)
			return
		}

		h.log.ErrorContext(cctx, "login_lookup_failed", "err", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.Password); err != nil {
		RespondError(ctx, http.StatusNotFound, "invalid_credentials", "Wrong password", nil)
		return
	}

	token, err := h.tokens.Issue(found.ID)
	if err != nil {
		h.log.ErrorContext(cctx, "token_issue_failed", "err", err, "user_id", found.ID)
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"authtoken": token,
		"userName":  found.FirstName,
		"userEmail": found.Email,
	})
}

// Update changes the profile of the user the bearer token belongs to. The
// legacy email header, when sent, has to name that same user.
func (h *AuthHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing or invalid access token")
		return
	}

	var req user.UpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if empty := req.EmptyFields(); len(empty) > 0 {
		RespondValidation(ctx, "Fields must not be empty", empty)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.ErrorContext(cctx, "update_lookup_failed", "err", err, "user_id", userID)
		RespondInternal(ctx, "Could not update user")
		return
	}

	if hdr := ctx.GetHeader("email"); hdr != "" && user.NormalizeEmail(hdr) != u.Email {
		RespondForbidden(ctx, "Email header does not match the authenticated user")
		return
	}

	req.Apply(&u, h.now())

	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)
		if err != nil {
			h.log.ErrorContext(cctx, "password_hash_failed", "err", err)
			RespondInternal(ctx, "Could not update user")
			return
		}
		u.PasswordHash = hash
	}

	if err := h.users.Update(cctx, u); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.ErrorContext(cctx, "update_persist_failed", "err", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not update user")
		return
	}

	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		h.log.ErrorContext(cctx, "token_issue_failed", "err", err, "user_id", u.ID)
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"authtoken": token})
}
