package rest

import (
	"context"
	"net/http"

	"digitalMenu/business/user"
	"digitalMenu/domain"
	"digitalMenu/pkg/logger"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type UserService interface {
	Register(ctx context.Context, req user.RegisterRequest) (domain.User, error)
	Login(ctx context.Context, email, password string) (string, domain.User, error)
	Logout(ctx context.Context, p domain.Principal) error
	VerifyEmail(ctx context.Context, verificationCodeEncrypt string) error
}

type UserHandler struct {
	base
	userService UserService
}

func NewUserHandler(userService UserService) *UserHandler {
	return &UserHandler{base: newBase(), userService: userService}
}

type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *UserHandler) Register(c echo.Context) error {
	var req user.RegisterRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.userService.Register(ctx, req)
	if err != nil {
		logger.Error("Failed to register user", err)
		return err
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(map[string]any{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    u,
	}))
}

func (h *UserHandler) Login(c echo.Context) error {
	var req UserLoginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	token, u, err := h.userService.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]any{
		"token": token,
		"user":  u,
	}))
}

func (h *UserHandler) Logout(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.userService.Logout(ctx, session(c).Principal); err != nil {
		logger.Error("Failed to logout user", err)
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("Logout successful"))
}

func (h *UserHandler) VerifyEmail(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.userService.VerifyEmail(ctx, c.Param("code")); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("Successfully verified email"))
}
