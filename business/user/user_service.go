package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"digitalMenu/domain"
	"digitalMenu/pkg/logger"
	"digitalMenu/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/pobyzaarif/goshortcute"
)

// UserRepository contract interface
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uint) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateEmailVerification(ctx context.Context, id uint, isVerified bool) error
}

// NotificationRepository contract interface
type NotificationRepository interface {
	SendEmail(toName, toEmail, subject, message string) (err error)
}

// SessionStore keeps issued tokens so logout can revoke them before expiry.
type SessionStore interface {
	StoreSession(ctx context.Context, userID uint, role domain.Role, token string, ttl time.Duration) error
	RevokeSession(ctx context.Context, userID uint) error
}

type TokenIssuer interface {
	GenerateJWT(userID, role string) (string, error)
	TTL() time.Duration
}

type UserService struct {
	userRepo                UserRepository
	validate                *validator.Validate
	notifRepo               NotificationRepository
	sessions                SessionStore
	tokens                  TokenIssuer
	appEmailVerificationKey string
	appDeploymentUrl        string
	now                     func() time.Time
}

const (
	verificationCodeTTL      = 15
	SubjectRegisterAccount   = "Confirm your account"
	EmailBodyRegisterAccount = `Hi %v, confirm your account by opening the link below</br></br>%v</br>The link is valid for %v minutes.`
)

var errInvalidVerification = domain.NewError(domain.CodeValidation, "invalid or expired url")

func NewUserService(
	userRepo UserRepository,
	validate *validator.Validate,
	notifRepo NotificationRepository,
	sessions SessionStore,
	tokens TokenIssuer,
	appEmailVerificationKey string,
	appDeploymentUrl string,
) *UserService {
	return &UserService{
		userRepo:                userRepo,
		validate:                validate,
		notifRepo:               notifRepo,
		sessions:                sessions,
		tokens:                  tokens,
		appEmailVerificationKey: appEmailVerificationKey,
		appDeploymentUrl:        appDeploymentUrl,
		now:                     time.Now,
	}
}

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (s *UserService) Register(ctx context.Context, req RegisterRequest) (domain.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		logger.Warn("Invalid registration", "error", err)
		return domain.User{}, domain.WrapError(domain.CodeValidation, err, "full name, a valid email and a password of at least 6 characters are required")
	}

	// Check if email already exists
	existingUser, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err == nil && existingUser.ID > 0 {
		return domain.User{}, domain.NewError(domain.CodeValidation, "email already exists")
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		logger.Error("Failed to hash password", err)
		return domain.User{}, domain.Upstream(err, "hash password")
	}

	newUser := domain.User{
		FullName:   req.FullName,
		Email:      req.Email,
		Password:   string(passwordHash),
		IsVerified: false,
		Role:       domain.RoleCustomer,
	}

	if err := s.userRepo.Create(ctx, &newUser); err != nil {
		logger.Error("Failed to create new user", err)
		return domain.User{}, domain.Upstream(err, "create user")
	}

	link, err := s.verificationLink(newUser.Email)
	if err != nil {
		logger.Error("Failed to build verification link", err)
	} else {
		err = s.notifRepo.SendEmail(newUser.FullName, newUser.Email, SubjectRegisterAccount, fmt.Sprintf(EmailBodyRegisterAccount, newUser.FullName, link, verificationCodeTTL))
		if err != nil {
			logger.Warn("Failed to send verification email", "user_id", newUser.ID, "error", err)
		}
	}

	newUser.Password = ""
	return newUser, nil
}

func (s *UserService) verificationLink(email string) (string, error) {
	expAt := s.now().Add(verificationCodeTTL * time.Minute).Unix()

	verificationCode := fmt.Sprintf("%v|%v", email, expAt)
	encrypted, err := goshortcute.AESCBCEncrypt([]byte(verificationCode), []byte(s.appEmailVerificationKey))
	if err != nil {
		return "", err
	}
	return s.appDeploymentUrl + "/api/v1/users/email-verification/" + goshortcute.StringtoBase64Encode(encrypted), nil
}

// Login checks the credentials and issues a token that stays valid until it
// expires or the user logs out.
func (s *UserService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.User{}, domain.NewError(domain.CodeAuthenticationRequired, "invalid email or password")
		}
		return "", domain.User{}, err
	}

	if !utils.CheckPassword(password, user.Password) {
		logger.Warn("User password incorrect", "user_id", user.ID)
		return "", domain.User{}, domain.NewError(domain.CodeAuthenticationRequired, "invalid email or password")
	}

	if !user.IsVerified {
		return "", domain.User{}, domain.NewError(domain.CodeForbidden, "email address has not been verified")
	}

	role := domain.NormalizeRole(string(user.Role))
	token, err := s.tokens.GenerateJWT(strconv.FormatUint(uint64(user.ID), 10), string(role))
	if err != nil {
		logger.Error("Failed to generate token", err)
		return "", domain.User{}, domain.Upstream(err, "generate token")
	}

	if err := s.sessions.StoreSession(ctx, user.ID, role, token, s.tokens.TTL()); err != nil {
		logger.Error("Failed to store session", err)
		return "", domain.User{}, domain.Upstream(err, "store session")
	}

	user.Role = role
	user.Password = ""
	return token, user, nil
}

func (s *UserService) Logout(ctx context.Context, p domain.Principal) error {
	if p.UserID == nil || p.IsTableSession() {
		return domain.NewError(domain.CodeAuthenticationRequired, "not signed in")
	}
	if err := s.sessions.RevokeSession(ctx, *p.UserID); err != nil {
		return domain.Upstream(err, "revoke session")
	}
	return nil
}

func (s *UserService) VerifyEmail(ctx context.Context, verificationCodeEncrypt string) error {
	strDecode := goshortcute.StringtoBase64Decode(verificationCodeEncrypt)
	verificationCodeDecrypt, err := goshortcute.AESCBCDecrypt([]byte(strDecode), []byte(s.appEmailVerificationKey))
	if err != nil {
		logger.Warn("Verifying email error", "error", err)
		return errInvalidVerification
	}

	verificationCode := strings.Split(verificationCodeDecrypt, "|")
	if len(verificationCode) != 2 {
		return errInvalidVerification
	}

	ts, err := strconv.ParseInt(verificationCode[1], 10, 64)
	if err != nil {
		return errInvalidVerification
	}
	if s.now().After(time.Unix(ts, 0)) {
		return errInvalidVerification
	}

	user, err := s.userRepo.FindByEmail(ctx, verificationCode[0])
	if err != nil {
		logger.Warn("Verifying email error", "error", err)
		return errInvalidVerification
	}

	if user.IsVerified {
		logger.Warn("Email verified already", "user_id", user.ID)
		return errInvalidVerification
	}

	if err := s.userRepo.UpdateEmailVerification(ctx, user.ID, true); err != nil {
		logger.Error("Verify email err", err)
		return domain.Upstream(err, "verify email")
	}

	return nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	user.Password = ""
	return user, nil
}
