package authtest

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"portfolio-console/internal/domain/auth"
	"portfolio-console/internal/pkg/jwt"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = errors.New("Incorrect email or password")
	errInvalidCode        = errors.New("Invalid verification code")
	errAccountInactive    = errors.New("Account is inactive")
)

// Account seeds a user into the fake API.
type Account struct {
	Email      string
	Username   string
	FullName   string
	Password   string
	Superuser  bool
	Inactive   bool
	TOTPSecret string // non-empty enables TOTP
	Email2FA   bool
}

type account struct {
	user          auth.User
	passwordHash  []byte
	totpSecret    string
	pendingSecret string
	backupCodes   map[string]bool
}

// authService holds accounts and issues tokens the way the real API does.
type authService struct {
	jwt    *jwt.Manager
	logger *zap.Logger

	mu         sync.Mutex
	accounts   map[int64]*account
	nextID     int64
	emailCodes map[int64]string
	outbox     map[string][]string
}

func newAuthService(manager *jwt.Manager, logger *zap.Logger) *authService {
	return &authService{
		jwt:        manager,
		logger:     logger,
		accounts:   make(map[int64]*account),
		nextID:     1,
		emailCodes: make(map[int64]string),
		outbox:     make(map[string][]string),
	}
}

func (s *authService) addAccount(a Account) (*auth.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	u := auth.User{
		ID:              id,
		Email:           a.Email,
		Username:        a.Username,
		IsActive:        !a.Inactive,
		IsSuperuser:     a.Superuser,
		Email2FAEnabled: a.Email2FA,
		TOTPEnabled:     a.TOTPSecret != "",
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	if a.FullName != "" {
		name := a.FullName
		u.FullName = &name
	}

	s.accounts[id] = &account{
		user:         u,
		passwordHash: hash,
		totpSecret:   a.TOTPSecret,
		backupCodes:  make(map[string]bool),
	}
	c := u
	return &c, nil
}

func (s *authService) findByIdentifier(identifier string) *account {
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, identifier) || a.user.Username == identifier {
			return a
		}
	}
	return nil
}

func (s *authService) login(identifier, password string) (*auth.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.findByIdentifier(identifier)
	if acct == nil {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !acct.user.IsActive {
		return nil, errAccountInactive
	}

	if methods := acct.methods(); len(methods) > 0 {
		temp, _, err := s.jwt.Generator.GenerateTempToken(acct.user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to generate temp token: %w", err)
		}
		if acct.user.Email2FAEnabled {
			s.sendEmailCodeLocked(acct)
		}
		return &auth.LoginResponse{
			TokenType:           "bearer",
			Requires2FA:         true,
			TempToken:           temp,
			Available2FAMethods: methods,
		}, nil
	}

	return s.issueLocked(acct)
}

func (a *account) methods() []string {
	var methods []string
	if a.user.TOTPEnabled {
		methods = append(methods, auth.MethodTOTP)
	}
	if a.user.Email2FAEnabled {
		methods = append(methods, auth.MethodEmail)
	}
	if len(methods) > 0 && len(a.backupCodes) > 0 {
		methods = append(methods, auth.MethodBackup)
	}
	return methods
}

func (s *authService) issueLocked(acct *account) (*auth.LoginResponse, error) {
	token, _, err := s.jwt.Generator.GenerateAccessToken(acct.user.ID, acct.user.IsSuperuser)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	acct.user.LastLogin = &now
	u := acct.user
	return &auth.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        &u,
	}, nil
}

func (s *authService) verify2FA(tempToken, code string) (*auth.LoginResponse, error) {
	claims, err := s.jwt.Verifier.VerifyTempToken(tempToken)
	if err != nil {
		return nil, fmt.Errorf("Invalid or expired temporary token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[claims.UserID]
	if !ok {
		return nil, errInvalidCredentials
	}

	code = strings.TrimSpace(code)
	switch {
	case strings.Contains(code, "-"):
		if !acct.backupCodes[code] {
			return nil, errInvalidCode
		}
		delete(acct.backupCodes, code)
	case acct.user.TOTPEnabled && totp.Validate(code, acct.totpSecret):
	case acct.user.Email2FAEnabled && s.emailCodes[acct.user.ID] != "" && s.emailCodes[acct.user.ID] == code:
		delete(s.emailCodes, acct.user.ID)
	default:
		return nil, errInvalidCode
	}

	return s.issueLocked(acct)
}

func (s *authService) requestEmailCode(tempToken string) error {
	claims, err := s.jwt.Verifier.VerifyTempToken(tempToken)
	if err != nil {
		return fmt.Errorf("Invalid or expired temporary token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[claims.UserID]
	if !ok || !acct.user.Email2FAEnabled {
		return fmt.Errorf("Email two-factor authentication is not enabled")
	}
	s.sendEmailCodeLocked(acct)
	return nil
}

func (s *authService) sendEmailCodeLocked(acct *account) {
	code := randomDigits(6)
	s.emailCodes[acct.user.ID] = code
	s.outbox[acct.user.Email] = append(s.outbox[acct.user.Email], code)
	s.logger.Debug("email code sent", zap.String("email", acct.user.Email))
}

func (s *authService) refresh(userID int64) (*auth.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok || !acct.user.IsActive {
		return nil, errAccountInactive
	}
	return s.issueLocked(acct)
}

func (s *authService) user(userID int64) (*auth.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return nil, false
	}
	u := acct.user
	return &u, true
}

func (s *authService) checkPassword(userID int64, password string) (*account, error) {
	acct, ok := s.accounts[userID]
	if !ok {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, fmt.Errorf("Incorrect password")
	}
	return acct, nil
}

func (s *authService) enableTOTP(userID int64, password string) (*auth.EnableTOTPResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.checkPassword(userID, password)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Portfolio", AccountName: acct.user.Email})
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}
	acct.pendingSecret = key.Secret()

	codes := make([]string, 8)
	for i := range codes {
		codes[i] = randomDigits(4) + "-" + randomDigits(4)
		acct.backupCodes[codes[i]] = true
	}

	return &auth.EnableTOTPResponse{
		Secret:      key.Secret(),
		QRCode:      key.URL(),
		BackupCodes: codes,
	}, nil
}

func (s *authService) verifyTOTP(userID int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok || acct.pendingSecret == "" {
		return fmt.Errorf("TOTP setup has not been started")
	}
	if !totp.Validate(code, acct.pendingSecret) {
		return errInvalidCode
	}
	acct.totpSecret = acct.pendingSecret
	acct.pendingSecret = ""
	acct.user.TOTPEnabled = true
	return nil
}

func (s *authService) disableTOTP(userID int64, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.checkPassword(userID, password)
	if err != nil {
		return err
	}
	acct.totpSecret = ""
	acct.user.TOTPEnabled = false
	if !acct.user.Email2FAEnabled {
		acct.backupCodes = make(map[string]bool)
	}
	return nil
}

func (s *authService) setEmail2FA(userID int64, password string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.checkPassword(userID, password)
	if err != nil {
		return err
	}
	acct.user.Email2FAEnabled = enabled
	return nil
}

func (s *authService) changePassword(userID int64, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.checkPassword(userID, current)
	if err != nil {
		return fmt.Errorf("Current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	acct.passwordHash = hash
	return nil
}

func (s *authService) sentCodes(email string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.outbox[email]...)
}

func randomDigits(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String()
}
