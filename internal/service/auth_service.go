package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"minimall/config"
	"minimall/internal/auth"
	"minimall/internal/models"
	"minimall/pkg/wxcrypto"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore is implemented by repository.UserRepository.
type UserStore interface {
	Create(u *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByOpenID(openid string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Update(u *models.User) error
}

// AuthService handles mini-program session establishment (code2session) and
// the admin dashboard login.
type AuthService struct {
	cfg   *config.Config
	users UserStore
	httpc *http.Client
}

func NewAuthService(cfg *config.Config, users UserStore) *AuthService {
	return &AuthService{
		cfg:   cfg,
		users: users,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

type code2SessionResp struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// WxLogin exchanges the mini-program login code for an openid and session
// key, upserts the user and issues a JWT. The session key is stored because
// later payload decryption (e.g. phone number) needs it.
func (s *AuthService) WxLogin(ctx context.Context, code string) (string, *models.User, error) {
	base := strings.TrimRight(s.cfg.WechatApp.BaseURL, "/")
	url := fmt.Sprintf("%s/sns/jscode2session?appid=%s&secret=%s&js_code=%s&grant_type=authorization_code",
		base, s.cfg.WechatApp.AppID, s.cfg.WechatApp.AppSecret, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("code2session: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("code2session: %w", err)
	}
	var out code2SessionResp
	if err := json.Unmarshal(body, &out); err != nil {
		return "", nil, fmt.Errorf("code2session: %w", err)
	}
	if out.OpenID == "" {
		return "", nil, fmt.Errorf("code2session rejected: %d %s", out.ErrCode, out.ErrMsg)
	}

	user, err := s.users.GetByOpenID(out.OpenID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &models.User{
			OpenID:     &out.OpenID,
			SessionKey: out.SessionKey,
			Username:   "wx_" + out.OpenID,
			Role:       models.RoleUser,
		}
		if err := s.users.Create(user); err != nil {
			return "", nil, err
		}
	} else if err != nil {
		return "", nil, err
	} else {
		user.SessionKey = out.SessionKey
		if err := s.users.Update(user); err != nil {
			return "", nil, err
		}
	}

	token, err := auth.GenerateToken(&s.cfg.JWT, user.ID, out.OpenID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// DecryptPhone recovers the user's phone number from the encrypted blob the
// mini-program supplies, using the session key stored at login, and persists
// it. The decryptor itself is payload-agnostic; field extraction happens here.
func (s *AuthService) DecryptPhone(userID uint, encryptedData, iv string) (string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user.SessionKey == "" {
		return "", fmt.Errorf("%w: no session key on file", wxcrypto.ErrDecrypt)
	}
	obj, err := wxcrypto.Decrypt(encryptedData, iv, user.SessionKey)
	if err != nil {
		return "", err
	}
	phone, _ := obj["phoneNumber"].(string)
	if phone == "" {
		phone, _ = obj["purePhoneNumber"].(string)
	}
	if phone == "" {
		return "", fmt.Errorf("%w: payload has no phone number", wxcrypto.ErrDecrypt)
	}
	user.Phone = phone
	if err := s.users.Update(user); err != nil {
		return "", err
	}
	return phone, nil
}

// AdminLogin authenticates a dashboard user by username and password.
func (s *AuthService) AdminLogin(username, password string) (string, *models.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !user.IsAdmin() {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := auth.GenerateToken(&s.cfg.JWT, user.ID, "", user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
