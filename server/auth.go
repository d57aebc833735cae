package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/store"
	"github.com/OpenLabsHQ/openlabs-api/support/vault"
)

// Session cookie names. The token cookie authenticates; the enc_key
// cookie carries the master key that unwraps the user's credential
// store and is never persisted server side.
const (
	cookieToken  = "token"
	cookieEncKey = "enc_key"
)

// authHandler is a handler that requires an authenticated user.
type authHandler func(w http.ResponseWriter, r *http.Request, caller store.Scope)

// authenticated validates the JWT session cookie, resolves the user and
// passes the caller's query scope through. A token for a since-deleted
// account is rejected the same way as a bad token.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieToken)
		if err != nil {
			s.writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		userID, err := s.parseToken(cookie.Value)
		if err != nil {
			s.writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, err := s.store.GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			s.writeError(w, err)
			return
		}
		next(w, r, store.Scope{UserID: user.ID, Admin: user.Admin})
	})
}

// newToken issues a signed session token for the user.
func (s *Server) newToken(userID int64, now time.Time) (string, error) {
	expiry := now.Add(time.Duration(s.settings.AccessTokenExpireMinutes) * time.Minute)
	claims := jwt.MapClaims{
		"user": strconv.FormatInt(userID, 10),
		"exp":  expiry.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.settings.SecretKey))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// parseToken validates a session token and returns the user ID.
func (s *Server) parseToken(raw string) (int64, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.settings.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}
	sub, ok := claims["user"].(string)
	if !ok {
		return 0, errors.New("missing user claim")
	}
	return strconv.ParseInt(sub, 10, 64)
}

func (s *Server) setSessionCookies(w http.ResponseWriter, token, encKey string) {
	maxAge := s.settings.AccessTokenExpireMinutes * 60
	for name, value := range map[string]string{cookieToken: token, cookieEncKey: encKey} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{cookieToken, cookieEncKey} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// masterKey reads and decodes the enc_key cookie. The bool reports
// whether the cookie was present at all.
func (s *Server) masterKey(r *http.Request) ([]byte, bool, error) {
	cookie, err := r.Cookie(cookieEncKey)
	if err != nil {
		return nil, false, nil
	}
	key, err := base64.StdEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, true, fmt.Errorf("%w: not base64", vault.ErrInvalidEncryptionKey)
	}
	return key, true, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req v1.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.writeError(w, fmt.Errorf("hashing password: %w", err))
		return
	}
	keys, err := newUserKeys(req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.store.CreateUser(r.Context(), &store.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}, *keys)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			s.writeDetail(w, http.StatusConflict, "User with this email already exists")
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, v1.UserID{ID: id})
}

// newUserKeys generates the RSA keypair and wraps the private half
// under a master key derived from the password with a fresh salt.
func newUserKeys(password string) (*store.UserKeys, error) {
	private, public, err := vault.GenerateRSAKeyPair()
	if err != nil {
		return nil, err
	}
	masterKey, salt, err := vault.DeriveMasterKey(password, nil)
	if err != nil {
		return nil, err
	}
	wrapped, err := vault.EncryptPrivateKey(private, masterKey)
	if err != nil {
		return nil, err
	}
	return &store.UserKeys{
		PublicKey:           public,
		EncryptedPrivateKey: wrapped,
		KeySalt:             base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// BootstrapAdmin ensures the configured admin account exists. An
// already registered admin email is left untouched.
func (s *Server) BootstrapAdmin(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(s.settings.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	keys, err := newUserKeys(s.settings.AdminPassword)
	if err != nil {
		return err
	}
	id, err := s.store.CreateUser(ctx, &store.User{
		Name:         s.settings.AdminName,
		Email:        s.settings.AdminEmail,
		PasswordHash: string(hash),
		Admin:        true,
	}, *keys)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("admin account created", "email", s.settings.AdminEmail, "id", id)
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req v1.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.writeError(w, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	secrets, err := s.store.GetSecrets(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	salt, err := base64.StdEncoding.DecodeString(secrets.KeySalt)
	if err != nil {
		s.writeError(w, fmt.Errorf("decoding key salt: %w", err))
		return
	}
	masterKey, _, err := vault.DeriveMasterKey(req.Password, salt)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.newToken(user.ID, time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.TouchLastLogin(r.Context(), user.ID); err != nil {
		s.log.Error(err, "recording login", "user", user.ID)
	}

	s.setSessionCookies(w, token, base64.StdEncoding.EncodeToString(masterKey))
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookies(w)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	user, err := s.store.GetUserByID(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user.Info())
}

func (s *Server) handlePasswordUpdate(w http.ResponseWriter, r *http.Request, caller store.Scope) {
	var req v1.PasswordUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.NewPassword) < 8 {
		s.writeDetail(w, http.StatusUnprocessableEntity, "password must be at least 8 characters")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		s.writeDetail(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	secrets, err := s.store.GetSecrets(r.Context(), caller.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	salt, err := base64.StdEncoding.DecodeString(secrets.KeySalt)
	if err != nil {
		s.writeError(w, fmt.Errorf("decoding key salt: %w", err))
		return
	}
	oldKey, _, err := vault.DeriveMasterKey(req.CurrentPassword, salt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	private, err := vault.DecryptPrivateKey(secrets.EncryptedPrivateKey, oldKey)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Rewrap under a key derived from the new password with a new salt.
	newKey, newSalt, err := vault.DeriveMasterKey(req.NewPassword, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rewrapped, err := vault.EncryptPrivateKey(private, newKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.writeError(w, fmt.Errorf("hashing password: %w", err))
		return
	}

	err = s.store.UpdatePassword(r.Context(), caller.UserID, string(hash), store.UserKeys{
		PublicKey:           secrets.PublicKey,
		EncryptedPrivateKey: rewrapped,
		KeySalt:             base64.StdEncoding.EncodeToString(newSalt),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	// The old enc_key cookie is now useless.
	s.clearSessionCookies(w)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
