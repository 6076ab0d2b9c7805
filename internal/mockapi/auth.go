package mockapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spacebook/client/internal/models"
)

type contextKey string

const userIDKey contextKey = "user_id"

// authenticated rejects requests without a current access token with 401.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeFailure(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := s.tokens.parseAccess(raw)
		if err != nil {
			if errors.Is(err, errTokenExpired) {
				writeFailure(w, http.StatusUnauthorized, "access token expired")
				return
			}
			writeFailure(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		s.mu.Lock()
		current := s.generation
		acct := s.accounts[claims.UserID]
		s.mu.Unlock()

		if claims.Generation != current {
			writeFailure(w, http.StatusUnauthorized, "access token expired")
			return
		}
		if acct == nil || acct.deleted {
			writeFailure(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

func userID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

// issuePair rotates the user's refresh token. Callers hold s.mu.
func (s *Server) issuePair(id int64) (*models.TokenResponse, error) {
	access, err := s.tokens.access(id, s.generation)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.refresh(id)
	if err != nil {
		return nil, err
	}
	s.refreshTokens[id] = refresh
	return &models.TokenResponse{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeBody(r, &req) {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" || req.PhoneNumber == "" {
		writeFailure(w, http.StatusBadRequest, "username, email, password and phone number are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "could not create account")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[strings.ToLower(req.Email)]; exists {
		writeFailure(w, http.StatusConflict, "email already in use")
		return
	}

	s.nextUserID++
	acct := &account{
		User: models.User{
			ID:          s.nextUserID,
			Username:    req.Username,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
			CreatedAt:   s.now().Format(timeLayout),
		},
		passwordHash: hash,
	}
	s.accounts[acct.ID] = acct
	s.emails[strings.ToLower(req.Email)] = acct.ID

	pair, err := s.issuePair(acct.ID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	s.logger.Debug("account created", zap.Int64("user_id", acct.ID))
	writeData(w, http.StatusCreated, pair)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeBody(r, &req) {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	acct := s.accounts[id]
	if acct.deleted {
		writeFailure(w, http.StatusForbidden, "this account has been deleted")
		return
	}
	if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		writeFailure(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	pair, err := s.issuePair(id)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	writeData(w, http.StatusOK, pair)
}

func (s *Server) handleReissue(w http.ResponseWriter, r *http.Request) {
	s.reissues.Add(1)

	var req models.TokenReissueRequest
	if !decodeBody(r, &req) || req.RefreshToken == "" {
		writeFailure(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	claims, err := s.tokens.parseRefresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			writeFailure(w, http.StatusUnauthorized, "refresh token expired")
			return
		}
		writeFailure(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.accounts[claims.UserID]
	if acct == nil || acct.deleted {
		writeFailure(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	stored, ok := s.refreshTokens[claims.UserID]
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "refresh token revoked")
		return
	}
	if stored != req.RefreshToken {
		writeFailure(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	pair, err := s.issuePair(claims.UserID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "could not issue tokens")
		return
	}
	s.logger.Debug("tokens reissued", zap.Int64("user_id", claims.UserID))
	writeData(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.refreshTokens, userID(r))
	s.mu.Unlock()

	writeData(w, http.StatusOK, nil)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteAccountRequest
	if !decodeBody(r, &req) || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "password is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.accounts[userID(r)]
	if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		writeFailure(w, http.StatusBadRequest, "password does not match")
		return
	}
	for _, b := range s.bookings {
		if b.UserID == acct.ID && b.ReservationStatus == models.ReservationConfirmed {
			writeFailure(w, http.StatusConflict, "cancel your confirmed reservations before withdrawing")
			return
		}
	}

	acct.deleted = true
	delete(s.refreshTokens, acct.ID)
	delete(s.emails, strings.ToLower(acct.Email))
	writeData(w, http.StatusOK, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user := s.accounts[userID(r)].User
	s.mu.Unlock()

	writeData(w, http.StatusOK, user)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if !decodeBody(r, &req) {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if (req.CurrentPassword == "") != (req.NewPassword == "") {
		writeFailure(w, http.StatusBadRequest, "both the current and the new password are required to change it")
		return
	}
	if req.NewPassword != "" && req.NewPassword == req.CurrentPassword {
		writeFailure(w, http.StatusBadRequest, "the new password must differ from the current one")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.accounts[userID(r)]
	if req.NewPassword != "" {
		if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.CurrentPassword)) != nil {
			writeFailure(w, http.StatusBadRequest, "current password does not match")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, "could not update password")
			return
		}
		acct.passwordHash = hash
	}
	if req.PhoneNumber != "" {
		acct.PhoneNumber = req.PhoneNumber
	}

	writeData(w, http.StatusOK, acct.User)
}
