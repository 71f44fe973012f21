package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/pbaille/learnlog/internal/domain"
	"github.com/pbaille/learnlog/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultOTPTTL  = 10 * time.Minute
	maxOTPAttempts = 5
	otpDigits      = 6

	// OTPSentMessage is returned whenever a new code was issued
	OTPSentMessage = "OTP sent to your email"
)

// OTPSender delivers a verification code to an email address
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// LogSender writes codes to the server log. It is the default when no
// mail transport is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (l LogSender) SendOTP(ctx context.Context, email, code string) error {
	l.Logger.Info("verification code issued", zap.String("email", email), zap.String("code", code))
	return nil
}

// GenerateOTPRequest asks for a fresh code
type GenerateOTPRequest struct {
	UserID string `json:"userId"`
}

// VerifyOTPRequest submits a code for checking
type VerifyOTPRequest struct {
	UserID     string `json:"userId"`
	EnteredOTP string `json:"enteredOTP"`
}

// VerifyOTPResponse reports whether the code matched; on a match it carries
// the issued token.
type VerifyOTPResponse struct {
	Result bool         `json:"result"`
	Token  string       `json:"token,omitempty"`
	User   *domain.User `json:"user,omitempty"`
}

func newOTP() (string, error) {
	limit := big.NewInt(1)
	for range otpDigits {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// sendOTP stores a fresh code for user and hands it to the sender
func (s *Server) sendOTP(ctx context.Context, user *domain.User) error {
	code, err := newOTP()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	if err := s.store.SaveOTP(user.ID, string(hash), time.Now().Add(s.otpTTL)); err != nil {
		return err
	}
	if err := s.otps.SendOTP(ctx, user.Email, code); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// challenge issues a code and answers without a token
func (s *Server) challenge(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	if err := s.sendOTP(r.Context(), user); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, status, AuthResponse{User: user, Email: user.Email, Message: OTPSentMessage})
}

func (s *Server) generateOTP(w http.ResponseWriter, r *http.Request) {
	var req GenerateOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	user, err := s.store.UserByID(req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	if user.Verified {
		writeError(w, http.StatusBadRequest, "email already verified")
		return
	}

	if err := s.sendOTP(r.Context(), user); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": OTPSentMessage})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	pending, err := s.store.OTP(req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "no pending OTP, request a new one")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	if time.Now().After(pending.ExpiresAt) {
		s.dropOTP(req.UserID)
		writeError(w, http.StatusBadRequest, "OTP expired, request a new one")
		return
	}

	code := strings.TrimSpace(req.EnteredOTP)
	if bcrypt.CompareHashAndPassword([]byte(pending.CodeHash), []byte(code)) != nil {
		attempts, err := s.store.RecordOTPFailure(req.UserID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		if attempts >= maxOTPAttempts {
			s.dropOTP(req.UserID)
			writeError(w, http.StatusBadRequest, "too many attempts, request a new OTP")
			return
		}
		writeJSON(w, http.StatusOK, VerifyOTPResponse{Result: false})
		return
	}

	if err := s.store.MarkVerified(req.UserID); err != nil {
		s.internalError(w, err)
		return
	}
	user, err := s.store.UserByID(req.UserID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	token, err := s.store.CreateToken(user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyOTPResponse{Result: true, Token: token, User: user})
}

func (s *Server) dropOTP(userID string) {
	if err := s.store.DeleteOTP(userID); err != nil {
		s.logger.Warn("drop otp", zap.String("user", userID), zap.Error(err))
	}
}
