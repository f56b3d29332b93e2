package service

import (
	"errors"
	"fmt"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidQRPayload is returned for payloads that fail signature, expiry or shape checks.
var ErrInvalidQRPayload = errors.New("invalid QR payload")

// QRTokenService implements ports.QRCodec using HS256 JWT. The token is the
// content of the scannable code.
type QRTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// NewQRTokenService creates a new QR payload codec.
func NewQRTokenService(secret string, expiry time.Duration, issuer string) *QRTokenService {
	return &QRTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		now:    time.Now,
	}
}

var _ ports.QRCodec = (*QRTokenService)(nil)

// Encode signs claims and returns the payload with its expiry.
func (s *QRTokenService) Encode(c ports.QRClaims) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := jwt.MapClaims{
		"sub": c.PaymentID,
		"rcp": c.RecipientID,
		"amt": c.Amount,
		"cur": string(c.Currency),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
		"iss": s.issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing QR payload: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies the payload and returns its claims.
func (s *QRTokenService) Decode(payload string) (*ports.QRClaims, error) {
	token, err := jwt.Parse(payload, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQRPayload, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unreadable claims", ErrInvalidQRPayload)
	}

	paymentID, _ := claims["sub"].(string)
	recipient, _ := claims["rcp"].(string)
	amount, _ := claims["amt"].(float64)
	cur, _ := claims["cur"].(string)
	currency, known := domain.ParseCurrency(cur)
	if paymentID == "" || recipient == "" || amount <= 0 || !known {
		return nil, fmt.Errorf("%w: missing payment fields", ErrInvalidQRPayload)
	}

	return &ports.QRClaims{
		PaymentID:   paymentID,
		RecipientID: recipient,
		Amount:      int64(amount),
		Currency:    currency,
	}, nil
}
