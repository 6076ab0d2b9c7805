// Package models contains the wire models exchanged with the reservation service.
package models

// User is the authenticated account as returned by /users/me.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	CreatedAt   string `json:"createdAt"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued credential pair.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenReissueRequest is the body of POST /auth/reissue.
type TokenReissueRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdateUserRequest is the body of PATCH /users/me. Only changed fields are set.
type UpdateUserRequest struct {
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
}

// DeleteAccountRequest is the body of DELETE /auth/withdraw.
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// RecommendationRequest is the body of POST /recommendations.
type RecommendationRequest struct {
	Query string `json:"query"`
}

// Page is the paginated list wrapper used by list endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}
