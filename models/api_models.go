package models

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// request for the register endpoint
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// request for the login endpoint
type LoginRequest struct {
	Token string `json:"token"`
}

// response for register and login
type AuthResponse struct {
	UID     string `json:"uid"`
	Message string `json:"message"`
}

// response for user creation and bulk upload
type MessageResponse struct {
	Message string `json:"message"`
}
