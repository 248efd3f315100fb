package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"pagovecinal/config"
	"pagovecinal/models"
	"pagovecinal/services"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// AuthController handles registration and login
type AuthController struct {
	users    *services.UserService
	validate *validator.Validate
	config   *config.Config
}

// SignInRequest carries login credentials
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse carries the issued token and the account it belongs to
type AuthResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       uint   `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	} `json:"user"`
}

// NewAuthController creates a new AuthController
func NewAuthController(users *services.UserService, cfg *config.Config) *AuthController {
	return &AuthController{
		users:    users,
		validate: validator.New(),
		config:   cfg,
	}
}

// generateToken issues an HS256 token carrying the caller's identity and role
func (c *AuthController) generateToken(user *models.User) (string, error) {
	expirationTime := time.Now().Add(time.Duration(c.config.JWT.ExpiresIn) * time.Hour)
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     expirationTime.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.config.JWT.SecretKey))
}

func (c *AuthController) buildResponse(user *models.User, token string) AuthResponse {
	response := AuthResponse{Token: token}
	response.User.ID = user.ID
	response.User.Email = user.Email
	response.User.FullName = user.FullName
	response.User.Role = string(user.Role)
	return response
}

// SignUp registers a new owner account
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	var dto services.CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Self-registration never grants admin
	dto.Role = models.UserRoleOwner

	user, err := c.users.Create(dto)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := c.generateToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, c.buildResponse(user, token))
}

// SignIn exchanges credentials for a token
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := c.validate.Struct(req); err != nil {
		http.Error(w, "Invalid credentials format", http.StatusBadRequest)
		return
	}

	user, err := c.users.Authenticate(req.Email, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := c.generateToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, c.buildResponse(user, token))
}

// RegisterRoutes registers the public auth endpoints
func (c *AuthController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/signUp", c.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", c.SignIn).Methods("POST")
}
