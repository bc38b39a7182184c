package httpapi

import (
	"errors"
	"net/http"
	"time"

	"fintrack.org/internal/audit"
	"fintrack.org/internal/auth"
	"fintrack.org/internal/obs"
)

const birthdateLayout = "2006-01-02"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reqCtx := auth.RequestContext{
		IPAddress:  clientIP(r),
		DeviceInfo: r.Header.Get("User-Agent"),
	}
	result, err := a.gateway.Login(r.Context(), req.Email, req.Password, reqCtx)
	if err != nil {
		obs.ObserveLogin("failure")
		_ = audit.Record(r.Context(), audit.Event{
			Name:   "auth.login",
			Email:  req.Email,
			Result: "denied",
			IP:     reqCtx.IPAddress,
		})
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	obs.ObserveLogin("success")
	_ = audit.Record(r.Context(), audit.Event{
		Name:         "auth.login",
		UserID:       result.User.ID,
		Result:       "granted",
		ConnectionID: result.ConnectionID,
		IP:           reqCtx.IPAddress,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Login successful",
		"access_token": result.Token,
		"expires_at":   result.ExpiresAt.UTC().Format(time.RFC3339),
		"user":         result.User,
	})
}

type registerRequest struct {
	FirstName     string `json:"first_name"`
	MiddleName    string `json:"middle_name"`
	FirstSurname  string `json:"first_surname"`
	SecondSurname string `json:"second_surname"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	PhoneNumber   string `json:"phone_number"`
	Birthdate     string `json:"birthdate"`
	Role          string `json:"role"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var birthdate time.Time
	if req.Birthdate != "" {
		parsed, err := time.Parse(birthdateLayout, req.Birthdate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "birthdate must be formatted YYYY-MM-DD")
			return
		}
		birthdate = parsed
	}

	nu := auth.NewUser{
		FirstName:     req.FirstName,
		MiddleName:    req.MiddleName,
		FirstSurname:  req.FirstSurname,
		SecondSurname: req.SecondSurname,
		Email:         req.Email,
		Password:      req.Password,
		PhoneNumber:   req.PhoneNumber,
		Birthdate:     birthdate,
	}
	if err := a.gateway.Register(r.Context(), nu, req.Role); err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			writeError(w, r, http.StatusBadRequest, "Email is already in use")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	_ = audit.Record(r.Context(), audit.Event{Name: "auth.register", Email: req.Email})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully, please verify your email",
	})
}

type refreshRequest struct {
	Token string `json:"token"`
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		if t, ok := auth.TokenFromContext(r.Context()); ok {
			req.Token = t
		}
	}
	if req.Token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	token, remaining, err := a.gateway.RefreshToken(r.Context(), req.Token)
	if err != nil {
		obs.ObserveTokenRefresh("failure")
		writeError(w, r, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	obs.ObserveTokenRefresh("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Token refreshed successfully",
		"access_token": token,
		"expires_in":   remaining,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	if err := a.gateway.SendResetLink(r.Context(), req.Email); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			obs.ObservePasswordReset("unknown_email")
			writeError(w, r, http.StatusBadRequest, "Email not found")
			return
		}
		obs.ObservePasswordReset("send_failed")
		writeError(w, r, http.StatusInternalServerError, "An error occurred while sending the reset link")
		return
	}

	obs.ObservePasswordReset("link_sent")
	_ = audit.Record(r.Context(), audit.Event{Name: "auth.reset_link", Email: req.Email})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password reset link sent successfully to " + req.Email,
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}
	if req.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "newPassword is required")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, r, http.StatusBadRequest, "newPassword must be at least 8 characters")
		return
	}

	if err := a.gateway.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			obs.ObservePasswordReset("invalid_token")
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "The new password must be different from the current password")
		default:
			writeError(w, r, http.StatusInternalServerError, "password reset failed")
		}
		return
	}

	obs.ObservePasswordReset("completed")
	_ = audit.Record(r.Context(), audit.Event{Name: "auth.reset_password"})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password reset successfully",
	})
}

type logoutRequest struct {
	ConnectionID string `json:"connection_id"`
}

// handleLogout closes out a connection-log row. Tokens stay valid until they
// expire; logout is bookkeeping, not revocation.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConnectionID == "" {
		writeError(w, r, http.StatusBadRequest, "connection_id is required")
		return
	}

	conns := a.gateway.Directory().Connections()
	entry, err := conns.Find(r.Context(), req.ConnectionID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "connection not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	if entry.UserID != userID {
		writeError(w, r, http.StatusForbidden, "You do not have permission to access this resource")
		return
	}
	if err := conns.SetLogoutTime(r.Context(), req.ConnectionID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}

	_ = audit.Record(r.Context(), audit.Event{Name: "auth.logout", ConnectionID: req.ConnectionID})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Logout recorded successfully",
	})
}
