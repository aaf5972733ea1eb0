package api

import (
	"net/http"
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/store"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Pic      string `json:"pic"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	protocol.User
	Token string `json:"token"`
}

func (a *API) authResponse(u *store.User) (AuthResponse, error) {
	token, err := a.tokens.Generate(u.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{User: u.Public(), Token: token}, nil
}

// Register creates an account and returns it with a session token.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Please enter all the details")
		return
	}

	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.store.CreateUser(r.Context(), req.Name, req.Email, hash, req.Pic)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp, err := a.authResponse(user)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("user registered", "user", user.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// Login checks credentials and returns a session token.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := a.store.UserByEmail(r.Context(), req.Email)
	if err != nil || !a.hasher.Verify(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	resp, err := a.authResponse(user)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AllUsers searches other users by name or email (?search=).
func (a *API) AllUsers(w http.ResponseWriter, r *http.Request) {
	a.searchUsers(w, r, r.URL.Query().Get("search"), false)
}

// SearchUsers searches other users by name only (?name=).
func (a *API) SearchUsers(w http.ResponseWriter, r *http.Request) {
	a.searchUsers(w, r, r.URL.Query().Get("name"), true)
}

func (a *API) searchUsers(w http.ResponseWriter, r *http.Request, keyword string, nameOnly bool) {
	users, err := a.store.SearchUsers(r.Context(), caller(r), keyword, nameOnly)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]protocol.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	writeJSON(w, http.StatusOK, out)
}
