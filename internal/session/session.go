package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	keyToken    = "jwtToken"
	keyUsername = "username"
	keyUserID   = "userId"

	loginPath   = "/MegaMartLanka/login"
	signUpPath  = "/MegaMartLanka/AddUsers"
	profilePath = "/MegaMartLanka/user/getName/"

	minPasswordLength = 6

	// only storefront users may operate the till
	allowedUserType = "user"
)

var (
	ErrNoSession          = errors.New("no active session, log in first")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrUserTypeNotAllowed = errors.New("only user accounts may log in here")
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// Transport is the part of the REST client the session needs.
type Transport interface {
	Do(ctx context.Context, method, path string, body, out interface{}, authenticated bool) error
}

type Identity struct {
	Username string `json:"username"`
	UserType string `json:"usertype"`
}

type Registration struct {
	Username        string `json:"username"`
	FullName        string `json:"fullname"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.FullName) == "" ||
		r.Password == "" || r.ConfirmPassword == "" {
		return ErrMissingFields
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len(r.Password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	UserType string `json:"usertype"`
}

// Accessor logs in against the backend and hands out the stored bearer token.
type Accessor struct {
	transport Transport
	store     Store
	log       logrus.FieldLogger
}

func NewAccessor(transport Transport, store Store, log logrus.FieldLogger) *Accessor {
	return &Accessor{transport: transport, store: store, log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	JwtToken string `json:"jwtToken"`
	Username string `json:"username"`
	UserType string `json:"usertype"`
}

func (a *Accessor) Login(ctx context.Context, username, password string) (*Identity, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var resp loginResponse
	err := a.transport.Do(ctx, http.MethodPost, loginPath, loginRequest{Username: username, Password: password}, &resp, false)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if resp.UserType != allowedUserType {
		a.log.WithField("usertype", resp.UserType).Warn("login rejected for user type")
		return nil, ErrUserTypeNotAllowed
	}
	if resp.JwtToken == "" {
		return nil, errors.New("login failed: backend returned no token")
	}

	if err := a.store.Set(ctx, keyToken, resp.JwtToken); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	name := resp.Username
	if name == "" {
		name = username
	}
	if err := a.store.Set(ctx, keyUsername, name); err != nil {
		return nil, fmt.Errorf("store username: %w", err)
	}

	a.log.WithField("username", name).Info("logged in")
	return &Identity{Username: name, UserType: resp.UserType}, nil
}

type signUpRequest struct {
	Username       string `json:"username"`
	FullName       string `json:"fullname"`
	Password       string `json:"password"`
	UserType       string `json:"userType"`
	CoverImgPath   string `json:"coverImgPath"`
	ProfileImgPath string `json:"profileImgPath"`
}

type profileResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	UserType string `json:"userType"`
}

// SignUp registers a storefront user account. It does not log in.
func (a *Accessor) SignUp(ctx context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}

	req := signUpRequest{
		Username:       strings.TrimSpace(reg.Username),
		FullName:       strings.TrimSpace(reg.FullName),
		Password:       reg.Password,
		UserType:       allowedUserType,
		CoverImgPath:   "null",
		ProfileImgPath: "null",
	}
	if err := a.transport.Do(ctx, http.MethodPost, signUpPath, req, nil, false); err != nil {
		return fmt.Errorf("sign up failed: %w", err)
	}

	a.log.WithField("username", req.Username).Info("account created")
	return nil
}

// Profile reads the logged in user's account and remembers its id.
func (a *Accessor) Profile(ctx context.Context) (*Profile, error) {
	username, err := a.Username(ctx)
	if err != nil {
		return nil, err
	}

	var resp profileResponse
	if err := a.transport.Do(ctx, http.MethodGet, profilePath+url.PathEscape(username), nil, &resp, true); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if err := a.store.Set(ctx, keyUserID, strconv.FormatInt(resp.ID, 10)); err != nil {
		return nil, fmt.Errorf("store user id: %w", err)
	}

	name := resp.Username
	if name == "" {
		name = username
	}
	return &Profile{ID: resp.ID, Username: name, FullName: resp.FullName, UserType: resp.UserType}, nil
}

// Token returns the bearer token of the active session.
func (a *Accessor) Token(ctx context.Context) (string, error) {
	token, err := a.store.Get(ctx, keyToken)
	if errors.Is(err, ErrKeyNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (a *Accessor) Username(ctx context.Context) (string, error) {
	name, err := a.store.Get(ctx, keyUsername)
	if errors.Is(err, ErrKeyNotFound) {
		return "", ErrNoSession
	}
	return name, err
}

func (a *Accessor) Logout(ctx context.Context) error {
	if err := a.store.Delete(ctx, keyToken, keyUserID, keyUsername); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}
