package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

func (s Server) authLogin() http.HandlerFunc {
	type request struct {
		Password string `json:"password"`
	}
	type response struct {
		Token string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("authLogin: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if err := bcrypt.CompareHashAndPassword(s.AdminPasswordHash, []byte(req.Password)); err != nil {
			s.Logger.Debugf("authLogin: Error comparing hash and password, err: %v", err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		token, err := s.createAuthToken()
		if err != nil {
			s.Logger.Errorf("authLogin: Error creating auth token, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Token: token}, http.StatusOK)
	}
}

func (s Server) createAuthToken() (string, error) {
	t, err := jwt.NewBuilder().
		Subject("admin").
		Issuer("pricewatch").
		IssuedAt(time.Now()).
		Expiration(time.Now().AddDate(0, 0, 7)).
		Build()
	if err != nil {
		return "", errors.Wrap(err, "error building auth token")
	}
	signed, err := jwt.Sign(t, jwt.WithKey(jwa.HS256, s.AuthSecretKey))
	if err != nil {
		return "", errors.Wrap(err, "error signing auth token")
	}
	return string(signed), nil
}
