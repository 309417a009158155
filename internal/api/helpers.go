package api

import (
	"strings"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

// bearer is the security requirement of routes that need an access token.
var bearer = []map[string][]string{{"bearer": {}}}

// authenticateRequest validates the Authorization header and returns the user ID.
func (s *Server) authenticateRequest(authHeader string) (string, error) {
	if authHeader == "" {
		return "", domainerrors.Unauthorized("Missing authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", domainerrors.Unauthorized("Invalid authorization header format")
	}

	claims, err := s.services.Auth.VerifyAccessToken(token)
	if err != nil {
		return "", err
	}

	return claims.UserID, nil
}

// PageInput holds the paging query parameters shared by list routes.
type PageInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"500" doc:"Page size (default 50)"`
	Offset int `query:"offset" minimum:"0" doc:"Number of items to skip"`
}

func (p PageInput) params() store.PageParams {
	return store.PageParams{Limit: p.Limit, Offset: p.Offset}
}

// PageOutput wraps one page of views for Huma.
type PageOutput[T any] struct {
	Body *store.Page[T]
}
