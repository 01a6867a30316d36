package http

import (
	"github.com/go-notify-nosql/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-notify-nosql/internal/infrastructure/jwt"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SessionRepo      *dynamo.SessionRepo
	NotificationRepo *dynamo.NotificationRepo
	JobRepo          *dynamo.JobRepo
	TokenRepo        *dynamo.TokenRepo
	JWTProvider      *jwtinfra.Provider
}
