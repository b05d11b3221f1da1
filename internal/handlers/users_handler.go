package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procurehq/orderdesk/internal/apperr"
	"github.com/procurehq/orderdesk/internal/auth"
	"github.com/procurehq/orderdesk/internal/users"
	"github.com/procurehq/orderdesk/internal/validation"
)

// RegisterUsersRoutes registers the directory-profile routes. Profiles are
// always self-service: the subject id and email come from the verified
// credential, never from the body.
func RegisterUsersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	usersStore := users.NewStore(cfg.DynamoDBClient, cfg.UsersTable)

	authn := auth.Middleware(cfg.Verifier)

	r.POST("/users", authn, func(c *gin.Context) {
		sub, ok := auth.SubjectFrom(c)
		if !ok {
			respondError(c, apperr.Authentication("missing_credentials", "authentication required"))
			return
		}
		if sub.Email == "" {
			respondError(c, apperr.Validation("email_claim_missing", "credential carries no email claim"))
			return
		}

		var req validation.CreateProfileRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		profile := users.Profile{
			UserID:     sub.ID,
			Name:       req.Name,
			Email:      sub.Email,
			Role:       users.Role(req.Role),
			Department: req.Department,
		}
		if err := usersStore.Create(c.Request.Context(), profile); err != nil {
			if err == users.ErrProfileExists {
				respondError(c, apperr.Conflict("profile_exists", "a profile already exists for this subject"))
				return
			}
			respondError(c, apperr.Internal("create profile", err))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user_id": sub.ID})
	})

	r.GET("/users", authn, func(c *gin.Context) {
		sub, ok := auth.SubjectFrom(c)
		if !ok {
			respondError(c, apperr.Authentication("missing_credentials", "authentication required"))
			return
		}
		profile, err := usersStore.Get(c.Request.Context(), sub.ID)
		if err != nil {
			respondError(c, apperr.Internal("get profile", err))
			return
		}
		if profile == nil {
			respondError(c, apperr.NotFound("profile_not_found", "no profile for this subject"))
			return
		}
		c.JSON(http.StatusOK, profile)
	})
}
