package routes

import (
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups the resource handlers mounted under /api.
type Handlers struct {
	Users       *handlers.UserHandler
	Contests    *handlers.ContestHandler
	Reflections *handlers.ReflectionHandler
	Catalog     *handlers.CatalogHandler
}

// Limits are the per-IP rate limiters applied to route groups.
type Limits struct {
	General    gin.HandlerFunc
	Signup     gin.HandlerFunc
	Submit     gin.HandlerFunc
	Reflection gin.HandlerFunc
}

func DefaultLimits() Limits {
	return Limits{
		General:    middleware.GeneralRateLimit(),
		Signup:     middleware.SignupRateLimit(),
		Submit:     middleware.SubmitRateLimit(),
		Reflection: middleware.ReflectionRateLimit(),
	}
}

// NoLimits lets every request through.
func NoLimits() Limits {
	pass := func(c *gin.Context) { c.Next() }
	return Limits{General: pass, Signup: pass, Submit: pass, Reflection: pass}
}

// RegisterAPIRoutes mounts every resource on api. auth guards the routes
// that act on behalf of a user.
func RegisterAPIRoutes(api gin.IRouter, h Handlers, auth gin.HandlerFunc, limits Limits) {
	RegisterUserRoutes(api, h.Users, auth, limits)
	RegisterContestRoutes(api, h.Contests, auth, limits)
	RegisterReflectionRoutes(api, h.Reflections, auth, limits)
	RegisterCatalogRoutes(api, h.Catalog)
}
