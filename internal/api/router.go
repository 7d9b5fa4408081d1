package api

// RegisterRoutes mounts every handler group under the versioned API
// prefix. The route split mirrors the operator UI: hierarchy management,
// user sync, templates, the send action (expMessages), and the sent view.
import "github.com/gin-gonic/gin"

type Handlers struct {
	Hierarchy *HierarchyHandler
	Users     *UserHandler
	Templates *TemplateHandler
	Broadcast *BroadcastHandler
	System    *SystemHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	v1 := r.Group("/api/v1")

	hierarchy := v1.Group("/hierarchy")
	hierarchy.POST("/upload", h.Hierarchy.Upload)
	hierarchy.GET("/lvl-values", h.Hierarchy.LevelValues)
	hierarchy.GET("/hierarchy-filter", h.Hierarchy.Filter)

	users := v1.Group("/users")
	users.POST("/add-users", h.Users.AddUsers)
	users.POST("/login", h.Users.Login)
	users.GET("/user_filter", h.Users.Filter)
	users.GET("/user-search", h.Users.Search)
	users.GET("/messages/:message_id", h.Users.OpenMessage)
	users.GET("/:user_id/messages", h.Users.Inbox)

	templates := v1.Group("/templates")
	templates.POST("", h.Templates.Create)
	templates.GET("", h.Templates.List)

	v1.POST("/expMessages", h.Broadcast.Send)
	v1.GET("/viewMessages", h.Broadcast.List)
	v1.GET("/viewMessages/:id", h.Broadcast.Detail)

	v1.GET("/validate", h.System.Validate)
	v1.GET("/statistics", h.System.Stats)
}
