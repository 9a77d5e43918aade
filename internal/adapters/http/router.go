package http

import (
	"context"
	"html/template"
	"net/http"

	"github.com/devkiraa/Hang/internal/adapters/signal"
	"github.com/devkiraa/Hang/internal/app/orch"
	"github.com/devkiraa/Hang/internal/config"
	"github.com/devkiraa/Hang/internal/domain"
	"github.com/devkiraa/Hang/internal/invite"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	tokenKey      = "client_token"
	tokenFreshKey = "client_token_fresh"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps a stable per-browser token in the session
// cookie. It keys join rate limiting; a token minted on this request is
// marked fresh.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(tokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(tokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
			c.Set(tokenFreshKey, true)
		}
		c.Set(tokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("HangSessions", store))
	r.Use(ClientTokenMiddleware())

	r.SetHTMLTemplate(template.Must(template.New("join").Parse(joinPage)))
	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.NewRoomRateLimiter(cfg.JoinAttempts, cfg.JoinWindow), signal.SettingsFromConfig(cfg))
	r.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("token", c.GetString(tokenKey)).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       o.Rooms.Count(),
			"connections": o.Registry.Count(),
		})
	})

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})
	api.GET("/rooms/:room_id", func(c *gin.Context) {
		room, ok := o.Rooms.GetRoom(domain.RoomID(c.Param("room_id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		roster := o.Roster(room)
		c.JSON(http.StatusOK, gin.H{
			"id":               room.Room().ID,
			"capacity":         room.Room().Capacity,
			"passcode_enabled": room.Room().PasscodeEnabled(),
			"members":          roster.Members,
			"created_at":       room.Room().CreatedAt,
		})
	})

	joinHandler := func(c *gin.Context) {
		id := c.Param("room_id")
		if id == "" {
			id = c.Query("room")
		}
		if id == "" {
			c.HTML(http.StatusBadRequest, "join", gin.H{"Error": "missing room id"})
			return
		}
		room, ok := o.Rooms.GetRoom(domain.RoomID(id))
		if !ok {
			c.HTML(http.StatusNotFound, "join", gin.H{"Error": "this room does not exist or has ended"})
			return
		}
		inv := invite.Invite{RoomID: id, Passcode: c.Query("code"), FileName: c.Query("file"), Server: cfg.PublicURL}
		c.HTML(http.StatusOK, "join", gin.H{
			"RoomID":   id,
			"Members":  room.MemberCount(),
			"Capacity": room.Room().Capacity,
			"Locked":   room.Room().PasscodeEnabled(),
			"FileName": inv.FileName,
			"DeepLink": template.URL(inv.URL()),
		})
	}
	r.GET("/join", joinHandler)
	r.GET("/join/:room_id", joinHandler)

	return r
}

const joinPage = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Hang invite</title></head>
<body>
{{if .Error}}
<h1>Can't join</h1>
<p>{{.Error}}</p>
{{else}}
<h1>You're invited to watch together</h1>
<p>Room <code>{{.RoomID}}</code>: {{.Members}} of {{.Capacity}} watching{{if .Locked}}, passcode required{{end}}.</p>
{{if .FileName}}<p>Open <strong>{{.FileName}}</strong> locally before joining.</p>{{end}}
<p><a href="{{.DeepLink}}">Open in Hang</a></p>
{{end}}
</body>
</html>
`
