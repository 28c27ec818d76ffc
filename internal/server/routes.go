package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediashelf/internal/events"
	"mediashelf/internal/handlers"
	"mediashelf/internal/health"
	"mediashelf/internal/middleware"
	"mediashelf/internal/models"
	"mediashelf/internal/utils"
)

// newApp builds the fiber application and its routes
func (s *Server) newApp() *fiber.App {
	cfg := s.opts.Config
	app := fiber.New(fiber.Config{
		AppName:               "mediashelf",
		ServerHeader:          "mediashelf",
		ErrorHandler:          utils.ErrorHandler,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(s.opts.Logger.RequestLogger())
	app.Use(middleware.Metrics(s.opts.Metrics))
	app.Use(middleware.NewRateLimiter(cfg.Sharing.RateLimitMax, cfg.Sharing.RateLimitWindow))
	app.Use(cors.New(cors.Config{
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Range, X-User-Token",
		ExposeHeaders: "Content-Range, Accept-Ranges, Content-Length",
	}))

	if cfg.Sharing.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	s.setupRoutes(app)
	return app
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(app *fiber.App) {
	store := s.opts.Library.Store
	pipeline := s.opts.Library.Importer
	cfg := s.opts.Config

	mediaHandler := handlers.NewMediaHandler(store)
	commentHandler := handlers.NewCommentHandler(store)
	tagHandler := handlers.NewTagHandler(store)
	folderHandler := handlers.NewFolderHandler(store)
	fileHandler := handlers.NewFileHandler(store, s.opts.Metrics)
	profileHandler := handlers.NewProfileHandler(s.opts.Users, s.opts.Hub, cfg.Sharing.DataDir)
	auditHandler := handlers.NewAuditHandler(store)
	uploadHandler := handlers.NewUploadHandler(store, pipeline, handlers.UploadConfig{
		Timeout:      cfg.Import.MoveTimeout,
		ExtractColor: cfg.Import.ExtractColor,
		Metrics:      s.opts.Metrics,
	})
	uploadLimiter := middleware.NewUserRateLimiter(cfg.Sharing.UploadPerMinute)

	api := app.Group("/api")

	// Health check route
	health.RegisterHealthRoutes(api, &health.Checker{Store: store, DB: s.opts.DB})

	// Protected routes
	protected := api.Group("", middleware.Auth(middleware.AuthConfig{
		Users:      s.opts.Users,
		Validator:  s.opts.Validator,
		AllowedIPs: cfg.Sharing.AllowedIPs,
		Logger:     s.opts.Logger,
		Metrics:    s.opts.Metrics,
	}))
	edit := middleware.RequirePermission(models.PermissionEdit)

	// Media routes
	media := protected.Group("/media")
	media.Get("/", mediaHandler.GetMedia)
	media.Post("/restore", edit, mediaHandler.RestoreMedia)
	media.Get("/:id", mediaHandler.GetMediaFile)
	media.Put("/:id", edit, mediaHandler.UpdateMediaFile)
	media.Delete("/:id", edit, mediaHandler.DeleteMediaFile)
	media.Put("/:id/parent", edit, mediaHandler.SetParent)
	media.Post("/:id/played", mediaHandler.MarkPlayed)
	media.Get("/:id/duplicates", mediaHandler.GetDuplicates)
	media.Get("/:id/comments", commentHandler.GetComments)
	media.Post("/:id/comments", commentHandler.AddComment)
	media.Delete("/:id/comments/:commentId", edit, commentHandler.DeleteComment)

	// Tag routes; /media before /:id
	tags := protected.Group("/tags")
	tags.Get("/", tagHandler.GetTags)
	tags.Post("/", edit, tagHandler.CreateTag)
	tags.Post("/media", edit, tagHandler.AttachMedia)
	tags.Delete("/media", edit, tagHandler.DetachMedia)
	tags.Put("/:id", edit, tagHandler.UpdateTag)
	tags.Delete("/:id", edit, tagHandler.DeleteTag)

	groups := protected.Group("/tag-groups")
	groups.Get("/", tagHandler.GetTagGroups)
	groups.Post("/", edit, tagHandler.CreateTagGroup)
	groups.Put("/:id", edit, tagHandler.UpdateTagGroup)
	groups.Delete("/:id", edit, tagHandler.DeleteTagGroup)

	// Folder routes; /media and /order before /:id
	folders := protected.Group("/folders")
	folders.Get("/", folderHandler.GetFolders)
	folders.Post("/", edit, folderHandler.CreateFolder)
	folders.Post("/media", edit, folderHandler.AttachMedia)
	folders.Delete("/media", edit, folderHandler.DetachMedia)
	folders.Put("/order", edit, folderHandler.ReorderFolders)
	folders.Put("/:id", edit, folderHandler.UpdateFolder)
	folders.Delete("/:id", edit, folderHandler.DeleteFolder)

	// Profile routes
	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/avatar", profileHandler.GetAvatar)

	// File routes
	protected.Get("/thumbnails/:id", fileHandler.GetThumbnail)
	protected.Get("/stream/:id", fileHandler.Stream)
	protected.Get("/download/:id", middleware.RequirePermission(models.PermissionDownload), fileHandler.Download)
	protected.Post("/upload",
		middleware.RequirePermission(models.PermissionUpload),
		uploadLimiter.Handler(),
		uploadHandler.Upload)

	// Audit routes
	full := middleware.RequirePermission(models.PermissionFull)
	protected.Get("/audit-logs", full, auditHandler.GetAuditLogs)
	protected.Delete("/audit-logs", full, auditHandler.ClearAuditLogs)

	// Real-time events
	protected.Get("/ws", events.RequireUpgrade, s.opts.Hub.Handler())
}
