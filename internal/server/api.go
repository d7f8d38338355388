package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reviewpulse/backend/internal/auth"
	"github.com/reviewpulse/backend/internal/config"
	"github.com/reviewpulse/backend/internal/dashboard"
	apierrors "github.com/reviewpulse/backend/internal/errors"
	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/middleware"
	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/monitoring"
	"github.com/reviewpulse/backend/internal/store"
	"github.com/reviewpulse/backend/internal/syncer"
)

// Dependencies carries the services the API server dispatches to
type Dependencies struct {
	Brands     store.BrandStore
	Sources    store.SourceStore
	Jobs       store.JobStore
	Reviews    store.ReviewStore
	Scheduler  *syncer.Scheduler
	Dashboards *dashboard.Service
	Summaries  *dashboard.SummaryService
	Recalc     syncer.Recalculator
}

// APIServer represents the main API server
type APIServer struct {
	config           *config.Config
	router           *gin.Engine
	db               *pgxpool.Pool
	authService      *auth.Service
	jwtAuthenticator *middleware.JWTAuthenticator
	deps             Dependencies
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, deps Dependencies) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:           cfg,
		router:           router,
		db:               db,
		authService:      auth.NewService(db, &cfg.JWT),
		jwtAuthenticator: middleware.NewJWTAuthenticator(&cfg.JWT),
		deps:             deps,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/refresh", s.handleRefresh)
		}

		// Brand routes (owner-scoped)
		brands := v1.Group("/brands")
		brands.Use(s.jwtAuthenticator.JWTAuth())
		{
			brands.POST("", s.handleCreateBrand)
			brands.GET("", s.handleListBrands)
			brands.GET("/:id", s.handleGetBrand)
			brands.GET("/:id/dashboard", s.handleBrandDashboard)
			brands.POST("/:id/sources", s.handleCreateSource)
			brands.GET("/:id/sources", s.handleListSources)
		}

		// Source routes (owner-scoped through the parent brand)
		sources := v1.Group("/sources")
		sources.Use(s.jwtAuthenticator.JWTAuth())
		{
			sources.GET("/:id", s.handleGetSource)
			sources.PATCH("/:id", s.handleUpdateSource)
			sources.POST("/:id/sync", s.handleTriggerSync)
			sources.GET("/:id/jobs", s.handleListJobs)
			sources.GET("/:id/reviews", s.handleListReviews)
			sources.GET("/:id/dashboard", s.handleSourceDashboard)
			sources.GET("/:id/summary", s.handleGetSummary)
		}

		// Job polling
		jobs := v1.Group("/jobs")
		jobs.Use(s.jwtAuthenticator.JWTAuth())
		{
			jobs.GET("/:id", s.handleGetJob)
		}

		// Manual sentiment correction
		reviews := v1.Group("/reviews")
		reviews.Use(s.jwtAuthenticator.JWTAuth())
		{
			reviews.PATCH("/:id/sentiment", s.handleCorrectSentiment)
		}
	}
}

// healthCheck reports service and database health
func (s *APIServer) healthCheck(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "api",
			"error":   "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// handleRegister handles user registration
func (s *APIServer) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if err == auth.ErrEmailAlreadyExists {
			respondError(c, apierrors.NewInvalidRequestError("Email already registered"))
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// handleLogin handles user login
func (s *APIServer) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			respondError(c, apierrors.ErrInvalidCredentialsError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleRefresh handles token refresh
func (s *APIServer) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	tokens, err := s.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch err {
		case auth.ErrInvalidToken:
			respondError(c, apierrors.ErrInvalidCredentialsError)
		case auth.ErrTokenExpired:
			respondError(c, apierrors.ErrTokenExpiredError)
		case auth.ErrUserNotFound:
			respondError(c, apierrors.ErrUserNotFoundError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// CreateBrandRequest is the payload for brand creation
type CreateBrandRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=200"`
	Timezone string `json:"timezone"`
}

// handleCreateBrand creates a brand owned by the authenticated user
func (s *APIServer) handleCreateBrand(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return
	}

	var req CreateBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		respondError(c, apierrors.NewValidationError("unknown timezone"))
		return
	}

	brand := &models.Brand{
		OwnerID:  userID,
		Name:     req.Name,
		Timezone: req.Timezone,
	}
	if err := s.deps.Brands.Create(c.Request.Context(), brand); err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, brand)
}

// handleListBrands lists the authenticated user's brands
func (s *APIServer) handleListBrands(c *gin.Context) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return
	}

	brands, err := s.deps.Brands.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

// handleGetBrand returns one owned brand
func (s *APIServer) handleGetBrand(c *gin.Context) {
	brand, ok := s.ownedBrand(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, brand)
}

// handleBrandDashboard returns the aggregated dashboard over all of the
// brand's sources
func (s *APIServer) handleBrandDashboard(c *gin.Context) {
	brand, ok := s.ownedBrand(c, c.Param("id"))
	if !ok {
		return
	}

	view, err := s.deps.Dashboards.GetBrandDashboard(c.Request.Context(), brand.ID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CreateSourceRequest is the payload for connecting a review source
type CreateSourceRequest struct {
	Platform          models.Platform `json:"platform" binding:"required,oneof=google facebook trustpilot"`
	ExternalProfileID string          `json:"external_profile_id" binding:"required,min=1,max=500"`
}

// handleCreateSource connects a new review source to a brand. The first
// scheduled sync lands on the next daily sync window.
func (s *APIServer) handleCreateSource(c *gin.Context) {
	brand, ok := s.ownedBrand(c, c.Param("id"))
	if !ok {
		return
	}

	var req CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	source := &models.ReviewSource{
		BrandID:           brand.ID,
		Platform:          req.Platform,
		ExternalProfileID: req.ExternalProfileID,
		Active:            true,
		NextScheduledAt:   syncer.NextRun(time.Now(), s.config.Sync.SyncHour, time.Local),
	}
	if err := s.deps.Sources.Create(c.Request.Context(), source); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, apierrors.NewInvalidRequestError("Source already connected for this brand and platform"))
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, source)
}

// handleListSources lists a brand's sources
func (s *APIServer) handleListSources(c *gin.Context) {
	brand, ok := s.ownedBrand(c, c.Param("id"))
	if !ok {
		return
	}

	sources, err := s.deps.Sources.ListByBrand(c.Request.Context(), brand.ID)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// handleGetSource returns one owned source
func (s *APIServer) handleGetSource(c *gin.Context) {
	source, ok := s.ownedSource(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, source)
}

// UpdateSourceRequest is the payload for source updates
type UpdateSourceRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// handleUpdateSource activates or deactivates a source. Deactivation takes
// the source out of scheduling; an in-flight job still runs to completion.
func (s *APIServer) handleUpdateSource(c *gin.Context) {
	source, ok := s.ownedSource(c, c.Param("id"))
	if !ok {
		return
	}

	var req UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	if err := s.deps.Sources.SetActive(c.Request.Context(), source.ID, *req.Active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, apierrors.ErrSourceNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	source.Active = *req.Active
	c.JSON(http.StatusOK, source)
}

// handleTriggerSync starts a manual sync for the source
func (s *APIServer) handleTriggerSync(c *gin.Context) {
	source, ok := s.ownedSource(c, c.Param("id"))
	if !ok {
		return
	}

	job, err := s.deps.Scheduler.TriggerManual(c.Request.Context(), source.ID)
	if err != nil {
		var rle *syncer.RateLimitError
		switch {
		case errors.As(err, &rle):
			respondError(c, apierrors.NewRateLimitedError(rle.RetryAt))
		case errors.Is(err, syncer.ErrActiveJobExists):
			respondError(c, apierrors.ErrSyncInProgressError)
		case errors.Is(err, syncer.ErrSourceNotFound):
			respondError(c, apierrors.ErrSourceNotFoundError)
		case errors.Is(err, syncer.ErrSourceInactive):
			respondError(c, apierrors.NewInvalidRequestError("Source is deactivated"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// handleListJobs lists recent sync jobs for a source, newest first
func (s *APIServer) handleListJobs(c *gin.Context) {
	source, ok := s.ownedSource(c, c.Param("id"))
	if !ok {
		return
	}

	jobs, err := s.deps.Jobs.ListBySource(c.Request.Context(), source.ID, 50)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// handleGetJob returns one sync job for polling
func (s *APIServer) handleGetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("invalid job id"))
		return
	}

	job, err := s.deps.Jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, apierrors.ErrJobNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	if _, ok := s.ownedSource(c, job.SourceID.String()); !ok {
		return
	}

	c.JSON(http.StatusOK, job)
}

// handleListReviews lists a source's reviews, newest first
func (s *APIServer) handleListReviews(c *gin.Context) {
	source, ok := s.ownedSource(c, c.Param("id"))
	if !ok {
		return
	}

	reviews, err := s.deps.Reviews.ListBySource(c.Request.Context(), source.ID, 100)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// handleSourceDashboard returns the source's dashboard view
func (s *APIServer) handleSourceDashboard(c *gin.Context) {
	source, ok := s.ownedSource(c, c.Param("id"))
	if !ok {
		return
	}

	view, err := s.deps.Dashboards.GetSourceDashboard(c.Request.Context(), source)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusOK, view)
}

// handleGetSummary returns the latest AI summary, or 202 while a fresh one
// is being generated
func (s *APIServer) handleGetSummary(c *gin.Context) {
	source, ok := s.ownedSource(c, c.Param("id"))
	if !ok {
		return
	}

	summary, err := s.deps.Summaries.GetSummary(c.Request.Context(), source.ID)
	if err != nil {
		switch {
		case errors.Is(err, dashboard.ErrSummaryPending):
			respondError(c, apierrors.ErrSummaryPendingError)
		case errors.Is(err, dashboard.ErrNoReviews):
			respondError(c, apierrors.NewInvalidRequestError("Source has no reviews to summarize"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, summary)
}

// CorrectSentimentRequest is the payload for a manual sentiment override
type CorrectSentimentRequest struct {
	Sentiment models.Sentiment `json:"sentiment" binding:"required,oneof=positive negative neutral"`
}

// handleCorrectSentiment overrides a review's sentiment label. The override
// is sticky: later syncs keep it even when the review content changes.
func (s *APIServer) handleCorrectSentiment(c *gin.Context) {
	reviewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError("invalid review id"))
		return
	}

	review, err := s.deps.Reviews.GetByID(c.Request.Context(), reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, apierrors.NewInvalidRequestError("Review not found"))
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	source, ok := s.ownedSource(c, review.SourceID.String())
	if !ok {
		return
	}

	var req CorrectSentimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	if err := s.deps.Reviews.CorrectSentiment(c.Request.Context(), reviewID, req.Sentiment); err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	// The aggregate must reflect the override immediately
	if err := s.deps.Recalc.Recalculate(c.Request.Context(), source); err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}

	sentiment := req.Sentiment
	review.Sentiment = &sentiment
	review.SentimentCorrected = true
	c.JSON(http.StatusOK, review)
}

// currentUserID extracts the authenticated user's id from the context
func (s *APIServer) currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr := middleware.GetUserIDFromContext(c)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		respondError(c, apierrors.ErrInvalidCredentialsError)
		return uuid.Nil, false
	}
	return userID, true
}

// ownedBrand loads a brand and verifies the authenticated user owns it.
// A brand owned by someone else gets 404, not 403, so brand ids are not
// probeable across tenants.
func (s *APIServer) ownedBrand(c *gin.Context, idParam string) (*models.Brand, bool) {
	userID, ok := s.currentUserID(c)
	if !ok {
		return nil, false
	}

	brandID, err := uuid.Parse(idParam)
	if err != nil {
		respondError(c, apierrors.NewValidationError("invalid brand id"))
		return nil, false
	}

	brand, err := s.deps.Brands.GetByID(c.Request.Context(), brandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, apierrors.ErrBrandNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return nil, false
	}
	if brand.OwnerID != userID {
		respondError(c, apierrors.ErrBrandNotFoundError)
		return nil, false
	}
	return brand, true
}

// ownedSource loads a source and verifies ownership through its brand
func (s *APIServer) ownedSource(c *gin.Context, idParam string) (*models.ReviewSource, bool) {
	sourceID, err := uuid.Parse(idParam)
	if err != nil {
		respondError(c, apierrors.NewValidationError("invalid source id"))
		return nil, false
	}

	source, err := s.deps.Sources.GetByID(c.Request.Context(), sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, apierrors.ErrSourceNotFoundError)
		} else {
			respondError(c, apierrors.ErrInternalServerError)
		}
		return nil, false
	}

	if _, ok := s.ownedBrand(c, source.BrandID.String()); !ok {
		return nil, false
	}
	return source, true
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	requestID, _ := c.Get("request_id")
	reqIDStr, _ := requestID.(string)

	c.JSON(err.HTTPStatus, apierrors.ErrorResponse{
		Error:     *err,
		RequestID: reqIDStr,
	})
}
