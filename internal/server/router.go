package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/daybook/internal/notes"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultServiceName = "daybook-api"
	staticMountPath    = "/app"
	healthPath         = "/_health"
	metricsPath        = "/metrics"
)

var errMissingNotesStore = errors.New("notes store dependency required")

// NotesStore is the persistence surface the handlers depend on.
type NotesStore interface {
	AddGuest(ctx context.Context) (notes.Guest, error)
	GetNotesInRange(ctx context.Context, start, end notes.Date, guestID int64) ([]notes.Note, error)
	AddNote(ctx context.Context, date notes.Date, content string, guestID int64) (notes.Note, error)
	UpdateNote(ctx context.Context, id notes.NoteID, date notes.Date, content string) (notes.Note, error)
	DeleteNote(ctx context.Context, id notes.NoteID) (notes.Note, error)
}

type Dependencies struct {
	NotesStore  NotesStore
	Logger      *zap.Logger
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	StaticDir   string
	ServiceName string
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.NotesStore == nil {
		return nil, errMissingNotesStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	serviceName := strings.TrimSpace(deps.ServiceName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	registerer := deps.Registerer
	gatherer := deps.Gatherer
	if registerer == nil || gatherer == nil {
		registry := prometheus.NewRegistry()
		registerer, gatherer = registry, registry
	}
	metrics, err := newHTTPMetrics(registerer)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{healthPath, metricsPath},
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("request_id", c.GetString(requestIDContextKey))}
		},
	}))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(corsMiddleware())
	router.Use(metrics.middleware())

	handler := &httpHandler{
		store:  deps.NotesStore,
		logger: logger,
	}

	router.GET(healthPath, handler.handleHealth)
	router.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	if staticDir := strings.TrimSpace(deps.StaticDir); staticDir != "" {
		router.Static(staticMountPath, staticDir)
	}

	api := router.Group("/api")
	api.POST("/guests", handler.handleAddGuest)
	api.GET("/notes", handler.handleListNotes)
	api.POST("/notes", handler.handleAddNote)
	api.PUT("/notes/:note_id", handler.handleUpdateNote)
	api.DELETE("/notes/:note_id", handler.handleDeleteNote)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	})
}
