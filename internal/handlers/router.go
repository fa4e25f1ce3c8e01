package handlers

import (
	"net/http"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/models"
	"github.com/SAP-F-2025/gradebook-service/internal/services"
	"github.com/SAP-F-2025/gradebook-service/internal/utils"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	gradeItemHandler   *GradeItemHandler
	gradesHandler      *GradesHandler
	gradeRecordHandler *GradeRecordHandler
	logger             utils.Logger
}

func NewHandlerManager(
	serviceManager *services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		gradeItemHandler:   NewGradeItemHandler(serviceManager.GradeItems, validator, logger),
		gradesHandler:      NewGradesHandler(serviceManager.Scores, logger),
		gradeRecordHandler: NewGradeRecordHandler(serviceManager.Aggregator, serviceManager.Verification, serviceManager.Export, logger),
		logger:             logger,
	}
}

// NewRouter builds the gin engine with the shared middleware stack and all routes.
// A nil parser switches authentication to the X-User-ID / X-User-Role headers.
func (hm *HandlerManager) NewRouter(parser TokenParser) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestContext())
	router.Use(utils.LoggerMiddleware(hm.logger))
	router.Use(utils.ContextLogger(hm.logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", HeaderRequestID, HeaderUserID, HeaderUserRole},
		ExposeHeaders:    []string{"Content-Disposition", HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	hm.SetupRoutes(router, parser)
	return router
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, parser TokenParser) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(parser))
	{
		staff := RequireRoles(models.RoleTeacher, models.RoleAdviser, models.RoleAdmin)

		gradeItems := v1.Group("/grade-items", staff)
		{
			gradeItems.GET("", hm.gradeItemHandler.ListGradeItems)
			gradeItems.POST("", hm.gradeItemHandler.PostGradeItemAction)
			gradeItems.PUT("", hm.gradeItemHandler.UpdateGradeItem)
			gradeItems.DELETE("", hm.gradeItemHandler.DeleteGradeItem)
		}

		grades := v1.Group("/grades", staff)
		{
			grades.POST("/save", hm.gradesHandler.SaveGrades)
		}

		// Verify and unverify are role-checked by the verification service.
		gradeRecords := v1.Group("/grade-records", staff)
		{
			gradeRecords.GET("", hm.gradeRecordHandler.ListGradeRecords)
			gradeRecords.GET("/export", hm.gradeRecordHandler.ExportClassRecord)
			gradeRecords.POST("/verify", hm.gradeRecordHandler.VerifyGradeRecord)
			gradeRecords.POST("/unverify", hm.gradeRecordHandler.UnverifyGradeRecord)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "gradebook-service",
	})
}
