package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router bundles the handlers mounted under /api
type Router struct {
	Rules    *RuleHandler
	Training *TrainingHandler
	Practice *PracticeHandler
	// Gatherer backs /metrics; nil leaves the route out
	Gatherer prometheus.Gatherer
}

// Engine builds the gin engine with every route registered
func (rt Router) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	if rt.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(rt.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	if rt.Rules != nil {
		api.POST("/rules/upload", rt.Rules.UploadRulebook)
		api.POST("/rules/embed", rt.Rules.EmbedRulebook)
		api.GET("/rules/jobs/:id", rt.Rules.GetJob)
		api.POST("/rules/search", rt.Rules.Search)
	}
	if rt.Training != nil {
		api.POST("/evaluate", rt.Training.Evaluate)
		api.POST("/questions/generate", rt.Training.GenerateQuestion)
		api.POST("/lessons/quiz", rt.Training.ModuleQuiz)
		api.POST("/tutor", rt.Training.Ask)
	}
	if rt.Practice != nil {
		api.GET("/practice", rt.Practice.RandomClip)
		api.POST("/practice/attempts", rt.Practice.SubmitAttempt)
		api.GET("/videos", rt.Practice.ListVideos)
		api.POST("/videos", rt.Practice.CreateVideo)
		api.POST("/quiz-attempts", rt.Practice.RecordQuizAttempt)
	}
	return r
}
