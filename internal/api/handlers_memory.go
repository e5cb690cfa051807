package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sporenet/sporenet/internal/reflection"
)

type rememberRequest struct {
	Content string `json:"content" binding:"required"`
	Source  string `json:"source"`
}

func (s *Server) remember(c *gin.Context) {
	var req rememberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, err.Error())
		return
	}
	if err := validateContent(req.Content); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	result, err := s.engine.Memory.Remember(c.Request.Context(), req.Content, req.Source)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	CreatedResponse(c, "episode processed", result)
}

func (s *Server) recall(c *gin.Context) {
	query := c.Query("q")
	if err := validateQuery(query); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	matches, err := s.engine.Memory.Recall(c.Request.Context(), query)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "recall complete", matches)
}

func (s *Server) context(c *gin.Context) {
	query := c.Query("q")
	if err := validateQuery(query); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	ctxStr, err := s.engine.Memory.Context(c.Request.Context(), query)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "context built", gin.H{"context": ctxStr})
}

func (s *Server) listBeliefs(c *gin.Context) {
	status := c.DefaultQuery("status", "active")

	beliefs, err := s.engine.Memory.Beliefs(status)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "beliefs listed", beliefs)
}

func (s *Server) forgetBelief(c *gin.Context) {
	id := c.Param("id")

	belief, err := s.engine.Memory.Forget(id)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "belief forgotten", belief)
}

func (s *Server) beliefHistory(c *gin.Context) {
	id := c.Param("id")

	changes, err := s.engine.Memory.History(id)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "history retrieved", changes)
}

type pruneRequest struct {
	Threshold float64 `json:"threshold"`
}

func (s *Server) prune(c *gin.Context) {
	var req pruneRequest
	_ = c.ShouldBindJSON(&req)

	ids, err := s.engine.Memory.Prune(req.Threshold)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "prune complete", gin.H{"pruned": ids, "count": len(ids)})
}

type reflectRequest struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

func (s *Server) reflect(c *gin.Context) {
	var req reflectRequest
	_ = c.ShouldBindJSON(&req)

	report, err := s.engine.Memory.Reflect(reflection.Options{SimilarityThreshold: req.SimilarityThreshold})
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "reflection complete", report)
}

type synthesizeRequest struct {
	Subject string `json:"subject" binding:"required"`
}

func (s *Server) synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	belief, err := s.engine.Memory.Synthesize(c.Request.Context(), req.Subject)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	CreatedResponse(c, "belief synthesized", belief)
}

func (s *Server) memoryStats(c *gin.Context) {
	stats, err := s.engine.Memory.Stats()
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "stats retrieved", stats)
}

func (s *Server) exportMemory(c *gin.Context) {
	data, err := s.engine.Memory.Export()
	if err != nil {
		FromCoreError(c, err)
		return
	}

	c.Data(200, "application/json", data)
}

func (s *Server) importMemory(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		BadRequestError(c, err.Error())
		return
	}

	count, err := s.engine.Memory.Import(data)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "import complete", gin.H{"imported": count})
}

func parseLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return clampLimit(n)
}
