package api

import (
	"github.com/gin-gonic/gin"
)

type learnRequest struct {
	URL     string   `json:"url" binding:"required"`
	Title   string   `json:"title"`
	Content string   `json:"content" binding:"required"`
	Tags    []string `json:"tags"`
	Force   bool     `json:"force"`
}

func (s *Server) learn(c *gin.Context) {
	var req learnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, err.Error())
		return
	}
	if err := validateContent(req.Content); err != nil {
		BadRequestError(c, err.Error())
		return
	}
	if err := validateTags(req.Tags); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	result, err := s.engine.Knowledge.Learn(c.Request.Context(), req.URL, req.Title, req.Content, req.Tags, req.Force)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	CreatedResponse(c, "source learned", result)
}

func (s *Server) searchKnowledge(c *gin.Context) {
	query := c.Query("q")
	if err := validateQuery(query); err != nil {
		BadRequestError(c, err.Error())
		return
	}
	limit := parseLimit(c, DefaultLimit)

	chunks, err := s.engine.Knowledge.Search(c.Request.Context(), query, limit)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "search complete", chunks)
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.engine.Knowledge.Sources()
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "sources listed", sources)
}

func (s *Server) sourceChunks(c *gin.Context) {
	id := c.Param("id")

	chunks, err := s.engine.Knowledge.SourceChunks(id)
	if err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "chunks retrieved", chunks)
}

func (s *Server) forgetSource(c *gin.Context) {
	id := c.Param("id")

	if err := s.engine.Knowledge.ForgetSource(id); err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "source forgotten", nil)
}

func (s *Server) reindexSource(c *gin.Context) {
	id := c.Param("id")

	if err := s.engine.Knowledge.ReindexSource(c.Request.Context(), id); err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "source reindexed", nil)
}

func (s *Server) reindexAll(c *gin.Context) {
	if err := s.engine.Knowledge.ReindexAll(c.Request.Context()); err != nil {
		FromCoreError(c, err)
		return
	}

	SuccessResponse(c, "all sources reindexed", nil)
}
