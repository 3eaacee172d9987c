// Package api отдаёт проекты и задачи по HTTP.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ivlev/story2video/internal/engine"
	"github.com/ivlev/story2video/internal/jobs"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/project"
)

type Server struct {
	Store       *project.Store
	Jobs        *jobs.Manager
	NewPipeline func() pipeline.Runner
	// NewCompiler получает колбэк переходов состояния сборки.
	NewCompiler func(onState func(engine.State)) pipeline.VideoCompiler
}

// NewRouter создаёт Gin engine с зарегистрированными маршрутами.
func (s *Server) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	g := r.Group("/api")
	g.GET("/projects", s.handleListProjects)
	g.POST("/projects", s.handleCreateProject)
	g.GET("/projects/:id", s.handleGetProject)
	g.POST("/projects/:id/stages/:stage", s.handleRunStage)
	g.POST("/compile", s.handleCompile)
	g.GET("/jobs/:id", s.handleGetJob)
	g.GET("/jobs/:id/ws", s.handleJobStream)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type CreateProjectRequest struct {
	Title string `json:"title"`
	Story string `json:"story"`
	URL   string `json:"url"`
	Style string `json:"style"`
}

func (s *Server) handleListProjects(c *gin.Context) {
	list, err := s.Store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*project.Project{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := s.Store.Create(req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	p.Story = strings.TrimSpace(req.Story)
	p.URL = req.URL
	p.Style = req.Style
	if err := s.Store.Save(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetProject(c *gin.Context) {
	p, err := s.Store.Load(c.Param("id"))
	if errors.Is(err, project.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleRunStage(c *gin.Context) {
	id, stage := c.Param("id"), c.Param("stage")
	if _, err := pipeline.StagesFrom(stage); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.Store.Load(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	jobID := pipeline.Submit(s.Jobs, s.Store, s.NewPipeline, id, stage)
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (s *Server) handleCompile(c *gin.Context) {
	// оверлеи включены, если поле не передано
	req := engine.Request{Overlay: true}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Audio == "" || len(req.Prompts) == 0 || len(req.Images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompts, images and audio are required"})
		return
	}

	jobID := s.Jobs.Submit("compile", func(ctx context.Context, report jobs.Reporter) (any, error) {
		onState := func(st engine.State) {
			if st != engine.Done && st != engine.Aborted {
				report(st.Progress(), st.String())
			}
		}
		res := s.NewCompiler(onState).Compile(ctx, req)
		if !res.OK() {
			return res, errors.New(res.Reason)
		}
		return res, nil
	})
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (s *Server) handleGetJob(c *gin.Context) {
	st, ok := s.Jobs.Poll(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleJobStream(c *gin.Context) {
	updates, cancel, err := s.Jobs.Subscribe(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[!] Не удалось открыть websocket: %v", err)
		return
	}
	defer conn.Close()

	for st := range updates {
		if err := conn.WriteJSON(st); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}
