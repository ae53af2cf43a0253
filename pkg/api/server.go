package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stockview/pkg/config"
	"stockview/pkg/logger"
	"stockview/pkg/provider/eastmoney"
	"stockview/pkg/repository"
	"stockview/pkg/search"
	"stockview/pkg/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QuoteFetcher 估值快照拉取接口，由 eastmoney.Client 实现
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, secid string) (*eastmoney.Quote, error)
}

// Server HTTP服务
type Server struct {
	svc    *service.Service
	repo   *repository.Repository
	index  *search.Index
	quotes QuoteFetcher
	log    *logrus.Entry
	server *http.Server
}

// NewServer 创建HTTP服务
func NewServer(cfg config.ServerConfig, svc *service.Service, repo *repository.Repository, index *search.Index, quotes QuoteFetcher) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		svc:    svc,
		repo:   repo,
		index:  index,
		quotes: quotes,
		log:    logger.WithComponent("APIServer"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestID(), s.accessLog())

	engine.GET("/healthz", s.handleHealth)

	apiGroup := engine.Group("/api")
	{
		apiGroup.GET("/stock/:code", s.handleStock)
		apiGroup.GET("/stock_info/:code", s.handleStockInfo)
		apiGroup.GET("/years", s.handleYears)
		apiGroup.GET("/stocks/:year", s.handleStocksByYear)
		apiGroup.GET("/search_stocks", s.handleSearchStocks)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler 返回底层HTTP处理器，测试用
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run 启动服务并阻塞直到退出
func (s *Server) Run() error {
	s.log.Infof("listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 平滑关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
