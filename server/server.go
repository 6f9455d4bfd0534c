// Package server is the HTTP gateway over a devnet: the transaction
// submission route, the feeder lookups and the dump/load control
// endpoints, mirroring the classic devnet surface.
//
// Responses carry felts as "0x" hex strings. Failures are JSON bodies of
// the form {"error": message}: 400 for requests the gateway cannot parse
// (bad JSON, bad felts, missing fields), 500 for lookups that miss and
// executions that fail.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	devnet "github.com/branched-services/go-devnet"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// Server routes gateway traffic onto a devnet.
type Server struct {
	d      *devnet.Devnet
	log    *zap.Logger
	engine *gin.Engine
}

// New builds the gateway over the given devnet.
func New(d *devnet.Devnet, opts ...Option) *Server {
	s := &Server{d: d, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLog())

	engine.GET("/is_alive", s.isAlive)
	engine.POST("/gateway/add_transaction", s.addTransaction)

	feeder := engine.Group("/feeder_gateway")
	feeder.POST("/call_contract", s.callContract)
	feeder.POST("/estimate_fee", s.estimateFee)
	feeder.GET("/get_transaction_status", s.getTransactionStatus)
	feeder.GET("/get_transaction", s.getTransaction)
	feeder.GET("/get_transaction_trace", s.getTransactionTrace)
	feeder.GET("/get_code", s.getCode)
	feeder.GET("/get_full_contract", s.getFullContract)

	engine.POST("/dump", s.dumpState)
	engine.POST("/load", s.loadState)

	s.engine = engine
	return s
}

// Handler returns the gateway as an http.Handler, for tests and for
// embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the gateway on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("gateway listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}

// requestLog tags every request with an id and logs its outcome.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Header("X-Request-Id", id)
		c.Next()
		s.log.Info("request",
			zap.String("id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

func (s *Server) isAlive(c *gin.Context) {
	c.String(http.StatusOK, "Alive!!!")
}

// badRequest answers a request the gateway cannot parse.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// serverError answers a lookup miss or a failed execution.
func serverError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
