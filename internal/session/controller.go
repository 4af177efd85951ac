// Package session implements the Web Connector session operations on top
// of the scheduler and the answer pipeline.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qbwc-webhook-adapter/internal/auth"
	"qbwc-webhook-adapter/internal/metrics"
	"qbwc-webhook-adapter/internal/models"
	"qbwc-webhook-adapter/internal/qbxml"
)

const (
	// ProgressDone is what ReceiveResponse always reports to the connector.
	ProgressDone = 100

	// InvalidUser tells the connector the credentials were rejected.
	InvalidUser = "nvu"

	closeOK          = "OK"
	connectionErrAck = "done"
)

// RequestSource yields the next request payload.
type RequestSource interface {
	NextRequest(ctx context.Context) (string, error)
}

// Submitter accepts parsed answers for processing.
type Submitter interface {
	Submit(job models.Job)
}

// Config holds the static values reported to the connector.
type Config struct {
	ServerVersion string
	ClientVersion string
}

// Controller answers the connector's session calls.
type Controller struct {
	cfg         Config
	credentials auth.Checker
	requests    RequestSource
	answers     Submitter
	ticket      string
	logger      *slog.Logger
	now         func() time.Time
}

func NewController(cfg Config, credentials auth.Checker, requests RequestSource, answers Submitter, logger *slog.Logger) *Controller {
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "1.0"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1.0"
	}
	return &Controller{
		cfg:         cfg,
		credentials: credentials,
		requests:    requests,
		answers:     answers,
		ticket:      uuid.New().String(),
		logger:      logger,
		now:         time.Now,
	}
}

// Ticket is the session ticket handed out on authentication.
func (c *Controller) Ticket() string { return c.ticket }

func (c *Controller) ServerVersion() string { return c.cfg.ServerVersion }

// ClientVersion accepts any connector version.
func (c *Controller) ClientVersion(version string) string {
	c.logger.Info("Connector version", "client_version", version)
	return c.cfg.ClientVersion
}

// Authenticate returns the ticket and an empty company file, meaning the
// file already open in the accounting application, or ["", "nvu"].
func (c *Controller) Authenticate(username, password string) []string {
	if !c.credentials.Check(username, password) {
		c.logger.Warn("Connector authentication failed", "username", username)
		return []string{"", InvalidUser}
	}
	c.logger.Info("Connector authenticated", "username", username)
	return []string{c.ticket, ""}
}

// SendRequest returns the next request for the connector. An error means
// the queue could not be read.
func (c *Controller) SendRequest(ctx context.Context) (string, error) {
	payload, err := c.requests.NextRequest(ctx)
	if err != nil {
		c.logger.Error("Failed to pick next request", "error", err)
		return "", err
	}
	return payload, nil
}

// ReceiveResponse parses an answer and hands it to the pipeline. It
// reports completion whatever happens, so one bad answer never stalls the
// connector.
func (c *Controller) ReceiveResponse(_ context.Context, response, hresult, message string) int {
	if hresult != "" || message != "" {
		c.logger.Warn("Connector reported a problem with the request", "hresult", hresult, "message", message)
	}
	answer, err := qbxml.Parse(response)
	if err != nil {
		metrics.AnswersReceived.WithLabelValues("malformed").Inc()
		c.logger.Error("Failed to parse connector answer, dropping it", "error", err, "bytes", len(response))
		return ProgressDone
	}
	c.answers.Submit(models.Job{Answer: answer, Raw: response, ReceivedAt: c.now()})
	return ProgressDone
}

func (c *Controller) CloseConnection() string {
	c.logger.Info("Connector closed the session")
	return closeOK
}

// GetLastError has nothing to report; failures never abort a session.
func (c *Controller) GetLastError() string { return "" }

// ConnectionError logs a connector-side failure to reach the company file.
func (c *Controller) ConnectionError(hresult, message string) string {
	c.logger.Error("Connector could not connect to the company file", "hresult", hresult, "message", message)
	return connectionErrAck
}
