package soap

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// maxEnvelopeBytes bounds one request; large query answers run to a few
// megabytes.
const maxEnvelopeBytes = 64 << 20

//go:embed qbwc.wsdl
var wsdl []byte

// Service is the set of session operations the connector calls.
type Service interface {
	ServerVersion() string
	ClientVersion(version string) string
	Authenticate(username, password string) []string
	SendRequest(ctx context.Context) (string, error)
	ReceiveResponse(ctx context.Context, response, hresult, message string) int
	CloseConnection() string
	GetLastError() string
	ConnectionError(hresult, message string) string
}

// Handler decodes SOAP calls, runs them against a Service and encodes the
// results.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.Write(wsdl)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err != nil {
		h.logger.Error("Failed to read SOAP request", "error", err)
		h.writeFault(w, "soap:Client", "cannot read request body")
		return
	}

	c, err := decodeCall(data)
	if err != nil {
		h.logger.Warn("Rejected SOAP request", "error", err)
		h.writeFault(w, "soap:Client", err.Error())
		return
	}

	logger := h.logger.With("operation", c.Operation)
	res, err := h.dispatch(r.Context(), c)
	if err != nil {
		var clientErr *clientError
		if errors.As(err, &clientErr) {
			logger.Warn("Rejected SOAP call", "error", err)
			h.writeFault(w, "soap:Client", err.Error())
			return
		}
		logger.Error("SOAP call failed", "error", err)
		h.writeFault(w, "soap:Server", err.Error())
		return
	}
	logger.Debug("SOAP call completed")
	h.write(w, http.StatusOK, newResponse(c.Operation, res))
}

// clientError marks a problem with the caller's request rather than the
// server.
type clientError struct{ err error }

func (e *clientError) Error() string { return e.err.Error() }
func (e *clientError) Unwrap() error { return e.err }

func (h *Handler) dispatch(ctx context.Context, c *call) (result, error) {
	decode := func(v any) error {
		if err := c.decode(v); err != nil {
			return &clientError{err: err}
		}
		return nil
	}

	switch c.Operation {
	case "serverVersion":
		return text(h.service.ServerVersion()), nil

	case "clientVersion":
		var args clientVersionArgs
		if err := decode(&args); err != nil {
			return result{}, err
		}
		return text(h.service.ClientVersion(args.Version)), nil

	case "authenticate":
		var args authenticateArgs
		if err := decode(&args); err != nil {
			return result{}, err
		}
		return result{Strings: h.service.Authenticate(args.Username, args.Password)}, nil

	case "sendRequestXML":
		var args sendRequestArgs
		if err := decode(&args); err != nil {
			return result{}, err
		}
		payload, err := h.service.SendRequest(ctx)
		if err != nil {
			return result{}, err
		}
		return text(payload), nil

	case "receiveResponseXML":
		var args receiveResponseArgs
		if err := decode(&args); err != nil {
			return result{}, err
		}
		progress := h.service.ReceiveResponse(ctx, args.Response, args.HResult, args.Message)
		return text(strconv.Itoa(progress)), nil

	case "closeConnection":
		var args ticketArgs
		if err := decode(&args); err != nil {
			return result{}, err
		}
		return text(h.service.CloseConnection()), nil

	case "getLastError":
		var args ticketArgs
		if err := decode(&args); err != nil {
			return result{}, err
		}
		return text(h.service.GetLastError()), nil

	case "connectionError":
		var args connectionErrorArgs
		if err := decode(&args); err != nil {
			return result{}, err
		}
		return text(h.service.ConnectionError(args.HResult, args.Message)), nil
	}
	return result{}, &clientError{err: fmt.Errorf("unknown operation %q", c.Operation)}
}

func text(s string) result { return result{Text: s} }

func (h *Handler) writeFault(w http.ResponseWriter, code, message string) {
	h.write(w, http.StatusInternalServerError, newFault(code, message))
}

func (h *Handler) write(w http.ResponseWriter, status int, env responseEnvelope) {
	body, err := encodeEnvelope(env)
	if err != nil {
		h.logger.Error("Failed to encode SOAP response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
