// Package lambda adapts API Gateway proxy events to the HTTP router.
package lambda

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/zms-erp/ledgertree/client"
)

// Handler represents the Lambda handler with its dependencies
type Handler struct {
	router http.Handler
	logger *logrus.Logger
}

// NewHandler creates a new Handler serving events through router
func NewHandler(router http.Handler, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		router: router,
		logger: logger,
	}
}

// Handle processes API Gateway events
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toHTTPRequest(ctx, request)
	if err != nil {
		h.logger.WithError(err).Warn("rejecting malformed event")
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       fmt.Sprintf(`{"error": %q}`, err.Error()),
		}, nil
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return toProxyResponse(rec), nil
}

func toHTTPRequest(ctx context.Context, request events.APIGatewayProxyRequest) (*http.Request, error) {
	body := request.Body
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 body: %w", err)
		}
		body = string(decoded)
	}

	query := url.Values{}
	for key, values := range request.MultiValueQueryStringParameters {
		query[key] = append(query[key], values...)
	}
	for key, value := range request.QueryStringParameters {
		if _, ok := query[key]; !ok {
			query.Set(key, value)
		}
	}
	target := request.Path
	if target == "" {
		target = "/"
	}
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	method := request.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, values := range request.MultiValueHeaders {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, value := range request.Headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if req.Header.Get(client.RequestIDHeader) == "" && request.RequestContext.RequestID != "" {
		req.Header.Set(client.RequestIDHeader, request.RequestContext.RequestID)
	}
	return req, nil
}

func toProxyResponse(rec *httptest.ResponseRecorder) events.APIGatewayProxyResponse {
	resp := events.APIGatewayProxyResponse{
		StatusCode:        rec.Code,
		Headers:           make(map[string]string),
		MultiValueHeaders: make(map[string][]string),
	}
	for key, values := range rec.Header() {
		resp.MultiValueHeaders[key] = values
		if len(values) > 0 {
			resp.Headers[key] = values[0]
		}
	}

	if isText(rec.Header().Get("Content-Type")) {
		resp.Body = rec.Body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(rec.Body.Bytes())
		resp.IsBase64Encoded = true
	}
	return resp
}

func isText(contentType string) bool {
	if contentType == "" {
		return true
	}
	return strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "json")
}
