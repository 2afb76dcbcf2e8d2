package connectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	nexusHTTPTimeout = 15 * time.Second
	nexusWSURLPath   = "/stream/v1/events"
)

type nexusAPIResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg,omitempty"`
	Data json.RawMessage `json:"data"`
}

// NexusRESTSession is the concrete vendor session: signed REST calls over
// resty plus a websocket event stream. The websocket read loop is the
// vendor-managed goroutine that invokes the registered event handler.
type NexusRESTSession struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsBaseURL string
	http      *resty.Client

	mu      sync.Mutex
	handler func(NexusEvent)
	ws      *websocket.Conn
	closed  bool
}

func NewNexusRESTSession(apiKey, apiSecret, baseURL, wsBaseURL string) *NexusRESTSession {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(nexusHTTPTimeout)

	return &NexusRESTSession{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsBaseURL: wsBaseURL,
		http:      httpClient,
	}
}

func (s *NexusRESTSession) SetEventHandler(handler func(NexusEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Open dials the event stream for the account and starts the read loop.
func (s *NexusRESTSession) Open(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false

	url := s.wsBaseURL + nexusWSURLPath + "?account=" + accountID

	header := http.Header{}
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	header.Set("NX-API-KEY", s.apiKey)
	header.Set("NX-API-TIMESTAMP", timestamp)
	header.Set("NX-API-SIGN", signNexus(s.apiSecret, timestamp, "GET", nexusWSURLPath, ""))

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("dial nexus event stream: %w", err)
	}
	s.ws = conn

	go s.readLoop(conn)

	logger.WithField("account", accountID).Debug("nexus event stream opened")
	return nil
}

func (s *NexusRESTSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ws != nil {
		err := s.ws.Close()
		s.ws = nil
		return err
	}
	return nil
}

// readLoop is the vendor goroutine: it decodes stream frames and hands them
// to the handler. A read error emits a disconnect event and exits.
func (s *NexusRESTSession) readLoop(conn *websocket.Conn) {
	for {
		var ev NexusEvent
		if err := conn.ReadJSON(&ev); err != nil {
			s.mu.Lock()
			closed := s.closed
			handler := s.handler
			s.mu.Unlock()

			if !closed && handler != nil {
				logger.WithError(err).Warn("nexus event stream read failed")
				handler(NexusEvent{Type: NexusEventDisconnect})
			}
			return
		}

		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(ev)
		}
	}
}

func (s *NexusRESTSession) PlaceOrder(req NexusOrderRequest) (NexusOrderAck, error) {
	var ack NexusOrderAck
	data, err := s.doRequest(http.MethodPost, "/api/v1/orders", req)
	if err != nil {
		return ack, err
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return ack, fmt.Errorf("unmarshal nexus order ack: %w", err)
	}
	return ack, nil
}

func (s *NexusRESTSession) CancelOrder(vendorOrderID string) error {
	_, err := s.doRequest(http.MethodDelete, "/api/v1/orders/"+vendorOrderID, nil)
	return err
}

func (s *NexusRESTSession) OrderStatus(vendorOrderID string) (string, error) {
	data, err := s.doRequest(http.MethodGet, "/api/v1/orders/"+vendorOrderID, nil)
	if err != nil {
		return "", err
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("unmarshal nexus order status: %w", err)
	}
	return payload.Status, nil
}

func (s *NexusRESTSession) OrderStatusByClientID(clientOrderID string) (string, string, error) {
	data, err := s.doRequest(http.MethodGet, "/api/v1/orders/by-client-id/"+clientOrderID, nil)
	if err != nil {
		return "", "", err
	}

	var payload struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", "", fmt.Errorf("unmarshal nexus order lookup: %w", err)
	}
	return payload.OrderID, payload.Status, nil
}

func (s *NexusRESTSession) Positions() ([]NexusPosition, error) {
	data, err := s.doRequest(http.MethodGet, "/api/v1/positions", nil)
	if err != nil {
		return nil, err
	}

	var positions []NexusPosition
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("unmarshal nexus positions: %w", err)
	}
	return positions, nil
}

func (s *NexusRESTSession) Account() (NexusAccount, error) {
	var account NexusAccount
	data, err := s.doRequest(http.MethodGet, "/api/v1/account", nil)
	if err != nil {
		return account, err
	}
	if err := json.Unmarshal(data, &account); err != nil {
		return account, fmt.Errorf("unmarshal nexus account: %w", err)
	}
	return account, nil
}

// doRequest performs one signed call. 429 becomes a RateLimitError so the
// adapter's backoff policy can kick in; other transport failures surface
// as-is for the adapter to classify.
func (s *NexusRESTSession) doRequest(method, path string, body interface{}) (json.RawMessage, error) {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

	payload := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal nexus request: %w", err)
		}
		payload = string(raw)
	}

	req := s.http.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("NX-API-KEY", s.apiKey).
		SetHeader("NX-API-TIMESTAMP", timestamp).
		SetHeader("NX-API-SIGN", signNexus(s.apiSecret, timestamp, method, path, payload))

	if payload != "" {
		req.SetBody(payload)
	}

	logger.WithFields(logger.Fields{
		"method": method,
		"path":   path,
	}).Debug("nexus HTTP request")

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("nexus http %s %s: %w", method, path, err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, &RateLimitError{Venue: "nexus"}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("nexus http status %d: %s", resp.StatusCode(), resp.String())
	}

	var apiResp nexusAPIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal nexus response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("nexus api error %d: %s", apiResp.Code, apiResp.Msg)
	}

	return apiResp.Data, nil
}

// NX-API-SIGN = hex( HMAC_SHA256(apiSecret, timestamp + method + path + body) )
func signNexus(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}
