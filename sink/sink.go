package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	iface "SeatEventServer/interface"
	"SeatEventServer/logger"
)

const TimeOutSeconds = 5

// EventSink delivers emitted signal pairs to a downstream webhook.
type EventSink struct {
	client *resty.Client
	url    string
}

type eventEnvelope struct {
	SessionID string              `json:"sessionId"`
	Signals   []iface.EventSignal `json:"signals"`
	TimeStamp int64               `json:"timestamp"`
}

func New(url string) *EventSink {
	return &EventSink{
		client: resty.New().SetTimeout(TimeOutSeconds * time.Second),
		url:    url,
	}
}

// Deliver posts one signal pair. Delivery failures are the consumer's
// problem to notice, not the pipeline's: the error is returned for logging
// and the tracker state is already advanced.
func (s *EventSink) Deliver(ctx context.Context, sessionID string, signals []iface.EventSignal) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(eventEnvelope{
			SessionID: sessionID,
			Signals:   signals,
			TimeStamp: time.Now().Unix(),
		}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("deliver events: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("event sink returned %s: %s", resp.Status(), resp.String())
	}
	return nil
}

type RegisterRequest struct {
	Id        string `json:"id"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	TimeStamp int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) SetAddress(addr string, port int) {
	reg.Addr = addr
	reg.Port = port
}

var RegServerCfg RegServerConfig

// SendAliveMessage announces this instance to the coordination server and
// keeps re-announcing on a ticker until the context is cancelled.
func SendAliveMessage(ownIP string, ownPort int, ctx context.Context, wg *sync.WaitGroup) {
	addr := fmt.Sprintf("%s:%d", RegServerCfg.Addr, RegServerCfg.Port)
	defer wg.Done()
	ticker := time.NewTicker(TimeOutSeconds * time.Second)
	defer ticker.Stop()
	client := resty.New().SetTimeout(TimeOutSeconds * time.Second)
	id := uuid.NewString()
	safeDoRequest := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log().Error(fmt.Sprintf("SendAliveMessage panic recovered: %v", r))
			}
		}()
		var respBody RegisterResponse
		url := fmt.Sprintf("http://%s/api/register", addr)
		reqBody := RegisterRequest{
			Id:        id,
			IP:        ownIP,
			Port:      ownPort,
			TimeStamp: time.Now().Unix(),
		}
		resp, err := client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(reqBody).
			SetResult(&respBody).
			Post(url)
		if err != nil {
			logger.Log().Error(fmt.Sprintf("request error: %v", err))
			return
		}
		if resp.IsError() {
			logger.Log().Error(fmt.Sprintf("register server returned error: %s, body: %s", resp.Status(), resp.String()))
		}
	}
	safeDoRequest()
	for {
		select {
		case <-ctx.Done():
			logger.Log().Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			safeDoRequest()
		}
	}
}
