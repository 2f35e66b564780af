package notify

import (
	"FashionDetKit/logger"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Report describes one finished command.
type Report struct {
	ID       string    `json:"id"`
	Command  string    `json:"command"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	Details  any       `json:"details,omitempty"`
}

type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// NewReport starts a report for command with a fresh run id.
func NewReport(command string) *Report {
	return &Report{
		ID:      uuid.NewString(),
		Command: command,
		Started: time.Now(),
	}
}

// Finish stamps the outcome.
func (r *Report) Finish(details any, err error) {
	r.Finished = time.Now()
	r.Details = details
	r.Success = err == nil
	if err != nil {
		r.Error = err.Error()
	}
}

type Client struct {
	url    string
	client *resty.Client
}

// New returns nil when url is empty; a nil Client drops every report.
func New(url string, timeout time.Duration) *Client {
	if url == "" {
		return nil
	}
	return &Client{
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

// Send posts the report. Delivery problems are logged and returned but are
// never meant to fail the command that produced the report.
func (c *Client) Send(ctx context.Context, r *Report) error {
	if c == nil {
		return nil
	}
	var respBody Response
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(r).
		SetResult(&respBody).
		Post(c.url)
	if err != nil {
		logger.Log().Warn("run report not delivered", zap.String("url", c.url), zap.Error(err))
		return err
	}
	if resp.IsError() {
		err := fmt.Errorf("report endpoint returned %s", resp.Status())
		logger.Log().Warn("run report rejected", zap.String("url", c.url), zap.String("body", resp.String()), zap.Error(err))
		return err
	}
	logger.Log().Info("run report delivered", zap.String("id", r.ID), zap.Bool("accepted", respBody.Success))
	return nil
}
