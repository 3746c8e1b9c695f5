// Package matchmaking exchanges a minigame id and testing access code for
// a one-shot room ticket.
package matchmaking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"go.uber.org/zap"
)

const (
	TestingPath    = "/api/matchmaking/testing"
	DefaultTimeout = 10 * time.Second

	// TypeTesting is the only matchmaking type a minigame can request.
	TypeTesting = "testing"
)

var (
	ErrRejected        = errors.New("matchmaking: rejected")
	ErrInvalidResponse = errors.New("matchmaking: invalid response")
)

// Request is the body of a testing matchmaking call.
type Request struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
	MinigameID  string `json:"minigameId"`
	AccessCode  string `json:"testingAccessCode"`
}

// Response is the server's answer to a successful call.
type Response struct {
	Authorization string `json:"authorization"`
	Data          Data   `json:"data"`
}

type Data struct {
	Type     string           `json:"type"`
	User     types.TicketUser `json:"user"`
	Room     Room             `json:"room"`
	Metadata Metadata         `json:"metadata"`
	IssuedAt int64            `json:"iat,omitempty"`
	Expires  int64            `json:"exp,omitempty"`
}

type Room struct {
	ID     string `json:"id"`
	Server Server `json:"server"`
}

type Server struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Location string `json:"location,omitempty"`
}

type Metadata struct {
	Type       string `json:"type"`
	MinigameID string `json:"minigameId"`
	AccessCode string `json:"testingAccessCode"`
}

// Ticket returns the connection credentials carried by r.
func (r Response) Ticket() types.Ticket {
	return types.Ticket{
		AuthorizationToken: r.Authorization,
		TargetAddress:      r.Data.Room.Server.URL,
		User:               r.Data.User,
	}
}

// RejectedError is returned for any non-200 answer. It matches
// ErrRejected.
type RejectedError struct {
	Status int
	Code   types.ErrorCode
}

func (e *RejectedError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("matchmaking: rejected with status %d; check the minigame id and testing access code", e.Status)
	}
	return fmt.Sprintf("matchmaking: rejected with status %d: %s (%s)", e.Status, e.Code.Text(), e.Code)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewClient(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		log:     opts.Logger.Named("matchmaking"),
	}
}

// Testing requests a testing room. It is never retried.
func (c *Client) Testing(ctx context.Context, req Request) (types.Ticket, error) {
	req.Type = TypeTesting
	body, err := json.Marshal(req)
	if err != nil {
		return types.Ticket{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TestingPath, bytes.NewReader(body))
	if err != nil {
		return types.Ticket{}, fmt.Errorf("matchmaking: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(hreq)
	if err != nil {
		return types.Ticket{}, fmt.Errorf("matchmaking: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return types.Ticket{}, fmt.Errorf("matchmaking: read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		rej := &RejectedError{Status: res.StatusCode}
		var apiErr types.APIErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil {
			rej.Code = apiErr.Code
		}
		c.log.Warn("matchmaking rejected",
			zap.Int("status", rej.Status),
			zap.String("code", string(rej.Code)),
			zap.String("minigame_id", req.MinigameID))
		return types.Ticket{}, rej
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.Ticket{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if out.Authorization == "" || out.Data.Room.Server.URL == "" {
		return types.Ticket{}, fmt.Errorf("%w: missing authorization or server url", ErrInvalidResponse)
	}
	c.log.Info("matched testing room",
		zap.String("room_id", out.Data.Room.ID),
		zap.String("server", out.Data.Room.Server.URL),
		zap.String("user_id", out.Data.User.ID))
	return out.Ticket(), nil
}
