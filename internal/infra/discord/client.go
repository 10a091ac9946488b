// Package discord delivers alerts as Discord webhook embeds.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
)

const (
	colorNewSpecies = 0xFFD700
	colorDetection  = 0x3498DB
	colorSummary    = 0x2ECC71

	requestTimeout = 10 * time.Second

	// Discord allows 30 webhook messages per minute per channel.
	requestsPerMinute = 30
	requestBurst      = 10
)

// Client posts embeds to a Discord webhook.
type Client struct {
	webhookURL string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Entry
}

var _ alert.Sink = (*Client)(nil)

// NewClient creates a sink for webhookURL. baseURL is the BirdNET-Go web UI
// used for detection links.
func NewClient(webhookURL, baseURL string, logger *logrus.Entry) *Client {
	return &Client{
		webhookURL: webhookURL,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/requestsPerMinute), requestBurst),
		logger:     logger,
	}
}

func (c *Client) Name() string { return "discord" }

func (c *Client) SendNewSpecies(ctx context.Context, a *alert.NewSpecies) error {
	d := a.Detection
	e := embed{
		Title: "NEW SPECIES: " + d.CommonName,
		URL:   c.detectionURL(d.ID),
		Color: colorNewSpecies,
		Fields: []field{
			{Name: d.CommonName, Value: "*" + d.ScientificName + "*"},
			{Name: "Details", Value: fmt.Sprintf("**%s**\nConfidence: %s\nTime: %s",
				a.Reason, alert.Percent(d.Confidence), alert.ClockTime(d.BeginTime))},
		},
		Footer:    &footer{Text: alert.Footer},
		Timestamp: d.BeginTime.Format(time.RFC3339),
	}
	if a.ImageURL != "" {
		e.Thumbnail = &thumbnail{URL: a.ImageURL}
	}
	return c.post(ctx, c.target(a.WebhookURL), e)
}

func (c *Client) SendDetection(ctx context.Context, a *alert.Sighting) error {
	d := a.Detection
	e := embed{
		Title:       d.CommonName,
		Description: "*" + d.ScientificName + "*",
		URL:         c.detectionURL(d.ID),
		Color:       colorDetection,
		Fields: []field{
			{Name: "Confidence", Value: alert.Percent(d.Confidence), Inline: true},
			{Name: "Time", Value: alert.ClockTime(d.BeginTime), Inline: true},
		},
		Footer:    &footer{Text: alert.Footer},
		Timestamp: d.BeginTime.Format(time.RFC3339),
	}
	if a.ImageURL != "" {
		e.Thumbnail = &thumbnail{URL: a.ImageURL}
	}
	return c.post(ctx, c.webhookURL, e)
}

func (c *Client) SendSummary(ctx context.Context, s *alert.Summary) error {
	return c.post(ctx, c.target(s.WebhookURL), summaryEmbed(s))
}

func (c *Client) SendTest(ctx context.Context) error {
	return c.post(ctx, c.webhookURL, embed{
		Title:       "Robo-Birder Test",
		Description: "If you see this message, your Discord webhook is configured correctly!",
		Color:       colorSummary,
		Footer:      &footer{Text: alert.Footer},
	})
}

func summaryEmbed(s *alert.Summary) embed {
	title, period := alert.ReportTitle(s.LookbackMinutes, s.GeneratedAt)
	e := embed{
		Title:       title,
		Description: "**" + period + "**",
		Color:       colorSummary,
		Footer:      &footer{Text: alert.Footer},
		Timestamp:   s.GeneratedAt.Format(time.RFC3339),
	}

	if s.TotalDetections == 0 {
		e.Fields = []field{{Name: "No Detections", Value: "No birds were detected during this period."}}
		return e
	}

	e.Fields = []field{{
		Name:  "Summary",
		Value: fmt.Sprintf("**%d** detections | **%d** species", s.TotalDetections, len(s.Species)),
	}}
	if list := alert.SpeciesList(s, bold); list != "" {
		name := "Species"
		if s.TopN > 5 {
			name = "Top Species"
		}
		e.Fields = append(e.Fields, field{Name: name, Value: list})
	}
	if peaks := alert.PeakHours(s.Hourly); peaks != "" {
		e.Fields = append(e.Fields, field{Name: "Peak Activity", Value: peaks})
	}
	if len(s.Species) > 0 && s.TopN > 0 && s.Species[0].ImageURL != "" {
		e.Thumbnail = &thumbnail{URL: s.Species[0].ImageURL}
	}
	return e
}

func (c *Client) post(ctx context.Context, webhookURL string, e embed) error {
	if webhookURL == "" {
		return errors.New("discord webhook url is not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "waiting for discord rate limit")
	}

	body, err := json.Marshal(payload{Embeds: []embed{e}})
	if err != nil {
		return errors.Wrap(err, "failed to encode discord payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(redact(err), "failed to build discord request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(redact(err), "discord webhook request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("discord webhook returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.WithField("title", e.Title).Debug("Discord message sent")
	return nil
}

// redact drops the request URL from transport errors; webhook URLs carry the token.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func (c *Client) target(override string) string {
	if override != "" {
		return override
	}
	return c.webhookURL
}

func (c *Client) detectionURL(id int64) string {
	return fmt.Sprintf("%s/ui/detections/%d", c.baseURL, id)
}

func bold(s string) string { return "**" + s + "**" }

type payload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Color       int        `json:"color"`
	Fields      []field    `json:"fields,omitempty"`
	Thumbnail   *thumbnail `json:"thumbnail,omitempty"`
	Footer      *footer    `json:"footer,omitempty"`
	Timestamp   string     `json:"timestamp,omitempty"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type footer struct {
	Text string `json:"text"`
}
