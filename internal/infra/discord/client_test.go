package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HurleySk/robo-birder/internal/domain/alert"
	"github.com/HurleySk/robo-birder/internal/domain/detection"
)

const (
	testWebhook     = "https://discord.test/api/webhooks/1/token"
	overrideWebhook = "https://discord.test/api/webhooks/2/other"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewClient(testWebhook, "http://birdnet.local:8080/", logrus.NewEntry(l))
}

// capture records the embeds posted to url.
func capture(t *testing.T, url string, status int) *[]embed {
	t.Helper()
	var got []embed
	httpmock.RegisterResponder(http.MethodPost, url, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		var p payload
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			return nil, err
		}
		got = append(got, p.Embeds...)
		return httpmock.NewStringResponse(status, ""), nil
	})
	return &got
}

func cardinal() *detection.Detection {
	return &detection.Detection{
		ID:             42,
		BeginTime:      time.Date(2026, 5, 10, 6, 5, 0, 0, time.UTC),
		ScientificName: "Cardinalis cardinalis",
		CommonName:     "Northern Cardinal",
		Confidence:     0.934,
	}
}

func TestSendNewSpecies(t *testing.T) {
	c := newTestClient(t)
	got := capture(t, testWebhook, http.StatusNoContent)

	err := c.SendNewSpecies(context.Background(), &alert.NewSpecies{
		Detection: cardinal(),
		Reason:    "First ever sighting!",
		ImageURL:  "https://img.test/cardinal.jpg",
	})
	require.NoError(t, err)
	require.Len(t, *got, 1)

	e := (*got)[0]
	assert.Equal(t, "NEW SPECIES: Northern Cardinal", e.Title)
	assert.Equal(t, colorNewSpecies, e.Color)
	assert.Equal(t, "http://birdnet.local:8080/ui/detections/42", e.URL)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "*Cardinalis cardinalis*", e.Fields[0].Value)
	assert.Equal(t, "**First ever sighting!**\nConfidence: 93%\nTime: 6:05 AM", e.Fields[1].Value)
	require.NotNil(t, e.Thumbnail)
	assert.Equal(t, "https://img.test/cardinal.jpg", e.Thumbnail.URL)
	assert.Equal(t, "Robo-Birder", e.Footer.Text)
	assert.Equal(t, "2026-05-10T06:05:00Z", e.Timestamp)
}

func TestNewSpeciesWebhookOverride(t *testing.T) {
	c := newTestClient(t)
	def := capture(t, testWebhook, http.StatusNoContent)
	override := capture(t, overrideWebhook, http.StatusNoContent)

	err := c.SendNewSpecies(context.Background(), &alert.NewSpecies{
		Detection:  cardinal(),
		Reason:     "First sighting of 2026!",
		WebhookURL: overrideWebhook,
	})
	require.NoError(t, err)
	assert.Empty(t, *def)
	require.Len(t, *override, 1)
	assert.Nil(t, (*override)[0].Thumbnail)
}

func TestSendDetection(t *testing.T) {
	c := newTestClient(t)
	got := capture(t, testWebhook, http.StatusOK)

	require.NoError(t, c.SendDetection(context.Background(), &alert.Sighting{Detection: cardinal()}))
	require.Len(t, *got, 1)

	e := (*got)[0]
	assert.Equal(t, "Northern Cardinal", e.Title)
	assert.Equal(t, "*Cardinalis cardinalis*", e.Description)
	assert.Equal(t, colorDetection, e.Color)
	assert.Equal(t, []field{
		{Name: "Confidence", Value: "93%", Inline: true},
		{Name: "Time", Value: "6:05 AM", Inline: true},
	}, e.Fields)
}

func TestSendTest(t *testing.T) {
	c := newTestClient(t)
	got := capture(t, testWebhook, http.StatusNoContent)

	require.NoError(t, c.SendTest(context.Background()))
	require.Len(t, *got, 1)
	assert.Equal(t, "Robo-Birder Test", (*got)[0].Title)
	assert.Equal(t, "If you see this message, your Discord webhook is configured correctly!", (*got)[0].Description)
}

func TestSendSummary(t *testing.T) {
	generated := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	species := []detection.SpeciesSummary{
		{CommonName: "American Robin", Count: 12, ImageURL: "https://img.test/robin.jpg"},
		{CommonName: "Northern Cardinal", Count: 7},
		{CommonName: "Blue Jay", Count: 3},
	}

	t.Run("daily", func(t *testing.T) {
		c := newTestClient(t)
		got := capture(t, overrideWebhook, http.StatusNoContent)

		err := c.SendSummary(context.Background(), &alert.Summary{
			Name:            "daily",
			TotalDetections: 22,
			Species:         species,
			TopN:            2,
			Hourly:          map[int]int{6: 10, 7: 9, 12: 3},
			LookbackMinutes: 1440,
			GeneratedAt:     generated,
			WebhookURL:      overrideWebhook,
		})
		require.NoError(t, err)
		require.Len(t, *got, 1)

		e := (*got)[0]
		assert.Equal(t, "Daily Bird Report", e.Title)
		assert.Equal(t, "**May 10, 2026**", e.Description)
		assert.Equal(t, colorSummary, e.Color)
		require.Len(t, e.Fields, 3)
		assert.Equal(t, "**22** detections | **3** species", e.Fields[0].Value)
		assert.Equal(t, "Species", e.Fields[1].Name)
		assert.Equal(t, "1. **American Robin** (12)\n2. **Northern Cardinal** (7)\n*...and 1 more species*", e.Fields[1].Value)
		assert.Equal(t, field{Name: "Peak Activity", Value: "6 AM-8 AM"}, e.Fields[2])
		require.NotNil(t, e.Thumbnail)
		assert.Equal(t, "https://img.test/robin.jpg", e.Thumbnail.URL)
	})

	t.Run("top species heading", func(t *testing.T) {
		c := newTestClient(t)
		got := capture(t, testWebhook, http.StatusNoContent)

		err := c.SendSummary(context.Background(), &alert.Summary{
			TotalDetections: 22, Species: species, TopN: 10, LookbackMinutes: 2880, GeneratedAt: generated,
		})
		require.NoError(t, err)
		e := (*got)[0]
		assert.Equal(t, "2-Day Bird Report", e.Title)
		assert.Equal(t, "Top Species", e.Fields[1].Name)
		assert.Len(t, e.Fields, 2)
	})

	t.Run("no detections", func(t *testing.T) {
		c := newTestClient(t)
		got := capture(t, testWebhook, http.StatusNoContent)

		err := c.SendSummary(context.Background(), &alert.Summary{TopN: 10, LookbackMinutes: 60, GeneratedAt: generated})
		require.NoError(t, err)
		e := (*got)[0]
		assert.Equal(t, "Hourly Bird Report", e.Title)
		assert.Equal(t, []field{{Name: "No Detections", Value: "No birds were detected during this period."}}, e.Fields)
		assert.Nil(t, e.Thumbnail)
	})
}

func TestWebhookFailure(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testWebhook,
		httpmock.NewStringResponder(http.StatusNotFound, `{"message": "Unknown Webhook"}`))

	err := c.SendTest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord webhook returned")
	assert.Contains(t, err.Error(), "Unknown Webhook")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestTransportErrorHidesWebhookToken(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testWebhook, httpmock.NewErrorResponder(assert.AnError))

	err := c.SendTest(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token")
}

func TestMissingWebhook(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := NewClient("", "", logrus.NewEntry(l))

	assert.Error(t, c.SendTest(context.Background()))
}
