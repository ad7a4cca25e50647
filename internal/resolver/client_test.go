package resolver

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resolveURL = "https://resolver.example.org/api/v0/resolve"

func mockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	c := NewClient("https://resolver.example.org/")
	mt := httpmock.NewMockTransport()
	c.HTTPClient().Transport = mt
	return c, mt
}

func TestResolve(t *testing.T) {
	c, mt := mockedClient(t)
	mt.RegisterResponderWithQuery(http.MethodGet, resolveURL, "survey=tic&id=219870537",
		httpmock.NewStringResponder(http.StatusOK, `{"ra": 324.566, "dec": -33.1727}`))

	pos, err := c.Resolve(context.Background(), "TIC", "219870537")
	require.NoError(t, err)
	assert.InDelta(t, 324.566, pos.RA, 1e-12)
	assert.InDelta(t, -33.1727, pos.Dec, 1e-12)

	// Second lookup is served from the cache.
	_, err = c.Resolve(context.Background(), "tic", "219870537")
	require.NoError(t, err)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestResolveGaia(t *testing.T) {
	c, mt := mockedClient(t)
	mt.RegisterResponderWithQuery(http.MethodGet, resolveURL, "survey=gaia&id=6681944303315818624",
		httpmock.NewStringResponder(http.StatusOK, `{"ra": 10.5, "dec": 20.25}`))

	pos, err := c.Resolve(context.Background(), "gaia", "6681944303315818624")
	require.NoError(t, err)
	assert.Equal(t, 10.5, pos.RA)
	assert.Equal(t, 20.25, pos.Dec)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"not found", http.StatusNotFound, `{"error":"unknown id"}`},
		{"bad json", http.StatusOK, `{"ra":`},
		{"missing dec", http.StatusOK, `{"ra": 1}`},
		{"invalid dec", http.StatusOK, `{"ra": 1, "dec": 91}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := mockedClient(t)
			mt.RegisterResponder(http.MethodGet, resolveURL, httpmock.NewStringResponder(tt.status, tt.body))

			_, err := c.Resolve(context.Background(), "tic", "1")
			assert.Error(t, err)

			// Failures are not cached.
			_, _ = c.Resolve(context.Background(), "tic", "1")
			assert.Equal(t, 2, mt.GetTotalCallCount())
		})
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	c, mt := mockedClient(t)

	_, err := c.Resolve(context.Background(), "2mass", "1")
	assert.ErrorIs(t, err, ErrUnknownSurvey)

	_, err = c.Resolve(context.Background(), "tic", " ")
	assert.Error(t, err)

	_, err = NewClient("").Resolve(context.Background(), "tic", "1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.Zero(t, mt.GetTotalCallCount())
}

func TestNormalizeSurvey(t *testing.T) {
	s, err := NormalizeSurvey(" Gaia ")
	require.NoError(t, err)
	assert.Equal(t, SurveyGaia, s)

	_, err = NormalizeSurvey("")
	assert.ErrorIs(t, err, ErrUnknownSurvey)
}
