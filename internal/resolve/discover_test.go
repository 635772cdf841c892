package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/content-pulse/pkg/google"
	"github.com/sells-group/content-pulse/pkg/google/mocks"
)

func TestPlacesDiscoverer_Discover(t *testing.T) {
	t.Run("returns first website uri", func(t *testing.T) {
		mc := mocks.NewMockClient(t)
		mc.On("TextSearch", mock.Anything, "Acme Corp").Return(&google.TextSearchResponse{
			Places: []google.Place{
				{DisplayName: google.DisplayName{Text: "Acme Corp HQ"}, WebsiteURI: "https://acme.example.com"},
				{DisplayName: google.DisplayName{Text: "Acme Store"}, WebsiteURI: "https://store.acme.example.com"},
			},
		}, nil)

		d := NewPlacesDiscoverer(mc)
		url, err := d.Discover(context.Background(), "Acme Corp")
		require.NoError(t, err)
		assert.Equal(t, "https://acme.example.com", url)
	})

	t.Run("skips places without a website", func(t *testing.T) {
		mc := mocks.NewMockClient(t)
		mc.On("TextSearch", mock.Anything, "Acme Corp").Return(&google.TextSearchResponse{
			Places: []google.Place{
				{DisplayName: google.DisplayName{Text: "Listing only"}},
				{DisplayName: google.DisplayName{Text: "The real one"}, WebsiteURI: "https://acme.example.com"},
			},
		}, nil)

		d := NewPlacesDiscoverer(mc)
		url, err := d.Discover(context.Background(), "Acme Corp")
		require.NoError(t, err)
		assert.Equal(t, "https://acme.example.com", url)
	})

	t.Run("no results yields empty without error", func(t *testing.T) {
		mc := mocks.NewMockClient(t)
		mc.On("TextSearch", mock.Anything, "Ghost LLC").Return(&google.TextSearchResponse{}, nil)

		d := NewPlacesDiscoverer(mc)
		url, err := d.Discover(context.Background(), "Ghost LLC")
		require.NoError(t, err)
		assert.Equal(t, "", url)
	})

	t.Run("search error is wrapped", func(t *testing.T) {
		mc := mocks.NewMockClient(t)
		mc.On("TextSearch", mock.Anything, "Acme Corp").Return(nil, errors.New("quota exceeded"))

		d := NewPlacesDiscoverer(mc)
		_, err := d.Discover(context.Background(), "Acme Corp")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "places search")
	})

	t.Run("empty name errors without calling the api", func(t *testing.T) {
		mc := mocks.NewMockClient(t)

		d := NewPlacesDiscoverer(mc)
		_, err := d.Discover(context.Background(), "   ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
	})
}
