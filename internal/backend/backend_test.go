package backend

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/foodapp/internal/manifest"
	"github.com/R3E-Network/foodapp/internal/model"
	"github.com/R3E-Network/foodapp/pkg/testutil"
)

var names = Names{UserEntity: "users", Restaurants: "restaurants"}

func newBackend(t *testing.T, fake *testutil.FakeManifest, token string) *Backend {
	t.Helper()
	client, err := manifest.NewClient(manifest.Config{BaseURL: fake.URL(), AppID: "app"})
	require.NoError(t, err)
	return New(client.WithToken(token), names)
}

func TestMeWithoutTokenIsNil(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	b := newBackend(t, fake, "")

	user, err := b.Me(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Zero(t, fake.TotalCalls(), "no network call without a token")
}

func TestCreateAndListRestaurants(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	b := newBackend(t, fake, fake.TokenFor(testutil.DemoEmail))
	ctx := context.Background()

	me, err := b.Me(ctx)
	require.NoError(t, err)
	require.NotNil(t, me)

	empty, err := b.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	in := model.RestaurantInput{Name: "Noodle House", Description: "Hand pulled", Address: "2 Elm St", Cuisine: "Chinese"}
	created, err := b.CreateRestaurant(ctx, in, me.ID, &model.Upload{
		Filename:    "hero.png",
		ContentType: "image/png",
		Body:        strings.NewReader("png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Noodle House", created.Name)
	assert.Contains(t, created.HeroImage.Thumbnail(), "hero.png")

	list, err := b.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, testutil.DemoName, list[0].OwnerName())
	assert.Equal(t, 1, fake.Calls("upload"))
}

func TestIDValue(t *testing.T) {
	assert.Equal(t, json.Number("12"), idValue("12"))
	assert.Equal(t, json.Number("-3"), idValue("-3"))
	assert.Equal(t, "abc-123", idValue("abc-123"))
	assert.Equal(t, "007", idValue("007"))
	assert.Equal(t, "+5", idValue("+5"))

	body, err := json.Marshal(map[string]interface{}{"owner": idValue("007")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"007"}`, string(body))
}
