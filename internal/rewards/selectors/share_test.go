package selectors

import (
	"net/url"
	"strings"
	"testing"

	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareIntentURL(t *testing.T) {
	content := "Go, Postgres & fiber"
	want := "My tech stack: Go, Postgres & fiber\n\nShared via Flowva Rewards! \n\nSign up at http://flowvahub.com"

	tw, err := ShareIntentURL(types.PlatformTwitter, content)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tw, "https://twitter.com/intent/tweet?text="))
	assert.NotContains(t, tw, "+")
	assert.Contains(t, tw, "Rewards!%20")
	u, err := url.Parse(tw)
	require.NoError(t, err)
	assert.Equal(t, want, u.Query().Get("text"))

	fb, err := ShareIntentURL(types.PlatformFacebook, content)
	require.NoError(t, err)
	u, err = url.Parse(fb)
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", u.Host)
	assert.Equal(t, "https://flowvahub.com", u.Query().Get("u"))
	assert.Equal(t, want, u.Query().Get("quote"))

	_, err = ShareIntentURL("myspace", content)
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestEncodeComponent(t *testing.T) {
	cases := map[string]string{
		"a b":            "a%20b",
		"!'()*-_.~":      "!'()*-_.~",
		"a+b&c=d/e?f#g":  "a%2Bb%26c%3Dd%2Fe%3Ff%23g",
		"caf\u00e9 100%": "caf%C3%A9%20100%25",
		"line\nbreak":    "line%0Abreak",
	}
	for in, want := range cases {
		assert.Equal(t, want, encodeComponent(in), in)
	}
}

func TestReferralURLs(t *testing.T) {
	assert.Equal(t, "", ReferralURL("https://app.example.com", ""))
	ref := ReferralURL("https://app.example.com/", "AB12CD34")
	assert.Equal(t, "https://app.example.com/signup?ref=AB12CD34", ref)

	assert.Nil(t, ReferralShareURLs(""))
	urls := ReferralShareURLs(ref)
	assert.Len(t, urls, 4)
	u, err := url.Parse(urls["whatsapp"])
	require.NoError(t, err)
	assert.Equal(t, "Join me on Flowva and earn rewards! "+ref, u.Query().Get("text"))
	u, err = url.Parse(urls["twitter"])
	require.NoError(t, err)
	assert.Equal(t, ref, u.Query().Get("url"))

	_, err = ReferralShareURL("myspace", ref)
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestAggregateReferrals(t *testing.T) {
	refs := []*types.Referral{
		{IsCompleted: true, PointsAwarded: 25},
		{IsCompleted: false, PointsAwarded: 25},
		{IsCompleted: true, PointsAwarded: 50},
	}
	assert.Equal(t, types.ReferralStats{TotalReferrals: 3, CompletedReferrals: 2, PointsEarned: 75}, AggregateReferrals(refs))
	assert.Equal(t, types.ReferralStats{}, AggregateReferrals(nil))
}
