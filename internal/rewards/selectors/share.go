package selectors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/go-faster/errors"
)

const (
	promoSite     = "https://flowvahub.com"
	referralText  = "Join me on Flowva and earn rewards!"
	stackTemplate = "My tech stack: %s\n\nShared via Flowva Rewards! \n\nSign up at http://flowvahub.com"
)

var ErrUnknownPlatform = errors.New("unknown share platform")

// ReferralPlatforms are the targets offered for a referral link.
var ReferralPlatforms = []string{"facebook", "twitter", "linkedin", "whatsapp"}

// componentUnescaper undoes the QueryEscape choices a browser's
// encodeURIComponent does not make.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent percent-encodes s as a single URL component. Letters,
// digits and -_.!~*'() stay as they are, spaces become %20.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// ShareIntentURL builds the platform share dialog prefilled with the user's stack.
func ShareIntentURL(p types.Platform, content string) (string, error) {
	text := encodeComponent(fmt.Sprintf(stackTemplate, content))
	switch p {
	case types.PlatformTwitter:
		return "https://twitter.com/intent/tweet?text=" + text, nil
	case types.PlatformFacebook:
		return "https://www.facebook.com/sharer/sharer.php?u=" + encodeComponent(promoSite) + "&quote=" + text, nil
	}
	return "", errors.Wrap(ErrUnknownPlatform, string(p))
}

func ReferralURL(origin, code string) string {
	if code == "" {
		return ""
	}
	return strings.TrimRight(origin, "/") + "/signup?ref=" + code
}

func ReferralShareURL(platform, referralURL string) (string, error) {
	link := encodeComponent(referralURL)
	switch platform {
	case "facebook":
		return "https://www.facebook.com/sharer/sharer.php?u=" + link, nil
	case "twitter":
		return "https://twitter.com/intent/tweet?text=" + encodeComponent(referralText) + "&url=" + link, nil
	case "linkedin":
		return "https://www.linkedin.com/sharing/share-offsite/?url=" + link, nil
	case "whatsapp":
		return "https://wa.me/?text=" + encodeComponent(referralText+" "+referralURL), nil
	}
	return "", errors.Wrap(ErrUnknownPlatform, platform)
}

// ReferralShareURLs returns a link per ReferralPlatforms entry, or nil without a referral URL.
func ReferralShareURLs(referralURL string) map[string]string {
	if referralURL == "" {
		return nil
	}
	urls := make(map[string]string, len(ReferralPlatforms))
	for _, p := range ReferralPlatforms {
		u, _ := ReferralShareURL(p, referralURL)
		urls[p] = u
	}
	return urls
}

func AggregateReferrals(refs []*types.Referral) types.ReferralStats {
	stats := types.ReferralStats{TotalReferrals: len(refs)}
	for _, r := range refs {
		if !r.IsCompleted {
			continue
		}
		stats.CompletedReferrals++
		stats.PointsEarned += r.PointsAwarded
	}
	return stats
}
