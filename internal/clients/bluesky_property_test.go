package clients

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// AT Protocol URIs of the form "at://did:plc:xxx/app.bsky.feed.post/rkey" map
// to "https://bsky.app/profile/{handle}/post/{rkey}".

// genBlueskyRkey generates record keys in TID shape
func genBlueskyRkey() gopter.Gen {
	return gen.RegexMatch(`[a-z2-7]{13}`)
}

func genBlueskyDID() gopter.Gen {
	return gen.RegexMatch(`[a-z2-7]{24}`).Map(func(id string) string {
		return "did:plc:" + id
	})
}

func genBlueskyHandle() gopter.Gen {
	return gen.RegexMatch(`[a-z][a-z0-9]{2,15}`).Map(func(user string) string {
		return user + ".bsky.social"
	})
}

func TestPropertyATURIToWebURL(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("web URL is built from handle and rkey", prop.ForAll(
		func(handle, did, rkey string) bool {
			client := NewBlueskyClient(handle, "password", "")
			webURL := client.ATURIToWebURL("at://" + did + "/app.bsky.feed.post/" + rkey)
			return webURL == "https://bsky.app/profile/"+handle+"/post/"+rkey
		},
		genBlueskyHandle(),
		genBlueskyDID(),
		genBlueskyRkey(),
	))

	properties.Property("URIs without a record path are returned unchanged", prop.ForAll(
		func(handle, did string) bool {
			client := NewBlueskyClient(handle, "password", "")
			uri := "at://" + did
			return client.ATURIToWebURL(uri) == uri && !strings.HasPrefix(uri, "https://")
		},
		genBlueskyHandle(),
		genBlueskyDID(),
	))

	properties.TestingRun(t)
}
