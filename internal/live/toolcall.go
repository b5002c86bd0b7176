package live

import (
	"net/url"

	"github.com/zara-labs/live-gateway/internal/session"
)

// ToolPlayMedia is the function name the model invokes to play music or video.
const ToolPlayMedia = "play_media"

// MediaCard is the resolved outcome of a play_media call, ready to render as
// a tappable card on the client.
type MediaCard struct {
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Platform string `json:"platform"`
	Query    string `json:"query"`
	URL      string `json:"url"`
}

// SessionTools returns the function declarations exposed to the model.
func SessionTools() []session.Tool {
	return []session.Tool{{
		FunctionDeclarations: []session.FunctionDeclaration{{
			Name: ToolPlayMedia,
			Parameters: &session.Schema{
				Type:        "object",
				Description: "Search and play music or videos on platforms like Spotify or YouTube.",
				Properties: map[string]*session.Schema{
					"title":    {Type: "string", Description: "The title of the song or video."},
					"artist":   {Type: "string", Description: "The artist or creator (optional)."},
					"platform": {Type: "string", Description: `The platform to play on: "spotify" or "youtube".`},
					"query":    {Type: "string", Description: "The search query string for the platform."},
				},
				Required: []string{"title", "platform", "query"},
			},
		}},
	}}
}

// mediaCardFromArgs maps tool call arguments to a search deep link. Anything
// that is not Spotify falls through to YouTube.
func mediaCardFromArgs(args map[string]any) MediaCard {
	str := func(key string) string {
		s, _ := args[key].(string)
		return s
	}

	card := MediaCard{
		Title:    str("title"),
		Artist:   str("artist"),
		Platform: str("platform"),
		Query:    str("query"),
	}

	if card.Platform == "spotify" {
		card.URL = "https://open.spotify.com/search/" + url.PathEscape(card.Query)
	} else {
		card.URL = "https://www.youtube.com/results?search_query=" + url.QueryEscape(card.Query)
	}
	return card
}
