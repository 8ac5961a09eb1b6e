package core

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Video is one resolved recommendation link.
type Video struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// YouTubeClient resolves free-text exercise keywords to watchable video
// links via the YouTube Data API. Search failures degrade to an empty
// result so video enrichment never takes a chat or dashboard request down.
type YouTubeClient struct {
	service *youtube.Service
	log     *zap.SugaredLogger
}

// NewYouTubeClient builds the search client. An empty API key yields a
// disabled client whose searches all come back empty, so the service can
// run without video enrichment configured.
func NewYouTubeClient(ctx context.Context, apiKey string, log *zap.SugaredLogger, opts ...option.ClientOption) (*YouTubeClient, error) {
	if apiKey == "" {
		log.Warn("YOUTUBE_API_KEY is not set, video search is disabled")
		return &YouTubeClient{log: log}, nil
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &YouTubeClient{service: service, log: log}, nil
}

// Search returns up to maxResults videos matching the query, mapped to
// canonical watch URLs.
func (c *YouTubeClient) Search(ctx context.Context, query string, maxResults int64) []Video {
	if c.service == nil {
		return nil
	}

	call := c.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(maxResults).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		c.log.Warnw("youtube search failed", "query", query, "error", err)
		return nil
	}

	var videos []Video
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		title := query
		if item.Snippet != nil && item.Snippet.Title != "" {
			title = item.Snippet.Title
		}
		videos = append(videos, Video{
			Title: title,
			URL:   "https://www.youtube.com/watch?v=" + item.Id.VideoId,
		})
	}
	return videos
}
