package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// APICatalog is a Catalog backed by the YouTube Data API v3.
type APICatalog struct {
	svc *yt.Service
}

// NewAPICatalog builds the API client. apiKey may be empty when opts carry
// other credentials or disable authentication.
func NewAPICatalog(ctx context.Context, apiKey string, opts ...option.ClientOption) (*APICatalog, error) {
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube client: %w", err)
	}
	return &APICatalog{svc: svc}, nil
}

func (c *APICatalog) Video(ctx context.Context, id string) (Video, error) {
	resp, err := c.svc.Videos.List([]string{"snippet", "status"}).Id(id).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return Video{}, ErrNotFound
		}
		return Video{}, fmt.Errorf("videos.list %s: %w", id, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return Video{}, ErrNotFound
	}
	it := resp.Items[0]
	return Video{
		ID:           it.Id,
		Title:        html.UnescapeString(it.Snippet.Title),
		ChannelID:    it.Snippet.ChannelId,
		ChannelTitle: html.UnescapeString(it.Snippet.ChannelTitle),
		Embeddable:   it.Status != nil && it.Status.Embeddable,
	}, nil
}

// Search asks only for embeddable videos, so every hit is marked embeddable.
func (c *APICatalog) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	resp, err := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoEmbeddable("true").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search.list %q: %w", query, err)
	}

	out := make([]Video, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Id == nil || it.Id.VideoId == "" || it.Snippet == nil {
			continue
		}
		out = append(out, Video{
			ID:           it.Id.VideoId,
			Title:        html.UnescapeString(it.Snippet.Title),
			ChannelID:    it.Snippet.ChannelId,
			ChannelTitle: html.UnescapeString(it.Snippet.ChannelTitle),
			Embeddable:   true,
		})
	}
	return out, nil
}
