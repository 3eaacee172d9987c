package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const (
	DefaultFeedBase  = "https://www.reddit.com"
	DefaultMinLength = 1000
)

var DefaultSubreddits = []string{"nosleep", "shortscarystories", "creepypasta", "LetsNotMeet", "TrueScaryStories"}

// FeedSource читает топ постов сабреддитов через публичные RSS-ленты
// и сводит каждый пост к простому тексту.
type FeedSource struct {
	BaseURL    string
	Subreddits []string
	TimeFilter string
	MinLength  int
	UserAgent  string
	Timeout    time.Duration
}

func (f FeedSource) feedURL(sub string) string {
	base := f.BaseURL
	if base == "" {
		base = DefaultFeedBase
	}
	t := f.TimeFilter
	if t == "" {
		t = "week"
	}
	return fmt.Sprintf("%s/r/%s/top/.rss?t=%s", strings.TrimRight(base, "/"), url.PathEscape(sub), url.QueryEscape(t))
}

// Fetch возвращает до limit историй с каждого сабреддита в порядке ленты.
// Сабреддит с ошибкой пишется в лог и пропускается.
func (f FeedSource) Fetch(ctx context.Context, limit int) ([]Story, error) {
	subs := f.Subreddits
	if len(subs) == 0 {
		subs = DefaultSubreddits
	}
	minLen := f.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = f.UserAgent
	if parser.UserAgent == "" {
		parser.UserAgent = "story2video/1.0"
	}

	var stories []Story
	var lastErr error
	for _, sub := range subs {
		feed, err := parser.ParseURLWithContext(f.feedURL(sub), ctx)
		if err != nil {
			log.Printf("[!] Лента r/%s: %v", sub, err)
			lastErr = err
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if limit > 0 && count >= limit {
				break
			}
			s, ok := storyFromItem(item, sub, minLen)
			if !ok {
				continue
			}
			stories = append(stories, s)
			count++
		}
	}
	if len(stories) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to fetch feeds: %w", lastErr)
	}
	return stories, nil
}

func storyFromItem(item *gofeed.Item, sub string, minLen int) (Story, bool) {
	html := item.Content
	if html == "" {
		html = item.Description
	}
	text := htmlText(html, item.Link)
	if len([]rune(text)) < minLen {
		return Story{}, false
	}

	id := item.GUID
	if id == "" {
		id = item.Link
	}
	s := Story{
		ID:     id,
		Title:  strings.TrimSpace(item.Title),
		Text:   text,
		URL:    item.Link,
		Source: "r/" + sub,
	}
	if item.Author != nil {
		s.Author = strings.TrimPrefix(item.Author.Name, "/u/")
	}
	if item.PublishedParsed != nil {
		s.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		s.Published = *item.UpdatedParsed
	}
	return s, true
}

// htmlText достаёт читаемый текст из тела поста. Подвал reddit
// ("submitted by ... [link] [comments]") отрезается.
func htmlText(html, link string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	page, _ := url.Parse(link)
	article, err := readability.FromReader(strings.NewReader("<html><body><article>"+html+"</article></body></html>"), page)
	text := article.TextContent
	if err != nil || strings.TrimSpace(text) == "" {
		return ""
	}
	if i := strings.LastIndex(text, "submitted by"); i >= 0 {
		text = text[:i]
	}
	return normalizeText(text)
}
