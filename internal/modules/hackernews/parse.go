package hackernews

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// maxStories bounds one front-page capture.
const maxStories = 30

// Story is one parsed front-page entry.
type Story struct {
	ID          string
	Title       string
	URL         string
	Domain      string
	Points      int
	Author      string
	Age         string
	Comments    int
	CommentsURL string
}

// parseFrontPage extracts up to maxStories stories from the front-page
// HTML. Rows without a title are skipped. The front page is a table:
// each story sits in a tr.athing, with points, author, and comment
// count in the td.subtext of the following row.
func parseFrontPage(raw []byte, baseURL string) ([]Story, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "hackernews: parse html")
	}

	var stories []Story
	doc.Find("tr.athing").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(stories) >= maxStories {
			return false
		}

		story := Story{ID: row.AttrOr("id", "")}

		titleLink := row.Find("span.titleline > a").First()
		story.Title = strings.TrimSpace(titleLink.Text())
		if story.Title == "" {
			return true
		}
		story.URL = titleLink.AttrOr("href", "")
		story.Domain = strings.TrimSpace(row.Find("span.sitestr").First().Text())

		subtext := row.Next().Find("td.subtext")
		story.Points = leadingInt(subtext.Find("span.score").First().Text())
		story.Author = strings.TrimSpace(subtext.Find("a.hnuser").First().Text())
		story.Age = strings.TrimSpace(subtext.Find("span.age").First().Text())

		subtext.Find("a").Each(func(_ int, link *goquery.Selection) {
			text := strings.ToLower(link.Text())
			if strings.Contains(text, "comment") {
				story.Comments = leadingInt(link.Text())
				if href, ok := link.Attr("href"); ok {
					story.CommentsURL = baseURL + "/" + href
				}
			}
		})

		stories = append(stories, story)
		return true
	})

	return stories, nil
}

// leadingInt parses the integer prefix of strings like "123 points".
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
