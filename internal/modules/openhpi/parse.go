package openhpi

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// Course is one parsed course card from the catalog page.
type Course struct {
	ID          string
	Title       string
	Description string
	URL         string
	Language    string
	Status      string
}

// parseCourses extracts course cards from the catalog HTML.
func parseCourses(raw []byte, baseURL string) ([]Course, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "openhpi: parse html")
	}

	var courses []Course
	doc.Find("div.course-card").Each(func(_ int, card *goquery.Selection) {
		course := Course{
			Title:       normalizeTitle(card.Find("div.course-card__title").First().Text()),
			Description: strings.TrimSpace(card.Find("div.course-card__description").First().Text()),
			Language:    strings.TrimSpace(card.Find("span.course-card__language").First().Text()),
			Status:      strings.TrimSpace(card.Find("span.course-card__status").First().Text()),
		}

		if href, ok := card.Find("a[href]").First().Attr("href"); ok {
			course.URL = baseURL + href
			parts := strings.Split(strings.TrimRight(href, "/"), "/")
			course.ID = parts[len(parts)-1]
		}

		if course.Title == "" {
			return
		}
		courses = append(courses, course)
	})

	return courses, nil
}

// normalizeTitle NFC-normalizes a title and collapses runs of whitespace.
// Course titles mix composed and decomposed umlauts across pages.
func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// parseHiddenInputs collects hidden form fields (CSRF token among them)
// from the first form on a login page.
func parseHiddenInputs(raw []byte) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "openhpi: parse login page")
	}

	fields := make(map[string]string)
	doc.Find("form").First().Find(`input[type="hidden"]`).Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})
	return fields, nil
}
